// Package mail delivers finalized transcripts by email with a PDF copy.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/celeste-app/celeste/backend/internal/config"
)

// AttachmentName is the file name of the PDF transcript.
const AttachmentName = "historial.pdf"

// sender is satisfied by *gomail.Client.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// Mailer implements export.Deliverer over SMTP.
type Mailer struct {
	client        sender
	from          string
	fromName      string
	subject       string
	assistantName string
}

// NewMailer builds an SMTP client from cfg. The account user is the sender.
func NewMailer(cfg config.MailConfig, assistantName string) (*Mailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("mail delivery is not configured")
	}

	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return newMailer(client, cfg, assistantName), nil
}

func newMailer(client sender, cfg config.MailConfig, assistantName string) *Mailer {
	return &Mailer{
		client:        client,
		from:          cfg.Username,
		fromName:      cfg.FromName,
		subject:       cfg.Subject,
		assistantName: assistantName,
	}
}

// Deliver mails transcript to destination.
func (m *Mailer) Deliver(ctx context.Context, destination, transcript string) error {
	msg, err := m.compose(destination, transcript)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (m *Mailer) compose(destination, transcript string) (*gomail.Msg, error) {
	text := TextBody(m.assistantName, transcript)
	html, err := HTMLBody(m.assistantName, transcript)
	if err != nil {
		return nil, err
	}
	pdf, err := RenderPDF(m.subject, text)
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(destination); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(m.subject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)
	if err := msg.AttachReader(AttachmentName, bytes.NewReader(pdf),
		gomail.WithFileContentType(gomail.ContentType("application/pdf"))); err != nil {
		return nil, fmt.Errorf("attach transcript: %w", err)
	}
	return msg, nil
}
