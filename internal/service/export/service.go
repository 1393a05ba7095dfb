// Package export finalizes sessions: the transcript is handed to a delivery
// backend and, once delivered, the stored session is deleted.
package export

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
	"github.com/celeste-app/celeste/backend/internal/observability"
)

// SessionStore is the slice of the session repository finalization needs.
// ExportAndDelete must keep the session from changing between export and
// delete.
type SessionStore interface {
	ExportAndDelete(ctx context.Context, sessionID string, export func(*chat.Session) error) error
}

// Deliverer sends a rendered transcript to destination.
type Deliverer interface {
	Deliver(ctx context.Context, destination, transcript string) error
}

// Service is the finalization workflow.
type Service struct {
	sessions      SessionStore
	deliverer     Deliverer
	assistantName string
}

// NewService wires the workflow. assistantName labels assistant turns.
func NewService(sessions SessionStore, deliverer Deliverer, assistantName string) *Service {
	return &Service{
		sessions:      sessions,
		deliverer:     deliverer,
		assistantName: assistantName,
	}
}

// Finalize delivers the transcript of sessionID to userEmail and then deletes
// the session. When delivery fails the session is left untouched.
func (s *Service) Finalize(ctx context.Context, sessionID, userEmail string) error {
	sessionID = strings.TrimSpace(sessionID)
	userEmail = strings.TrimSpace(userEmail)
	if sessionID == "" || userEmail == "" {
		return fmt.Errorf("%w: sessionId y userEmail son requeridos", chat.ErrValidation)
	}
	if _, err := mail.ParseAddress(userEmail); err != nil {
		return fmt.Errorf("%w: invalid email %q", chat.ErrValidation, userEmail)
	}

	var turns int
	err := s.sessions.ExportAndDelete(ctx, sessionID, func(session *chat.Session) error {
		turns = len(session.Messages)
		transcript := RenderTranscript(session.Messages, s.assistantName)
		if err := s.deliverer.Deliver(ctx, userEmail, transcript); err != nil {
			return fmt.Errorf("%w: session %s: %w", chat.ErrDelivery, sessionID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	observability.LoggerFromContext(ctx).Info("session finalized",
		"session_id", sessionID,
		"turns", turns,
		"user_email", observability.MaskEmail(userEmail),
	)
	return nil
}
