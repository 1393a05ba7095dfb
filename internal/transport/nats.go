package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/celeste-app/celeste/backend/internal/config"
	"github.com/celeste-app/celeste/backend/internal/observability"
)

// NATSTransport serves the session operations as NATS request/reply.
type NATSTransport struct {
	conn       *nats.Conn
	config     config.NATSConfig
	dispatcher *Dispatcher
	subs       []*nats.Subscription
}

func NewNATSTransport(cfg config.NATSConfig, dispatcher *Dispatcher) (*NATSTransport, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("celeste-backend"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	observability.Logger().Info("connected to NATS", "url", cfg.URL)

	return &NATSTransport{
		conn:       conn,
		config:     cfg,
		dispatcher: dispatcher,
	}, nil
}

// Subject returns the subject an operation is served on.
func Subject(prefix, op string) string {
	return strings.TrimSuffix(prefix, ".") + "." + op
}

func (nt *NATSTransport) Start() error {
	for _, op := range []string{OpTurn, OpLatest, OpFinalize} {
		subject := Subject(nt.config.SubjectPrefix, op)
		sub, err := nt.conn.Subscribe(subject, nt.handler(op))
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		nt.subs = append(nt.subs, sub)
		observability.Logger().Info("subscribed to subject", "subject", subject)
	}
	return nil
}

func (nt *NATSTransport) handler(op string) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx := context.Background()
		if nt.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, nt.config.Timeout)
			defer cancel()
		}

		reply, err := nt.dispatcher.Handle(ctx, op, msg.Data)
		if err != nil {
			observability.Logger().Warn("nats request failed", "subject", msg.Subject, "err", err)
		}

		data, err := json.Marshal(reply)
		if err != nil {
			observability.Logger().Error("failed to marshal nats reply", "subject", msg.Subject, "err", err)
			return
		}
		if err := msg.Respond(data); err != nil {
			observability.Logger().Warn("failed to send nats reply", "subject", msg.Subject, "err", err)
		}
	}
}

// Close drains the subscriptions so in-flight requests get their replies.
func (nt *NATSTransport) Close() error {
	if nt.conn == nil {
		return nil
	}
	if err := nt.conn.Drain(); err != nil {
		nt.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	observability.Logger().Info("NATS connection drained")
	return nil
}
