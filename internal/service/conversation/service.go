// Package conversation runs one conversational turn: load the transcript, ask
// the model for a reply and persist the user turn together with the reply.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
	"github.com/celeste-app/celeste/backend/internal/model/persona"
	"github.com/celeste-app/celeste/backend/internal/observability"
	"github.com/celeste-app/celeste/backend/internal/service/ai"
)

// SessionStore is the slice of the session repository a turn needs.
type SessionStore interface {
	FindByID(ctx context.Context, sessionID string) (*chat.Session, error)
	AppendAndUpsert(ctx context.Context, sessionID string, turns []chat.Turn, userEmail string) error
}

// TurnInput is one user utterance. SessionID is empty for a new conversation.
type TurnInput struct {
	Utterance string
	SessionID string
	UserEmail string
	UserName  string
}

// TurnOutput is the assistant reply and the session it was stored under.
type TurnOutput struct {
	Reply     string
	SessionID string
	Created   bool
}

// Service is the conversation orchestrator.
type Service struct {
	sessions  SessionStore
	completer ai.Completer
	prompts   *ai.PersonaPromptManager
	persona   persona.Persona
	loc       *time.Location
	now       func() time.Time
	newID     func() string
}

// Option customises a Service.
type Option func(*Service)

// WithLocation sets the timezone turn timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how new session ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService wires the orchestrator. p is the assistant persona used for the
// system turn of every completion.
func NewService(sessions SessionStore, completer ai.Completer, p persona.Persona, opts ...Option) *Service {
	s := &Service{
		sessions:  sessions,
		completer: completer,
		prompts:   ai.NewPersonaPromptManager(),
		persona:   p,
		loc:       time.UTC,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleTurn answers in.Utterance in the context of in.SessionID. Either both
// the user turn and the reply are persisted or nothing is.
func (s *Service) HandleTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	if strings.TrimSpace(in.Utterance) == "" {
		return TurnOutput{}, fmt.Errorf("%w: pregunta requerida", chat.ErrValidation)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	userEmail := strings.TrimSpace(in.UserEmail)
	created := sessionID == ""

	var history []chat.Turn
	if created {
		sessionID = s.newID()
	} else {
		session, err := s.sessions.FindByID(ctx, sessionID)
		if err != nil {
			return TurnOutput{}, err
		}
		if session != nil {
			history = session.Messages
		}
	}

	userTurn := chat.NewTurn(chat.RoleUser, in.Utterance, s.now(), s.loc)

	request := make([]chat.Turn, 0, len(history)+2)
	request = append(request, s.prompts.SystemTurn(s.persona, in.UserName, s.now(), s.loc))
	request = append(request, history...)
	request = append(request, userTurn)

	reply, err := s.completer.Complete(ctx, request)
	if err != nil {
		return TurnOutput{}, fmt.Errorf("%w: session %s: %w", chat.ErrCompletion, sessionID, err)
	}

	assistantTurn := chat.NewTurn(chat.RoleAssistant, reply, s.now(), s.loc)
	if err := s.sessions.AppendAndUpsert(ctx, sessionID, []chat.Turn{userTurn, assistantTurn}, userEmail); err != nil {
		return TurnOutput{}, err
	}

	observability.LoggerFromContext(ctx).Info("turn handled",
		"session_id", sessionID,
		"new_session", created,
		"history_turns", len(history),
		"user_email", observability.MaskEmail(userEmail),
		"reply_length", len(reply),
	)

	return TurnOutput{Reply: reply, SessionID: sessionID, Created: created}, nil
}
