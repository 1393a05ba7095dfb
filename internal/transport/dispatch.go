package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	chathandler "github.com/celeste-app/celeste/backend/internal/handler/chat"
	"github.com/celeste-app/celeste/backend/internal/model/chat"
	"github.com/celeste-app/celeste/backend/internal/service/conversation"
)

// Operations served over the bus. The subject is "<prefix>.<op>".
const (
	OpTurn     = "turn"
	OpLatest   = "latest"
	OpFinalize = "finalize"
)

// ErrorResponse is the reply sent when an operation fails.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Dispatcher decodes a request payload, runs the matching operation and
// returns the value to encode as the reply.
type Dispatcher struct {
	turns     chathandler.TurnHandler
	sessions  chathandler.SessionFinder
	finalizer chathandler.Finalizer
}

func NewDispatcher(turns chathandler.TurnHandler, sessions chathandler.SessionFinder, finalizer chathandler.Finalizer) *Dispatcher {
	return &Dispatcher{turns: turns, sessions: sessions, finalizer: finalizer}
}

// Handle runs op with the JSON payload data. Failures are returned as an
// *ErrorResponse together with the underlying error for logging.
func (d *Dispatcher) Handle(ctx context.Context, op string, data []byte) (any, error) {
	switch op {
	case OpTurn:
		var req chat.TurnRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return failure(fmt.Errorf("%w: invalid turn payload: %w", chat.ErrValidation, err))
		}
		if d.turns == nil {
			return failure(fmt.Errorf("completion backend not configured"))
		}
		out, err := d.turns.HandleTurn(ctx, conversation.TurnInput{
			Utterance: req.Question,
			SessionID: req.SessionID,
			UserEmail: req.UserEmail,
			UserName:  req.UserName,
		})
		if err != nil {
			return failure(err)
		}
		return chat.TurnResponse{Answer: out.Reply, SessionID: out.SessionID}, nil

	case OpLatest:
		var req chat.LatestSessionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return failure(fmt.Errorf("%w: invalid latest payload: %w", chat.ErrValidation, err))
		}
		if strings.TrimSpace(req.UserEmail) == "" {
			return failure(fmt.Errorf("%w: Email requerido", chat.ErrValidation))
		}
		session, err := d.sessions.FindMostRecentByUser(ctx, req.UserEmail)
		if err != nil {
			return failure(err)
		}
		if session == nil {
			return chat.LatestSessionResponse{}, nil
		}
		return chat.LatestSessionResponse{SessionID: session.SessionID, Messages: session.Messages}, nil

	case OpFinalize:
		var req chat.FinalizeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return failure(fmt.Errorf("%w: invalid finalize payload: %w", chat.ErrValidation, err))
		}
		if d.finalizer == nil {
			return failure(fmt.Errorf("mail delivery not configured"))
		}
		if err := d.finalizer.Finalize(ctx, req.SessionID, req.UserEmail); err != nil {
			return failure(err)
		}
		return chat.FinalizeResponse{OK: true}, nil

	default:
		return failure(fmt.Errorf("%w: unknown operation %q", chat.ErrValidation, op))
	}
}

func failure(err error) (any, error) {
	code := chat.ErrorCode(err)
	_, message := chathandler.StatusFor(code)
	if code == chat.CodeValidation {
		message = err.Error()
	}
	return &ErrorResponse{Error: message, Code: code}, err
}
