package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
	"github.com/celeste-app/celeste/backend/internal/service/conversation"
)

type fakeTurns struct {
	err error
}

func (f fakeTurns) HandleTurn(_ context.Context, in conversation.TurnInput) (conversation.TurnOutput, error) {
	if f.err != nil {
		return conversation.TurnOutput{}, f.err
	}
	return conversation.TurnOutput{Reply: "ok: " + in.Utterance, SessionID: "s1"}, nil
}

type fakeSessions struct {
	session *chat.Session
	err     error
}

func (f fakeSessions) FindMostRecentByUser(context.Context, string) (*chat.Session, error) {
	return f.session, f.err
}

type fakeFinalizer struct {
	err error
}

func (f fakeFinalizer) Finalize(context.Context, string, string) error {
	return f.err
}

func TestHandleTurn(t *testing.T) {
	d := NewDispatcher(fakeTurns{}, fakeSessions{}, fakeFinalizer{})

	reply, err := d.Handle(context.Background(), OpTurn, []byte(`{"pregunta":"Hola"}`))
	require.NoError(t, err)

	data, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{"respuesta":"ok: Hola","sessionId":"s1"}`, string(data))
}

func TestHandleTurnFailureEnvelope(t *testing.T) {
	d := NewDispatcher(fakeTurns{err: fmt.Errorf("%w: boom", chat.ErrCompletion)}, fakeSessions{}, fakeFinalizer{})

	reply, err := d.Handle(context.Background(), OpTurn, []byte(`{"pregunta":"Hola"}`))
	require.ErrorIs(t, err, chat.ErrCompletion)

	envelope, ok := reply.(*ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, chat.CodeCompletion, envelope.Code)
	assert.NotEmpty(t, envelope.Error)
}

func TestHandleLatest(t *testing.T) {
	d := NewDispatcher(nil, fakeSessions{}, nil)

	reply, err := d.Handle(context.Background(), OpLatest, []byte(`{"userEmail":"ana@example.com"}`))
	require.NoError(t, err)
	data, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	d = NewDispatcher(nil, fakeSessions{session: &chat.Session{SessionID: "s9", Messages: []chat.Turn{{Role: chat.RoleUser, Content: "Hola"}}}}, nil)
	reply, err = d.Handle(context.Background(), OpLatest, []byte(`{"userEmail":"ana@example.com"}`))
	require.NoError(t, err)
	resp, ok := reply.(chat.LatestSessionResponse)
	require.True(t, ok)
	assert.Equal(t, "s9", resp.SessionID)
	assert.Len(t, resp.Messages, 1)
}

func TestHandleLatestRequiresEmail(t *testing.T) {
	d := NewDispatcher(nil, fakeSessions{}, nil)

	reply, err := d.Handle(context.Background(), OpLatest, []byte(`{}`))
	require.ErrorIs(t, err, chat.ErrValidation)
	assert.Equal(t, chat.CodeValidation, reply.(*ErrorResponse).Code)
}

func TestHandleFinalize(t *testing.T) {
	d := NewDispatcher(nil, fakeSessions{}, fakeFinalizer{})
	reply, err := d.Handle(context.Background(), OpFinalize, []byte(`{"sessionId":"s1","userEmail":"ana@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, chat.FinalizeResponse{OK: true}, reply)

	d = NewDispatcher(nil, fakeSessions{}, fakeFinalizer{err: fmt.Errorf("%w: s1", chat.ErrNotFound)})
	reply, err = d.Handle(context.Background(), OpFinalize, []byte(`{"sessionId":"s1","userEmail":"ana@example.com"}`))
	require.ErrorIs(t, err, chat.ErrNotFound)
	assert.Equal(t, chat.CodeNotFound, reply.(*ErrorResponse).Code)
}

func TestHandleMissingCollaborators(t *testing.T) {
	d := NewDispatcher(nil, fakeSessions{}, nil)

	reply, err := d.Handle(context.Background(), OpTurn, []byte(`{"pregunta":"Hola"}`))
	require.Error(t, err)
	assert.Equal(t, chat.CodeInternal, reply.(*ErrorResponse).Code)

	reply, err = d.Handle(context.Background(), OpFinalize, []byte(`{"sessionId":"s1","userEmail":"ana@example.com"}`))
	require.Error(t, err)
	assert.Equal(t, chat.CodeInternal, reply.(*ErrorResponse).Code)
}

func TestHandleRejectsBadInput(t *testing.T) {
	d := NewDispatcher(fakeTurns{}, fakeSessions{}, fakeFinalizer{})

	_, err := d.Handle(context.Background(), OpTurn, []byte(`{`))
	assert.True(t, errors.Is(err, chat.ErrValidation))

	_, err = d.Handle(context.Background(), "purge", []byte(`{}`))
	assert.True(t, errors.Is(err, chat.ErrValidation))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "celeste.turn", Subject("celeste", OpTurn))
	assert.Equal(t, "celeste.finalize", Subject("celeste.", OpFinalize))
}
