package export_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
	chatservice "github.com/celeste-app/celeste/backend/internal/service/chat"
	"github.com/celeste-app/celeste/backend/internal/service/export"
	"github.com/celeste-app/celeste/backend/internal/storage"
)

type memoryGateway struct{ coll storage.Collection }

func (g memoryGateway) Acquire(context.Context) (storage.Collection, error) { return g.coll, nil }

type fakeDeliverer struct {
	destination string
	transcript  string
	calls       int
	err         error
}

func (f *fakeDeliverer) Deliver(_ context.Context, destination, transcript string) error {
	f.calls++
	f.destination = destination
	f.transcript = transcript
	return f.err
}

func seeded(t *testing.T) *chatservice.Repository {
	t.Helper()
	repo := chatservice.NewRepository(memoryGateway{storage.NewMemoryCollection()})
	err := repo.AppendAndUpsert(context.Background(), "s1", []chat.Turn{
		{Role: chat.RoleUser, Content: "Hola", Timestamp: "2025-03-01 10:00:00"},
		{Role: chat.RoleAssistant, Content: "¡Hola Ana!", Timestamp: "2025-03-01 10:00:02"},
		{Role: chat.RoleUser, Content: "Gracias", Timestamp: "2025-03-01 10:01:00"},
	}, "ana@example.com")
	require.NoError(t, err)
	return repo
}

func TestFinalizeDeliversThenDeletes(t *testing.T) {
	ctx := context.Background()
	repo := seeded(t)
	deliverer := &fakeDeliverer{}
	svc := export.NewService(repo, deliverer, "Celeste")

	require.NoError(t, svc.Finalize(ctx, "s1", "ana@example.com"))

	assert.Equal(t, "ana@example.com", deliverer.destination)
	assert.Contains(t, deliverer.transcript, "👤 Tú:\nHola\n")
	assert.Contains(t, deliverer.transcript, "🤖 Celeste:\n¡Hola Ana!\n")

	got, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	latest, err := repo.FindMostRecentByUser(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestFinalizeDeliveryFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	repo := seeded(t)
	svc := export.NewService(repo, &fakeDeliverer{err: errors.New("smtp: 535 auth failed")}, "Celeste")

	err := svc.Finalize(ctx, "s1", "ana@example.com")
	require.ErrorIs(t, err, chat.ErrDelivery)

	got, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Messages, 3)
}

func TestFinalizeUnknownSession(t *testing.T) {
	deliverer := &fakeDeliverer{}
	svc := export.NewService(seeded(t), deliverer, "Celeste")

	err := svc.Finalize(context.Background(), "missing", "ana@example.com")
	assert.ErrorIs(t, err, chat.ErrNotFound)
	assert.Zero(t, deliverer.calls)
}

func TestFinalizeAfterFinalizeIsNotFound(t *testing.T) {
	svc := export.NewService(seeded(t), &fakeDeliverer{}, "Celeste")

	require.NoError(t, svc.Finalize(context.Background(), "s1", "ana@example.com"))
	assert.ErrorIs(t, svc.Finalize(context.Background(), "s1", "ana@example.com"), chat.ErrNotFound)
}

func TestFinalizeValidatesInput(t *testing.T) {
	deliverer := &fakeDeliverer{}
	svc := export.NewService(seeded(t), deliverer, "Celeste")

	cases := map[string][2]string{
		"missing id":    {"", "ana@example.com"},
		"missing email": {"s1", ""},
		"bad email":     {"s1", "not-an-email"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, svc.Finalize(context.Background(), in[0], in[1]), chat.ErrValidation)
		})
	}
	assert.Zero(t, deliverer.calls)
}

type appendingDeliverer struct {
	repo       *chatservice.Repository
	transcript string
	appended   chan error
}

func (d *appendingDeliverer) Deliver(_ context.Context, _ string, transcript string) error {
	d.transcript = transcript
	go func() {
		d.appended <- d.repo.AppendAndUpsert(context.Background(), "s1", []chat.Turn{
			{Role: chat.RoleUser, Content: "LATE", Timestamp: "2025-03-01 10:02:00"},
		}, "ana@example.com")
	}()
	// Give the concurrent append a chance to run before the delete.
	time.Sleep(20 * time.Millisecond)
	return nil
}

func TestFinalizeDoesNotDropTurnsAppendedDuringDelivery(t *testing.T) {
	ctx := context.Background()
	repo := seeded(t)
	deliverer := &appendingDeliverer{repo: repo, appended: make(chan error, 1)}
	svc := export.NewService(repo, deliverer, "Celeste")

	require.NoError(t, svc.Finalize(ctx, "s1", "ana@example.com"))
	require.NoError(t, <-deliverer.appended)
	assert.NotContains(t, deliverer.transcript, "LATE")

	got, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got, "a turn appended while mailing must survive the delete")
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "LATE", got.Messages[0].Content)
}
