package chat

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
	"github.com/celeste-app/celeste/backend/internal/storage"
)

// Acquirer hands out the shared store handle. *storage.Gateway implements it.
type Acquirer interface {
	Acquire(ctx context.Context) (storage.Collection, error)
}

// Repository owns session persistence and its invariants: transcripts only
// grow, a session id maps to one record, and deleted sessions stay gone.
type Repository struct {
	store   Acquirer
	locks   *keyedMutex
	now     func() time.Time
	lastRev atomic.Int64
}

// Option customises a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository returns a repository backed by store.
func NewRepository(store Acquirer, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindByID returns (nil, nil) when the session does not exist.
func (r *Repository) FindByID(ctx context.Context, sessionID string) (*chat.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", chat.ErrValidation)
	}

	c, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}
	session, err := c.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", chat.ErrStorage, sessionID, err)
	}
	return session, nil
}

// FindMostRecentByUser returns the live session of userEmail written last, or
// (nil, nil) when the user has none.
func (r *Repository) FindMostRecentByUser(ctx context.Context, userEmail string) (*chat.Session, error) {
	userEmail = normalizeEmail(userEmail)
	if userEmail == "" {
		return nil, fmt.Errorf("%w: user email is required", chat.ErrValidation)
	}

	c, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}
	session, err := c.FindLatestByUser(ctx, userEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: latest session for user: %w", chat.ErrStorage, err)
	}
	return session, nil
}

// AppendAndUpsert appends turns to the stored transcript of sessionID, creating
// the record when needed. userEmail replaces the stored address only when set.
// Calls for the same session id are serialized within the process.
func (r *Repository) AppendAndUpsert(ctx context.Context, sessionID string, turns []chat.Turn, userEmail string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", chat.ErrValidation)
	}
	userEmail = normalizeEmail(userEmail)
	for _, turn := range turns {
		if turn.Role != chat.RoleUser && turn.Role != chat.RoleAssistant {
			return fmt.Errorf("%w: cannot persist %q turn", chat.ErrValidation, turn.Role)
		}
	}

	unlock := r.locks.Lock(sessionID)
	defer unlock()

	c, err := r.collection(ctx)
	if err != nil {
		return err
	}

	session, err := c.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%w: load %s: %w", chat.ErrStorage, sessionID, err)
	}
	if session == nil {
		session = &chat.Session{SessionID: sessionID}
	}

	session.Messages = append(session.Messages, turns...)
	if userEmail != "" {
		session.UserEmail = userEmail
	}
	now := r.now()
	session.UpdatedAt = now.UTC()
	session.Revision = r.nextRevision(now)

	if err := c.Upsert(ctx, session); err != nil {
		return fmt.Errorf("%w: save %s: %w", chat.ErrStorage, sessionID, err)
	}
	return nil
}

// DeleteByID removes the session. Deleting an absent session succeeds.
func (r *Repository) DeleteByID(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", chat.ErrValidation)
	}

	unlock := r.locks.Lock(sessionID)
	defer unlock()

	c, err := r.collection(ctx)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: delete %s: %w", chat.ErrStorage, sessionID, err)
	}
	return nil
}

// ExportAndDelete hands the stored session to export and deletes it once
// export succeeds. The session lock is held throughout, so no turn can be
// appended between the export and the delete. An absent session yields
// chat.ErrNotFound; an export error is returned unchanged and keeps the session.
func (r *Repository) ExportAndDelete(ctx context.Context, sessionID string, export func(*chat.Session) error) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", chat.ErrValidation)
	}

	unlock := r.locks.Lock(sessionID)
	defer unlock()

	c, err := r.collection(ctx)
	if err != nil {
		return err
	}
	session, err := c.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%w: load %s: %w", chat.ErrStorage, sessionID, err)
	}
	if session == nil {
		return fmt.Errorf("%w: %s", chat.ErrNotFound, sessionID)
	}

	if err := export(session); err != nil {
		return err
	}

	if err := c.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: delete %s: %w", chat.ErrStorage, sessionID, err)
	}
	return nil
}

// normalizeEmail makes stored and queried addresses compare equal.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func (r *Repository) collection(ctx context.Context) (storage.Collection, error) {
	c, err := r.store.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrStorage, err)
	}
	return c, nil
}

// nextRevision returns a value larger than every revision this process has
// handed out, tracking the wall clock when it moves forward.
func (r *Repository) nextRevision(now time.Time) int64 {
	for {
		last := r.lastRev.Load()
		next := now.UnixNano()
		if next <= last {
			next = last + 1
		}
		if r.lastRev.CompareAndSwap(last, next) {
			return next
		}
	}
}
