// Package storage is the gateway to the durable session store.
//
// A Collection is a keyed document store of chat sessions. Backends decode
// records into chat.Session and reject shapes that fail chat.Session.Validate
// before they reach callers.
package storage

import (
	"context"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

// Collection holds session records keyed by session id.
type Collection interface {
	// Get returns (nil, nil) when no record has the id.
	Get(ctx context.Context, sessionID string) (*chat.Session, error)
	// FindLatestByUser returns the record of userEmail with the greatest
	// (UpdatedAt, Revision), or (nil, nil) when the user has none.
	FindLatestByUser(ctx context.Context, userEmail string) (*chat.Session, error)
	// Upsert writes the whole document, inserting it when absent.
	Upsert(ctx context.Context, session *chat.Session) error
	// Delete is a no-op when the record is absent.
	Delete(ctx context.Context, sessionID string) error
	Close(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendMemory    = "memory"
	BackendMongo     = "mongo"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)
