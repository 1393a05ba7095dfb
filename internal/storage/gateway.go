package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

// DialFunc opens a connection to a backend.
type DialFunc func(ctx context.Context) (Collection, error)

// Gateway hands out one shared Collection per process. The connection is
// established on the first Acquire; concurrent first callers wait for the same
// dial. A failed dial is not remembered, so the next Acquire tries again.
type Gateway struct {
	name  string
	dial  DialFunc
	group singleflight.Group

	mu     sync.RWMutex
	handle Collection
}

// NewGateway wraps dial. name is used in logs and errors.
func NewGateway(name string, dial DialFunc) *Gateway {
	return &Gateway{name: name, dial: dial}
}

// Acquire returns the shared handle, dialing on first use. The dial outlives
// the caller's cancellation; backends bound it with their own timeout.
func (g *Gateway) Acquire(ctx context.Context) (Collection, error) {
	if c := g.current(); c != nil {
		return c, nil
	}

	v, err, _ := g.group.Do("acquire", func() (any, error) {
		if c := g.current(); c != nil {
			return c, nil
		}
		// Callers joining this dial must not fail because the first one gave up.
		c, err := g.dial(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.handle = c
		g.mu.Unlock()
		slog.Info("session store connected", "backend", g.name)
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", chat.ErrConnection, g.name, err)
	}
	return v.(Collection), nil
}

// Close releases the shared handle if one was opened.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	c := g.handle
	g.handle = nil
	g.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close(ctx)
}

func (g *Gateway) current() Collection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.handle
}
