package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/celeste-app/celeste/backend/internal/config"
)

// Open builds a Gateway for the backend selected in cfg. Nothing is dialed
// until the first Acquire.
func Open(cfg config.StoreConfig) (*Gateway, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var dial DialFunc
	switch cfg.Backend {
	case BackendMemory:
		mem := NewMemoryCollection()
		dial = func(context.Context) (Collection, error) { return mem, nil }
	case BackendMongo:
		dial = func(ctx context.Context) (Collection, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return DialMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.Collection)
		}
	case BackendRedis:
		dial = func(ctx context.Context) (Collection, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return DialRedis(ctx, cfg.RedisURL, cfg.RedisKeyPrefix, cfg.RedisSessionTTL)
		}
	case BackendFirestore:
		dial = func(ctx context.Context) (Collection, error) {
			return DialFirestore(context.WithoutCancel(ctx), cfg.FirestoreProject, cfg.Collection)
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	return NewGateway(cfg.Backend, dial), nil
}
