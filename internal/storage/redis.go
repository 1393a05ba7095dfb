package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

// RedisCollection stores each session as a JSON value and keeps, per user, a
// list of session ids with the most recently written one at the head.
type RedisCollection struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// DialRedis parses redisURL, connects and pings. A zero ttl keeps sessions
// until they are deleted.
func DialRedis(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisCollection, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCollection(ctx, redis.NewClient(opt), prefix, ttl)
}

// NewRedisCollection wraps an existing client after checking it responds.
func NewRedisCollection(ctx context.Context, client *redis.Client, prefix string, ttl time.Duration) (*RedisCollection, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if prefix == "" {
		prefix = "celeste"
	}
	return &RedisCollection{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *RedisCollection) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, sessionID)
}

func (r *RedisCollection) userKey(userEmail string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, userEmail)
}

func (r *RedisCollection) Get(ctx context.Context, sessionID string) (*chat.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", sessionID, err)
	}

	var session chat.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", chat.ErrInvalidDocument, sessionID, err)
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *RedisCollection) FindLatestByUser(ctx context.Context, userEmail string) (*chat.Session, error) {
	key := r.userKey(userEmail)
	ids, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}

	for _, id := range ids {
		session, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if session != nil && session.UserEmail == userEmail {
			return session, nil
		}
		// Expired or reassigned; drop the stale index entry.
		if err := r.client.LRem(ctx, key, 0, id).Err(); err != nil {
			return nil, fmt.Errorf("redis lrem %s: %w", key, err)
		}
	}
	return nil, nil
}

func (r *RedisCollection) Upsert(ctx context.Context, session *chat.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.SessionID, err)
	}

	prev, err := r.Get(ctx, session.SessionID)
	if err != nil && !errors.Is(err, chat.ErrInvalidDocument) {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.SessionID), data, r.ttl)
		if prev != nil && prev.UserEmail != "" && prev.UserEmail != session.UserEmail {
			pipe.LRem(ctx, r.userKey(prev.UserEmail), 0, session.SessionID)
		}
		if session.UserEmail != "" {
			uk := r.userKey(session.UserEmail)
			pipe.LRem(ctx, uk, 0, session.SessionID)
			pipe.LPush(ctx, uk, session.SessionID)
			if r.ttl > 0 {
				pipe.Expire(ctx, uk, r.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert %s: %w", session.SessionID, err)
	}
	return nil
}

func (r *RedisCollection) Delete(ctx context.Context, sessionID string) error {
	prev, err := r.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, chat.ErrInvalidDocument) {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(sessionID))
		if prev != nil && prev.UserEmail != "" {
			pipe.LRem(ctx, r.userKey(prev.UserEmail), 0, sessionID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisCollection) Close(context.Context) error {
	return r.client.Close()
}
