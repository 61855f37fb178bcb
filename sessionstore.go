package pcgcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"
)

const DefaultSessionKeyPrefix = "pcgcp:session:"

// RedisSessionStore keeps scs session data in Redis so that several backend
// instances share sessions. Keys expire with the session.
type RedisSessionStore struct {
	redis  *redis.Client
	prefix string
}

var _ scs.CtxStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = DefaultSessionKeyPrefix
	}
	return &RedisSessionStore{redis: client, prefix: prefix}
}

func (s *RedisSessionStore) key(token string) string {
	return s.prefix + token
}

func (s *RedisSessionStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	b, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session redis unavailable: %w", err)
	}
	return b, true, nil
}

func (s *RedisSessionStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return s.DeleteCtx(ctx, token)
	}
	if err := s.redis.Set(ctx, s.key(token), b, ttl).Err(); err != nil {
		return fmt.Errorf("session redis unavailable: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) DeleteCtx(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("session redis unavailable: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *RedisSessionStore) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *RedisSessionStore) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}
