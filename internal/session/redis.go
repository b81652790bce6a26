package session

import (
	"context"
	"time"

	"socialnet/internal/cache"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in redis with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, key string) (Session, error) {
	var s Session
	found, err := cache.GetJSON(ctx, r.client, cache.SessionKey(key), &s)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, s Session) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	return cache.SetJSON(ctx, r.client, cache.SessionKey(key), s, r.ttl)
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, cache.SessionKey(key)).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
