// Package session persists the signed-in client session between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialnet/internal/cache"
	"socialnet/internal/config"
	"socialnet/internal/database"
)

// DefaultKey is the key used when a tool keeps a single session.
const DefaultKey = "default"

// ErrNotFound is returned by Load when no session is stored under the key.
var ErrNotFound = errors.New("session not found")

// Session is the persisted sign-in state.
type Session struct {
	Token   string    `json:"token"`
	UserID  int       `json:"user_id"`
	Email   string    `json:"email"`
	SavedAt time.Time `json:"saved_at"`
}

// Store loads and saves sessions by key.
type Store interface {
	Load(ctx context.Context, key string) (Session, error)
	Save(ctx context.Context, key string, s Session) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open selects a Store from SESSION_BACKEND.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SessionBackend {
	case "", "memory":
		return NewMemoryStore(cfg.SessionTTL()), nil
	case "redis":
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis session store: %w", err)
		}
		return NewRedisStore(client, cfg.SessionTTL()), nil
	case "sqlite", "postgres":
		db, err := database.Connect(cfg.SessionBackend, cfg.SessionDSN)
		if err != nil {
			return nil, fmt.Errorf("open sql session store: %w", err)
		}
		return NewSQLStore(db, cfg.SessionTTL())
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

func expired(s Session, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && !s.SavedAt.IsZero() && now.Sub(s.SavedAt) > ttl
}
