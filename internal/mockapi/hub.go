package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"socialnet/internal/cache"
	"socialnet/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000

	presenceTTL = 2 * time.Minute
)

var (
	errServerConnLimit = errors.New("server connection limit reached")
	errUserConnLimit   = errors.New("user connection limit reached")
)

// Hub maps user ids to their live websocket clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[int]map[*Client]struct{}
	totalConns int
	redis      redis.Cmdable
}

// NewHub creates a hub. When rdb is non-nil, presence is mirrored to redis.
func NewHub(rdb redis.Cmdable) *Hub {
	return &Hub{
		conns: make(map[int]map[*Client]struct{}),
		redis: rdb,
	}
}

// Name identifies the hub in metrics and logs.
func (h *Hub) Name() string { return "mock hub" }

// Register adds a connection for userID. Per-user and global limits apply.
func (h *Hub) Register(userID int, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errServerConnLimit
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, errUserConnLimit
	}
	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.MockHubConnections.Inc()
	h.touchPresence(userID, 1)
	return client, nil
}

// UnregisterClient removes a client. Unknown clients are ignored.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
			close(client.Send)
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if removed {
		observability.MockHubConnections.Dec()
		h.touchPresence(client.UserID, -1)
	}
}

// Broadcast sends a raw frame to every connection of userID.
func (h *Hub) Broadcast(userID int, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[userID] {
		c.TrySend(message)
	}
}

// SendJSON encodes v and broadcasts it to userID.
func (h *Hub) SendJSON(userID int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		observability.GlobalLogger.Error("encode frame", slog.Int("user_id", userID), slog.String("error", err.Error()))
		return
	}
	h.Broadcast(userID, data)
}

// IsOnline reports whether userID has a live connection.
func (h *Hub) IsOnline(userID int) bool {
	h.mu.RLock()
	n := len(h.conns[userID])
	h.mu.RUnlock()
	if n > 0 {
		return true
	}
	if h.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	count, err := h.redis.Get(ctx, cache.PresenceKey(userID)).Int()
	return err == nil && count > 0
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

func (h *Hub) touchPresence(userID, delta int) {
	if h.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := cache.PresenceKey(userID)
	n, err := h.redis.IncrBy(ctx, key, int64(delta)).Result()
	if err == nil {
		if n <= 0 {
			err = h.redis.Del(ctx, key).Err()
		} else {
			err = h.redis.Expire(ctx, key, presenceTTL).Err()
		}
	}
	if err != nil {
		observability.GlobalLogger.Warn("presence update failed",
			slog.Int("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Shutdown closes every connection with a going-away frame. The frame is
// written by each client's write pump.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	goingAway := websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
	for _, clients := range h.conns {
		for client := range clients {
			client.closeFrame = goingAway
			close(client.Send)
		}
		observability.MockHubConnections.Sub(float64(len(clients)))
	}
	h.conns = make(map[int]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
