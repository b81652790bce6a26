package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"socialnet/internal/cache"
	"socialnet/internal/config"
	"socialnet/internal/models"

	"github.com/alicebob/miniredis/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := New(config.Default(), opts...)
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func signIn(t *testing.T, s *Server, email string) string {
	t.Helper()
	resp := doJSON(t, s, http.MethodPost, "/api/auth/signin", "", models.Credentials{Email: email, Password: SeedPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[models.AuthResponse](t, resp).Token
}

func TestSignIn(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signin", "", models.Credentials{Email: "alice@example.com", Password: SeedPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	body := decode[models.AuthResponse](t, resp)
	assert.Equal(t, SeedAlice, body.UserID)
	assert.Equal(t, cookie.Value, body.Token)

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/users/profile/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie.Value})
	me, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, me.StatusCode)
	assert.Equal(t, "alice@example.com", decode[models.User](t, me).Email)
}

func TestSignIn_BadPassword(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodPost, "/api/auth/signin", "", models.Credentials{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "UNAUTHORIZED", body.Code)
	assert.NotEmpty(t, body.Error)
}

func TestSignUp(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup", "", models.SignUpRequest{
		Email: "erin@example.com", Password: "password123", FirstName: "Erin", LastName: "Eve",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 5, decode[models.AuthResponse](t, resp).UserID)

	resp = doJSON(t, s, http.MethodPost, "/api/auth/signup", "", models.SignUpRequest{Email: "x@example.com", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, s, http.MethodGet, "/api/users/profile/me", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}

	t.Run("wrong secret", func(t *testing.T) {
		token, err := issueToken("other-secret", SeedAlice, time.Now())
		require.NoError(t, err)
		resp := doJSON(t, s, http.MethodGet, "/api/users/profile/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := issueToken(config.Default().JWTSecret, SeedAlice, time.Now().Add(-48*time.Hour))
		require.NoError(t, err)
		resp := doJSON(t, s, http.MethodGet, "/api/users/profile/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("query token", func(t *testing.T) {
		token := signIn(t, s, "bob@example.com")
		resp := doJSON(t, s, http.MethodGet, "/api/users/profile/me?token="+token, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)
	alice := signIn(t, s, "alice@example.com")
	dave := signIn(t, s, "dave@example.com")

	t.Run("browse wraps groups", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodPost, "/api/groups/group/browse", alice, models.GroupBrowseRequest{Type: models.GroupFilterAll})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Groups []models.Group `json:"groups"`
		}](t, resp)
		assert.Len(t, body.Groups, 2)
	})

	t.Run("browse rejects unknown type", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodPost, "/api/groups/group/browse", alice, models.GroupBrowseRequest{Type: "weird"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("group by id", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodGet, "/api/groups/group/1", alice, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, models.MemberStatusCreator, decode[models.Group](t, resp).IsMember)

		resp = doJSON(t, s, http.MethodGet, "/api/groups/group/99", alice, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = doJSON(t, s, http.MethodGet, "/api/groups/group/abc", alice, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("feed", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodPost, "/api/posts/feed", dave, models.FeedRequest{Type: models.FeedAll, NPost: 10})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Posts []models.Post `json:"posts"`
		}](t, resp)
		assert.Len(t, body.Posts, 1)
	})

	t.Run("notification action", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodGet, "/api/notifications?page=1&limit=5", dave, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		list := decode[models.NotificationList](t, resp)
		require.Len(t, list.Notifications, 1)

		resp = doJSON(t, s, http.MethodPost, "/api/notifications/action", dave, models.NotificationActionRequest{
			NotificationID: list.Notifications[0].ID,
			Action:         models.NotificationActionAccept,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Successfully accepted", decode[models.MessageResponse](t, resp).Message)

		resp = doJSON(t, s, http.MethodGet, "/api/notifications/unread-count", dave, nil)
		assert.Equal(t, 0, decode[models.UnreadCountResponse](t, resp).UnreadCount)
	})

	t.Run("delete message with body", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodPost, "/api/chat/send", alice, models.SendMessageRequest{ReceiverID: SeedDave, Content: "hi"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		msg := decode[models.Message](t, resp)

		resp = doJSON(t, s, http.MethodDelete, "/api/chat/delete", alice, models.DeleteMessageRequest{MessageID: msg.ID})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodGet, "/health/live", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		resp := doJSON(t, s, http.MethodGet, "/metrics", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestImageUploadAndFetch(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, "alice@example.com")

	var buf bytes.Buffer
	buf.WriteString("--XYZ\r\n")
	buf.WriteString(`Content-Disposition: form-data; name="image"; filename="a.png"` + "\r\n")
	buf.WriteString("Content-Type: image/png\r\n\r\n")
	buf.WriteString("fake-png-bytes\r\n")
	buf.WriteString("--XYZ--\r\n")

	req := httptest.NewRequest(http.MethodPost, "/api/users/profile/avatar", &buf)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=XYZ")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	avatar := decode[models.AvatarResponse](t, resp)
	assert.Equal(t, "/images/"+avatar.ImageUUID, avatar.AvatarPath)

	img := doJSON(t, s, http.MethodGet, "/api/images/"+avatar.ImageUUID, "", nil)
	require.Equal(t, http.StatusOK, img.StatusCode)
	assert.Equal(t, "image/png", img.Header.Get("Content-Type"))
	data, err := io.ReadAll(img.Body)
	require.NoError(t, err)
	assert.Equal(t, "fake-png-bytes", string(data))
}

func dialWS(t *testing.T, base, path, token string) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + path + "?token=" + token
	conn, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gorillaws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var out map[string]any
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func waitOnline(t *testing.T, s *Server, userID int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Hub().IsOnline(userID) }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_ChatAndNotifications(t *testing.T) {
	cfg := config.Default()
	s, base, err := StartLocal(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	aliceToken, err := issueToken(cfg.JWTSecret, SeedAlice, time.Now())
	require.NoError(t, err)
	bobToken, err := issueToken(cfg.JWTSecret, SeedBob, time.Now())
	require.NoError(t, err)

	alice := dialWS(t, base, cfg.WSPath, aliceToken)
	bob := dialWS(t, base, cfg.ChatWSPath, bobToken)
	waitOnline(t, s, SeedAlice)
	waitOnline(t, s, SeedBob)

	require.NoError(t, alice.WriteJSON(models.TypeFrame{Type: models.FrameNotificationSubscribe}))
	ack := readFrame(t, alice)
	assert.Equal(t, models.FrameStatusSuccess, ack["status"])
	count := readFrame(t, alice)
	assert.Equal(t, models.FrameNotificationCountUpdated, count["type"])

	require.NoError(t, alice.WriteJSON(models.ChatOutFrame{Type: models.FrameMessage, ReceiverID: SeedBob, Content: "hello bob"}))
	ack = readFrame(t, alice)
	assert.Equal(t, models.FrameStatusSuccess, ack["status"])

	chat := readFrame(t, bob)
	assert.Equal(t, models.FrameMessage, chat["type"])
	msg, ok := chat["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello bob", msg["content"])

	notif := readFrame(t, bob)
	assert.Equal(t, models.FrameNotification, notif["type"])
	assert.Equal(t, "new", notif["action"])

	require.NoError(t, bob.WriteJSON(models.AuthFrame{Type: models.FrameAuth, UserID: SeedAlice}))
	assert.Equal(t, models.FrameStatusError, readFrame(t, bob)["status"])

	require.NoError(t, bob.WriteJSON(models.TypeFrame{Type: "bogus"}))
	assert.Equal(t, models.FrameStatusError, readFrame(t, bob)["status"])
}

func TestWebSocket_Unauthorized(t *testing.T) {
	s, base, err := StartLocal(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	_, resp, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/connect", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_PresenceInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub(rdb)
	a, err := hub.Register(SeedAlice, nil)
	require.NoError(t, err)
	b, err := hub.Register(SeedAlice, nil)
	require.NoError(t, err)

	val, err := mr.Get(cache.PresenceKey(SeedAlice))
	require.NoError(t, err)
	assert.Equal(t, "2", val)
	assert.True(t, hub.IsOnline(SeedAlice))

	hub.UnregisterClient(a)
	hub.UnregisterClient(b)
	hub.UnregisterClient(b)
	assert.False(t, mr.Exists(cache.PresenceKey(SeedAlice)))
	assert.False(t, hub.IsOnline(SeedAlice))
	assert.Zero(t, hub.ConnectionCount())
}

func TestHub_Limits(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, errUserConnLimit)
	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.ConnectionCount())
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub(nil)
	c, err := hub.Register(3, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)

	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func liveClients(h *Hub, userID int) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Client
	for c := range h.conns[userID] {
		out = append(out, c)
	}
	return out
}

func TestWebSocket_HandlerWaitsForWritePump(t *testing.T) {
	cfg := config.Default()
	s, base, err := StartLocal(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	token, err := issueToken(cfg.JWTSecret, SeedCarol, time.Now())
	require.NoError(t, err)
	conn := dialWS(t, base, cfg.WSPath, token)
	waitOnline(t, s, SeedCarol)

	clients := liveClients(s.Hub(), SeedCarol)
	require.Len(t, clients, 1)
	client := clients[0]

	select {
	case <-client.Done():
		t.Fatal("write pump stopped while the peer is connected")
	default:
	}

	require.NoError(t, conn.Close())
	select {
	case <-client.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("write pump did not release the connection")
	}
	assert.False(t, s.Hub().IsOnline(SeedCarol))
}

func TestHub_ShutdownStopsWritePump(t *testing.T) {
	cfg := config.Default()
	s, base, err := StartLocal(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	token, err := issueToken(cfg.JWTSecret, SeedBob, time.Now())
	require.NoError(t, err)
	conn := dialWS(t, base, cfg.ChatWSPath, token)
	waitOnline(t, s, SeedBob)
	clients := liveClients(s.Hub(), SeedBob)
	require.Len(t, clients, 1)

	require.NoError(t, s.Hub().Shutdown(context.Background()))
	select {
	case <-clients[0].Done():
	case <-time.After(3 * time.Second):
		t.Fatal("write pump still running after shutdown")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, gorillaws.IsCloseError(err, gorillaws.CloseGoingAway), "got %v", err)
}
