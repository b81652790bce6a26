// Package realtime is a reconnecting WebSocket client for chat and
// notification frames.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"socialnet/internal/config"
	"socialnet/internal/models"
	"socialnet/internal/observability"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size accepted from the server.
	maxMessageSize = 512 * 1024

	sendBuffer = 256
)

var (
	// ErrNotConnected is returned by Send while no connection is open.
	ErrNotConnected = errors.New("WebSocket not connected")

	// ErrReconnectExhausted is reported to connection handlers when every
	// reconnect attempt failed.
	ErrReconnectExhausted = errors.New("websocket reconnect attempts exhausted")

	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("websocket send buffer full")

	errClosedWhileDialing = errors.New("websocket closed while dialing")
)

// MessageHandler receives every decoded inbound frame.
type MessageHandler func(Event)

// ConnectionHandler is told about connection changes. err is non-nil only
// when the client gives up reconnecting.
type ConnectionHandler func(connected bool, err error)

// TokenFunc returns the session token to authenticate the upgrade with.
type TokenFunc func() string

// Status is a snapshot of the connection state.
type Status struct {
	Connected bool
	Attempts  int
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

type entry[T any] struct {
	id uint64
	fn T
}

// Client holds at most one live connection and re-dials it after an
// unexpected close.
type Client struct {
	url         string
	token       TokenFunc
	dialer      *websocket.Dialer
	maxAttempts int
	baseDelay   time.Duration
	channel     string
	logger      *observability.WSLogger

	mu       sync.Mutex
	cur      *conn
	attempts int
	closing  bool
	life     context.Context
	cancel   context.CancelFunc

	hmu          sync.RWMutex
	nextID       uint64
	msgHandlers  []entry[MessageHandler]
	connHandlers []entry[ConnectionHandler]
}

// Option configures a Client.
type Option func(*Client)

// WithPath dials path on the configured WebSocket base instead of WS_PATH.
func WithPath(cfg *config.Config, path string) Option {
	return func(c *Client) { c.url = cfg.WebSocketURL(path) }
}

// WithURL dials a full ws:// or wss:// URL.
func WithURL(u string) Option {
	return func(c *Client) { c.url = u }
}

// WithDialer replaces the gorilla dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithReconnect overrides the attempt count and the linear backoff step.
func WithReconnect(attempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = attempts
		c.baseDelay = baseDelay
	}
}

// WithChannel names the client in logs and metrics.
func WithChannel(name string) Option {
	return func(c *Client) { c.channel = name }
}

// New builds a client for the configured WebSocket endpoint. token may be nil.
func New(cfg *config.Config, token TokenFunc, opts ...Option) *Client {
	c := &Client{
		url:         cfg.WebSocketURL(cfg.WSPath),
		token:       token,
		dialer:      websocket.DefaultDialer,
		maxAttempts: cfg.WSReconnectAttempts,
		baseDelay:   cfg.ReconnectBaseDelay(),
		channel:     "realtime",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.token == nil {
		c.token = func() string { return "" }
	}
	c.logger = observability.NewWSLogger(c.channel)
	return c
}

// URL returns the endpoint without the token.
func (c *Client) URL() string { return c.url }

// Status reports whether a connection is open and the current reconnect attempt.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Connected: c.cur != nil, Attempts: c.attempts}
}

// Connect dials the server. It is a no-op while a connection is open. ctx
// bounds the dial; its values are kept for logging by later reconnects.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cur != nil {
		c.mu.Unlock()
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.closing = false
	c.attempts = 0
	c.life, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Unlock()

	return c.open(ctx, 0)
}

// Disconnect closes the connection with a normal closure and stops any
// pending reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	if c.cancel != nil {
		c.cancel()
	}
	cur := c.cur
	c.attempts = 0
	c.mu.Unlock()

	if cur == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "User initiated disconnect")
	_ = cur.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	if c.drop(cur) {
		c.logger.LogDisconnect(c.lifeContext(), websocket.CloseNormalClosure, "User initiated disconnect")
		c.notifyConnection(false, nil)
	}
}

// Send queues a frame. It fails with ErrNotConnected while disconnected.
func (c *Client) Send(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	c.mu.Lock()
	cur := c.cur
	c.mu.Unlock()
	if cur == nil {
		return ErrNotConnected
	}

	select {
	case <-cur.done:
		return ErrNotConnected
	default:
	}
	select {
	case cur.send <- data:
		return nil
	case <-cur.done:
		return ErrNotConnected
	default:
		return ErrSendBufferFull
	}
}

// OnMessage registers a frame handler and returns its unsubscribe func.
func (c *Client) OnMessage(h MessageHandler) func() {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.nextID++
	id := c.nextID
	c.msgHandlers = append(c.msgHandlers, entry[MessageHandler]{id: id, fn: h})
	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		c.msgHandlers = without(c.msgHandlers, id)
	}
}

// OnConnectionChange registers a connection handler and returns its
// unsubscribe func.
func (c *Client) OnConnectionChange(h ConnectionHandler) func() {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.nextID++
	id := c.nextID
	c.connHandlers = append(c.connHandlers, entry[ConnectionHandler]{id: id, fn: h})
	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		c.connHandlers = without(c.connHandlers, id)
	}
}

func without[T any](list []entry[T], id uint64) []entry[T] {
	out := list[:0:0]
	for _, e := range list {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

func (c *Client) lifeContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.life == nil {
		return context.Background()
	}
	return c.life
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	if token := c.token(); token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// open dials and installs a new connection. attempt is 0 for the first dial.
func (c *Client) open(ctx context.Context, attempt int) error {
	target, err := c.dialURL()
	if err != nil {
		return err
	}

	ws, resp, err := c.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return handshakeError(resp)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	cn := &conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = ws.Close()
		return errClosedWhileDialing
	}
	c.cur = cn
	c.attempts = 0
	c.mu.Unlock()

	observability.WebSocketConnected.WithLabelValues(c.channel).Set(1)
	c.logger.LogConnect(ctx, c.url, attempt)

	go c.writePump(cn)
	c.notifyConnection(true, nil)
	go c.readPump(cn)
	return nil
}

func handshakeError(resp *http.Response) error {
	var body models.ErrorResponse
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		_ = json.Unmarshal(raw, &body)
	}
	return models.NewAPIError(resp.StatusCode, body)
}

// drop tears cn down once and reports whether this call did it.
func (c *Client) drop(cn *conn) bool {
	first := false
	cn.once.Do(func() {
		first = true
		close(cn.done)
		_ = cn.ws.Close()

		c.mu.Lock()
		if c.cur == cn {
			c.cur = nil
		}
		c.mu.Unlock()
		observability.WebSocketConnected.WithLabelValues(c.channel).Set(0)
	})
	return first
}

func (c *Client) readPump(cn *conn) {
	cn.ws.SetReadLimit(maxMessageSize)
	_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		return cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.lifeContext()
	for {
		_, raw, err := cn.ws.ReadMessage()
		if err != nil {
			code, reason := closeInfo(err)
			if !c.drop(cn) {
				return
			}
			if code != websocket.CloseNormalClosure {
				c.logger.LogError(ctx, err, "read")
			}
			c.logger.LogDisconnect(ctx, code, reason)
			c.notifyConnection(false, nil)
			if c.shouldReconnect(code) {
				go c.reconnect()
			}
			return
		}

		ev, err := DecodeEvent(raw)
		if err != nil {
			c.logger.LogError(ctx, err, "decode")
			continue
		}
		observability.WebSocketEventsTotal.WithLabelValues(c.channel, ev.label()).Inc()
		c.logger.LogMessage(ctx, ev.label())
		c.dispatch(ev)
	}
}

func (c *Client) writePump(cn *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cn.done:
			return
		case msg := <-cn.send:
			_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.LogError(c.lifeContext(), err, "write")
				_ = cn.ws.Close()
				return
			}
		case <-ticker.C:
			_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = cn.ws.Close()
				return
			}
		}
	}
}

func closeInfo(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}

func (c *Client) shouldReconnect(code int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || c.maxAttempts <= 0 || code == websocket.CloseNormalClosure {
		return false
	}
	return c.life == nil || c.life.Err() == nil
}

// reconnect re-dials with linear backoff until it succeeds, attempts run
// out or Disconnect is called.
func (c *Client) reconnect() {
	ctx := c.lifeContext()
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		delay := time.Duration(attempt) * c.baseDelay

		c.mu.Lock()
		c.attempts = attempt
		c.mu.Unlock()
		observability.WebSocketReconnects.WithLabelValues(c.channel).Inc()
		c.logger.LogReconnect(ctx, attempt, c.maxAttempts, delay.String())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := c.open(ctx, attempt)
		if err == nil {
			return
		}
		if errors.Is(err, errClosedWhileDialing) || ctx.Err() != nil {
			return
		}
		c.logger.LogError(ctx, err, "reconnect")
	}

	c.logger.LogError(ctx, ErrReconnectExhausted, "reconnect")
	c.notifyConnection(false, ErrReconnectExhausted)
}

func (c *Client) dispatch(ev Event) {
	c.hmu.RLock()
	handlers := make([]MessageHandler, 0, len(c.msgHandlers))
	for _, e := range c.msgHandlers {
		handlers = append(handlers, e.fn)
	}
	c.hmu.RUnlock()

	for _, h := range handlers {
		c.safely("message handler", func() { h(ev) })
	}
}

func (c *Client) notifyConnection(connected bool, err error) {
	c.hmu.RLock()
	handlers := make([]ConnectionHandler, 0, len(c.connHandlers))
	for _, e := range c.connHandlers {
		handlers = append(handlers, e.fn)
	}
	c.hmu.RUnlock()

	for _, h := range handlers {
		c.safely("connection handler", func() { h(connected, err) })
	}
}

func (c *Client) safely(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.LogError(c.lifeContext(), fmt.Errorf("%s panicked: %v", kind, r), "handler")
		}
	}()
	fn()
}
