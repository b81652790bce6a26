// Package api is a typed REST client for the social network backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"socialnet/internal/config"
	"socialnet/internal/models"
	"socialnet/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// SessionCookie is the cookie the backend uses for the session token.
const SessionCookie = "session_token"

// ErrInvalidJSON is returned when a successful response body is not JSON.
var ErrInvalidJSON = errors.New("invalid JSON response from server")

// Client talks to the REST API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu     sync.RWMutex
	token  string
	userID int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. A cookie jar is added
// when the given client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing session token.
func WithToken(token string, userID int) Option {
	return func(c *Client) {
		c.token = token
		c.userID = userID
	}
}

// WithLogger overrides the logger used for per-call logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client for the configured API base and prefix.
func New(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/") + cfg.APIPrefix,
		http:    &http.Client{Timeout: cfg.RequestTimeout()},
		logger:  observability.GlobalLogger.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.http.Jar = jar
	}
	return c
}

// APIBase returns the base URL including the API prefix.
func (c *Client) APIBase() string { return c.baseURL }

// ImageURL returns the public URL of an uploaded image.
func (c *Client) ImageURL(uuid string) string {
	return models.ImageURL(c.baseURL, uuid)
}

// Token returns the current session token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// UserID returns the id of the signed-in user, or 0.
func (c *Client) UserID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// SetSession replaces the session token and user id.
func (c *Client) SetSession(token string, userID int) {
	c.mu.Lock()
	c.token = token
	c.userID = userID
	c.mu.Unlock()
}

func (c *Client) clearSession() {
	c.SetSession("", 0)
	if u, err := url.Parse(c.baseURL); err == nil {
		c.http.Jar.SetCookies(u, []*http.Cookie{{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1}})
	}
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// endpointLabel collapses ids so metrics keep a bounded label set.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return numericSegment.ReplaceAllString(path, "/:id$1")
}

// doJSON sends body as JSON (when non-nil) and decodes the response into out
// (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, reader, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	raw, _, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		observability.APIRequestErrors.WithLabelValues(endpointLabel(path), "decode").Inc()
		return ErrInvalidJSON
	}
	return nil
}

// send performs the request and returns the raw body of a 2xx response.
// Non-2xx statuses become *models.APIError.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, string, error) {
	endpoint := endpointLabel(path)
	done := observability.TrackRequest(method, endpoint)

	ctx, span := observability.StartClientSpan(ctx, method+" "+endpoint,
		attribute.String("http.method", method),
		attribute.String("http.route", endpoint),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		done(0)
		span.SetError(err)
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := observability.ExtractCorrelationID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	observability.InjectHeaders(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		done(0)
		span.SetError(err)
		observability.APIRequestErrors.WithLabelValues(endpoint, "transport").Inc()
		c.logger.ErrorContext(ctx, "API request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	done(resp.StatusCode)
	span.SetStatusCode(resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetError(err)
		return nil, "", fmt.Errorf("read response: %w", err)
	}

	c.logger.DebugContext(ctx, "API request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body models.ErrorResponse
		_ = json.Unmarshal(raw, &body)
		apiErr := models.NewAPIError(resp.StatusCode, body)
		span.SetError(apiErr)
		observability.APIRequestErrors.WithLabelValues(endpoint, http.StatusText(resp.StatusCode)).Inc()
		return nil, "", apiErr
	}
	return raw, resp.Header.Get("Content-Type"), nil
}
