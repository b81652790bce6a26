// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	GlobalLogger = NewLogger(os.Stdout, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
}

// NewLogger builds a context-aware logger. Production gets JSON, everything
// else gets text output.
func NewLogger(w io.Writer, env, level string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(&ctxHandler{handler})}
}

// Configure replaces GlobalLogger using the given environment and level.
func Configure(env, level string) {
	GlobalLogger = NewLogger(os.Stdout, env, level)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys for logging
const (
	CorrelationID LogContextKey = "correlation_id"
	UserID        LogContextKey = "user_id"
)

// ctxHandler adds context values to every record.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(CorrelationID).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if uid, ok := ctx.Value(UserID).(int); ok && uid > 0 {
		r.AddAttrs(slog.Int("user_id", uid))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// WithUserID returns a new context carrying the signed-in user's ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, UserID, userID)
}

// StoreLogger provides structured logging for client-side store actions.
type StoreLogger struct {
	storeName string
}

// NewStoreLogger creates a new StoreLogger for the given store.
func NewStoreLogger(storeName string) *StoreLogger {
	return &StoreLogger{storeName: storeName}
}

// LogAction logs a completed store action.
func (l *StoreLogger) LogAction(ctx context.Context, action string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("store", l.storeName),
		slog.String("action", action),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.DebugContext(ctx, "store action", attrs...)
}

// LogError logs a failed store action.
func (l *StoreLogger) LogError(ctx context.Context, err error, action string) {
	GlobalLogger.ErrorContext(ctx, "store error",
		slog.String("store", l.storeName),
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
}

// WSLogger provides structured logging for WebSocket operations.
type WSLogger struct {
	channel string
}

// NewWSLogger creates a new WSLogger for the given channel.
func NewWSLogger(channel string) *WSLogger {
	return &WSLogger{channel: channel}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, url string, attempt int) {
	GlobalLogger.InfoContext(ctx, "websocket connected",
		slog.String("channel", l.channel),
		slog.String("url", url),
		slog.Int("attempt", attempt),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, code int, reason string) {
	GlobalLogger.InfoContext(ctx, "websocket disconnected",
		slog.String("channel", l.channel),
		slog.Int("code", code),
		slog.String("reason", reason),
	)
}

// LogReconnect logs a scheduled reconnect attempt.
func (l *WSLogger) LogReconnect(ctx context.Context, attempt, maxAttempts int, delay string) {
	GlobalLogger.WarnContext(ctx, "websocket reconnecting",
		slog.String("channel", l.channel),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", maxAttempts),
		slog.String("delay", delay),
	)
}

// LogError logs a WebSocket error event.
func (l *WSLogger) LogError(ctx context.Context, err error, eventType string) {
	GlobalLogger.ErrorContext(ctx, "websocket error",
		slog.String("channel", l.channel),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogMessage logs an incoming WebSocket frame.
func (l *WSLogger) LogMessage(ctx context.Context, messageType string) {
	GlobalLogger.DebugContext(ctx, "websocket message",
		slog.String("channel", l.channel),
		slog.String("message_type", messageType),
	)
}
