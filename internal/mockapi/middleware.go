package mockapi

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookie = "session_token"
	tokenIssuer   = "socialnet-mockapi"
	tokenTTL      = 24 * time.Hour
)

// issueToken signs a session token whose subject is the user id.
func issueToken(secret string, userID int, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseToken validates a session token and returns its user id.
func parseToken(secret, tokenString string) (int, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return 0, models.NewUnauthorizedError("Invalid or expired token")
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, models.NewUnauthorizedError("Invalid token claims")
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return 0, models.NewUnauthorizedError("Invalid user ID in token")
	}
	return userID, nil
}

// tokenFrom reads the session token from the cookie, a bearer header or the
// token query parameter, in that order.
func tokenFrom(c *fiber.Ctx) string {
	if t := c.Cookies(sessionCookie); t != "" {
		return t
	}
	if parts := strings.SplitN(c.Get("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return c.Query("token")
}

// authRequired rejects requests without a valid session token and stores
// the user id in locals.
func (s *Server) authRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := tokenFrom(c)
		if tokenString == "" {
			return respondWithError(c, models.NewUnauthorizedError("Authorization required"))
		}
		userID, err := parseToken(s.cfg.JWTSecret, tokenString)
		if err != nil {
			return respondWithError(c, err)
		}
		if _, err := s.state.User(userID); err != nil {
			return respondWithError(c, models.NewUnauthorizedError("Unknown user"))
		}

		c.Locals("userID", userID)
		c.SetUserContext(observability.WithUserID(c.UserContext(), userID))
		return c.Next()
	}
}

func currentUserID(c *fiber.Ctx) int {
	id, _ := c.Locals("userID").(int)
	return id
}

// contextMiddleware copies the request id into the request context so the
// context-aware logger picks it up.
func contextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ctx = observability.WithCorrelationID(ctx, rid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// structuredLogger logs one line per request.
func structuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := []any{
			slog.Int("status", c.Response().StatusCode()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		ctx := c.UserContext()
		if uid := currentUserID(c); uid > 0 {
			ctx = observability.WithUserID(ctx, uid)
		}
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			observability.GlobalLogger.ErrorContext(ctx, "request failed", fields...)
		} else {
			observability.GlobalLogger.DebugContext(ctx, "request processed", fields...)
		}
		return err
	}
}
