package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Headers carrying the request correlation identifier.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

const (
	localCorrelationID = "correlation_id"
	// Caller-supplied identifiers end up in every log line of the request.
	maxCorrelationIDLength = 128
)

type correlationCtxKey struct{}

// CorrelationID tags each request with an identifier that is echoed back in
// X-Correlation-ID. A caller-supplied X-Correlation-ID or X-Request-ID wins over a fresh UUID.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := incomingCorrelationID(c)

		c.Locals(localCorrelationID, id)
		c.Set(HeaderCorrelationID, id)
		c.SetUserContext(context.WithValue(c.UserContext(), correlationCtxKey{}, id))

		return c.Next()
	}
}

func incomingCorrelationID(c *fiber.Ctx) string {
	for _, header := range []string{HeaderCorrelationID, HeaderRequestID} {
		id := strings.TrimSpace(c.Get(header))
		if id == "" {
			continue
		}
		if len(id) > maxCorrelationIDLength {
			id = id[:maxCorrelationIDLength]
		}
		return id
	}
	return uuid.NewString()
}

// CorrelationIDFromContext returns the identifier stored by CorrelationID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationCtxKey{}).(string)
	return id
}

// RequestCorrelationID returns the identifier bound to the request.
func RequestCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(localCorrelationID).(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// WithCorrelation derives a logger carrying the request's correlation_id field.
// base is returned unchanged when the request has none.
func WithCorrelation(base zerolog.Logger, c *fiber.Ctx) zerolog.Logger {
	id := RequestCorrelationID(c)
	if id == "" {
		return base
	}
	return base.With().Str(localCorrelationID, id).Logger()
}
