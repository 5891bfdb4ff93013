package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RequestLogging logs every request with the caller identity and path. It is
// a pure side effect and never rejects. Placed after Authenticate so the
// resolved email is available; anonymous callers are logged as such.
func RequestLogging(logger zerolog.Logger) fiber.Handler {
	requestLogger := logger.With().Str("component", "request_log").Logger()

	return func(c *fiber.Ctx) error {
		user := "anonymous"
		if email, ok := c.Locals("user_email").(string); ok && email != "" {
			user = email
		}

		requestLogger.Info().
			Str("correlation_id", GetCorrelationID(c)).
			Str("user", user).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request received")

		return c.Next()
	}
}
