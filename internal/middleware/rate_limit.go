package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/relaychat/relay-api/internal/observability"
	"github.com/relaychat/relay-api/internal/policy"
	"github.com/relaychat/relay-api/internal/ratelimit"
	"github.com/relaychat/relay-api/internal/utils"
)

// SendRateLimit caps message sends per client within a fixed window. Only
// POST requests on message-send paths are counted. The client key is the
// first forwarded-for entry, falling back to the direct remote address, so
// one chatty client cannot starve the rest of a NAT.
func SendRateLimit(store ratelimit.CounterStore, limit int64, window time.Duration, logger zerolog.Logger) fiber.Handler {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	limitLogger := logger.With().Str("component", "rate_limit").Logger()

	return func(c *fiber.Ctx) error {
		if !policy.IsMessageSendRequest(c.Method(), c.Path()) {
			return c.Next()
		}

		key := policy.ClientKey(c.Get(fiber.HeaderXForwardedFor), c.IP())
		_, allowed, err := store.Incr(c.UserContext(), key, limit, window)
		if err != nil {
			// A broken counter store must not take the send path down.
			limitLogger.Error().Err(err).Str("client", key).Msg("rate limit store unavailable, admitting request")
			return c.Next()
		}

		if !allowed {
			observability.RequestsRejected().WithLabelValues("rate_limited").Inc()
			limitLogger.Warn().
				Str("correlation_id", GetCorrelationID(c)).
				Str("client", key).
				Str("path", c.Path()).
				Msg("send rate limit exceeded")
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many messages, slow down")
		}

		return c.Next()
	}
}
