package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/relaychat/relay-api/internal/observability"
	"github.com/relaychat/relay-api/internal/policy"
	"github.com/relaychat/relay-api/internal/utils"
)

// TimeRestriction rejects chat requests while local time is inside the
// restricted overnight window. Paths outside the conversation and message
// APIs always pass. The now function is injectable for tests; pass nil for
// the wall clock.
func TimeRestriction(window policy.RestrictedWindow, now func() time.Time) fiber.Handler {
	if now == nil {
		now = time.Now
	}
	reason := fmt.Sprintf("chat access is restricted between %s and %s", window.Start, window.End)

	return func(c *fiber.Ctx) error {
		if !policy.IsChatPath(c.Path()) {
			return c.Next()
		}
		if window.Blocks(now()) {
			observability.RequestsRejected().WithLabelValues("time_restricted").Inc()
			return utils.SendError(c, fiber.StatusForbidden, reason)
		}
		return c.Next()
	}
}
