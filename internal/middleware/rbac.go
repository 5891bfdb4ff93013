package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/relaychat/relay-api/internal/observability"
	"github.com/relaychat/relay-api/internal/policy"
	"github.com/relaychat/relay-api/internal/utils"
)

// RoleGate authorizes protected path prefixes by role. Paths without a role
// requirement bypass the check entirely. On protected prefixes an anonymous
// caller gets 401, an authenticated caller with the wrong role gets 403.
func RoleGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		required := policy.RequiredRoles(c.Path())
		if len(required) == 0 {
			return c.Next()
		}

		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			observability.RequestsRejected().WithLabelValues("unauthenticated").Inc()
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		role, _ := c.Locals("user_role").(string)
		if !policy.RoleAllowed(role, required) {
			observability.RequestsRejected().WithLabelValues("forbidden").Inc()
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}

		return c.Next()
	}
}

// RequireRole guards a single route group with an explicit role list,
// independent of the path-prefix policy.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		role, _ := c.Locals("user_role").(string)
		if !policy.RoleAllowed(role, roles) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
