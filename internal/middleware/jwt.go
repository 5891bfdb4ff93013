package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/relaychat/relay-api/internal/utils"
)

// ActivityRecorder is notified whenever an authenticated request arrives.
// Implementations must be cheap and tolerate failure silently.
type ActivityRecorder interface {
	Touch(ctx context.Context, userID string)
}

// Authenticate resolves a bearer token into the caller identity. Resolution
// is optional here: requests without a usable token continue anonymously and
// the guards downstream (RequireAuth, RoleGate) decide whether that is
// acceptable for the path. On success user id, email, role and name are
// stored in Locals and the activity recorder is touched.
func Authenticate(secret string, activity ActivityRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := parseBearer(c, secret)
		if !ok {
			return c.Next()
		}

		userID := claimString(claims, "sub")
		if userID == "" {
			return c.Next()
		}

		c.Locals("user_id", userID)
		c.Locals("user_email", claimString(claims, "email"))
		c.Locals("user_role", strings.ToLower(claimString(claims, "role")))
		c.Locals("user_name", claimString(claims, "name"))

		if activity != nil {
			activity.Touch(c.UserContext(), userID)
		}

		return c.Next()
	}
}

// RequireAuth rejects requests that did not resolve to an identity. The 401
// here is distinct from the 403 issued by RoleGate: missing or invalid
// credentials are "unauthenticated", a valid identity lacking permissions is
// "forbidden".
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, ok := c.Locals("user_id").(string); !ok || userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		return c.Next()
	}
}

func parseBearer(c *fiber.Ctx, secret string) (jwt.MapClaims, bool) {
	authorization := c.Get("Authorization")
	if authorization == "" {
		return nil, false
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
		return nil, false
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return nil, false
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	return claims, true
}

func claimString(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key]; ok {
		if str, ok := value.(string); ok {
			return strings.TrimSpace(str)
		}
	}
	return ""
}
