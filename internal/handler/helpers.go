package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/relaychat/relay-api/internal/middleware"
	"github.com/relaychat/relay-api/internal/service"
	"github.com/relaychat/relay-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func userIDFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_id").(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_role").(string); ok {
		return v
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// sendServiceError maps service sentinels onto HTTP statuses. Unrecognized
// errors become a 500 carrying the fallback message so internals never leak.
func sendServiceError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", utils.ValidationDetails(err))
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSeedingDisabled):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEmptyBody),
		errors.Is(err, service.ErrTooFewParticipants),
		errors.Is(err, service.ErrUnknownParticipant):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
