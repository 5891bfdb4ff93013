package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/service"
	"github.com/relaychat/relay-api/internal/utils"
)

// SeedHandler exposes the token-gated user seeding endpoint.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a handler instance.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register binds the seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/users", h.seedUsers)
}

func (h *SeedHandler) seedUsers(c *fiber.Ctx) error {
	var payload dto.SeedUsersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	// The token may come from the header instead of the body.
	if payload.Token == "" {
		payload.Token = c.Get("X-Seed-Token")
	}

	users, err := h.service.SeedUsers(withRequestContext(c), payload)
	if err != nil {
		return sendServiceError(c, err, "seed operation failed")
	}

	requestLogger(h.logger, c).Info().Int("count", len(users)).Msg("users seeded")

	return utils.SendSuccess(c, "users seeded", users)
}
