package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/service"
	"github.com/relaychat/relay-api/internal/utils"
)

// AuthHandler exposes registration, login and token refresh endpoints.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs a handler instance.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register binds the public auth routes.
func (h *AuthHandler) Register(router fiber.Router) {
	router.Post("/register", h.register)
	router.Post("/login", h.login)
	router.Post("/refresh", h.refresh)
}

// RegisterProtected binds auth routes that require an authenticated caller.
func (h *AuthHandler) RegisterProtected(router fiber.Router) {
	router.Delete("/me", h.deleteAccount)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Register(withRequestContext(c), payload)
	if err != nil {
		return sendServiceError(c, err, "registration failed")
	}

	requestLogger(h.logger, c).Info().Str("user_id", user.ID).Msg("user registered")

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user registered", user)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	pair, err := h.service.Login(withRequestContext(c), payload)
	if err != nil {
		return sendServiceError(c, err, "login failed")
	}

	return utils.SendSuccess(c, "login successful", pair)
}

func (h *AuthHandler) refresh(c *fiber.Ctx) error {
	var payload dto.RefreshRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if payload.Refresh == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "refresh token required")
	}

	pair, err := h.service.Refresh(withRequestContext(c), payload.Refresh)
	if err != nil {
		return sendServiceError(c, err, "refresh failed")
	}

	return utils.SendSuccess(c, "token refreshed", pair)
}

func (h *AuthHandler) deleteAccount(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	if err := h.service.DeleteAccount(withRequestContext(c), userID); err != nil {
		return sendServiceError(c, err, "account deletion failed")
	}

	requestLogger(h.logger, c).Info().Str("user_id", userID).Msg("account deleted")

	return utils.SendSuccess(c, "account deleted", nil)
}
