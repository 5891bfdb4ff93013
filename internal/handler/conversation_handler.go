package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/service"
	"github.com/relaychat/relay-api/internal/utils"
)

// ConversationHandler exposes multi-party conversation endpoints.
type ConversationHandler struct {
	service service.ConversationService
	logger  zerolog.Logger
}

// NewConversationHandler constructs a handler instance.
func NewConversationHandler(service service.ConversationService, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		logger:  logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register binds the conversation routes.
func (h *ConversationHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/messages", h.sendMessage)
	router.Get("/:id/messages", h.listMessages)
}

func (h *ConversationHandler) create(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ConversationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	conversation, err := h.service.Create(withRequestContext(c), userID, payload)
	if err != nil {
		return sendServiceError(c, err, "failed to create conversation")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "conversation created", conversation)
}

func (h *ConversationHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	conversations, err := h.service.List(withRequestContext(c), userID, page, pageSize)
	if err != nil {
		return sendServiceError(c, err, "failed to list conversations")
	}

	return utils.SendSuccess(c, "conversations", conversations)
}

func (h *ConversationHandler) get(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation id required")
	}

	conversation, err := h.service.Get(withRequestContext(c), userID, conversationID)
	if err != nil {
		return sendServiceError(c, err, "failed to load conversation")
	}

	return utils.SendSuccess(c, "conversation", conversation)
}

func (h *ConversationHandler) sendMessage(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation id required")
	}

	var payload dto.ConversationMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.SendMessage(withRequestContext(c), userID, conversationID, payload)
	if err != nil {
		return sendServiceError(c, err, "failed to send message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ConversationHandler) listMessages(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID := c.Params("id")
	if conversationID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation id required")
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	messages, err := h.service.ListMessages(withRequestContext(c), userID, conversationID, page, pageSize)
	if err != nil {
		return sendServiceError(c, err, "failed to list messages")
	}

	return utils.SendSuccess(c, "messages", messages)
}
