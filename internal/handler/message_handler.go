package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/service"
	"github.com/relaychat/relay-api/internal/utils"
)

// MessageHandler exposes the direct-message endpoints: send, edit, delete,
// thread, inbox, unread and edit history.
type MessageHandler struct {
	service service.MessageService
	logger  zerolog.Logger
}

// NewMessageHandler constructs a handler instance.
func NewMessageHandler(service service.MessageService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		logger:  logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register binds the message routes. The literal routes must precede the
// parameterized ones so "inbox" is never captured as a message id.
func (h *MessageHandler) Register(router fiber.Router) {
	router.Post("/", h.send)
	router.Get("/inbox", h.inbox)
	router.Get("/unread", h.unread)
	router.Get("/:id/thread", h.thread)
	router.Get("/:id/history", h.history)
	router.Put("/:id", h.edit)
	router.Delete("/:id", h.remove)
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.Send(withRequestContext(c), userID, payload)
	if err != nil {
		return sendServiceError(c, err, "failed to send message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *MessageHandler) edit(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	messageID := c.Params("id")
	if messageID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "message id required")
	}

	var payload dto.MessageEditRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.Edit(withRequestContext(c), actorFromContext(c), messageID, payload)
	if err != nil {
		return sendServiceError(c, err, "failed to edit message")
	}

	return utils.SendSuccess(c, "message updated", message)
}

func (h *MessageHandler) remove(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	messageID := c.Params("id")
	if messageID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "message id required")
	}

	if err := h.service.Delete(withRequestContext(c), actorFromContext(c), messageID); err != nil {
		return sendServiceError(c, err, "failed to delete message")
	}

	return utils.SendSuccess(c, "message deleted", nil)
}

func (h *MessageHandler) thread(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	messageID := c.Params("id")
	if messageID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "message id required")
	}

	thread, err := h.service.Thread(withRequestContext(c), userID, messageID)
	if err != nil {
		return sendServiceError(c, err, "failed to load thread")
	}

	return utils.SendSuccess(c, "thread", thread)
}

func (h *MessageHandler) inbox(c *fiber.Ctx) error {
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

	inbox, err := h.service.Inbox(withRequestContext(c), userID, page, pageSize)
	if err != nil {
		return sendServiceError(c, err, "failed to load inbox")
	}

	return utils.SendSuccess(c, "inbox", inbox)
}

func (h *MessageHandler) unread(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	messages, err := h.service.Unread(withRequestContext(c), userID, limit)
	if err != nil {
		return sendServiceError(c, err, "failed to load unread messages")
	}

	return utils.SendSuccess(c, "unread messages", messages)
}

func (h *MessageHandler) history(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	messageID := c.Params("id")
	if messageID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "message id required")
	}

	entries, err := h.service.History(withRequestContext(c), userID, messageID)
	if err != nil {
		return sendServiceError(c, err, "failed to load edit history")
	}

	return utils.SendSuccess(c, "edit history", entries)
}
