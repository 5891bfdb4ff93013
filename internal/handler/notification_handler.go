package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/observability"
	"github.com/relaychat/relay-api/internal/service"
	"github.com/relaychat/relay-api/internal/utils"
)

// NotificationHandler lists notifications and streams new ones over SSE and
// websocket.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
	timeout time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, timeout time.Duration) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
		timeout: timeout,
	}
}

// Register binds the notification routes.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/stream", h.stream)
	router.Patch("/:id/read", h.markRead)

	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", withRequestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleWebsocket))
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	notifications, err := h.service.List(withRequestContext(c), userID, limit, offset)
	if err != nil {
		return sendServiceError(c, err, "failed to list notifications")
	}

	return utils.SendSuccess(c, "notifications", notifications)
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	notificationID := c.Params("id")
	if notificationID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "notification id required")
	}

	notification, err := h.service.MarkRead(withRequestContext(c), notificationID, userID)
	if err != nil {
		return sendServiceError(c, err, "failed to update notification")
	}

	return utils.SendSuccess(c, "notification updated", notification)
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(withRequestContext(c))
	stream, cleanup := h.service.Subscribe(userID)

	keepAliveInterval := h.timeout
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write notification keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) handleWebsocket(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	stream, cleanup := h.service.Subscribe(userID)
	defer cleanup()

	observability.WSClientsActive().Inc()
	defer observability.WSClientsActive().Dec()

	h.logger.Info().Str("user_id", userID).Msg("notification websocket connected")

	// Reads only serve to detect the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case notification, ok := <-stream:
			if !ok {
				return
			}
			payload, err := json.Marshal(notification)
			if err != nil {
				h.logger.Warn().Err(err).Msg("failed to marshal notification")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug().Err(err).Str("user_id", userID).Msg("notification websocket write failed")
				return
			}
		case <-ctx.Done():
			h.logger.Info().Str("user_id", userID).Msg("notification websocket disconnected")
			return
		}
	}
}

func websocketUserID(conn *websocket.Conn) string {
	if value, ok := conn.Locals("user_id").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func writeNotificationEvent(w *bufio.Writer, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: notification\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
