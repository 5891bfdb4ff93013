package dto

import (
	"time"

	"github.com/relaychat/relay-api/internal/models"
)

// NotificationResponse is the serialized representation of a notification.
type NotificationResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a model into a DTO.
func NewNotificationResponse(notification models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        notification.ID,
		UserID:    notification.UserID,
		MessageID: notification.MessageID,
		Read:      notification.Read,
		CreatedAt: notification.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of models into DTOs.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		out = append(out, NewNotificationResponse(notification))
	}
	return out
}

// NotificationListResponse bundles a page of notifications with the unread count.
type NotificationListResponse struct {
	Items       []NotificationResponse `json:"items"`
	UnreadCount int64                  `json:"unread_count"`
}
