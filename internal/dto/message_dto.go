package dto

import (
	"time"

	"github.com/relaychat/relay-api/internal/models"
)

// MessageSendRequest is the payload to send a direct message. ParentID turns
// the message into a reply inside an existing thread.
type MessageSendRequest struct {
	ReceiverID string  `json:"receiver_id" validate:"required,uuid4"`
	Body       string  `json:"body" validate:"required,max=2000"`
	ParentID   *string `json:"parent_id" validate:"omitempty,uuid4"`
}

// MessageEditRequest is the payload to edit an existing message body.
type MessageEditRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

// ConversationMessageRequest is the payload for sending into a conversation.
type ConversationMessageRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

// MessageResponse is the serialized representation of a message.
type MessageResponse struct {
	ID             string     `json:"id"`
	ConversationID *string    `json:"conversation_id,omitempty"`
	SenderID       string     `json:"sender_id"`
	ReceiverID     string     `json:"receiver_id"`
	ParentID       *string    `json:"parent_id,omitempty"`
	Body           string     `json:"body"`
	SentAt         time.Time  `json:"sent_at"`
	Edited         bool       `json:"edited"`
	LastEdited     *time.Time `json:"last_edited,omitempty"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		ParentID:       message.ParentID,
		Body:           message.Body,
		SentAt:         message.SentAt,
		Edited:         message.Edited,
		LastEdited:     message.LastEdited,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// ThreadNode is a message with its resolved replies, nested recursively.
type ThreadNode struct {
	MessageResponse
	Replies []ThreadNode `json:"replies"`
}

// InboxItem is a thread root annotated with its direct replies.
type InboxItem struct {
	MessageResponse
	Replies []MessageResponse `json:"replies"`
}

// InboxResponse is the paginated inbox view.
type InboxResponse struct {
	Items      []InboxItem    `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// MessageHistoryResponse is one prior version of an edited message.
type MessageHistoryResponse struct {
	MessageID  string    `json:"message_id"`
	PriorBody  string    `json:"prior_body"`
	EditedBy   string    `json:"edited_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewMessageHistoryResponseSlice converts history models into DTOs.
func NewMessageHistoryResponseSlice(entries []models.MessageHistory) []MessageHistoryResponse {
	out := make([]MessageHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, MessageHistoryResponse{
			MessageID:  entry.MessageID,
			PriorBody:  entry.PriorBody,
			EditedBy:   entry.EditedBy,
			RecordedAt: entry.RecordedAt,
		})
	}
	return out
}
