package dto

import (
	"time"

	"github.com/relaychat/relay-api/internal/models"
)

// ConversationCreateRequest is the payload to open a conversation. The
// creator is always included; counting the creator, at least two distinct
// participants are required.
type ConversationCreateRequest struct {
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1,dive,uuid4"`
}

// ConversationResponse is the serialized representation of a conversation.
type ConversationResponse struct {
	ID               string         `json:"id"`
	Participants     []UserResponse `json:"participants"`
	ParticipantCount int            `json:"participant_count"`
	CreatedAt        time.Time      `json:"created_at"`
}

// NewConversationResponse converts a model into a DTO.
func NewConversationResponse(conversation models.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:               conversation.ID,
		Participants:     NewUserResponseSlice(conversation.Participants),
		ParticipantCount: len(conversation.Participants),
		CreatedAt:        conversation.CreatedAt,
	}
}

// NewConversationResponseSlice converts a slice of models into DTOs.
func NewConversationResponseSlice(conversations []models.Conversation) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		out = append(out, NewConversationResponse(conversation))
	}
	return out
}

// ConversationListResponse is the paginated conversation list.
type ConversationListResponse struct {
	Items      []ConversationResponse `json:"items"`
	Pagination PaginationMeta         `json:"pagination"`
}

// ConversationMessagesResponse is the paginated message list of one conversation.
type ConversationMessagesResponse struct {
	Items      []MessageResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}
