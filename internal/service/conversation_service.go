package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/models"
	"github.com/relaychat/relay-api/internal/observability"
	"github.com/relaychat/relay-api/internal/repository"
)

// Conversation validation failures, surfaced with field-level context by the
// handler layer.
var (
	ErrTooFewParticipants = errors.New("a conversation must have at least 2 participants")
	ErrUnknownParticipant = errors.New("one or more participants do not exist")
)

// ConversationService implements conversation use-cases.
type ConversationService interface {
	Create(ctx context.Context, creatorID string, payload dto.ConversationCreateRequest) (dto.ConversationResponse, error)
	List(ctx context.Context, userID string, page, pageSize int) (dto.ConversationListResponse, error)
	Get(ctx context.Context, userID, conversationID string) (dto.ConversationResponse, error)
	SendMessage(ctx context.Context, senderID, conversationID string, payload dto.ConversationMessageRequest) (dto.MessageResponse, error)
	ListMessages(ctx context.Context, userID, conversationID string, page, pageSize int) (dto.ConversationMessagesResponse, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	broadcaster   NotificationBroadcaster
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
}

// NewConversationService constructs the conversation service.
func NewConversationService(conversations repository.ConversationRepository, messages repository.MessageRepository, users repository.UserRepository, broadcaster NotificationBroadcaster, validate *validator.Validate, logger zerolog.Logger) ConversationService {
	return &conversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		broadcaster:   broadcaster,
		validator:     validate,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
		tracer:        otel.Tracer("github.com/relaychat/relay-api/internal/service/conversation"),
		sanitizer:     bluemonday.StrictPolicy(),
	}
}

func (s *conversationService) Create(ctx context.Context, creatorID string, payload dto.ConversationCreateRequest) (dto.ConversationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConversationResponse{}, err
	}

	// The creator always participates; deduplicate before the size check so
	// that "me plus myself" does not count as two.
	seen := map[string]struct{}{creatorID: {}}
	ids := []string{creatorID}
	for _, id := range payload.ParticipantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) < 2 {
		return dto.ConversationResponse{}, ErrTooFewParticipants
	}

	participants, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return dto.ConversationResponse{}, err
	}
	if len(participants) != len(ids) {
		return dto.ConversationResponse{}, ErrUnknownParticipant
	}

	spanCtx, span := s.tracer.Start(ctx, "conversations.create", trace.WithAttributes(
		attribute.String("conversation.creator_id", creatorID),
		attribute.Int("conversation.participants", len(ids)),
	))
	defer span.End()

	conversation := models.Conversation{Participants: participants}
	if err := s.conversations.Create(spanCtx, &conversation); err != nil {
		span.RecordError(err)
		return dto.ConversationResponse{}, err
	}

	s.logger.Info().Str("conversation_id", conversation.ID).Int("participants", len(ids)).Msg("conversation created")

	return dto.NewConversationResponse(conversation), nil
}

func (s *conversationService) List(ctx context.Context, userID string, page, pageSize int) (dto.ConversationListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	conversations, total, err := s.conversations.ListForUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return dto.ConversationListResponse{}, err
	}

	return dto.ConversationListResponse{
		Items:      dto.NewConversationResponseSlice(conversations),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *conversationService) Get(ctx context.Context, userID, conversationID string) (dto.ConversationResponse, error) {
	conversation, err := s.loadVisible(ctx, userID, conversationID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}
	return dto.NewConversationResponse(conversation), nil
}

func (s *conversationService) SendMessage(ctx context.Context, senderID, conversationID string, payload dto.ConversationMessageRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(payload.Body))
	if body == "" {
		return dto.MessageResponse{}, ErrEmptyBody
	}

	conversation, err := s.loadVisible(ctx, senderID, conversationID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	recipients := make([]string, 0, len(conversation.Participants))
	receiverID := senderID
	for _, participant := range conversation.Participants {
		if participant.ID == senderID {
			continue
		}
		recipients = append(recipients, participant.ID)
		receiverID = participant.ID
	}

	spanCtx, span := s.tracer.Start(ctx, "conversations.send_message", trace.WithAttributes(
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	message := models.Message{
		ConversationID: &conversation.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Body:           body,
	}

	if err := s.messages.CreateInConversation(spanCtx, &message, recipients); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	observability.MessagesSent().Inc()
	for range recipients {
		observability.NotificationsCreated().Inc()
	}

	if s.broadcaster != nil {
		for _, recipientID := range recipients {
			s.broadcaster.Broadcast(spanCtx, models.Notification{UserID: recipientID, MessageID: message.ID})
		}
	}

	return dto.NewMessageResponse(message), nil
}

func (s *conversationService) ListMessages(ctx context.Context, userID, conversationID string, page, pageSize int) (dto.ConversationMessagesResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	if _, err := s.loadVisible(ctx, userID, conversationID); err != nil {
		return dto.ConversationMessagesResponse{}, err
	}

	messages, total, err := s.conversations.ListMessages(ctx, conversationID, pageSize, (page-1)*pageSize)
	if err != nil {
		return dto.ConversationMessagesResponse{}, err
	}

	return dto.ConversationMessagesResponse{
		Items:      dto.NewMessageResponseSlice(messages),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

// loadVisible fetches a conversation and hides it from non-participants.
func (s *conversationService) loadVisible(ctx context.Context, userID, conversationID string) (models.Conversation, error) {
	conversation, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, ErrNotFound
		}
		return models.Conversation{}, err
	}
	if !conversation.HasParticipant(userID) {
		return models.Conversation{}, ErrNotFound
	}
	return conversation, nil
}
