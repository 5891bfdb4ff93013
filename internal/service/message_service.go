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

// ErrEmptyBody indicates a message body that is empty after sanitization.
var ErrEmptyBody = errors.New("message body empty after sanitization")

// NotificationBroadcaster receives committed notifications for realtime
// delivery. Persistence has already happened; implementations are fire and
// forget.
type NotificationBroadcaster interface {
	Broadcast(ctx context.Context, notification models.Notification)
}

// Actor is the authenticated caller performing a message operation.
type Actor struct {
	ID   string
	Role string
}

// CanModerate reports whether the actor may act on other users' messages.
func (a Actor) CanModerate() bool {
	role := strings.ToLower(a.Role)
	return role == models.RoleAdmin || role == models.RoleModerator
}

// MessageService implements the direct-message use-cases: send, edit with
// history capture, delete, thread and inbox retrieval.
type MessageService interface {
	Send(ctx context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	Edit(ctx context.Context, actor Actor, messageID string, payload dto.MessageEditRequest) (dto.MessageResponse, error)
	Delete(ctx context.Context, actor Actor, messageID string) error
	Thread(ctx context.Context, userID, rootID string) (dto.ThreadNode, error)
	Inbox(ctx context.Context, userID string, page, pageSize int) (dto.InboxResponse, error)
	Unread(ctx context.Context, userID string, limit int) ([]dto.MessageResponse, error)
	History(ctx context.Context, userID, messageID string) ([]dto.MessageHistoryResponse, error)
}

type messageService struct {
	messages    repository.MessageRepository
	users       repository.UserRepository
	activityLog repository.ActivityLogRepository
	broadcaster NotificationBroadcaster
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
}

// NewMessageService constructs the message service.
func NewMessageService(messages repository.MessageRepository, users repository.UserRepository, activityLog repository.ActivityLogRepository, broadcaster NotificationBroadcaster, validate *validator.Validate, logger zerolog.Logger) MessageService {
	return &messageService{
		messages:    messages,
		users:       users,
		activityLog: activityLog,
		broadcaster: broadcaster,
		validator:   validate,
		logger:      logger.With().Str("component", "message_service").Logger(),
		tracer:      otel.Tracer("github.com/relaychat/relay-api/internal/service/message"),
		sanitizer:   bluemonday.StrictPolicy(),
	}
}

func (s *messageService) Send(ctx context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	body, err := s.cleanBody(payload.Body)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	if _, err := s.users.FindByID(ctx, payload.ReceiverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrNotFound
		}
		return dto.MessageResponse{}, err
	}

	if payload.ParentID != nil {
		parent, err := s.messages.FindByID(ctx, *payload.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.MessageResponse{}, ErrNotFound
			}
			return dto.MessageResponse{}, err
		}
		if !parent.Involves(senderID) {
			return dto.MessageResponse{}, ErrNotFound
		}
	}

	spanCtx, span := s.tracer.Start(ctx, "messages.send", trace.WithAttributes(
		attribute.String("message.sender_id", senderID),
		attribute.String("message.receiver_id", payload.ReceiverID),
	))
	defer span.End()

	message := models.Message{
		SenderID:   senderID,
		ReceiverID: payload.ReceiverID,
		ParentID:   payload.ParentID,
		Body:       body,
	}

	if err := s.messages.CreateWithNotification(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	observability.MessagesSent().Inc()
	observability.NotificationsCreated().Inc()
	s.broadcast(spanCtx, message)

	s.logger.Info().Str("message_id", message.ID).Str("sender_id", senderID).Msg("message sent")

	return dto.NewMessageResponse(message), nil
}

func (s *messageService) Edit(ctx context.Context, actor Actor, messageID string, payload dto.MessageEditRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	body, err := s.cleanBody(payload.Body)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	message, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrNotFound
		}
		return dto.MessageResponse{}, err
	}

	if message.SenderID != actor.ID {
		return dto.MessageResponse{}, ErrForbidden
	}

	spanCtx, span := s.tracer.Start(ctx, "messages.edit", trace.WithAttributes(
		attribute.String("message.id", messageID),
	))
	defer span.End()

	updated, changed, err := s.messages.UpdateBody(spanCtx, messageID, body, actor.ID)
	if err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	if changed {
		observability.MessageEdits().Inc()
		s.logger.Info().Str("message_id", messageID).Str("edited_by", actor.ID).Msg("message edited")
	}

	return dto.NewMessageResponse(updated), nil
}

func (s *messageService) Delete(ctx context.Context, actor Actor, messageID string) error {
	message, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if message.SenderID != actor.ID && !actor.CanModerate() {
		return ErrForbidden
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}

	if message.SenderID != actor.ID {
		s.recordModeration(ctx, actor, message)
	}

	return nil
}

func (s *messageService) Thread(ctx context.Context, userID, rootID string) (dto.ThreadNode, error) {
	root, err := s.messages.FindByID(ctx, rootID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ThreadNode{}, ErrNotFound
		}
		return dto.ThreadNode{}, err
	}

	// A thread the caller neither sent nor received reads as absent rather
	// than forbidden, so message identifiers cannot be probed.
	if !root.Involves(userID) {
		return dto.ThreadNode{}, ErrNotFound
	}

	spanCtx, span := s.tracer.Start(ctx, "messages.thread", trace.WithAttributes(
		attribute.String("message.id", rootID),
	))
	defer span.End()

	nodes := map[string]*dto.ThreadNode{
		root.ID: {MessageResponse: dto.NewMessageResponse(root)},
	}

	// Resolve the reply tree breadth-first, one batch child query per level.
	frontier := []string{root.ID}
	for len(frontier) > 0 {
		children, err := s.messages.ListChildren(spanCtx, frontier)
		if err != nil {
			span.RecordError(err)
			return dto.ThreadNode{}, err
		}

		frontier = frontier[:0]
		for _, child := range children {
			node := &dto.ThreadNode{MessageResponse: dto.NewMessageResponse(child)}
			nodes[child.ID] = node
			if parent, ok := nodes[*child.ParentID]; ok {
				parent.Replies = append(parent.Replies, *node)
			}
			frontier = append(frontier, child.ID)
		}
	}

	return assembleThread(root.ID, nodes), nil
}

func (s *messageService) Inbox(ctx context.Context, userID string, page, pageSize int) (dto.InboxResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	roots, total, err := s.messages.ListRoots(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return dto.InboxResponse{}, err
	}

	items := make([]dto.InboxItem, 0, len(roots))
	for _, root := range roots {
		items = append(items, dto.InboxItem{
			MessageResponse: dto.NewMessageResponse(root),
			Replies:         dto.NewMessageResponseSlice(root.Replies),
		})
	}

	return dto.InboxResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *messageService) Unread(ctx context.Context, userID string, limit int) ([]dto.MessageResponse, error) {
	messages, err := s.messages.ListUnread(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *messageService) History(ctx context.Context, userID, messageID string) ([]dto.MessageHistoryResponse, error) {
	message, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !message.Involves(userID) {
		return nil, ErrNotFound
	}

	entries, err := s.messages.History(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageHistoryResponseSlice(entries), nil
}

func (s *messageService) cleanBody(body string) (string, error) {
	clean := strings.TrimSpace(s.sanitizer.Sanitize(body))
	if clean == "" {
		return "", ErrEmptyBody
	}
	if len(clean) > models.MaxMessageBodyLength {
		clean = clean[:models.MaxMessageBodyLength]
	}
	return clean, nil
}

// broadcast hands the committed notification to the realtime layer. The row
// already exists; the payload is rebuilt from the message instead of being
// read back.
func (s *messageService) broadcast(ctx context.Context, message models.Message) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(ctx, models.Notification{
		UserID:    message.ReceiverID,
		MessageID: message.ID,
	})
}

func (s *messageService) recordModeration(ctx context.Context, actor Actor, message models.Message) {
	if s.activityLog == nil {
		return
	}
	entry := models.ActivityLog{
		ActorID:    actor.ID,
		ActorRole:  strings.ToLower(actor.Role),
		Action:     "message_deleted",
		EntityType: "message",
		EntityID:   message.ID,
		Metadata:   map[string]interface{}{"sender_id": message.SenderID},
	}
	if err := s.activityLog.Create(ctx, &entry); err != nil {
		s.logger.Warn().Err(err).Str("message_id", message.ID).Msg("failed to record moderation action")
	}
}

// assembleThread rebuilds the nested tree from the flat node map. Children
// were appended to parents as value copies before grandchildren existed, so
// the tree is rebuilt bottom-up from the authoritative map entries.
func assembleThread(rootID string, nodes map[string]*dto.ThreadNode) dto.ThreadNode {
	var build func(id string) dto.ThreadNode
	build = func(id string) dto.ThreadNode {
		node := *nodes[id]
		replies := make([]dto.ThreadNode, 0, len(node.Replies))
		for _, reply := range node.Replies {
			replies = append(replies, build(reply.ID))
		}
		node.Replies = replies
		return node
	}
	return build(rootID)
}
