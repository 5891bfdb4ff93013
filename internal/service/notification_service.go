package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/models"
	"github.com/relaychat/relay-api/internal/repository"
)

const notificationBufferSize = 16

// NotificationService lists notifications and streams new ones to connected
// clients. It also implements NotificationBroadcaster so the message services
// can hand it committed notifications.
type NotificationService interface {
	NotificationBroadcaster

	List(ctx context.Context, userID string, limit, offset int) (dto.NotificationListResponse, error)
	MarkRead(ctx context.Context, id, userID string) (dto.NotificationResponse, error)
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo         repository.NotificationRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	broker       *notificationBroker
	nodeID       string
	now          func() time.Time
}

// notificationEvent is the cross-node fan-out envelope. Source carries the
// publishing node so a node skips events it already delivered locally.
type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. channelBase names
// the Redis channel and NATS subject used for cross-node delivery; empty
// disables that transport.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:         repo,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "notification_service").Logger(),
		tracer:       otel.Tracer("github.com/relaychat/relay-api/internal/service/notification"),
		broker: &notificationBroker{
			subscribers: make(map[string]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
		now:    time.Now,
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Broadcast delivers an already-persisted notification to local subscribers
// and publishes it for other nodes. Delivery is best effort; the row is the
// source of truth.
func (s *notificationService) Broadcast(ctx context.Context, notification models.Notification) {
	response := dto.NewNotificationResponse(notification)
	if response.CreatedAt.IsZero() {
		response.CreatedAt = s.now().UTC()
	}

	s.broker.broadcast(response.UserID, response)

	if err := s.publish(ctx, response); err != nil {
		s.logger.Warn().Err(err).Str("user_id", response.UserID).Msg("failed to publish notification event")
	}
}

func (s *notificationService) List(ctx context.Context, userID string, limit, offset int) (dto.NotificationListResponse, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Items:       dto.NewNotificationResponseSlice(notifications),
		UnreadCount: unread,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.String("notification.id", id),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)
	s.broker.subscribe(userID, channel)

	cleanup := func() {
		s.broker.unsubscribe(userID, channel)
	}

	return channel, cleanup
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       s.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "relay-notifications", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broker.broadcast(event.Notification.UserID, event.Notification)
}

func (b *notificationBroker) subscribe(userID string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID string, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
