package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/relaychat/relay-api/internal/models"
)

// ConversationRepository persists conversations and their participant sets.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	FindByID(ctx context.Context, id string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Conversation, int64, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int64, error)
	Delete(ctx context.Context, id string) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conversation).Error
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		First(&conversation, "id = ?", id).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Conversation, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	base := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var conversations []models.Conversation
	err := base.
		Preload("Participants").
		Order("conversations.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	base := r.db.WithContext(ctx).Model(&models.Message{}).Where("conversation_id = ?", conversationID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []models.Message
	if err := base.Order("sent_at ASC").Limit(limit).Offset(offset).Find(&messages).Error; err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *conversationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Conversation{}, "id = ?", id).Error
}
