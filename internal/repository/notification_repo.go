package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/relaychat/relay-api/internal/models"
)

// NotificationRepository handles persistence for notification entities.
type NotificationRepository interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) (models.Notification, error)
	FindByMessage(ctx context.Context, messageID string) (models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&total).Error
	return total, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	if notification.Read {
		return notification, nil
	}

	notification.Read = true
	if err := r.db.WithContext(ctx).Save(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	return notification, nil
}

func (r *notificationRepository) FindByMessage(ctx context.Context, messageID string) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).First(&notification, "message_id = ?", messageID).Error; err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}
