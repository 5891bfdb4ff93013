package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/relaychat/relay-api/internal/models"
)

// MessageRepository persists messages, their edit history and the
// notifications created alongside them.
type MessageRepository interface {
	// CreateWithNotification inserts the message and its receiver
	// notification in one transaction. Exactly one notification exists per
	// created message; edits and deletes never add one.
	CreateWithNotification(ctx context.Context, message *models.Message) error

	// CreateInConversation inserts a conversation message and one
	// notification per recipient, all in one transaction.
	CreateInConversation(ctx context.Context, message *models.Message, recipientIDs []string) error

	// UpdateBody edits a message inside one transaction: the stored body is
	// read first, and only when it differs from newBody is a history row
	// appended and the message marked edited. A no-op edit leaves every row
	// untouched and returns changed=false.
	UpdateBody(ctx context.Context, id, newBody, editorID string) (models.Message, bool, error)

	FindByID(ctx context.Context, id string) (models.Message, error)
	Delete(ctx context.Context, id string) error

	// ListRoots returns thread roots involving the user, newest first, each
	// with its direct replies attached through a single batch child query.
	ListRoots(ctx context.Context, userID string, limit, offset int) ([]models.Message, int64, error)

	// ListChildren returns the direct replies of the given parents, ordered
	// by sent time ascending.
	ListChildren(ctx context.Context, parentIDs []string) ([]models.Message, error)

	// ListUnread returns messages for which the user still has an unread
	// notification, newest first.
	ListUnread(ctx context.Context, userID string, limit int) ([]models.Message, error)

	History(ctx context.Context, messageID string) ([]models.MessageHistory, error)
}

type messageRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db, now: time.Now}
}

func (r *messageRepository) CreateWithNotification(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		notification := models.Notification{
			UserID:    message.ReceiverID,
			MessageID: message.ID,
		}
		return tx.Create(&notification).Error
	})
}

func (r *messageRepository) CreateInConversation(ctx context.Context, message *models.Message, recipientIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		for _, recipientID := range recipientIDs {
			if recipientID == message.SenderID {
				continue
			}
			notification := models.Notification{
				UserID:    recipientID,
				MessageID: message.ID,
			}
			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *messageRepository) UpdateBody(ctx context.Context, id, newBody, editorID string) (models.Message, bool, error) {
	var message models.Message
	changed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&message, "id = ?", id).Error; err != nil {
			return err
		}

		if message.Body == newBody {
			return nil
		}

		history := models.MessageHistory{
			MessageID:  message.ID,
			PriorBody:  message.Body,
			EditedBy:   editorID,
			RecordedAt: r.now().UTC(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		editedAt := r.now().UTC()
		updates := map[string]interface{}{
			"body":        newBody,
			"edited":      true,
			"last_edited": editedAt,
		}
		if err := tx.Model(&models.Message{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		message.Body = newBody
		message.Edited = true
		message.LastEdited = &editedAt
		changed = true
		return nil
	})
	if err != nil {
		return models.Message{}, false, err
	}

	return message, changed, nil
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return models.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", id).Error
}

func (r *messageRepository) ListRoots(ctx context.Context, userID string, limit, offset int) ([]models.Message, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	base := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("parent_id IS NULL").
		Where("sender_id = ? OR receiver_id = ?", userID, userID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var roots []models.Message
	err := base.
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("sent_at ASC")
		}).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&roots).Error
	if err != nil {
		return nil, 0, err
	}

	return roots, total, nil
}

func (r *messageRepository) ListChildren(ctx context.Context, parentIDs []string) ([]models.Message, error) {
	var children []models.Message
	if len(parentIDs) == 0 {
		return children, nil
	}
	err := r.db.WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("sent_at ASC").
		Find(&children).Error
	if err != nil {
		return nil, err
	}
	return children, nil
}

func (r *messageRepository) ListUnread(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Joins("JOIN notifications n ON n.message_id = messages.id").
		Where("n.user_id = ? AND n.read = ?", userID, false).
		Order("messages.sent_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) History(ctx context.Context, messageID string) ([]models.MessageHistory, error) {
	var entries []models.MessageHistory
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("recorded_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
