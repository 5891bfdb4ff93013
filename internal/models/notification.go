package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification targets the receiver of a newly created message. Direct sends
// produce exactly one notification per message; conversation sends produce one
// per recipient. Edits never produce any. The composite unique index keeps a
// recipient from ever being notified twice about the same message.
type Notification struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;index;uniqueIndex:idx_notification_target;not null" json:"user_id"`
	MessageID string    `gorm:"type:uuid;uniqueIndex:idx_notification_target;not null" json:"message_id"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID primary key when none was provided.
func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
