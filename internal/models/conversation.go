package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation groups two or more participants. The two-participant minimum
// is enforced at the write boundary, not by the schema.
type Conversation struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Participants []User    `gorm:"many2many:conversation_participants" json:"participants"`
	Messages     []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns a UUID primary key when none was provided.
func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// HasParticipant reports whether the given user belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
