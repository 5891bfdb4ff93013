package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxMessageBodyLength caps message bodies at the write boundary.
const MaxMessageBodyLength = 2000

// Message is a single message. Direct messages carry sender and receiver;
// messages sent inside a conversation also carry ConversationID. Replies
// reference their parent through ParentID only; children are looked up by
// filtering on the parent key, never stored as a forward list.
type Message struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID *string    `gorm:"type:uuid;index" json:"conversation_id,omitempty"`
	SenderID       string     `gorm:"type:uuid;index;not null" json:"sender_id"`
	ReceiverID     string     `gorm:"type:uuid;index;not null" json:"receiver_id"`
	ParentID       *string    `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Body           string     `gorm:"size:2000;not null" json:"body"`
	SentAt         time.Time  `gorm:"index" json:"sent_at"`
	Edited         bool       `gorm:"not null;default:false" json:"edited"`
	LastEdited     *time.Time `json:"last_edited,omitempty"`

	Replies []Message `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
}

// BeforeCreate assigns identifiers and the sent timestamp.
func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	return nil
}

// IsRoot reports whether the message starts a thread.
func (m Message) IsRoot() bool {
	return m.ParentID == nil
}

// Involves reports whether the user is the sender or receiver.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// MessageHistory records the prior body of an edited message. Rows are
// append-only: one per content-changing edit, never updated or deleted.
type MessageHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MessageID  string    `gorm:"type:uuid;index;not null" json:"message_id"`
	PriorBody  string    `gorm:"size:2000;not null" json:"prior_body"`
	EditedBy   string    `gorm:"type:uuid;not null" json:"edited_by"`
	RecordedAt time.Time `json:"recorded_at"`
}
