package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles a user account can hold. Guests are regular participants, hosts can
// open conversations for others, moderators may remove messages, admins can
// do everything.
const (
	RoleGuest     = "guest"
	RoleHost      = "host"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User is an account that sends and receives messages.
type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName    string    `gorm:"size:150;not null" json:"first_name"`
	LastName     string    `gorm:"size:150;not null" json:"last_name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	PhoneNumber  string    `gorm:"size:20" json:"phone_number,omitempty"`
	Role         string    `gorm:"size:16;not null;default:guest" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none was provided.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// FullName joins the first and last name for display and token claims.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
