package dto

import (
	"time"

	"github.com/relaychat/relay-api/internal/models"
)

// RegisterRequest is the payload to create an account.
type RegisterRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=150"`
	LastName    string `json:"last_name" validate:"required,max=150"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
	Role        string `json:"role" validate:"omitempty,oneof=guest host admin moderator"`
}

// UserResponse is the serialized representation of a user.
type UserResponse struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		FullName:    user.FullName(),
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		Role:        user.Role,
		CreatedAt:   user.CreatedAt,
	}
}

// NewUserResponseSlice converts a slice of models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}

// SeedUsersRequest is the payload for the token-gated user seeding endpoint.
type SeedUsersRequest struct {
	Token string        `json:"token" validate:"required"`
	Users []SeedUserRow `json:"users" validate:"required,min=1,dive"`
}

// SeedUserRow is one user row in a seeding batch.
type SeedUserRow struct {
	FirstName   string `json:"first_name" validate:"required,max=150"`
	LastName    string `json:"last_name" validate:"required,max=150"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"omitempty,min=8,max=128"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
	Role        string `json:"role" validate:"omitempty,oneof=guest host admin moderator"`
}
