package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/models"
	"github.com/relaychat/relay-api/internal/repository"
)

// ErrSeedingDisabled indicates the seeding endpoint is not enabled or the
// supplied token does not match.
var ErrSeedingDisabled = errors.New("seeding is disabled or the token is invalid")

// defaultSeedPassword is assigned to seeded rows that carry no password.
const defaultSeedPassword = "changeme-relay"

// SeedService bulk-loads user accounts for development and test environments.
type SeedService interface {
	SeedUsers(ctx context.Context, payload dto.SeedUsersRequest) ([]dto.UserResponse, error)
}

type seedService struct {
	users     repository.UserRepository
	enabled   bool
	token     string
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSeedService constructs the seed service. When enabled is false every
// call fails regardless of token.
func NewSeedService(users repository.UserRepository, enabled bool, token string, validate *validator.Validate, logger zerolog.Logger) SeedService {
	return &seedService{
		users:     users,
		enabled:   enabled,
		token:     token,
		validator: validate,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedUsers(ctx context.Context, payload dto.SeedUsersRequest) ([]dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	if !s.enabled || s.token == "" ||
		subtle.ConstantTimeCompare([]byte(payload.Token), []byte(s.token)) != 1 {
		return nil, ErrSeedingDisabled
	}

	users := make([]models.User, 0, len(payload.Users))
	for _, row := range payload.Users {
		password := row.Password
		if password == "" {
			password = defaultSeedPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}

		role := row.Role
		if role == "" {
			role = models.RoleGuest
		}

		users = append(users, models.User{
			FirstName:    strings.TrimSpace(row.FirstName),
			LastName:     strings.TrimSpace(row.LastName),
			Email:        strings.ToLower(strings.TrimSpace(row.Email)),
			PasswordHash: string(hash),
			PhoneNumber:  strings.TrimSpace(row.PhoneNumber),
			Role:         role,
		})
	}

	affected, err := s.users.UpsertBatch(ctx, users)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("count", len(users)).Int64("rows_affected", affected).Msg("seeded users")

	return dto.NewUserResponseSlice(users), nil
}
