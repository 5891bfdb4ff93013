package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/models"
	"github.com/relaychat/relay-api/internal/repository"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
	activityTTL     = 24 * time.Hour
)

// AuthService issues and refreshes token pairs and manages accounts.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenPairResponse, error)
	Refresh(ctx context.Context, refreshToken string) (dto.TokenPairResponse, error)
	DeleteAccount(ctx context.Context, userID string) error

	// Touch records the last-activity timestamp for an authenticated
	// request. Failures are logged and swallowed; activity tracking must
	// never fail a request.
	Touch(ctx context.Context, userID string)
}

type authService struct {
	users         repository.UserRepository
	redis         *redis.Client
	secret        string
	refreshSecret string
	validator     *validator.Validate
	logger        zerolog.Logger
	now           func() time.Time
}

// NewAuthService constructs the authentication service.
func NewAuthService(users repository.UserRepository, redisClient *redis.Client, secret, refreshSecret string, validate *validator.Validate, logger zerolog.Logger) AuthService {
	return &authService{
		users:         users,
		redis:         redisClient,
		secret:        secret,
		refreshSecret: refreshSecret,
		validator:     validate,
		logger:        logger.With().Str("component", "auth_service").Logger(),
		now:           time.Now,
	}
}

func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return dto.UserResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return dto.UserResponse{}, err
	}

	role := payload.Role
	if role == "" {
		role = models.RoleGuest
	}

	user := models.User{
		FirstName:    strings.TrimSpace(payload.FirstName),
		LastName:     strings.TrimSpace(payload.LastName),
		Email:        email,
		PasswordHash: string(hash),
		PhoneNumber:  strings.TrimSpace(payload.PhoneNumber),
		Role:         role,
	}

	if err := s.users.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered")

	return dto.NewUserResponse(user), nil
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenPairResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenPairResponse{}, err
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(payload.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenPairResponse{}, ErrInvalidCredentials
		}
		return dto.TokenPairResponse{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)) != nil {
		return dto.TokenPairResponse{}, ErrInvalidCredentials
	}

	return s.issuePair(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (dto.TokenPairResponse, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.refreshSecret), nil
	})
	if err != nil || !token.Valid {
		return dto.TokenPairResponse{}, ErrInvalidCredentials
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return dto.TokenPairResponse{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByID(ctx, sub)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenPairResponse{}, ErrInvalidCredentials
		}
		return dto.TokenPairResponse{}, err
	}

	return s.issuePair(user)
}

func (s *authService) DeleteAccount(ctx context.Context, userID string) error {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("account deleted")
	return s.users.Delete(ctx, userID)
}

func (s *authService) Touch(ctx context.Context, userID string) {
	if s.redis == nil || userID == "" {
		return
	}
	key := "activity:user:" + userID
	if err := s.redis.Set(ctx, key, s.now().UTC().Format(time.RFC3339), activityTTL).Err(); err != nil {
		s.logger.Debug().Err(err).Str("user_id", userID).Msg("failed to record activity")
	}
}

// issuePair signs an access/refresh pair carrying the custom claims the
// middleware reads back: email, role and display name.
func (s *authService) issuePair(user models.User) (dto.TokenPairResponse, error) {
	now := s.now()

	accessClaims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"name":  user.FullName(),
		"iat":   now.Unix(),
		"exp":   now.Add(accessTokenTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(s.secret))
	if err != nil {
		return dto.TokenPairResponse{}, err
	}

	refreshClaims := jwt.MapClaims{
		"sub": user.ID,
		"typ": "refresh",
		"iat": now.Unix(),
		"exp": now.Add(refreshTokenTTL).Unix(),
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(s.refreshSecret))
	if err != nil {
		return dto.TokenPairResponse{}, err
	}

	return dto.TokenPairResponse{Access: access, Refresh: refresh}, nil
}
