package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/handler"
	"github.com/relaychat/relay-api/internal/service"
)

type mockAuthService struct {
	registerResponse dto.UserResponse
	registerErr      error
	loginResponse    dto.TokenPairResponse
	loginErr         error
	refreshErr       error
	deletedUserID    string
}

func (m *mockAuthService) Register(_ context.Context, payload dto.RegisterRequest) (dto.UserResponse, error) {
	return m.registerResponse, m.registerErr
}

func (m *mockAuthService) Login(_ context.Context, payload dto.LoginRequest) (dto.TokenPairResponse, error) {
	return m.loginResponse, m.loginErr
}

func (m *mockAuthService) Refresh(_ context.Context, refreshToken string) (dto.TokenPairResponse, error) {
	return m.loginResponse, m.refreshErr
}

func (m *mockAuthService) DeleteAccount(_ context.Context, userID string) error {
	m.deletedUserID = userID
	return nil
}

func (m *mockAuthService) Touch(_ context.Context, userID string) {}

func newAuthApp(svc service.AuthService, userID string) *fiber.App {
	app := fiber.New()
	app.Use(asUser(userID, "guest"))
	h := handler.NewAuthHandler(svc, zerolog.New(io.Discard))
	h.Register(app.Group("/api/auth"))
	h.RegisterProtected(app.Group("/api/auth"))
	return app
}

func TestAuthHandler_RegisterSuccess(t *testing.T) {
	svc := &mockAuthService{registerResponse: dto.UserResponse{ID: "u1", Email: "ada@example.com"}}
	app := newAuthApp(svc, "")

	body, err := json.Marshal(dto.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "supersecret",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestAuthHandler_RegisterConflict(t *testing.T) {
	svc := &mockAuthService{registerErr: service.ErrEmailTaken}
	app := newAuthApp(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader([]byte(`{"email":"x@example.com"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAuthHandler_LoginInvalidCredentials(t *testing.T) {
	svc := &mockAuthService{loginErr: service.ErrInvalidCredentials}
	app := newAuthApp(svc, "")

	body, err := json.Marshal(dto.LoginRequest{Email: "x@example.com", Password: "bad"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var response struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.False(t, response.Success)
	require.Equal(t, "invalid email or password", response.Message)
}

func TestAuthHandler_RefreshRequiresToken(t *testing.T) {
	app := newAuthApp(&mockAuthService{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAuthHandler_DeleteAccountUsesAuthenticatedUser(t *testing.T) {
	svc := &mockAuthService{}
	app := newAuthApp(svc, "user-7")

	req := httptest.NewRequest(http.MethodDelete, "/api/auth/me", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "user-7", svc.deletedUserID)
}
