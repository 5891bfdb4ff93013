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

type mockSeedService struct {
	err         error
	lastPayload dto.SeedUsersRequest
}

func (m *mockSeedService) SeedUsers(_ context.Context, payload dto.SeedUsersRequest) ([]dto.UserResponse, error) {
	m.lastPayload = payload
	if m.err != nil {
		return nil, m.err
	}
	out := make([]dto.UserResponse, 0, len(payload.Users))
	for _, row := range payload.Users {
		out = append(out, dto.UserResponse{Email: row.Email})
	}
	return out, nil
}

func newSeedApp(svc service.SeedService) *fiber.App {
	app := fiber.New()
	handler.NewSeedHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/seed"))
	return app
}

func TestSeedHandler_Success(t *testing.T) {
	svc := &mockSeedService{}
	app := newSeedApp(svc)

	body, err := json.Marshal(dto.SeedUsersRequest{
		Token: "secret",
		Users: []dto.SeedUserRow{{FirstName: "Seed", LastName: "User", Email: "seed@example.com"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/seed/users", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "secret", svc.lastPayload.Token)
}

func TestSeedHandler_TokenFromHeader(t *testing.T) {
	svc := &mockSeedService{}
	app := newSeedApp(svc)

	body, err := json.Marshal(map[string]interface{}{
		"users": []dto.SeedUserRow{{FirstName: "Seed", LastName: "User", Email: "seed@example.com"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/seed/users", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Seed-Token", "header-secret")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "header-secret", svc.lastPayload.Token)
}

func TestSeedHandler_DisabledMapsToForbidden(t *testing.T) {
	svc := &mockSeedService{err: service.ErrSeedingDisabled}
	app := newSeedApp(svc)

	body, err := json.Marshal(dto.SeedUsersRequest{
		Token: "wrong",
		Users: []dto.SeedUserRow{{FirstName: "Seed", LastName: "User", Email: "seed@example.com"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/seed/users", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
