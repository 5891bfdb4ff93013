package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/handler"
	"github.com/relaychat/relay-api/internal/models"
	"github.com/relaychat/relay-api/internal/service"
)

type stubMessageService struct {
	response dto.MessageResponse
}

func (s stubMessageService) Send(context.Context, string, dto.MessageSendRequest) (dto.MessageResponse, error) {
	return s.response, nil
}

func (s stubMessageService) Edit(context.Context, service.Actor, string, dto.MessageEditRequest) (dto.MessageResponse, error) {
	return s.response, nil
}

func (s stubMessageService) Delete(context.Context, service.Actor, string) error { return nil }

func (s stubMessageService) Thread(context.Context, string, string) (dto.ThreadNode, error) {
	return dto.ThreadNode{MessageResponse: s.response}, nil
}

func (s stubMessageService) Inbox(context.Context, string, int, int) (dto.InboxResponse, error) {
	return dto.InboxResponse{}, nil
}

func (s stubMessageService) Unread(context.Context, string, int) ([]dto.MessageResponse, error) {
	return nil, nil
}

func (s stubMessageService) History(context.Context, string, string) ([]dto.MessageHistoryResponse, error) {
	return nil, nil
}

type stubNotificationLister struct {
	service.NotificationService
	list dto.NotificationListResponse
}

func (s stubNotificationLister) List(context.Context, string, int, int) (dto.NotificationListResponse, error) {
	return s.list, nil
}

func (s stubNotificationLister) Broadcast(context.Context, models.Notification) {}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func validateBody(t *testing.T, resp *http.Response, schema *jsonschema.Schema) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestMessageSendContract(t *testing.T) {
	schema := compileSchema(t, "message.schema.json")

	now := time.Now().UTC()
	edited := now.Add(time.Minute)
	svc := stubMessageService{response: dto.MessageResponse{
		ID:         "6a9d1c3a-9a44-4c39-8e74-55f1a8c9d210",
		SenderID:   "1b7f1d44-4f3a-4bb9-9a3f-0f2e6dd0a001",
		ReceiverID: "2c8e2e55-5a4b-4cc0-ab40-1a3f7ee1b002",
		Body:       "hello there",
		SentAt:     now,
		Edited:     true,
		LastEdited: &edited,
	}}

	app := fiber.New()
	group := app.Group("/api/messages", func(c *fiber.Ctx) error {
		c.Locals("user_id", "1b7f1d44-4f3a-4bb9-9a3f-0f2e6dd0a001")
		c.Locals("user_role", "guest")
		return c.Next()
	})
	handler.NewMessageHandler(svc, zerolog.Nop()).Register(group)

	payload, err := json.Marshal(dto.MessageSendRequest{
		ReceiverID: "2c8e2e55-5a4b-4cc0-ab40-1a3f7ee1b002",
		Body:       "hello there",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/messages/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	validateBody(t, resp, schema)
}

func TestNotificationListContract(t *testing.T) {
	schema := compileSchema(t, "notification_list.schema.json")

	svc := stubNotificationLister{list: dto.NotificationListResponse{
		Items: []dto.NotificationResponse{
			{
				ID:        "7b0e2d4b-ab55-4d4a-9f85-66f2b9d0e321",
				UserID:    "2c8e2e55-5a4b-4cc0-ab40-1a3f7ee1b002",
				MessageID: "6a9d1c3a-9a44-4c39-8e74-55f1a8c9d210",
				CreatedAt: time.Now().UTC(),
			},
		},
		UnreadCount: 1,
	}}

	app := fiber.New()
	group := app.Group("/api/notifications", func(c *fiber.Ctx) error {
		c.Locals("user_id", "2c8e2e55-5a4b-4cc0-ab40-1a3f7ee1b002")
		return c.Next()
	})
	handler.NewNotificationHandler(svc, zerolog.Nop(), time.Second).Register(group)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	validateBody(t, resp, schema)
}
