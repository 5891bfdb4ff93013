package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/relaychat/relay-api/internal/dto"
	"github.com/relaychat/relay-api/internal/models"
	"github.com/relaychat/relay-api/internal/repository"
)

type stubUserRepo struct {
	users    map[string]models.User
	upserted []models.User
}

func newStubUserRepo(users ...models.User) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[string]models.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var found []models.User
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			found = append(found, user)
		}
	}
	return found, nil
}

func (s *stubUserRepo) Delete(ctx context.Context, id string) error {
	delete(s.users, id)
	return nil
}

func (s *stubUserRepo) UpsertBatch(ctx context.Context, users []models.User) (int64, error) {
	s.upserted = append(s.upserted, users...)
	return int64(len(users)), nil
}

type stubMessageRepo struct {
	messages      map[string]models.Message
	history       []models.MessageHistory
	notifications []models.Notification
	clock         time.Time
}

func newStubMessageRepo() *stubMessageRepo {
	return &stubMessageRepo{
		messages: make(map[string]models.Message),
		clock:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *stubMessageRepo) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *stubMessageRepo) insert(message *models.Message) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.SentAt.IsZero() {
		message.SentAt = s.tick()
	}
	s.messages[message.ID] = *message
}

func (s *stubMessageRepo) CreateWithNotification(ctx context.Context, message *models.Message) error {
	s.insert(message)
	s.notifications = append(s.notifications, models.Notification{
		ID:        uuid.NewString(),
		UserID:    message.ReceiverID,
		MessageID: message.ID,
	})
	return nil
}

func (s *stubMessageRepo) CreateInConversation(ctx context.Context, message *models.Message, recipientIDs []string) error {
	s.insert(message)
	for _, recipientID := range recipientIDs {
		if recipientID == message.SenderID {
			continue
		}
		s.notifications = append(s.notifications, models.Notification{
			ID:        uuid.NewString(),
			UserID:    recipientID,
			MessageID: message.ID,
		})
	}
	return nil
}

func (s *stubMessageRepo) UpdateBody(ctx context.Context, id, newBody, editorID string) (models.Message, bool, error) {
	message, ok := s.messages[id]
	if !ok {
		return models.Message{}, false, gorm.ErrRecordNotFound
	}
	if message.Body == newBody {
		return message, false, nil
	}
	s.history = append(s.history, models.MessageHistory{
		MessageID:  id,
		PriorBody:  message.Body,
		EditedBy:   editorID,
		RecordedAt: s.tick(),
	})
	editedAt := s.tick()
	message.Body = newBody
	message.Edited = true
	message.LastEdited = &editedAt
	s.messages[id] = message
	return message, true, nil
}

func (s *stubMessageRepo) FindByID(ctx context.Context, id string) (models.Message, error) {
	message, ok := s.messages[id]
	if !ok {
		return models.Message{}, gorm.ErrRecordNotFound
	}
	return message, nil
}

func (s *stubMessageRepo) Delete(ctx context.Context, id string) error {
	delete(s.messages, id)
	return nil
}

func (s *stubMessageRepo) ListRoots(ctx context.Context, userID string, limit, offset int) ([]models.Message, int64, error) {
	var roots []models.Message
	for _, message := range s.messages {
		if message.ParentID == nil && message.Involves(userID) {
			roots = append(roots, message)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].SentAt.After(roots[j].SentAt) })
	return roots, int64(len(roots)), nil
}

func (s *stubMessageRepo) ListChildren(ctx context.Context, parentIDs []string) ([]models.Message, error) {
	parents := make(map[string]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = struct{}{}
	}
	var children []models.Message
	for _, message := range s.messages {
		if message.ParentID == nil {
			continue
		}
		if _, ok := parents[*message.ParentID]; ok {
			children = append(children, message)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].SentAt.Before(children[j].SentAt) })
	return children, nil
}

func (s *stubMessageRepo) ListUnread(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	var unread []models.Message
	for _, notification := range s.notifications {
		if notification.UserID != userID || notification.Read {
			continue
		}
		if message, ok := s.messages[notification.MessageID]; ok {
			unread = append(unread, message)
		}
	}
	return unread, nil
}

func (s *stubMessageRepo) History(ctx context.Context, messageID string) ([]models.MessageHistory, error) {
	var entries []models.MessageHistory
	for _, entry := range s.history {
		if entry.MessageID == messageID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

type stubBroadcaster struct {
	sent []models.Notification
}

func (s *stubBroadcaster) Broadcast(ctx context.Context, notification models.Notification) {
	s.sent = append(s.sent, notification)
}

type stubActivityLog struct {
	entries []models.ActivityLog
}

func (s *stubActivityLog) Create(ctx context.Context, entry *models.ActivityLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubActivityLog) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	return s.entries, int64(len(s.entries)), nil
}

func newMessageService(messages *stubMessageRepo, users *stubUserRepo, activity *stubActivityLog, broadcaster *stubBroadcaster) MessageService {
	return NewMessageService(messages, users, activity, broadcaster,
		validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func TestMessageServiceSendCreatesNotificationAndBroadcasts(t *testing.T) {
	sender := models.User{ID: uuid.NewString(), Email: "alice@example.com"}
	receiver := models.User{ID: uuid.NewString(), Email: "bob@example.com"}
	messages := newStubMessageRepo()
	broadcaster := &stubBroadcaster{}
	svc := newMessageService(messages, newStubUserRepo(sender, receiver), &stubActivityLog{}, broadcaster)

	response, err := svc.Send(context.Background(), sender.ID, dto.MessageSendRequest{
		ReceiverID: receiver.ID,
		Body:       "<script>alert(1)</script>hello there",
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", response.Body)
	require.Equal(t, sender.ID, response.SenderID)

	require.Len(t, messages.notifications, 1)
	require.Equal(t, receiver.ID, messages.notifications[0].UserID)
	require.Equal(t, response.ID, messages.notifications[0].MessageID)

	require.Len(t, broadcaster.sent, 1)
	require.Equal(t, receiver.ID, broadcaster.sent[0].UserID)
}

func TestMessageServiceSendRejectsEmptyBodyAfterSanitization(t *testing.T) {
	sender := models.User{ID: uuid.NewString()}
	receiver := models.User{ID: uuid.NewString()}
	svc := newMessageService(newStubMessageRepo(), newStubUserRepo(sender, receiver), &stubActivityLog{}, &stubBroadcaster{})

	_, err := svc.Send(context.Background(), sender.ID, dto.MessageSendRequest{
		ReceiverID: receiver.ID,
		Body:       "<script>alert(1)</script>",
	})
	require.ErrorIs(t, err, ErrEmptyBody)
}

func TestMessageServiceSendUnknownReceiver(t *testing.T) {
	sender := models.User{ID: uuid.NewString()}
	svc := newMessageService(newStubMessageRepo(), newStubUserRepo(sender), &stubActivityLog{}, &stubBroadcaster{})

	_, err := svc.Send(context.Background(), sender.ID, dto.MessageSendRequest{
		ReceiverID: uuid.NewString(),
		Body:       "hello",
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMessageServiceEditNoOpLeavesHistoryEmpty(t *testing.T) {
	sender := models.User{ID: uuid.NewString()}
	receiver := models.User{ID: uuid.NewString()}
	messages := newStubMessageRepo()
	svc := newMessageService(messages, newStubUserRepo(sender, receiver), &stubActivityLog{}, &stubBroadcaster{})

	sent, err := svc.Send(context.Background(), sender.ID, dto.MessageSendRequest{ReceiverID: receiver.ID, Body: "original"})
	require.NoError(t, err)

	edited, err := svc.Edit(context.Background(), Actor{ID: sender.ID, Role: models.RoleGuest}, sent.ID, dto.MessageEditRequest{Body: "original"})
	require.NoError(t, err)
	require.False(t, edited.Edited)
	require.Nil(t, edited.LastEdited)
	require.Empty(t, messages.history)
}

func TestMessageServiceEditRecordsPriorBody(t *testing.T) {
	sender := models.User{ID: uuid.NewString()}
	receiver := models.User{ID: uuid.NewString()}
	messages := newStubMessageRepo()
	svc := newMessageService(messages, newStubUserRepo(sender, receiver), &stubActivityLog{}, &stubBroadcaster{})

	sent, err := svc.Send(context.Background(), sender.ID, dto.MessageSendRequest{ReceiverID: receiver.ID, Body: "original"})
	require.NoError(t, err)

	edited, err := svc.Edit(context.Background(), Actor{ID: sender.ID, Role: models.RoleGuest}, sent.ID, dto.MessageEditRequest{Body: "revised"})
	require.NoError(t, err)
	require.True(t, edited.Edited)
	require.NotNil(t, edited.LastEdited)
	require.Equal(t, "revised", edited.Body)

	history, err := svc.History(context.Background(), sender.ID, sent.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "original", history[0].PriorBody)
	require.Equal(t, sender.ID, history[0].EditedBy)
}

func TestMessageServiceEditByNonSenderForbidden(t *testing.T) {
	sender := models.User{ID: uuid.NewString()}
	receiver := models.User{ID: uuid.NewString()}
	svc := newMessageService(newStubMessageRepo(), newStubUserRepo(sender, receiver), &stubActivityLog{}, &stubBroadcaster{})

	sent, err := svc.Send(context.Background(), sender.ID, dto.MessageSendRequest{ReceiverID: receiver.ID, Body: "mine"})
	require.NoError(t, err)

	// Even the receiver may not edit, and neither may an admin.
	_, err = svc.Edit(context.Background(), Actor{ID: receiver.ID, Role: models.RoleGuest}, sent.ID, dto.MessageEditRequest{Body: "not yours"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Edit(context.Background(), Actor{ID: uuid.NewString(), Role: models.RoleAdmin}, sent.ID, dto.MessageEditRequest{Body: "not yours"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestMessageServiceDeleteByModeratorRecordsAudit(t *testing.T) {
	sender := models.User{ID: uuid.NewString()}
	receiver := models.User{ID: uuid.NewString()}
	messages := newStubMessageRepo()
	activity := &stubActivityLog{}
	svc := newMessageService(messages, newStubUserRepo(sender, receiver), activity, &stubBroadcaster{})

	sent, err := svc.Send(context.Background(), sender.ID, dto.MessageSendRequest{ReceiverID: receiver.ID, Body: "remove me"})
	require.NoError(t, err)

	moderator := Actor{ID: uuid.NewString(), Role: models.RoleModerator}
	require.NoError(t, svc.Delete(context.Background(), moderator, sent.ID))

	require.Len(t, activity.entries, 1)
	require.Equal(t, "message_deleted", activity.entries[0].Action)
	require.Equal(t, moderator.ID, activity.entries[0].ActorID)
	require.Equal(t, sent.ID, activity.entries[0].EntityID)
}

func TestMessageServiceDeleteByStrangerForbidden(t *testing.T) {
	sender := models.User{ID: uuid.NewString()}
	receiver := models.User{ID: uuid.NewString()}
	svc := newMessageService(newStubMessageRepo(), newStubUserRepo(sender, receiver), &stubActivityLog{}, &stubBroadcaster{})

	sent, err := svc.Send(context.Background(), sender.ID, dto.MessageSendRequest{ReceiverID: receiver.ID, Body: "keep"})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), Actor{ID: uuid.NewString(), Role: models.RoleGuest}, sent.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestMessageServiceThreadBuildsNestedTree(t *testing.T) {
	alice := models.User{ID: uuid.NewString()}
	bob := models.User{ID: uuid.NewString()}
	messages := newStubMessageRepo()
	svc := newMessageService(messages, newStubUserRepo(alice, bob), &stubActivityLog{}, &stubBroadcaster{})

	ctx := context.Background()
	root, err := svc.Send(ctx, alice.ID, dto.MessageSendRequest{ReceiverID: bob.ID, Body: "root"})
	require.NoError(t, err)
	replyA, err := svc.Send(ctx, bob.ID, dto.MessageSendRequest{ReceiverID: alice.ID, Body: "reply a", ParentID: &root.ID})
	require.NoError(t, err)
	replyB, err := svc.Send(ctx, alice.ID, dto.MessageSendRequest{ReceiverID: bob.ID, Body: "reply b", ParentID: &root.ID})
	require.NoError(t, err)
	nested, err := svc.Send(ctx, alice.ID, dto.MessageSendRequest{ReceiverID: bob.ID, Body: "nested", ParentID: &replyA.ID})
	require.NoError(t, err)

	thread, err := svc.Thread(ctx, alice.ID, root.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, thread.ID)
	require.Len(t, thread.Replies, 2)
	require.Equal(t, replyA.ID, thread.Replies[0].ID)
	require.Equal(t, replyB.ID, thread.Replies[1].ID)
	require.Len(t, thread.Replies[0].Replies, 1)
	require.Equal(t, nested.ID, thread.Replies[0].Replies[0].ID)
	require.Empty(t, thread.Replies[1].Replies)
}

func TestMessageServiceThreadHiddenFromOutsider(t *testing.T) {
	alice := models.User{ID: uuid.NewString()}
	bob := models.User{ID: uuid.NewString()}
	svc := newMessageService(newStubMessageRepo(), newStubUserRepo(alice, bob), &stubActivityLog{}, &stubBroadcaster{})

	root, err := svc.Send(context.Background(), alice.ID, dto.MessageSendRequest{ReceiverID: bob.ID, Body: "private"})
	require.NoError(t, err)

	_, err = svc.Thread(context.Background(), uuid.NewString(), root.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMessageServiceReplyToForeignThreadHidden(t *testing.T) {
	alice := models.User{ID: uuid.NewString()}
	bob := models.User{ID: uuid.NewString()}
	eve := models.User{ID: uuid.NewString()}
	svc := newMessageService(newStubMessageRepo(), newStubUserRepo(alice, bob, eve), &stubActivityLog{}, &stubBroadcaster{})

	root, err := svc.Send(context.Background(), alice.ID, dto.MessageSendRequest{ReceiverID: bob.ID, Body: "between us"})
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), eve.ID, dto.MessageSendRequest{ReceiverID: bob.ID, Body: "intrusion", ParentID: &root.ID})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMessageServiceInboxListsRootsNewestFirst(t *testing.T) {
	alice := models.User{ID: uuid.NewString()}
	bob := models.User{ID: uuid.NewString()}
	svc := newMessageService(newStubMessageRepo(), newStubUserRepo(alice, bob), &stubActivityLog{}, &stubBroadcaster{})

	ctx := context.Background()
	first, err := svc.Send(ctx, alice.ID, dto.MessageSendRequest{ReceiverID: bob.ID, Body: "first"})
	require.NoError(t, err)
	second, err := svc.Send(ctx, bob.ID, dto.MessageSendRequest{ReceiverID: alice.ID, Body: "second"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, bob.ID, dto.MessageSendRequest{ReceiverID: alice.ID, Body: "reply", ParentID: &first.ID})
	require.NoError(t, err)

	inbox, err := svc.Inbox(ctx, alice.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, inbox.Items, 2)
	require.Equal(t, second.ID, inbox.Items[0].ID)
	require.Equal(t, first.ID, inbox.Items[1].ID)
	require.Equal(t, int64(2), inbox.Pagination.TotalItems)
}
