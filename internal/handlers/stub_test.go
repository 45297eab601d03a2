package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	"github.com/pairchat/server/internal/middleware"
	"github.com/pairchat/server/internal/models"
	"github.com/pairchat/server/internal/store"
)

// stubStore implements store.Store with overridable func fields. Methods a
// test does not set fail loudly if reached.
type stubStore struct {
	createUser         func(ctx context.Context, username, email, passwordHash string, bio *string) (int64, error)
	getUserByID        func(ctx context.Context, id int64) (*models.User, error)
	getUserByUsername  func(ctx context.Context, username string) (*models.User, error)
	getUserByEmail     func(ctx context.Context, email string) (*models.User, error)
	userExists         func(ctx context.Context, username, email string) (bool, bool, error)
	updateUser         func(ctx context.Context, id int64, email, username string, bio *string, passwordHash string) error
	updatePasswordHash func(ctx context.Context, id int64, passwordHash string) error
	createChatCode     func(ctx context.Context, userID int64, code int) error
	deleteChatCode     func(ctx context.Context, userID int64, code int) error
	getChatCodeOwner   func(ctx context.Context, code int) (int64, error)
	createConversation func(ctx context.Context, userA, userB int64) (uuid.UUID, error)
	isParticipant      func(ctx context.Context, conversationID uuid.UUID, userID int64) (bool, error)
	appendMessage      func(ctx context.Context, conversationID uuid.UUID, userID int64, content string) error
	listMessages       func(ctx context.Context, conversationID uuid.UUID, cursor *time.Time, limit int) (*store.MessagePage, error)
	getMessageAuthor   func(ctx context.Context, conversationID, messageID uuid.UUID) (int64, error)
	updateMessage      func(ctx context.Context, messageID uuid.UUID, userID int64, content string) (time.Time, error)
	deleteMessage      func(ctx context.Context, messageID uuid.UUID, userID int64) error
}

func (s *stubStore) CreateUser(ctx context.Context, username, email, passwordHash string, bio *string) (int64, error) {
	return s.createUser(ctx, username, email, passwordHash, bio)
}

func (s *stubStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUserByID(ctx, id)
}

func (s *stubStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUserByUsername(ctx, username)
}

func (s *stubStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserByEmail(ctx, email)
}

func (s *stubStore) UserExists(ctx context.Context, username, email string) (bool, bool, error) {
	return s.userExists(ctx, username, email)
}

func (s *stubStore) UpdateUser(ctx context.Context, id int64, email, username string, bio *string, passwordHash string) error {
	return s.updateUser(ctx, id, email, username, bio, passwordHash)
}

func (s *stubStore) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	return s.updatePasswordHash(ctx, id, passwordHash)
}

func (s *stubStore) CreateChatCode(ctx context.Context, userID int64, code int) error {
	return s.createChatCode(ctx, userID, code)
}

func (s *stubStore) DeleteChatCode(ctx context.Context, userID int64, code int) error {
	return s.deleteChatCode(ctx, userID, code)
}

func (s *stubStore) GetChatCodeOwner(ctx context.Context, code int) (int64, error) {
	return s.getChatCodeOwner(ctx, code)
}

func (s *stubStore) CreateConversation(ctx context.Context, userA, userB int64) (uuid.UUID, error) {
	return s.createConversation(ctx, userA, userB)
}

func (s *stubStore) IsParticipant(ctx context.Context, conversationID uuid.UUID, userID int64) (bool, error) {
	return s.isParticipant(ctx, conversationID, userID)
}

func (s *stubStore) AppendMessage(ctx context.Context, conversationID uuid.UUID, userID int64, content string) error {
	return s.appendMessage(ctx, conversationID, userID, content)
}

func (s *stubStore) ListMessages(ctx context.Context, conversationID uuid.UUID, cursor *time.Time, limit int) (*store.MessagePage, error) {
	return s.listMessages(ctx, conversationID, cursor, limit)
}

func (s *stubStore) GetMessageAuthor(ctx context.Context, conversationID, messageID uuid.UUID) (int64, error) {
	return s.getMessageAuthor(ctx, conversationID, messageID)
}

func (s *stubStore) UpdateMessage(ctx context.Context, messageID uuid.UUID, userID int64, content string) (time.Time, error) {
	return s.updateMessage(ctx, messageID, userID, content)
}

func (s *stubStore) DeleteMessage(ctx context.Context, messageID uuid.UUID, userID int64) error {
	return s.deleteMessage(ctx, messageID, userID)
}

// asUser runs a handler with the given user id already in the request context,
// the way the auth middleware would leave it.
func asUser(userID int64, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r.WithContext(middleware.WithUserID(r.Context(), userID)))
	}
}

func doRequest(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}
