// Package store defines the persistence contract the handlers and the relay
// depend on. The only implementation lives in pgstore; tests substitute stubs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pairchat/server/internal/models"
)

// Sentinel errors implementations translate driver failures into. Anything
// else coming out of a Store method is an infrastructure fault.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("already exists")
	ErrQuotaExceeded = errors.New("pairing code quota exceeded")
	ErrEmptyContent  = errors.New("message content is empty")
)

// Pagination bounds for message history.
const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)

// MessagePage is one page of history, newest first. NextCursor is the sent_at
// of the oldest returned row, formatted RFC3339 with nanoseconds; feeding it
// back pages strictly backward with no overlap.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

type Store interface {
	// User operations
	CreateUser(ctx context.Context, username, email, passwordHash string, bio *string) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	UpdateUser(ctx context.Context, id int64, email, username string, bio *string, passwordHash string) error
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error

	// Pairing code operations
	CreateChatCode(ctx context.Context, userID int64, code int) error
	DeleteChatCode(ctx context.Context, userID int64, code int) error
	GetChatCodeOwner(ctx context.Context, code int) (int64, error)

	// Conversation operations
	CreateConversation(ctx context.Context, userA, userB int64) (uuid.UUID, error)
	IsParticipant(ctx context.Context, conversationID uuid.UUID, userID int64) (bool, error)

	// Message operations
	AppendMessage(ctx context.Context, conversationID uuid.UUID, userID int64, content string) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, cursor *time.Time, limit int) (*MessagePage, error)
	GetMessageAuthor(ctx context.Context, conversationID, messageID uuid.UUID) (int64, error)
	UpdateMessage(ctx context.Context, messageID uuid.UUID, userID int64, content string) (time.Time, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID, userID int64) error
}
