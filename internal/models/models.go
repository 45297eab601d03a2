package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Bio          *string   `json:"bio,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatCode is a single-use pairing code. It exists only between issuance and
// redemption (or explicit deletion); a user holds at most five at a time.
type ChatCode struct {
	Code   int   `json:"code"`
	UserID int64 `json:"-"`
}

type Conversation struct {
	ID      uuid.UUID `json:"id"`
	UserID1 int64     `json:"user_id_1"`
	UserID2 int64     `json:"user_id_2"`
}

type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	UserSentID     int64      `json:"user_sent_id"`
	Username       string     `json:"user_sent,omitempty"`
	Content        string     `json:"content"`
	SentAt         time.Time  `json:"sent_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
}
