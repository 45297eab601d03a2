package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pairchat/server/internal/models"
	"github.com/pairchat/server/internal/store"
)

// AppendMessage persists one message. The messages_notify trigger publishes
// the payload on the conversation channel when the insert commits.
func (s *PGStore) AppendMessage(ctx context.Context, conversationID uuid.UUID, userID int64, content string) error {
	if strings.TrimSpace(content) == "" {
		return store.ErrEmptyContent
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO messages (conversation_id, user_sent_id, content)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, conversationID, userID, content); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListMessages returns one history page, newest first. The cursor is an
// exclusive upper bound on sent_at: strictly older rows only, so the boundary
// row is never redelivered. One extra row is fetched to decide has_more.
func (s *PGStore) ListMessages(ctx context.Context, conversationID uuid.UUID, cursor *time.Time, limit int) (*store.MessagePage, error) {
	if limit < 1 {
		limit = 1
	} else if limit > store.MaxMessageLimit {
		limit = store.MaxMessageLimit
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT m.id, m.user_sent_id, u.username, m.content, m.sent_at, m.edited_at
		FROM messages m
		JOIN users u ON m.user_sent_id = u.id
		WHERE m.conversation_id = $1
		  AND ($2::TIMESTAMPTZ IS NULL OR m.sent_at < $2::TIMESTAMPTZ)
		ORDER BY m.sent_at DESC
		LIMIT $3`

	var cursorArg any
	if cursor != nil {
		cursorArg = *cursor
	}

	rows, err := s.db.QueryContext(ctx, query, conversationID, cursorArg, limit+1)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	// Non-nil so an empty page serializes as [] rather than null.
	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		var m models.Message
		var editedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.UserSentID, &m.Username, &m.Content, &m.SentAt, &editedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if editedAt.Valid {
			t := editedAt.Time
			m.EditedAt = &t
		}
		m.ConversationID = conversationID
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	page := &store.MessagePage{}
	if len(messages) > limit {
		messages = messages[:limit]
		page.HasMore = true
	}
	page.Messages = messages
	if len(messages) > 0 {
		page.NextCursor = messages[len(messages)-1].SentAt.Format(time.RFC3339Nano)
	}
	return page, nil
}

func (s *PGStore) GetMessageAuthor(ctx context.Context, conversationID, messageID uuid.UUID) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT user_sent_id FROM messages
		WHERE id = $1 AND conversation_id = $2`

	var authorID int64
	err := s.db.QueryRowContext(ctx, query, messageID, conversationID).Scan(&authorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return authorID, nil
}

// UpdateMessage edits content in place. sent_at is untouched so history
// ordering is stable under edits; only edited_at moves.
func (s *PGStore) UpdateMessage(ctx context.Context, messageID uuid.UUID, userID int64, content string) (time.Time, error) {
	if strings.TrimSpace(content) == "" {
		return time.Time{}, store.ErrEmptyContent
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE messages
		SET content = $1, edited_at = now()
		WHERE id = $2 AND user_sent_id = $3
		RETURNING edited_at`

	var editedAt time.Time
	err := s.db.QueryRowContext(ctx, query, content, messageID, userID).Scan(&editedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, store.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return editedAt, nil
}

func (s *PGStore) DeleteMessage(ctx context.Context, messageID uuid.UUID, userID int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := "DELETE FROM messages WHERE id = $1 AND user_sent_id = $2"

	res, err := s.db.ExecContext(ctx, query, messageID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
