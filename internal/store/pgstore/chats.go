package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pairchat/server/internal/store"
)

// ChatCodeQuota is the maximum number of outstanding pairing codes per user.
const ChatCodeQuota = 5

// CreateChatCode inserts a pairing code only while the owner is under quota.
// The count and the insert are one statement so concurrent issuance cannot
// overshoot the quota.
func (s *PGStore) CreateChatCode(ctx context.Context, userID int64, code int) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO chat_codes (code, user_id)
		SELECT $1, $2
		WHERE (SELECT COUNT(*) FROM chat_codes WHERE user_id = $2) < $3`

	res, err := s.db.ExecContext(ctx, query, code, userID, ChatCodeQuota)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrQuotaExceeded
	}
	return nil
}

func (s *PGStore) DeleteChatCode(ctx context.Context, userID int64, code int) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := "DELETE FROM chat_codes WHERE code = $1 AND user_id = $2"

	res, err := s.db.ExecContext(ctx, query, code, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PGStore) GetChatCodeOwner(ctx context.Context, code int) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := "SELECT user_id FROM chat_codes WHERE code = $1"

	var ownerID int64
	err := s.db.QueryRowContext(ctx, query, code).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return ownerID, nil
}

// CreateConversation creates the canonical (smaller id first) conversation for
// the pair, or reports ErrDuplicate when one already exists. Insert-if-absent
// is a single statement so two concurrent redemptions cannot both succeed.
func (s *PGStore) CreateConversation(ctx context.Context, userA, userB int64) (uuid.UUID, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO conversations (user_id_1, user_id_2)
		VALUES (LEAST($1::BIGINT, $2::BIGINT), GREATEST($1::BIGINT, $2::BIGINT))
		ON CONFLICT (user_id_1, user_id_2) DO NOTHING
		RETURNING id`

	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, query, userA, userB).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, store.ErrDuplicate
		}
		return uuid.Nil, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (s *PGStore) IsParticipant(ctx context.Context, conversationID uuid.UUID, userID int64) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT EXISTS(
			SELECT 1 FROM conversations
			WHERE id = $1 AND (user_id_1 = $2 OR user_id_2 = $2)
		)`

	var isParticipant bool
	err := s.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&isParticipant)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return isParticipant, nil
}
