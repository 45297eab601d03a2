package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pairchat/server/internal/models"
	"github.com/pairchat/server/internal/store"
)

func (s *PGStore) CreateUser(ctx context.Context, username, email, passwordHash string, bio *string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO users (username, email, password_hash, bio)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, username, email, passwordHash, bio).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicate
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

const userColumns = "id, username, email, password_hash, bio, created_at, updated_at"

func (s *PGStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Bio, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (s *PGStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := "SELECT " + userColumns + " FROM users WHERE id = $1"
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *PGStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := "SELECT " + userColumns + " FROM users WHERE username = $1"
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *PGStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := "SELECT " + userColumns + " FROM users WHERE email = $1"
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *PGStore) UserExists(ctx context.Context, username, email string) (bool, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT
			EXISTS(SELECT 1 FROM users WHERE username = $1),
			EXISTS(SELECT 1 FROM users WHERE email = $2)`

	var usernameTaken, emailTaken bool
	err := s.db.QueryRowContext(ctx, query, username, email).Scan(&usernameTaken, &emailTaken)
	if err != nil {
		return false, false, fmt.Errorf("db error: %w", err)
	}
	return usernameTaken, emailTaken, nil
}

func (s *PGStore) UpdateUser(ctx context.Context, id int64, email, username string, bio *string, passwordHash string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE users
		SET email = $1, username = $2, bio = $3, password_hash = $4, updated_at = now()
		WHERE id = $5`

	res, err := s.db.ExecContext(ctx, query, email, username, bio, passwordHash, id)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := "UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2"

	res, err := s.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
