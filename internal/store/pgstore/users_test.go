package pgstore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pairchat/server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+users\s*\(username,\s*email,\s*password_hash,\s*bio\).*RETURNING\s+id`).
		WithArgs("alice", "alice@example.com", "hash", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := s.CreateUser(context.Background(), "alice", "alice@example.com", "hash", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestCreateUserDuplicate(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("alice", "alice@example.com", "hash", nil).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.CreateUser(context.Background(), "alice", "alice@example.com", "hash", nil)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+.*\s+FROM\s+users\s+WHERE\s+username`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetUserByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserExists(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"username_taken", "email_taken"}).AddRow(true, false))

	usernameTaken, emailTaken, err := s.UserExists(context.Background(), "alice", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, usernameTaken)
	assert.False(t, emailTaken)
}

func TestUpdatePasswordHashUnknownUser(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+password_hash`).
		WithArgs("newhash", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdatePasswordHash(context.Background(), 99, "newhash")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
