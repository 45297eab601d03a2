package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/pairchat/server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithMock(t *testing.T) (*PGStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return New(db), mock, db
}

const listQuery = `(?s)SELECT\s+m\.id,\s*m\.user_sent_id,\s*u\.username,\s*m\.content,\s*m\.sent_at,\s*m\.edited_at.*FROM\s+messages\s+m.*m\.sent_at\s*<\s*\$2.*ORDER\s+BY\s+m\.sent_at\s+DESC.*LIMIT\s+\$3`

func messageRows(times ...time.Time) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_sent_id", "username", "content", "sent_at", "edited_at"})
	for i, ts := range times {
		rows.AddRow(uuid.New(), int64(i+1), "user", "hello", ts, nil)
	}
	return rows
}

func TestListMessagesFirstPage(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	convID := uuid.New()
	now := time.Now().UTC()
	older := now.Add(-time.Minute)

	mock.ExpectQuery(listQuery).
		WithArgs(convID, nil, 51).
		WillReturnRows(messageRows(now, older))

	page, err := s.ListMessages(context.Background(), convID, nil, store.DefaultMessageLimit)
	require.NoError(t, err)

	assert.Len(t, page.Messages, 2)
	assert.False(t, page.HasMore)
	assert.Equal(t, older.Format(time.RFC3339Nano), page.NextCursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesTruncatesAndSetsHasMore(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	convID := uuid.New()
	t0 := time.Now().UTC()
	t1 := t0.Add(-time.Second)
	t2 := t0.Add(-2 * time.Second)

	// limit 2, three rows back: page is truncated and has_more is set.
	mock.ExpectQuery(listQuery).
		WithArgs(convID, nil, 3).
		WillReturnRows(messageRows(t0, t1, t2))

	page, err := s.ListMessages(context.Background(), convID, nil, 2)
	require.NoError(t, err)

	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, t1.Format(time.RFC3339Nano), page.NextCursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesPassesCursor(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	convID := uuid.New()
	cursor := time.Now().UTC().Add(-time.Hour)

	mock.ExpectQuery(listQuery).
		WithArgs(convID, cursor, 51).
		WillReturnRows(messageRows())

	page, err := s.ListMessages(context.Background(), convID, &cursor, store.DefaultMessageLimit)
	require.NoError(t, err)

	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesClampsLimit(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	convID := uuid.New()

	// limit 1000 clamps to 100, so the statement fetches 101.
	mock.ExpectQuery(listQuery).
		WithArgs(convID, nil, 101).
		WillReturnRows(messageRows())
	_, err := s.ListMessages(context.Background(), convID, nil, 1000)
	require.NoError(t, err)

	// limit 0 clamps to 1, fetching 2.
	mock.ExpectQuery(listQuery).
		WithArgs(convID, nil, 2).
		WillReturnRows(messageRows())
	_, err = s.ListMessages(context.Background(), convID, nil, 0)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesEmptyPageIsArray(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	convID := uuid.New()
	mock.ExpectQuery(listQuery).
		WithArgs(convID, nil, 51).
		WillReturnRows(messageRows())

	page, err := s.ListMessages(context.Background(), convID, nil, store.DefaultMessageLimit)
	require.NoError(t, err)

	require.NotNil(t, page.Messages)
	body, err := json.Marshal(page)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"messages":[]`)
}

func TestStoreOperationTimesOut(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()
	s.timeout = 50 * time.Millisecond

	// A starved pool parks the caller until its context ends; the per-operation
	// deadline must cut that wait short.
	mock.ExpectQuery(`SELECT\s+user_sent_id\s+FROM\s+messages`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillDelayFor(10 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"user_sent_id"}).AddRow(int64(1)))

	start := time.Now()
	_, err := s.GetMessageAuthor(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAppendMessageRejectsEmptyContent(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	err := s.AppendMessage(context.Background(), uuid.New(), 1, "   \t\n")
	assert.ErrorIs(t, err, store.ErrEmptyContent)

	// Nothing may reach the database for rejected content.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendMessageInserts(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	convID := uuid.New()
	mock.ExpectExec(`INSERT\s+INTO\s+messages\s*\(conversation_id,\s*user_sent_id,\s*content\)`).
		WithArgs(convID, int64(7), "hi").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.AppendMessage(context.Background(), convID, 7, "hi")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMessageNotFound(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	msgID := uuid.New()
	mock.ExpectQuery(`UPDATE\s+messages\s+SET\s+content`).
		WithArgs("new", msgID, int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.UpdateMessage(context.Background(), msgID, 7, "new")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateMessageReturnsEditedAt(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	msgID := uuid.New()
	edited := time.Now().UTC()
	mock.ExpectQuery(`UPDATE\s+messages\s+SET\s+content`).
		WithArgs("new", msgID, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"edited_at"}).AddRow(edited))

	editedAt, err := s.UpdateMessage(context.Background(), msgID, 7, "new")
	require.NoError(t, err)
	assert.Equal(t, edited, editedAt)
}

func TestDeleteMessageNotOwned(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	msgID := uuid.New()
	mock.ExpectExec(`DELETE\s+FROM\s+messages`).
		WithArgs(msgID, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteMessage(context.Background(), msgID, 7)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetMessageAuthorDBError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	convID, msgID := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT\s+user_sent_id\s+FROM\s+messages`).
		WithArgs(msgID, convID).
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetMessageAuthor(context.Background(), convID, msgID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}
