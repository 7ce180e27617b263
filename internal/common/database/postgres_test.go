package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresFromDB(db).DB, mock
}

func touch(tx *sqlx.Tx) error {
	_, err := tx.Exec("UPDATE owner_notifications SET is_read = TRUE")
	return err
}

// ==========================
// WithTx
// ==========================

func TestWithTx_Commit(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE owner_notifications").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, TxOptions{Isolation: sql.LevelReadCommitted}, touch)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE owner_notifications").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := WithTx(context.Background(), db, TxOptions{MaxRetries: 3}, touch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RetriesSerializationFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE owner_notifications").WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE owner_notifications").WillReturnError(&pq.Error{Code: "40P01"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE owner_notifications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var attempts []int
	err := WithTx(context.Background(), db, TxOptions{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		OnRetry:    func(attempt int, _ error) { attempts = append(attempts, attempt) },
	}, touch)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_GivesUpAfterMaxRetries(t *testing.T) {
	db, mock := newMockDB(t)

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE owner_notifications").WillReturnError(&pq.Error{Code: "40001"})
		mock.ExpectRollback()
	}

	err := WithTx(context.Background(), db, TxOptions{MaxRetries: 1, BaseDelay: time.Millisecond}, touch)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := WithTx(context.Background(), db, TxOptions{}, touch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}

// ==========================
// Helpers
// ==========================

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsolationFromString(t *testing.T) {
	assert.Equal(t, sql.LevelSerializable, IsolationFromString("serializable"))
	assert.Equal(t, sql.LevelReadCommitted, IsolationFromString("read_committed"))
	assert.Equal(t, sql.LevelReadCommitted, IsolationFromString(""))
}
