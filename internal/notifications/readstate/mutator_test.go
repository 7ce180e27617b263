package readstate

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"notification-workers/internal/common/database"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/notifications/countcache"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ownerCols = []string{"id", "message", "type", "resource", "resource_id", "owner_email", "is_read", "is_email_sent", "is_bulk", "count", "first_created_at", "created_at"}

func newMutator(t *testing.T, cache countcache.Invalidator) (*Mutator, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewMutator(sqlx.NewDb(sqlDB, "postgres"), database.TxOptions{}, cache, logger.NewTestLogger(t)), mock
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func int64Ptr(v int64) *int64 { return &v }

// ==========================
// Owner scope
// ==========================

func TestMarkOwner_CountsBeforeUpdate(t *testing.T) {
	mu, mock := newMutator(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM owner_notifications WHERE lower(owner_email) = lower($1) AND is_read IS FALSE")).
		WithArgs("a@x.com").
		WillReturnRows(countRow(3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE owner_notifications SET is_read = $1 WHERE lower(owner_email) = lower($2) AND is_read IS FALSE")).
		WithArgs(true, "a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, rec, err := mu.MarkOwnerNotificationsRead(context.Background(), "a@x.com", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOwner_SecondCallMarksNothing(t *testing.T) {
	mu, mock := newMutator(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM owner_notifications`).WillReturnRows(countRow(0))
	mock.ExpectCommit()

	n, _, err := mu.MarkOwnerNotificationsRead(context.Background(), "a@x.com", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOwner_FetchesRecordWithoutNarrowingUpdate(t *testing.T) {
	mu, mock := newMutator(t, nil)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM owner_notifications WHERE lower(owner_email) = lower($1) AND id = $2 LIMIT 1")).
		WithArgs("a@x.com", int64(7)).
		WillReturnRows(sqlmock.NewRows(ownerCols).
			AddRow(int64(7), "m", "comment", "graph", "g1", "a@x.com", true, false, false, nil, nil, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM owner_notifications`).WithArgs("a@x.com").WillReturnRows(countRow(2))
	mock.ExpectExec(`UPDATE owner_notifications SET is_read = \$1 WHERE lower\(owner_email\) = lower\(\$2\) AND is_read IS FALSE$`).
		WithArgs(true, "a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, rec, err := mu.MarkOwnerNotificationsRead(context.Background(), "a@x.com", int64Ptr(7))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NotNil(t, rec)
	assert.Equal(t, int64(7), rec.ID)
	assert.True(t, rec.IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOwner_ForeignIDIsNilRecord(t *testing.T) {
	mu, mock := newMutator(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`LIMIT 1`).WithArgs("a@x.com", int64(99)).WillReturnRows(sqlmock.NewRows(ownerCols))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnRows(countRow(0))
	mock.ExpectCommit()

	n, rec, err := mu.MarkOwnerNotificationsRead(context.Background(), "a@x.com", int64Ptr(99))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, rec)
}

func TestMarkOwner_StoreFailure(t *testing.T) {
	mu, mock := newMutator(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnError(errors.New("broken pipe"))
	mock.ExpectRollback()

	_, _, err := mu.MarkOwnerNotificationsRead(context.Background(), "a@x.com", nil)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOwner_InvalidatesCache(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	mu, mock := newMutator(t, countcache.New(rdb, time.Minute, logger.NewTestLogger(t)))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnRows(countRow(1))
	mock.ExpectExec(`UPDATE owner_notifications`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	redisMock.ExpectDel("notif:count:a@x.com:read", "notif:count:a@x.com:unread", "notif:count:a@x.com:all").SetVal(3)

	_, _, err := mu.MarkOwnerNotificationsRead(context.Background(), "A@x.com", nil)
	require.NoError(t, err)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

// ==========================
// Group scope
// ==========================

func TestMarkGroup_NarrowedByGroup(t *testing.T) {
	mu, mock := newMutator(t, nil)
	groupID := "grp-1"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM group_notifications WHERE lower(member_email) = lower($1) AND group_id = $2 AND is_read IS FALSE")).
		WithArgs("a@x.com", "grp-1").
		WillReturnRows(countRow(4))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_notifications SET is_read = $1 WHERE lower(member_email) = lower($2) AND group_id = $3 AND is_read IS FALSE")).
		WithArgs(true, "a@x.com", "grp-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	n, rec, err := mu.MarkGroupNotificationsRead(context.Background(), "a@x.com", &groupID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkGroup_AllGroups(t *testing.T) {
	mu, mock := newMutator(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM group_notifications WHERE lower(member_email) = lower($1) AND is_read IS FALSE")).
		WithArgs("a@x.com").
		WillReturnRows(countRow(0))
	mock.ExpectCommit()

	n, _, err := mu.MarkGroupNotificationsRead(context.Background(), "a@x.com", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMark_MissingEmail(t *testing.T) {
	mu, _ := newMutator(t, nil)

	_, _, err := mu.MarkOwnerNotificationsRead(context.Background(), "", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, _, err = mu.MarkGroupNotificationsRead(context.Background(), " ", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
