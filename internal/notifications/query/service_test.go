package query

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/notifications/countcache"
	"notification-workers/internal/notifications/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ownerCols = []string{"id", "message", "type", "resource", "resource_id", "owner_email", "is_read", "is_email_sent", "is_bulk", "count", "first_created_at", "created_at"}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func newService(t *testing.T, cache *countcache.Cache) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewService(sqlx.NewDb(sqlDB, "postgres"), cache, 100, logger.NewTestLogger(t)), mock
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

// ==========================
// FindOwnerNotifications
// ==========================

func TestFindOwner_TotalIgnoresPagination(t *testing.T) {
	svc, mock := newService(t, nil)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM owner_notifications WHERE lower(owner_email) = lower($1)")).
		WithArgs("a@x.com").
		WillReturnRows(countRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3")).
		WithArgs("a@x.com", 2, 2).
		WillReturnRows(sqlmock.NewRows(ownerCols).
			AddRow(int64(3), "m3", "comment", "graph", "g1", "a@x.com", false, false, false, nil, nil, now).
			AddRow(int64(4), "m4", "comment", "graph", "g1", "a@x.com", false, false, false, nil, nil, now))
	mock.ExpectCommit()

	total, page, err := svc.FindOwnerNotifications(context.Background(), OwnerFilter{
		OwnerEmail: strPtr("a@x.com"), Limit: intPtr(2), Offset: intPtr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOwner_LimitWithoutOffsetIsUnpaginated(t *testing.T) {
	svc, mock := newService(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM owner_notifications`).WillReturnRows(countRow(3))
	mock.ExpectQuery(`SELECT .* FROM owner_notifications WHERE lower\(owner_email\) = lower\(\$1\) AND is_read IS FALSE ORDER BY created_at ASC, id ASC$`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(ownerCols))
	mock.ExpectCommit()

	total, page, err := svc.FindOwnerNotifications(context.Background(), OwnerFilter{
		OwnerEmail: strPtr("a@x.com"), IsRead: boolPtr(false), Limit: intPtr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NotNil(t, page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOwner_NilOwnerMatchesAll(t *testing.T) {
	svc, mock := newService(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM owner_notifications$`).WillReturnRows(countRow(0))
	mock.ExpectQuery(`SELECT .* FROM owner_notifications ORDER BY id DESC$`).WillReturnRows(sqlmock.NewRows(ownerCols))
	mock.ExpectCommit()

	_, _, err := svc.FindOwnerNotifications(context.Background(), OwnerFilter{
		OrderBy: []store.Order{{Column: "id", Desc: true}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOwner_UnknownOrderColumn(t *testing.T) {
	svc, mock := newService(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).WillReturnRows(countRow(1))
	mock.ExpectRollback()

	_, _, err := svc.FindOwnerNotifications(context.Background(), OwnerFilter{
		OrderBy: []store.Order{{Column: "message"}},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOwner_PageBounds(t *testing.T) {
	svc, _ := newService(t, nil)

	_, _, err := svc.FindOwnerNotifications(context.Background(), OwnerFilter{Limit: intPtr(101), Offset: intPtr(0)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, _, err = svc.FindOwnerNotifications(context.Background(), OwnerFilter{Limit: intPtr(1), Offset: intPtr(-1)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFindOwner_StoreUnavailable(t *testing.T) {
	svc, mock := newService(t, nil)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, _, err := svc.FindOwnerNotifications(context.Background(), OwnerFilter{})
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

// ==========================
// FindGroupNotifications
// ==========================

func TestFindGroup_FiltersByGroup(t *testing.T) {
	svc, mock := newService(t, nil)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM group_notifications WHERE lower(member_email) = lower($1) AND group_id = $2")).
		WithArgs("a@x.com", "grp-1").
		WillReturnRows(countRow(1))
	mock.ExpectQuery(`SELECT .* FROM group_notifications WHERE`).
		WithArgs("a@x.com", "grp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "message", "type", "resource", "resource_id", "group_id", "member_email", "owner_email", "is_read", "is_email_sent", "created_at"}).
			AddRow(int64(1), "m", "share", "graph", "g1", "grp-1", "a@x.com", nil, false, false, now))
	mock.ExpectCommit()

	total, page, err := svc.FindGroupNotifications(context.Background(), GroupFilter{
		MemberEmail: strPtr("a@x.com"), GroupID: strPtr("grp-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Nil(t, page[0].OwnerEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Counts
// ==========================

func TestGetNotificationCount_MissThenStore(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	cache := countcache.New(rdb, time.Minute, logger.NewTestLogger(t))
	svc, mock := newService(t, cache)

	redisMock.ExpectGet("notif:count:a@x.com:unread").RedisNil()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM owner_notifications WHERE lower\(owner_email\) = lower\(\$1\) AND is_read IS FALSE`).
		WithArgs("a@x.com").
		WillReturnRows(countRow(2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM group_notifications WHERE lower\(member_email\) = lower\(\$1\) AND is_read IS FALSE`).
		WithArgs("a@x.com").
		WillReturnRows(countRow(3))
	mock.ExpectCommit()
	redisMock.ExpectSet("notif:count:a@x.com:unread", 5, time.Minute).SetVal("OK")

	n, err := svc.GetNotificationCount(context.Background(), "a@x.com", boolPtr(false))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestGetNotificationCount_CacheHit(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	cache := countcache.New(rdb, time.Minute, logger.NewTestLogger(t))
	svc, mock := newService(t, cache)

	redisMock.ExpectGet("notif:count:a@x.com:all").SetVal("9")

	n, err := svc.GetNotificationCount(context.Background(), "a@x.com", nil)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotificationCount_NoCache(t *testing.T) {
	svc, mock := newService(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM owner_notifications WHERE lower\(owner_email\) = lower\(\$1\)$`).WillReturnRows(countRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM group_notifications WHERE lower\(member_email\) = lower\(\$1\)$`).WillReturnRows(countRow(0))
	mock.ExpectCommit()

	n, err := svc.GetNotificationCount(context.Background(), "a@x.com", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetNotificationCountPerGroup(t *testing.T) {
	svc, mock := newService(t, nil)

	mock.ExpectQuery(`FROM group_members .* LEFT JOIN group_notifications gn .* AND gn.is_read IS FALSE GROUP BY g.group_id ORDER BY count DESC`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "count"}).AddRow("grp-2", 4).AddRow("grp-1", 1).AddRow("grp-3", 0))

	counts, total, err := svc.GetNotificationCountPerGroup(context.Background(), "a@x.com", boolPtr(false))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []models.GroupCount{{GroupID: "grp-2", Count: 4}, {GroupID: "grp-1", Count: 1}, {GroupID: "grp-3", Count: 0}}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("created_at", "")
	require.NoError(t, err)
	assert.Equal(t, store.Order{Column: "created_at"}, o)

	o, err = ParseOrder("id", "DESC")
	require.NoError(t, err)
	assert.True(t, o.Desc)

	_, err = ParseOrder("id", "sideways")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
