// internal/workers/notifications/query-notifications/handler_test.go
package querynotifications

import (
	"context"
	"regexp"
	"testing"
	"time"

	"notification-workers/internal/common/database"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/notifications/query"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var groupCols = []string{"id", "message", "type", "resource", "resource_id", "group_id", "member_email", "owner_email", "is_read", "is_email_sent", "created_at"}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	svc := query.NewService(database.NewPostgresFromDB(db).DB, nil, 50, log)
	return NewHandler(LoadConfig(), svc, nil, nil, log), mock
}

func TestHandler_Execute_FindGroupWithOrderAndPage(t *testing.T) {
	h, mock := newTestHandler(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM group_notifications WHERE lower(member_email) = lower($1) AND group_id = $2")).
		WithArgs("m@example.com", "g1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id DESC LIMIT $3 OFFSET $4")).
		WithArgs("m@example.com", "g1", 1, 0).
		WillReturnRows(sqlmock.NewRows(groupCols).
			AddRow(int64(12), "m", "share", "file", "f-1", "g1", "m@example.com", nil, false, false, now))
	mock.ExpectCommit()

	out, err := h.Execute(context.Background(), &Input{
		Operation: OperationFindGroup,
		Email:     strPtr("m@example.com"),
		GroupID:   strPtr("g1"),
		Limit:     intPtr(1),
		Offset:    intPtr(0),
		OrderBy:   []OrderBy{{Column: "id", Direction: "desc"}},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)
	require.Len(t, out.GroupNotifications, 1)
	assert.Equal(t, int64(12), out.GroupNotifications[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CountSumsOwnerAndGroup(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM owner_notifications")).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM group_notifications")).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectCommit()

	out, err := h.Execute(context.Background(), &Input{Operation: OperationCount, Email: strPtr("a@example.com"), IsRead: boolPtr(false)})

	require.NoError(t, err)
	assert.Equal(t, 7, out.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CountPerGroup(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY g.group_id")).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "count"}).AddRow("g2", 4).AddRow("g1", 1))

	out, err := h.Execute(context.Background(), &Input{Operation: OperationCountPerGroup, Email: strPtr("a@example.com")})

	require.NoError(t, err)
	assert.Equal(t, 5, out.Total)
	assert.Equal(t, "g2", out.Counts[0].GroupID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CountRequiresEmail(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{Operation: OperationCount})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestHandler_Execute_BadDirection(t *testing.T) {
	h, mock := newTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{
		Operation: OperationFindOwner,
		OrderBy:   []OrderBy{{Column: "id", Direction: "sideways"}},
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UnknownOperation(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{Operation: "purge"})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
