package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notification-workers/internal/models"

	"github.com/jmoiron/sqlx"
)

const groupColumns = `id, message, type, resource, resource_id, group_id, member_email, owner_email, is_read, is_email_sent, created_at`

// BulkInsertGroup inserts rows with a single multi-row statement and sets
// each row's ID. An empty slice is a no-op.
func BulkInsertGroup(ctx context.Context, q Querier, rows []models.GroupNotification) error {
	if len(rows) == 0 {
		return nil
	}

	const named = `
		INSERT INTO group_notifications (
			message, type, resource, resource_id, group_id, member_email,
			owner_email, is_read, is_email_sent, created_at
		) VALUES (
			:message, :type, :resource, :resource_id, :group_id, :member_email,
			:owner_email, :is_read, :is_email_sent, :created_at
		) RETURNING id`

	query, args, err := sqlx.Named(named, rows)
	if err != nil {
		return fmt.Errorf("binding group notifications: %w", err)
	}

	var ids []int64
	if err := sqlx.SelectContext(ctx, q, &ids, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("inserting group notifications: %w", err)
	}
	if len(ids) != len(rows) {
		return fmt.Errorf("inserting group notifications: got %d ids for %d rows", len(ids), len(rows))
	}
	for i := range rows {
		rows[i].ID = ids[i]
	}
	return nil
}

// SelectGroup returns the rows matching f.
func SelectGroup(ctx context.Context, q Querier, f Filter, order []Order, limit, offset *int) ([]models.GroupNotification, error) {
	where, args := f.where(1)
	orderClause, err := orderBy(order)
	if err != nil {
		return nil, err
	}
	pageClause, pageArgs := page(limit, offset, len(args)+1)

	query := "SELECT " + groupColumns + " FROM group_notifications" + where + orderClause + pageClause

	rows := []models.GroupNotification{}
	if err := sqlx.SelectContext(ctx, q, &rows, query, append(args, pageArgs...)...); err != nil {
		return nil, fmt.Errorf("selecting group notifications: %w", err)
	}
	return rows, nil
}

// GetGroup returns the single row matching f, or nil when there is none.
func GetGroup(ctx context.Context, q Querier, f Filter) (*models.GroupNotification, error) {
	where, args := f.where(1)
	query := "SELECT " + groupColumns + " FROM group_notifications" + where + " LIMIT 1"

	var n models.GroupNotification
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching group notification: %w", err)
	}
	return &n, nil
}

// CountGroup counts the rows matching f.
func CountGroup(ctx context.Context, q Querier, f Filter) (int, error) {
	where, args := f.where(1)

	var total int
	if err := sqlx.GetContext(ctx, q, &total, "SELECT COUNT(*) FROM group_notifications"+where, args...); err != nil {
		return 0, fmt.Errorf("counting group notifications: %w", err)
	}
	return total, nil
}

// CountGroupsForMember counts the member's rows per group, largest first.
// Every group the member belongs to is listed, with a zero count when nothing
// matches, as is any group still holding rows addressed to the member. A
// non-nil isRead restricts the count to that read state.
func CountGroupsForMember(ctx context.Context, q Querier, memberEmail string, isRead *bool) ([]models.GroupCount, error) {
	readCond := ""
	if isRead != nil {
		readCond = " AND gn.is_read IS FALSE"
		if *isRead {
			readCond = " AND gn.is_read IS TRUE"
		}
	}

	query := `SELECT g.group_id, COUNT(gn.id) AS count FROM (` +
		`SELECT group_id FROM group_members WHERE lower(member_email) = lower($1) ` +
		`UNION SELECT group_id FROM group_notifications WHERE lower(member_email) = lower($1)` +
		`) g LEFT JOIN group_notifications gn ON gn.group_id = g.group_id AND lower(gn.member_email) = lower($1)` +
		readCond +
		` GROUP BY g.group_id ORDER BY count DESC, g.group_id ASC`

	counts := []models.GroupCount{}
	if err := sqlx.SelectContext(ctx, q, &counts, query, memberEmail); err != nil {
		return nil, fmt.Errorf("counting group notifications per group: %w", err)
	}
	return counts, nil
}

// UpdateGroup applies changes to the rows matching f.
func UpdateGroup(ctx context.Context, q Querier, f Filter, changes map[string]interface{}) (int64, error) {
	setClause, setArgs, next := set(changes, 1)
	where, args := f.where(next)

	res, err := q.ExecContext(ctx, "UPDATE group_notifications"+setClause+where, append(setArgs, args...)...)
	if err != nil {
		return 0, fmt.Errorf("updating group notifications: %w", err)
	}
	return res.RowsAffected()
}
