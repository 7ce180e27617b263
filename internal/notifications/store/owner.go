package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notification-workers/internal/models"

	"github.com/jmoiron/sqlx"
)

const ownerColumns = `id, message, type, resource, resource_id, owner_email, is_read, is_email_sent, is_bulk, count, first_created_at, created_at`

// InsertOwner inserts n and sets n.ID from the store.
func InsertOwner(ctx context.Context, q Querier, n *models.OwnerNotification) error {
	const query = `
		INSERT INTO owner_notifications (
			message, type, resource, resource_id, owner_email,
			is_read, is_email_sent, is_bulk, count, first_created_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := sqlx.GetContext(ctx, q, &n.ID, query,
		n.Message, n.Type, n.Resource, n.ResourceID, n.OwnerEmail,
		n.IsRead, n.IsEmailSent, n.IsBulk, n.Count, n.FirstCreatedAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting owner notification: %w", err)
	}
	return nil
}

// SelectOwner returns the rows matching f.
func SelectOwner(ctx context.Context, q Querier, f Filter, order []Order, limit, offset *int) ([]models.OwnerNotification, error) {
	where, args := f.where(1)
	orderClause, err := orderBy(order)
	if err != nil {
		return nil, err
	}
	pageClause, pageArgs := page(limit, offset, len(args)+1)

	query := "SELECT " + ownerColumns + " FROM owner_notifications" + where + orderClause + pageClause

	rows := []models.OwnerNotification{}
	if err := sqlx.SelectContext(ctx, q, &rows, query, append(args, pageArgs...)...); err != nil {
		return nil, fmt.Errorf("selecting owner notifications: %w", err)
	}
	return rows, nil
}

// GetOwner returns the single row matching f, or nil when there is none.
func GetOwner(ctx context.Context, q Querier, f Filter) (*models.OwnerNotification, error) {
	where, args := f.where(1)
	query := "SELECT " + ownerColumns + " FROM owner_notifications" + where + " LIMIT 1"

	var n models.OwnerNotification
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching owner notification: %w", err)
	}
	return &n, nil
}

// CountOwner counts the rows matching f.
func CountOwner(ctx context.Context, q Querier, f Filter) (int, error) {
	where, args := f.where(1)

	var total int
	if err := sqlx.GetContext(ctx, q, &total, "SELECT COUNT(*) FROM owner_notifications"+where, args...); err != nil {
		return 0, fmt.Errorf("counting owner notifications: %w", err)
	}
	return total, nil
}

// UpdateOwner applies changes to the rows matching f.
func UpdateOwner(ctx context.Context, q Querier, f Filter, changes map[string]interface{}) (int64, error) {
	setClause, setArgs, next := set(changes, 1)
	where, args := f.where(next)

	res, err := q.ExecContext(ctx, "UPDATE owner_notifications"+setClause+where, append(setArgs, args...)...)
	if err != nil {
		return 0, fmt.Errorf("updating owner notifications: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOwner deletes the rows matching f.
func DeleteOwner(ctx context.Context, q Querier, f Filter) (int64, error) {
	where, args := f.where(1)

	res, err := q.ExecContext(ctx, "DELETE FROM owner_notifications"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting owner notifications: %w", err)
	}
	return res.RowsAffected()
}
