package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notification-workers/internal/models"

	"github.com/jmoiron/sqlx"
)

// LockOwner takes a transaction-scoped advisory lock on the owner address.
// It must run inside a transaction.
func LockOwner(ctx context.Context, q Querier, ownerEmail string) error {
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, strings.ToLower(ownerEmail)); err != nil {
		return fmt.Errorf("locking owner: %w", err)
	}
	return nil
}

// LockBurst returns the burst record of the key, creating it in the empty
// state first if needed, and holds a row lock on it until the transaction ends.
func LockBurst(ctx context.Context, q Querier, ownerEmail, notificationType, resource string, now time.Time) (*models.BurstState, error) {
	owner := strings.ToLower(ownerEmail)

	if _, err := q.ExecContext(ctx, `
		INSERT INTO notification_bursts (owner_email, type, resource, state, count, updated_at)
		VALUES ($1, $2, $3, 'empty', 0, $4)
		ON CONFLICT (owner_email, type, resource) DO NOTHING`,
		owner, notificationType, resource, now,
	); err != nil {
		return nil, fmt.Errorf("creating burst state: %w", err)
	}

	var st models.BurstState
	if err := sqlx.GetContext(ctx, q, &st, `
		SELECT owner_email, type, resource, state, head_id, count, first_created_at, updated_at
		FROM notification_bursts
		WHERE owner_email = $1 AND type = $2 AND resource = $3
		FOR UPDATE`,
		owner, notificationType, resource,
	); err != nil {
		return nil, fmt.Errorf("locking burst state: %w", err)
	}
	return &st, nil
}

// SaveBurst writes back a burst record obtained from LockBurst.
func SaveBurst(ctx context.Context, q Querier, st *models.BurstState) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE notification_bursts
		SET state = $4, head_id = $5, count = $6, first_created_at = $7, updated_at = $8
		WHERE owner_email = $1 AND type = $2 AND resource = $3`,
		st.OwnerEmail, st.Type, st.Resource,
		st.State, st.HeadID, st.Count, st.FirstCreatedAt, st.UpdatedAt,
	); err != nil {
		return fmt.Errorf("saving burst state: %w", err)
	}
	return nil
}

// CloseOtherBursts resets every open burst of the owner other than the given
// key to empty. Notification rows are left untouched.
func CloseOtherBursts(ctx context.Context, q Querier, ownerEmail, notificationType, resource string, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE notification_bursts
		SET state = 'empty', head_id = NULL, count = 0, first_created_at = NULL, updated_at = $4
		WHERE owner_email = $1 AND (type <> $2 OR resource <> $3) AND state <> 'empty'`,
		strings.ToLower(ownerEmail), notificationType, resource, now,
	)
	if err != nil {
		return 0, fmt.Errorf("closing other bursts: %w", err)
	}
	return res.RowsAffected()
}
