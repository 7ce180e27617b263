// Package readstate marks notifications as read.
package readstate

import (
	"context"
	"strings"

	"notification-workers/internal/common/database"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/models"
	"notification-workers/internal/notifications/countcache"
	"notification-workers/internal/notifications/store"

	"github.com/jmoiron/sqlx"
)

const (
	scopeOwner = "owner"
	scopeGroup = "group"
)

type Mutator struct {
	db     *sqlx.DB
	txOpts database.TxOptions
	cache  countcache.Invalidator
	logger logger.Logger
}

// NewMutator creates the mutator. cache may be nil.
func NewMutator(db *sqlx.DB, txOpts database.TxOptions, cache countcache.Invalidator, log logger.Logger) *Mutator {
	return &Mutator{db: db, txOpts: txOpts, cache: cache, logger: log}
}

// MarkOwnerNotificationsRead marks every unread notification of the owner as
// read and returns how many were unread. When notificationID is set, that
// notification is fetched as well; it does not narrow the update. A missing
// or foreign id yields a nil record.
func (m *Mutator) MarkOwnerNotificationsRead(ctx context.Context, ownerEmail string, notificationID *int64) (int, *models.OwnerNotification, error) {
	if strings.TrimSpace(ownerEmail) == "" {
		return 0, nil, apperrors.NewInvalidInputError("missing ownerEmail")
	}

	scope := store.Filter{store.EqualFold("owner_email", ownerEmail)}
	unread := append(scope, store.Is("is_read", false))

	var (
		marked int
		record *models.OwnerNotification
	)
	err := database.WithTx(ctx, m.db, m.txOpts, func(tx *sqlx.Tx) error {
		var err error
		if notificationID != nil {
			if record, err = store.GetOwner(ctx, tx, append(scope, store.Eq("id", *notificationID))); err != nil {
				return err
			}
		}
		if marked, err = store.CountOwner(ctx, tx, unread); err != nil {
			return err
		}
		if marked == 0 {
			return nil
		}
		_, err = store.UpdateOwner(ctx, tx, unread, map[string]interface{}{"is_read": true})
		return err
	})
	if err != nil {
		return 0, nil, apperrors.WrapStore("mark owner notifications read", err)
	}

	m.done(ctx, scopeOwner, ownerEmail, marked)
	return marked, record, nil
}

// MarkGroupNotificationsRead is the member-scoped analogue, optionally
// narrowed to one group.
func (m *Mutator) MarkGroupNotificationsRead(ctx context.Context, memberEmail string, groupID *string, notificationID *int64) (int, *models.GroupNotification, error) {
	if strings.TrimSpace(memberEmail) == "" {
		return 0, nil, apperrors.NewInvalidInputError("missing memberEmail")
	}

	scope := store.Filter{store.EqualFold("member_email", memberEmail)}
	if groupID != nil {
		scope = append(scope, store.Eq("group_id", *groupID))
	}
	unread := append(scope[:len(scope):len(scope)], store.Is("is_read", false))

	var (
		marked int
		record *models.GroupNotification
	)
	err := database.WithTx(ctx, m.db, m.txOpts, func(tx *sqlx.Tx) error {
		var err error
		if notificationID != nil {
			byID := append(scope[:len(scope):len(scope)], store.Eq("id", *notificationID))
			if record, err = store.GetGroup(ctx, tx, byID); err != nil {
				return err
			}
		}
		if marked, err = store.CountGroup(ctx, tx, unread); err != nil {
			return err
		}
		if marked == 0 {
			return nil
		}
		_, err = store.UpdateGroup(ctx, tx, unread, map[string]interface{}{"is_read": true})
		return err
	})
	if err != nil {
		return 0, nil, apperrors.WrapStore("mark group notifications read", err)
	}

	m.done(ctx, scopeGroup, memberEmail, marked)
	return marked, record, nil
}

func (m *Mutator) done(ctx context.Context, scope, email string, marked int) {
	if marked == 0 {
		return
	}
	metrics.NotificationsMarkedRead.WithLabelValues(scope).Add(float64(marked))
	if m.cache != nil {
		m.cache.Invalidate(ctx, email)
	}
	m.logger.Debug("notifications marked read", map[string]interface{}{
		"scope":  scope,
		"email":  email,
		"marked": marked,
	})
}
