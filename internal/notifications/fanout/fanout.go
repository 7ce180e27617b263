// Package fanout expands a group event into one notification per member.
// Group notifications are never aggregated.
package fanout

import (
	"context"
	"strings"
	"time"

	"notification-workers/internal/common/database"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/models"
	"notification-workers/internal/notifications/countcache"
	"notification-workers/internal/notifications/membership"
	"notification-workers/internal/notifications/store"

	"github.com/jmoiron/sqlx"
)

// NewGroupNotification is one incoming group event. OwnerEmail is the
// originating actor and may be nil.
type NewGroupNotification struct {
	Message     string
	Type        string
	Resource    string
	ResourceID  string
	GroupID     string
	OwnerEmail  *string
	IsRead      bool
	IsEmailSent bool
}

type Service struct {
	db       *sqlx.DB
	txOpts   database.TxOptions
	resolver membership.Resolver
	cache    countcache.Invalidator
	logger   logger.Logger
	now      func() time.Time
}

// NewService creates the fan-out service. cache may be nil.
func NewService(db *sqlx.DB, txOpts database.TxOptions, resolver membership.Resolver, cache countcache.Invalidator, log logger.Logger) *Service {
	return &Service{
		db:       db,
		txOpts:   txOpts,
		resolver: resolver,
		cache:    cache,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for created_at.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// FanOutGroupNotification inserts one row per member of in.GroupID in a
// single statement. A group without members yields an empty slice.
func (s *Service) FanOutGroupNotification(ctx context.Context, in NewGroupNotification) ([]models.GroupNotification, error) {
	if strings.TrimSpace(in.GroupID) == "" {
		return nil, apperrors.NewInvalidInputError("missing groupId")
	}

	var rows []models.GroupNotification
	err := database.WithTx(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		members, err := s.resolver.GetMembersByGroup(ctx, tx, in.GroupID)
		if err != nil {
			return apperrors.NewMembershipResolutionFailedError(in.GroupID, err)
		}

		rows = s.build(in, members)
		return store.BulkInsertGroup(ctx, tx, rows)
	})
	if err != nil {
		return nil, apperrors.WrapStore("fan out group notification", err)
	}

	metrics.GroupNotificationsFannedOut.Add(float64(len(rows)))

	if s.cache != nil && len(rows) > 0 {
		emails := make([]string, len(rows))
		for i, r := range rows {
			emails[i] = r.MemberEmail
		}
		s.cache.Invalidate(ctx, emails...)
	}

	s.logger.Debug("group notification fanned out", map[string]interface{}{
		"groupId": in.GroupID,
		"type":    in.Type,
		"members": len(rows),
	})
	return rows, nil
}

// build makes one row per distinct member address, ignoring case.
func (s *Service) build(in NewGroupNotification, members []models.Member) []models.GroupNotification {
	now := store.Timestamp(s.now())
	seen := make(map[string]bool, len(members))
	rows := make([]models.GroupNotification, 0, len(members))

	for _, m := range members {
		key := strings.ToLower(m.Email)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		rows = append(rows, models.GroupNotification{
			Message:     in.Message,
			Type:        in.Type,
			Resource:    in.Resource,
			ResourceID:  in.ResourceID,
			GroupID:     in.GroupID,
			MemberEmail: m.Email,
			OwnerEmail:  in.OwnerEmail,
			IsRead:      in.IsRead,
			IsEmailSent: in.IsEmailSent,
			CreatedAt:   now,
		})
	}
	return rows
}
