// Package query serves filtered, ordered and counted reads of owner and group
// notifications.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"notification-workers/internal/common/database"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/notifications/countcache"
	"notification-workers/internal/notifications/store"

	"github.com/jmoiron/sqlx"
)

// OwnerFilter selects owner notifications. A nil OwnerEmail matches every
// owner. Limit and Offset only apply when both are set.
type OwnerFilter struct {
	OwnerEmail *string
	IsRead     *bool
	Limit      *int
	Offset     *int
	OrderBy    []store.Order
}

// GroupFilter selects group notifications.
type GroupFilter struct {
	MemberEmail *string
	GroupID     *string
	IsRead      *bool
	Limit       *int
	Offset      *int
	OrderBy     []store.Order
}

type Service struct {
	db          *sqlx.DB
	cache       *countcache.Cache
	maxPageSize int
	logger      logger.Logger
}

// NewService creates the query service. cache may be nil; maxPageSize <= 0
// leaves page sizes unbounded.
func NewService(db *sqlx.DB, cache *countcache.Cache, maxPageSize int, log logger.Logger) *Service {
	return &Service{db: db, cache: cache, maxPageSize: maxPageSize, logger: log}
}

// snapshot reads total and page from the same snapshot.
var snapshot = database.TxOptions{Isolation: sql.LevelRepeatableRead}

// FindOwnerNotifications returns the number of rows matching f before
// pagination, and the requested page.
func (s *Service) FindOwnerNotifications(ctx context.Context, f OwnerFilter) (int, []models.OwnerNotification, error) {
	if err := s.checkPage(f.Limit, f.Offset); err != nil {
		return 0, nil, err
	}

	var filter store.Filter
	if f.OwnerEmail != nil {
		filter = append(filter, store.EqualFold("owner_email", *f.OwnerEmail))
	}
	if f.IsRead != nil {
		filter = append(filter, store.Is("is_read", *f.IsRead))
	}

	var (
		total int
		rows  []models.OwnerNotification
	)
	err := database.WithTx(ctx, s.db, snapshot, func(tx *sqlx.Tx) error {
		var err error
		if total, err = store.CountOwner(ctx, tx, filter); err != nil {
			return err
		}
		rows, err = store.SelectOwner(ctx, tx, filter, f.OrderBy, f.Limit, f.Offset)
		return err
	})
	if err != nil {
		return 0, nil, apperrors.WrapStore("find owner notifications", err)
	}
	return total, rows, nil
}

// FindGroupNotifications is the group-scoped analogue of FindOwnerNotifications.
func (s *Service) FindGroupNotifications(ctx context.Context, f GroupFilter) (int, []models.GroupNotification, error) {
	if err := s.checkPage(f.Limit, f.Offset); err != nil {
		return 0, nil, err
	}

	var filter store.Filter
	if f.MemberEmail != nil {
		filter = append(filter, store.EqualFold("member_email", *f.MemberEmail))
	}
	if f.GroupID != nil {
		filter = append(filter, store.Eq("group_id", *f.GroupID))
	}
	if f.IsRead != nil {
		filter = append(filter, store.Is("is_read", *f.IsRead))
	}

	var (
		total int
		rows  []models.GroupNotification
	)
	err := database.WithTx(ctx, s.db, snapshot, func(tx *sqlx.Tx) error {
		var err error
		if total, err = store.CountGroup(ctx, tx, filter); err != nil {
			return err
		}
		rows, err = store.SelectGroup(ctx, tx, filter, f.OrderBy, f.Limit, f.Offset)
		return err
	})
	if err != nil {
		return 0, nil, apperrors.WrapStore("find group notifications", err)
	}
	return total, rows, nil
}

// GetNotificationCount returns the owner plus group notification count of
// an address, for badge display. A nil isRead counts both states.
func (s *Service) GetNotificationCount(ctx context.Context, email string, isRead *bool) (int, error) {
	if strings.TrimSpace(email) == "" {
		return 0, apperrors.NewInvalidInputError("missing email")
	}
	if n, ok := s.cache.Get(ctx, email, isRead); ok {
		return n, nil
	}

	ownerFilter := store.Filter{store.EqualFold("owner_email", email)}
	groupFilter := store.Filter{store.EqualFold("member_email", email)}
	if isRead != nil {
		ownerFilter = append(ownerFilter, store.Is("is_read", *isRead))
		groupFilter = append(groupFilter, store.Is("is_read", *isRead))
	}

	var total int
	err := database.WithTx(ctx, s.db, snapshot, func(tx *sqlx.Tx) error {
		owner, err := store.CountOwner(ctx, tx, ownerFilter)
		if err != nil {
			return err
		}
		group, err := store.CountGroup(ctx, tx, groupFilter)
		if err != nil {
			return err
		}
		total = owner + group
		return nil
	})
	if err != nil {
		return 0, apperrors.WrapStore("count notifications", err)
	}

	s.cache.Set(ctx, email, isRead, total)
	return total, nil
}

// GetNotificationCountPerGroup returns the matching count for every group the
// member belongs to, largest first, and the sum over all groups. Groups with
// no matches are listed with a zero count.
func (s *Service) GetNotificationCountPerGroup(ctx context.Context, memberEmail string, isRead *bool) ([]models.GroupCount, int, error) {
	if strings.TrimSpace(memberEmail) == "" {
		return nil, 0, apperrors.NewInvalidInputError("missing memberEmail")
	}

	counts, err := store.CountGroupsForMember(ctx, s.db, memberEmail, isRead)
	if err != nil {
		return nil, 0, apperrors.WrapStore("count notifications per group", err)
	}

	total := 0
	for _, c := range counts {
		total += c.Count
	}
	return counts, total, nil
}

func (s *Service) checkPage(limit, offset *int) error {
	if limit != nil && *limit < 0 {
		return apperrors.NewInvalidInputError("limit must not be negative")
	}
	if offset != nil && *offset < 0 {
		return apperrors.NewInvalidInputError("offset must not be negative")
	}
	if limit != nil && s.maxPageSize > 0 && *limit > s.maxPageSize {
		return apperrors.NewInvalidInputError(fmt.Sprintf("limit exceeds maximum page size %d", s.maxPageSize))
	}
	return nil
}

// ParseOrder turns a column and a direction ("asc", "desc" or empty) into an
// ordering. Unknown columns are rejected when the query runs.
func ParseOrder(column, direction string) (store.Order, error) {
	switch strings.ToLower(direction) {
	case "", "asc":
		return store.Order{Column: column}, nil
	case "desc":
		return store.Order{Column: column, Desc: true}, nil
	default:
		return store.Order{}, apperrors.NewInvalidInputError(fmt.Sprintf("unknown sort direction %q", direction))
	}
}
