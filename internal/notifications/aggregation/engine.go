// Package aggregation records owner notifications and collapses bursts of
// same-kind events into a single counter row.
//
// Every (owner, type, resource) key has a burst record in one of three
// states:
//
//	empty          no open burst; the next event becomes the head
//	single         one event, whose own row is flagged is_bulk
//	aggregated(n)  n events; a counter row with count=n is flagged is_bulk
//
// An event of one kind closes the open bursts of every other kind for the
// same owner. Closing only resets the burst record; the closed burst's rows
// keep their is_bulk flag until that kind opens a new burst, which clears
// it. At most one row per key is flagged is_bulk after every commit.
package aggregation

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
	"notification-workers/internal/notifications/store"

	"github.com/jmoiron/sqlx"
)

// NewOwnerNotification is one incoming owner event.
type NewOwnerNotification struct {
	Message     string
	Type        string
	Resource    string
	ResourceID  string
	OwnerEmail  string
	IsRead      bool
	IsEmailSent bool
}

type Engine struct {
	db     *sqlx.DB
	txOpts database.TxOptions
	cache  countcache.Invalidator
	logger logger.Logger
	now    func() time.Time
}

// NewEngine creates an engine. cache may be nil.
func NewEngine(db *sqlx.DB, txOpts database.TxOptions, cache countcache.Invalidator, log logger.Logger) *Engine {
	if txOpts.OnRetry == nil {
		txOpts.OnRetry = func(attempt int, err error) {
			metrics.TxRetries.Inc()
			log.Warn("retrying notification transaction", map[string]interface{}{"attempt": attempt, "error": err})
		}
	}
	return &Engine{
		db:     db,
		txOpts: txOpts,
		cache:  cache,
		logger: log,
		now:    time.Now,
	}
}

// WithClock replaces the clock used for created_at.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RecordOwnerNotification stores the event and advances its burst. It
// returns the event's own row, never the counter row.
func (e *Engine) RecordOwnerNotification(ctx context.Context, in NewOwnerNotification) (*models.OwnerNotification, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	var (
		detail *models.OwnerNotification
		merged bool
		prev   models.BurstStatus
	)

	err := database.WithTx(ctx, e.db, e.txOpts, func(tx *sqlx.Tx) error {
		var err error
		detail, prev, err = e.record(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, apperrors.WrapStore("record owner notification", err)
	}

	merged = prev != models.BurstEmpty
	if merged {
		metrics.NotificationsRecorded.WithLabelValues(metrics.PathMerged).Inc()
		if prev == models.BurstAggregated {
			metrics.BurstsRewritten.Inc()
		}
	} else {
		metrics.NotificationsRecorded.WithLabelValues(metrics.PathStandalone).Inc()
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, in.OwnerEmail)
	}

	e.logger.Debug("owner notification recorded", map[string]interface{}{
		"id":        detail.ID,
		"owner":     in.OwnerEmail,
		"type":      in.Type,
		"resource":  in.Resource,
		"prevState": string(prev),
	})
	return detail, nil
}

// record runs one state transition inside tx. It returns the detail row and
// the state the burst was in before the event.
func (e *Engine) record(ctx context.Context, tx *sqlx.Tx, in NewOwnerNotification) (*models.OwnerNotification, models.BurstStatus, error) {
	now := store.Timestamp(e.now())

	if err := store.LockOwner(ctx, tx, in.OwnerEmail); err != nil {
		return nil, "", err
	}
	if _, err := store.CloseOtherBursts(ctx, tx, in.OwnerEmail, in.Type, in.Resource, now); err != nil {
		return nil, "", err
	}

	st, err := store.LockBurst(ctx, tx, in.OwnerEmail, in.Type, in.Resource, now)
	if err != nil {
		return nil, "", err
	}
	prev := st.State
	if prev != models.BurstEmpty && st.HeadID == nil {
		// A head-less open burst cannot be continued; start over.
		prev = models.BurstEmpty
	}

	key := keyFilter(in)
	detail := &models.OwnerNotification{
		Message:     in.Message,
		Type:        in.Type,
		Resource:    in.Resource,
		ResourceID:  in.ResourceID,
		OwnerEmail:  in.OwnerEmail,
		IsRead:      in.IsRead,
		IsEmailSent: in.IsEmailSent,
		CreatedAt:   now,
	}

	switch prev {
	case models.BurstEmpty:
		// Flags left behind by a closed burst of this key.
		if _, err := store.UpdateOwner(ctx, tx, append(key, store.Is("is_bulk", true)),
			map[string]interface{}{"is_bulk": false}); err != nil {
			return nil, "", err
		}

		detail.IsBulk = true
		if err := store.InsertOwner(ctx, tx, detail); err != nil {
			return nil, "", err
		}

		first := now
		st.State = models.BurstSingle
		st.HeadID = &detail.ID
		st.Count = 1
		st.FirstCreatedAt = &first

	case models.BurstSingle, models.BurstAggregated:
		if err := store.InsertOwner(ctx, tx, detail); err != nil {
			return nil, "", err
		}

		count := 2
		if prev == models.BurstAggregated {
			count = st.Count + 1
		}
		first := st.FirstCreatedAt
		if first == nil {
			first = &now
		}

		counter := &models.OwnerNotification{
			Message:        in.Message,
			Type:           in.Type,
			Resource:       in.Resource,
			ResourceID:     in.ResourceID,
			OwnerEmail:     in.OwnerEmail,
			IsBulk:         true,
			Count:          &count,
			FirstCreatedAt: first,
			CreatedAt:      now,
		}
		if err := store.InsertOwner(ctx, tx, counter); err != nil {
			return nil, "", err
		}

		// The previous counter is only an aggregate; the single head is a real
		// event and stays as history.
		if prev == models.BurstAggregated {
			if _, err := store.DeleteOwner(ctx, tx, store.Filter{store.Eq("id", *st.HeadID)}); err != nil {
				return nil, "", err
			}
		}

		if _, err := store.UpdateOwner(ctx, tx,
			append(key, store.Is("is_bulk", true), store.Ne("id", counter.ID)),
			map[string]interface{}{"is_bulk": false}); err != nil {
			return nil, "", err
		}

		st.State = models.BurstAggregated
		st.HeadID = &counter.ID
		st.Count = count
		st.FirstCreatedAt = first

	default:
		return nil, "", apperrors.NewInvalidInputError("unknown burst state " + string(st.State))
	}

	st.UpdatedAt = now
	if err := store.SaveBurst(ctx, tx, st); err != nil {
		return nil, "", err
	}

	heads, err := store.CountOwner(ctx, tx, append(key, store.Is("is_bulk", true)))
	if err != nil {
		return nil, "", err
	}
	if heads > 1 {
		e.logger.Error("multiple bulk heads for merge key", map[string]interface{}{
			"owner":    in.OwnerEmail,
			"type":     in.Type,
			"resource": in.Resource,
			"heads":    heads,
		})
		return nil, "", apperrors.NewInvariantViolationError(in.OwnerEmail, in.Type, in.Resource, heads)
	}

	return detail, prev, nil
}

func keyFilter(in NewOwnerNotification) store.Filter {
	return store.Filter{
		store.EqualFold("owner_email", in.OwnerEmail),
		store.Eq("type", in.Type),
		store.Eq("resource", in.Resource),
	}
}

func validate(in NewOwnerNotification) error {
	var missing []string
	if strings.TrimSpace(in.OwnerEmail) == "" {
		missing = append(missing, "ownerEmail")
	}
	if strings.TrimSpace(in.Type) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(in.Resource) == "" {
		missing = append(missing, "resource")
	}
	if len(missing) > 0 {
		return apperrors.NewInvalidInputError("missing " + strings.Join(missing, ", "))
	}
	return nil
}
