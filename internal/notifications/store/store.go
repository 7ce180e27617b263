// Package store holds the SQL primitives over the notification tables. Every
// function takes a Querier so callers decide the transactional scope.
package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "notification-workers/internal/common/errors"

	"github.com/jmoiron/sqlx"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
}

type op int

const (
	opEq op = iota
	opNe
	opEqualFold
	opIs
)

// Predicate is one condition of a Filter. Columns are always chosen by code,
// never by callers.
type Predicate struct {
	column string
	op     op
	value  interface{}
}

// Eq matches column = value.
func Eq(column string, value interface{}) Predicate {
	return Predicate{column: column, op: opEq, value: value}
}

// Ne matches column <> value.
func Ne(column string, value interface{}) Predicate {
	return Predicate{column: column, op: opNe, value: value}
}

// EqualFold matches column against value ignoring case.
func EqualFold(column, value string) Predicate {
	return Predicate{column: column, op: opEqualFold, value: value}
}

// Is matches a boolean column with IS TRUE / IS FALSE.
func Is(column string, value bool) Predicate {
	return Predicate{column: column, op: opIs, value: value}
}

// Filter is a conjunction of predicates; an empty filter matches every row.
type Filter []Predicate

// where renders the filter as a WHERE clause. Placeholders start at $next.
func (f Filter) where(next int) (string, []interface{}) {
	if len(f) == 0 {
		return "", nil
	}

	conds := make([]string, 0, len(f))
	args := make([]interface{}, 0, len(f))
	for _, p := range f {
		switch p.op {
		case opEqualFold:
			conds = append(conds, fmt.Sprintf("lower(%s) = lower($%d)", p.column, next))
			args = append(args, p.value)
			next++
		case opNe:
			conds = append(conds, fmt.Sprintf("%s <> $%d", p.column, next))
			args = append(args, p.value)
			next++
		case opIs:
			if p.value.(bool) {
				conds = append(conds, p.column+" IS TRUE")
			} else {
				conds = append(conds, p.column+" IS FALSE")
			}
		default:
			conds = append(conds, fmt.Sprintf("%s = $%d", p.column, next))
			args = append(args, p.value)
			next++
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Timestamp converts t to the value a timestamptz column stores, so rows
// returned from a write compare equal to the same rows read back.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Order sorts by one column.
type Order struct {
	Column string
	Desc   bool
}

// DefaultOrder is creation time ascending.
var DefaultOrder = []Order{{Column: "created_at"}}

var orderable = map[string]bool{
	"created_at": true,
	"id":         true,
	"type":       true,
	"resource":   true,
	"is_read":    true,
}

// orderBy always ends on id so rows sharing a created_at page stably.
func orderBy(order []Order) (string, error) {
	if len(order) == 0 {
		order = DefaultOrder
	}
	parts := make([]string, 0, len(order)+1)
	hasID := false
	for _, o := range order {
		if !orderable[o.Column] {
			return "", apperrors.NewInvalidInputError(fmt.Sprintf("cannot order by %q", o.Column))
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		if o.Column == "id" {
			hasID = true
		}
		parts = append(parts, o.Column+" "+dir)
	}
	if !hasID {
		parts = append(parts, "id ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// page applies LIMIT/OFFSET only when both are given.
func page(limit, offset *int, next int) (string, []interface{}) {
	if limit == nil || offset == nil {
		return "", nil
	}
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", next, next+1), []interface{}{*limit, *offset}
}

// set renders changes as a SET clause in column order.
func set(changes map[string]interface{}, next int) (string, []interface{}, int) {
	cols := make([]string, 0, len(changes))
	for c := range changes {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%s = $%d", c, next))
		args = append(args, changes[c])
		next++
	}
	return " SET " + strings.Join(parts, ", "), args, next
}
