// Package membership resolves the recipients of a group.
package membership

import (
	"context"
	"fmt"

	"notification-workers/internal/models"
	"notification-workers/internal/notifications/store"

	"github.com/jmoiron/sqlx"
)

// Resolver returns the members of a group. q is the caller's transaction so
// resolution sees the same snapshot as the insert that follows.
type Resolver interface {
	GetMembersByGroup(ctx context.Context, q store.Querier, groupID string) ([]models.Member, error)
}

// PostgresResolver reads the group_members table.
type PostgresResolver struct{}

func NewPostgresResolver() *PostgresResolver {
	return &PostgresResolver{}
}

func (r *PostgresResolver) GetMembersByGroup(ctx context.Context, q store.Querier, groupID string) ([]models.Member, error) {
	members := []models.Member{}
	err := sqlx.SelectContext(ctx, q, &members,
		`SELECT member_email FROM group_members WHERE group_id = $1 ORDER BY member_email`, groupID)
	if err != nil {
		return nil, fmt.Errorf("resolving members of group %s: %w", groupID, err)
	}
	return members, nil
}

// Static is a fixed group table, used in tests and local runs.
type Static map[string][]string

func (s Static) GetMembersByGroup(_ context.Context, _ store.Querier, groupID string) ([]models.Member, error) {
	emails := s[groupID]
	members := make([]models.Member, 0, len(emails))
	for _, e := range emails {
		members = append(members, models.Member{Email: e})
	}
	return members, nil
}
