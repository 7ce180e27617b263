// internal/workers/notifications/query-notifications/handler.go
package querynotifications

import (
	"context"
	"encoding/json"
	"fmt"

	"notification-workers/internal/common/camunda"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/models"
	"notification-workers/internal/notifications/query"
	"notification-workers/internal/notifications/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "query-notifications"
)

type Querier interface {
	FindOwnerNotifications(ctx context.Context, f query.OwnerFilter) (int, []models.OwnerNotification, error)
	FindGroupNotifications(ctx context.Context, f query.GroupFilter) (int, []models.GroupNotification, error)
	GetNotificationCount(ctx context.Context, email string, isRead *bool) (int, error)
	GetNotificationCountPerGroup(ctx context.Context, memberEmail string, isRead *bool) ([]models.GroupCount, int, error)
}

type Handler struct {
	queries Querier
	runner  *camunda.JobRunner
	logger  logger.Logger
}

func NewHandler(config *Config, queries Querier, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		queries: queries,
		runner:  camunda.NewJobRunner(TaskType, config.Timeout, validator, obs, log),
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Handle(client, job, h.run)
}

func (h *Handler) run(ctx context.Context, variables string) (interface{}, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return h.execute(ctx, &input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	order, err := parseOrder(input.OrderBy)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	switch input.Operation {
	case OperationFindOwner:
		out.Total, out.OwnerNotifications, err = h.queries.FindOwnerNotifications(ctx, query.OwnerFilter{
			OwnerEmail: input.Email,
			IsRead:     input.IsRead,
			Limit:      input.Limit,
			Offset:     input.Offset,
			OrderBy:    order,
		})
	case OperationFindGroup:
		out.Total, out.GroupNotifications, err = h.queries.FindGroupNotifications(ctx, query.GroupFilter{
			MemberEmail: input.Email,
			GroupID:     input.GroupID,
			IsRead:      input.IsRead,
			Limit:       input.Limit,
			Offset:      input.Offset,
			OrderBy:     order,
		})
	case OperationCount:
		if input.Email == nil {
			return nil, apperrors.NewInvalidInputError("count requires email")
		}
		out.Total, err = h.queries.GetNotificationCount(ctx, *input.Email, input.IsRead)
	case OperationCountPerGroup:
		if input.Email == nil {
			return nil, apperrors.NewInvalidInputError("count-per-group requires email")
		}
		out.Counts, out.Total, err = h.queries.GetNotificationCountPerGroup(ctx, *input.Email, input.IsRead)
	default:
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unknown operation %q", input.Operation))
	}
	if err != nil {
		return nil, err
	}

	h.logger.Debug("notifications queried", map[string]interface{}{
		"operation": input.Operation,
		"total":     out.Total,
	})
	return out, nil
}

func parseOrder(in []OrderBy) ([]store.Order, error) {
	if len(in) == 0 {
		return nil, nil
	}
	order := make([]store.Order, 0, len(in))
	for _, o := range in {
		parsed, err := query.ParseOrder(o.Column, o.Direction)
		if err != nil {
			return nil, err
		}
		order = append(order, parsed)
	}
	return order, nil
}

// Execute is exported for testing
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
