// internal/workers/notifications/mark-notifications-read/handler.go
package marknotificationsread

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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "mark-notifications-read"
)

type Marker interface {
	MarkOwnerNotificationsRead(ctx context.Context, ownerEmail string, notificationID *int64) (int, *models.OwnerNotification, error)
	MarkGroupNotificationsRead(ctx context.Context, memberEmail string, groupID *string, notificationID *int64) (int, *models.GroupNotification, error)
}

type Handler struct {
	marker Marker
	runner *camunda.JobRunner
	logger logger.Logger
}

func NewHandler(config *Config, marker Marker, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		marker: marker,
		runner: camunda.NewJobRunner(TaskType, config.Timeout, validator, obs, log),
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
	out := &Output{}

	switch input.Scope {
	case ScopeOwner:
		if input.GroupID != nil {
			return nil, apperrors.NewInvalidInputError("groupId is not allowed for owner scope")
		}
		marked, record, err := h.marker.MarkOwnerNotificationsRead(ctx, input.Email, input.NotificationID)
		if err != nil {
			return nil, err
		}
		out.Marked = marked
		if record != nil {
			out.Notification = record
		}
	case ScopeGroup:
		marked, record, err := h.marker.MarkGroupNotificationsRead(ctx, input.Email, input.GroupID, input.NotificationID)
		if err != nil {
			return nil, err
		}
		out.Marked = marked
		if record != nil {
			out.Notification = record
		}
	default:
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unknown scope %q", input.Scope))
	}

	h.logger.Info("notifications marked read", map[string]interface{}{
		"scope":  input.Scope,
		"marked": out.Marked,
	})
	return out, nil
}

// Execute is exported for testing
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
