// internal/workers/notifications/fan-out-group-notification/handler.go
package fanoutgroupnotification

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
	"notification-workers/internal/notifications/fanout"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "fan-out-group-notification"
)

type FanOuter interface {
	FanOutGroupNotification(ctx context.Context, in fanout.NewGroupNotification) ([]models.GroupNotification, error)
}

type Handler struct {
	fanOut FanOuter
	runner *camunda.JobRunner
	logger logger.Logger
}

func NewHandler(config *Config, fanOut FanOuter, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		fanOut: fanOut,
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
	created, err := h.fanOut.FanOutGroupNotification(ctx, fanout.NewGroupNotification{
		Message:     input.Message,
		Type:        input.Type,
		Resource:    input.Resource,
		ResourceID:  input.ResourceID,
		GroupID:     input.GroupID,
		OwnerEmail:  input.OwnerEmail,
		IsRead:      input.IsRead,
		IsEmailSent: input.IsEmailSent,
	})
	if err != nil {
		return nil, err
	}

	if created == nil {
		created = []models.GroupNotification{}
	}
	h.logger.Info("group notification fanned out", map[string]interface{}{
		"groupId": input.GroupID,
		"members": len(created),
	})
	return &Output{Notifications: created, Count: len(created)}, nil
}

// Execute is exported for testing
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
