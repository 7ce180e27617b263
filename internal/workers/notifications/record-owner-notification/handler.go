// internal/workers/notifications/record-owner-notification/handler.go
package recordownernotification

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
	"notification-workers/internal/notifications/aggregation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "record-owner-notification"
)

// Recorder stores an owner notification through the burst aggregation.
type Recorder interface {
	RecordOwnerNotification(ctx context.Context, in aggregation.NewOwnerNotification) (*models.OwnerNotification, error)
}

type Handler struct {
	recorder Recorder
	runner   *camunda.JobRunner
	logger   logger.Logger
}

func NewHandler(config *Config, recorder Recorder, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		recorder: recorder,
		runner:   camunda.NewJobRunner(TaskType, config.Timeout, validator, obs, log),
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
	detail, err := h.recorder.RecordOwnerNotification(ctx, aggregation.NewOwnerNotification{
		Message:     input.Message,
		Type:        input.Type,
		Resource:    input.Resource,
		ResourceID:  input.ResourceID,
		OwnerEmail:  input.OwnerEmail,
		IsRead:      input.IsRead,
		IsEmailSent: input.IsEmailSent,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("owner notification recorded", map[string]interface{}{
		"notificationId": detail.ID,
		"isBulk":         detail.IsBulk,
	})
	return &Output{Notification: detail}, nil
}

// Execute is exported for testing
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
