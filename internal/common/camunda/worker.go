// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"notification-workers/internal/common/config"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor runs the business logic of one job and returns its output
// variables. ctx carries the job timeout.
type Executor func(ctx context.Context, variables string) (interface{}, error)

// JobRunner is the shared job lifecycle of the notification workers:
// validation, execution, completion and error reporting.
type JobRunner struct {
	taskType   string
	timeout    time.Duration
	validator  *validation.Validator
	errHandler *apperrors.ErrorHandler
	obs        *observability.Observability
	retry      *RetryConfig
	logger     logger.Logger
}

// NewJobRunner creates a runner. validator and obs may be nil.
func NewJobRunner(taskType string, timeout time.Duration, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *JobRunner {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	return &JobRunner{
		taskType:   taskType,
		timeout:    timeout,
		validator:  validator,
		errHandler: apperrors.NewErrorHandler(log),
		obs:        obs,
		retry:      DefaultRetryConfig,
		logger:     log,
	}
}

// Handle runs exec for the job and reports the outcome to the broker.
func (r *JobRunner) Handle(client worker.JobClient, job entities.Job, exec Executor) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	output, err := r.Process(ctx, job, exec)
	if err != nil {
		r.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	err = sendWithRetry(ctx, r.retry, func(ctx context.Context) error {
		cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
		if err != nil {
			return err
		}
		_, err = cmd.Send(ctx)
		return err
	})
	if err != nil {
		r.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
	}
}

// Process validates the job variables and runs exec, recording metrics. It
// does not talk to the broker.
func (r *JobRunner) Process(ctx context.Context, job entities.Job, exec Executor) (interface{}, error) {
	start := time.Now()
	log := r.logger.WithFields(map[string]interface{}{
		"jobKey":        job.Key,
		"workflowKey":   job.ProcessInstanceKey,
		"correlationId": uuid.New().String(),
	})
	log.Info("processing job", nil)

	metrics.WorkerJobsActive.WithLabelValues(r.taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(r.taskType).Dec()

	output, err := r.process(ctx, job.Variables, exec)

	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(r.taskType).Observe(elapsed.Seconds())
	if err != nil {
		code := apperrors.AsStandardError(err).Code
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, string(code)).Inc()
		r.obs.RecordJob(ctx, r.taskType, "failed", elapsed)
		return nil, err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	r.obs.RecordJob(ctx, r.taskType, "completed", elapsed)
	log.Info("job completed", map[string]interface{}{"durationMs": elapsed.Milliseconds()})
	return output, nil
}

func (r *JobRunner) process(ctx context.Context, variables string, exec Executor) (interface{}, error) {
	if r.validator != nil {
		result, err := r.validator.ValidateJSON(r.taskType, variables)
		if err != nil {
			return nil, apperrors.NewInvalidInputError(err.Error())
		}
		if !result.Valid {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("%v", result.GetErrorMessages()))
		}
	}
	return exec(ctx, variables)
}

// StartWorker opens a job worker for taskType. It returns nil when the
// worker is disabled.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
	return jw
}
