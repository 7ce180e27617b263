package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/validation"
	"notification-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                1,
		ProcessInstanceKey: 2,
		Type:               "record-owner-notification",
		Retries:            3,
		Variables:          variables,
	}}
}

func newRunner(t *testing.T) *JobRunner {
	reg, err := registry.Default()
	require.NoError(t, err)
	v, err := validation.NewValidator(reg)
	require.NoError(t, err)
	return NewJobRunner("record-owner-notification", time.Second, v, nil, logger.NewTestLogger(t))
}

const validVariables = `{"message":"m","type":"comment","resource":"task","resourceId":"t1","ownerEmail":"a@example.com"}`

func TestProcess_RunsExecutorOnValidInput(t *testing.T) {
	r := newRunner(t)

	var got string
	out, err := r.Process(context.Background(), newJob(validVariables), func(_ context.Context, variables string) (interface{}, error) {
		got = variables
		return map[string]int{"id": 1}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, validVariables, got)
	assert.Equal(t, map[string]int{"id": 1}, out)
}

func TestProcess_RejectsInvalidVariables(t *testing.T) {
	r := newRunner(t)
	called := false

	_, err := r.Process(context.Background(), newJob(`{"type":"comment"}`), func(context.Context, string) (interface{}, error) {
		called = true
		return nil, nil
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.False(t, called)
}

func TestProcess_ReturnsExecutorError(t *testing.T) {
	r := newRunner(t)
	storeErr := apperrors.NewStoreUnavailableError("record", errors.New("boom"))

	out, err := r.Process(context.Background(), newJob(validVariables), func(context.Context, string) (interface{}, error) {
		return nil, storeErr
	})

	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestProcess_WithoutValidator(t *testing.T) {
	r := NewJobRunner("anything", time.Second, nil, nil, logger.NewNoOpLogger())

	out, err := r.Process(context.Background(), newJob(`not json`), func(context.Context, string) (interface{}, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestSendWithRetry_RetriesTransientErrors(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	attempts := 0

	err := sendWithRetry(context.Background(), cfg, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("rpc error: code = Unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestSendWithRetry_StopsOnPermanentError(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	attempts := 0

	err := sendWithRetry(context.Background(), cfg, func(context.Context) error {
		attempts++
		return errors.New("NOT_FOUND: job 1 not found")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(errors.New("context deadline exceeded")))
	assert.True(t, isRetryableZeebeError(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryableZeebeError(errors.New("invalid argument")))
}
