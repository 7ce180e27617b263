// Package errors provides the notification error taxonomy and its mapping to
// BPMN errors for the job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotificationNotFound       ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeStoreUnavailable           ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeInvariantViolation         ErrorCode = "INVARIANT_VIOLATION"
	ErrCodeInvalidInput               ErrorCode = "INVALID_INPUT"
	ErrCodeMembershipResolutionFailed ErrorCode = "MEMBERSHIP_RESOLUTION_FAILED"
	ErrCodeInternal                   ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError carrying the same code, so callers can test
// against the sentinels below with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrNotFound                   = &StandardError{Code: ErrCodeNotificationNotFound}
	ErrStoreUnavailable           = &StandardError{Code: ErrCodeStoreUnavailable}
	ErrInvariantViolation         = &StandardError{Code: ErrCodeInvariantViolation}
	ErrInvalidInput               = &StandardError{Code: ErrCodeInvalidInput}
	ErrMembershipResolutionFailed = &StandardError{Code: ErrCodeMembershipResolutionFailed}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNotFoundError is used where an absent record must fail a job; the
// service layer itself reports absence as a nil result.
func NewNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError wraps a transient store failure.
func NewStoreUnavailableError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Notification store unavailable",
		Details:   fmt.Sprintf("operation: %s, error: %v", operation, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvariantViolationError reports more than one bulk head for a merge key.
func NewInvariantViolationError(ownerEmail, notificationType, resource string, heads int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvariantViolation,
		Message:   "Multiple bulk heads detected for merge key",
		Details:   fmt.Sprintf("owner: %s, type: %s, resource: %s, heads: %d", ownerEmail, notificationType, resource, heads),
		Retryable: false,
		Metadata: map[string]interface{}{
			"ownerEmail": ownerEmail,
			"type":       notificationType,
			"resource":   resource,
			"heads":      heads,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable validation error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMembershipResolutionFailedError wraps a failed member lookup.
func NewMembershipResolutionFailedError(groupID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMembershipResolutionFailed,
		Message:   "Group membership resolution failed",
		Details:   fmt.Sprintf("groupId: %s, error: %v", groupID, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNotificationNotFound:       "NOTIFICATION_NOT_FOUND",
	ErrCodeStoreUnavailable:           "STORE_UNAVAILABLE",
	ErrCodeInvariantViolation:         "INVARIANT_VIOLATION",
	ErrCodeInvalidInput:               "INVALID_INPUT",
	ErrCodeMembershipResolutionFailed: "MEMBERSHIP_RESOLUTION_FAILED",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnavailable,
		ErrCodeMembershipResolutionFailed:
		return 3
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError returns the StandardError in err's chain, or wraps err as
// a non-retryable internal error.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// WrapStore passes StandardErrors through and reports anything else as a
// StoreUnavailable failure of operation.
func WrapStore(operation string, err error) error {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return err
	}
	return NewStoreUnavailableError(operation, err)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STORE"):
		return "DATABASE"
	case strings.Contains(codeStr, "INVARIANT"):
		return "CONSISTENCY"
	case strings.Contains(codeStr, "MEMBERSHIP"):
		return "MEMBERSHIP"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
