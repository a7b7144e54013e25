// Package errors provides standardized error handling for the intake workers and
// their mapping onto Zeebe job outcomes.
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
	ErrCodeInvalidEvent ErrorCode = "INVALID_EVENT"

	ErrCodeSessionLoadFailed ErrorCode = "SESSION_LOAD_FAILED"
	ErrCodeSessionSaveFailed ErrorCode = "SESSION_SAVE_FAILED"
	ErrCodeSessionConflict   ErrorCode = "SESSION_CONFLICT"

	ErrCodeLedgerWriteFailed ErrorCode = "LEDGER_WRITE_FAILED"
	ErrCodeLedgerQueryFailed ErrorCode = "LEDGER_QUERY_FAILED"

	ErrCodeAttachmentIngestFailed ErrorCode = "ATTACHMENT_INGEST_FAILED"

	ErrCodeIdentityLockTimeout ErrorCode = "IDENTITY_LOCK_TIMEOUT"
	ErrCodeDedupeFailed        ErrorCode = "DEDUPE_FAILED"

	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchIndexFailed             ErrorCode = "SEARCH_INDEX_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeAuditWriteFailed       ErrorCode = "AUDIT_WRITE_FAILED"

	ErrCodeZeebeUnavailable ErrorCode = "ZEEBE_UNAVAILABLE"
	ErrCodeZeebeTimeout     ErrorCode = "ZEEBE_TIMEOUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

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

// NewInvalidEventError rejects an inbound event that failed schema validation.
func NewInvalidEventError(details string) *StandardError {
	e := newError(ErrCodeInvalidEvent, "Inbound event is invalid", nil, false)
	e.Details = details
	return e
}

func NewSessionLoadFailedError(identity string, err error) *StandardError {
	return newError(ErrCodeSessionLoadFailed, "Failed to load session", err, true).
		WithMetadata("identity", identity)
}

func NewSessionSaveFailedError(identity string, err error) *StandardError {
	return newError(ErrCodeSessionSaveFailed, "Failed to save session", err, true).
		WithMetadata("identity", identity)
}

// NewSessionConflictError reports a lost optimistic-concurrency race on a session.
func NewSessionConflictError(identity string, expectedVersion int64) *StandardError {
	e := newError(ErrCodeSessionConflict, "Session was modified concurrently", nil, true)
	e.Details = fmt.Sprintf("identity: %s, expectedVersion: %d", identity, expectedVersion)
	return e
}

func NewLedgerWriteFailedError(err error) *StandardError {
	return newError(ErrCodeLedgerWriteFailed, "Failed to record service request", err, true)
}

func NewLedgerQueryFailedError(err error) *StandardError {
	return newError(ErrCodeLedgerQueryFailed, "Failed to query service requests", err, true)
}

func NewAttachmentIngestFailedError(err error) *StandardError {
	return newError(ErrCodeAttachmentIngestFailed, "Attachment could not be stored", err, true)
}

func NewIdentityLockTimeoutError(identity string) *StandardError {
	e := newError(ErrCodeIdentityLockTimeout, "Timed out waiting for identity lock", nil, true)
	e.Details = fmt.Sprintf("identity: %s", identity)
	return e
}

func NewDedupeFailedError(err error) *StandardError {
	return newError(ErrCodeDedupeFailed, "Event de-duplication store error", err, true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err, true)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err, true)
}

func NewSearchIndexFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchIndexFailed, "Elasticsearch indexing error", err, true).
		WithMetadata("index", index)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	e := newError(ErrCodeNotificationSendFailed, "Notification delivery failed", err, true)
	e.Details = fmt.Sprintf("type: %s, error: %v", notificationType, err)
	return e
}

func NewAuditWriteFailedError(err error) *StandardError {
	return newError(ErrCodeAuditWriteFailed, "Audit record could not be written", err, false)
}

func NewZeebeUnavailableError(err error) *StandardError {
	return newError(ErrCodeZeebeUnavailable, "Zeebe gateway unavailable", err, true)
}

func NewZeebeTimeoutError(err error) *StandardError {
	return newError(ErrCodeZeebeTimeout, "Zeebe request timed out", err, true)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSessionLoadFailed,
		ErrCodeSessionSaveFailed,
		ErrCodeLedgerWriteFailed,
		ErrCodeLedgerQueryFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchIndexFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeDedupeFailed,
		ErrCodeZeebeUnavailable:
		return 3

	case ErrCodeSessionConflict,
		ErrCodeIdentityLockTimeout,
		ErrCodeAttachmentIngestFailed,
		ErrCodeZeebeTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
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

// AsStandardError finds a StandardError anywhere in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize always yields a StandardError, wrapping foreign errors as internal.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SESSION"):
		return "SESSION"
	case strings.HasPrefix(codeStr, "LEDGER"):
		return "LEDGER"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "ATTACHMENT"):
		return "STORAGE"
	case strings.Contains(codeStr, "LOCK") || strings.Contains(codeStr, "DEDUPE"):
		return "CONCURRENCY"
	case strings.HasPrefix(codeStr, "ZEEBE"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
