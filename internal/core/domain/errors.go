package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates an invalid configuration value.
	// Configuration errors are never retried.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAlreadyProcessing indicates an analysis run is already active
	// for the document. This is a concurrency-control signal, not a
	// fault; callers are expected to poll or wait.
	ErrAlreadyProcessing = errors.New("analysis already in progress")

	// ErrExtractionFailed indicates text extraction from the stored
	// file failed.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrCancelled indicates a run was cancelled between stages.
	ErrCancelled = errors.New("analysis cancelled")

	// ErrUnsupportedFormat indicates the file format is not accepted.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge indicates the raw file exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidTransition indicates a processing state transition that
	// the state machine does not permit, e.g. re-analysing a COMPLETED
	// document or retrying one that never failed.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRateLimited indicates the AI provider rejected the call due to
	// rate limiting. Retryable.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderUnavailable indicates a transient provider failure
	// (timeout, connection error, 5xx). Retryable.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// StageError reports a failed analysis stage after retries were
// exhausted. It exposes the stage so a retry can target only that stage.
type StageError struct {
	// Stage is the stage that failed.
	Stage StageKind

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError wraps a cause with the stage that produced it.
func NewStageError(stage StageKind, cause error) *StageError {
	return &StageError{Stage: stage, Cause: cause}
}

// AsStageError extracts a StageError from an error chain.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// DimensionMismatchError reports an embedding whose length does not
// match the vector index configuration. Never retried.
type DimensionMismatchError struct {
	// Want is the configured index dimension.
	Want int

	// Got is the dimension of the offending vector.
	Got int
}

// Error implements the error interface.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index expects %d, got %d", e.Want, e.Got)
}

// IsRetryable reports whether an error is a transient provider failure
// worth retrying with backoff. Configuration and shape errors are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}
