package rag

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrProvider           = errors.New("provider error")
	ErrDataIntegrity      = errors.New("data integrity error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
)

// ValidationError reports a malformed request. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ProviderError wraps a failed embedding or chat-completion call.
type ProviderError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// DataIntegrityError is always fatal.
type DataIntegrityError struct {
	Reason string
	Err    error
}

func (e *DataIntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data integrity: %s: %v", e.Reason, e.Err)
	}
	return "data integrity: " + e.Reason
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

func (e *DataIntegrityError) Is(target error) bool { return target == ErrDataIntegrity }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// Kind returns the taxonomy name of err, used as the application error type
// by orchestrators and as a metrics label.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrNotFound):
		return "NotFoundError"
	case errors.Is(err, ErrDataIntegrity):
		return "DataIntegrityError"
	case errors.Is(err, ErrProvider):
		return "ProviderError"
	case errors.Is(err, ErrInvalidChunkConfig):
		return "ConfigError"
	default:
		return "InternalError"
	}
}
