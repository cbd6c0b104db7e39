package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
	ErrorAuth      ErrorType = "auth"
)

// Error is returned by every provider call that did not produce a result.
type Error struct {
	Provider   string
	Op         string
	Type       ErrorType
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error %d (%s): %v", e.Provider, e.Op, e.StatusCode, e.Type, e.Err)
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Provider, e.Op, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed if repeated later.
func (e *Error) Retryable() bool {
	return e.Type == ErrorRate || e.Type == ErrorTransient
}

// IsRetryable unwraps err looking for a provider Error.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// requestError classifies a transport-level failure. Only timeouts and
// socket-level failures are transient; a malformed URL or unsupported scheme
// fails the same way on every attempt.
func requestError(provider, op string, err error) *Error {
	var t ErrorType
	var urlErr *url.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		t = ErrorTransient
	case errors.Is(err, context.Canceled):
		t = ErrorPermanent
	case errors.As(err, &urlErr) && urlErr.Timeout():
		t = ErrorTransient
	case errors.As(err, &opErr):
		t = ErrorTransient
	default:
		t = ClassifyError(err)
	}
	return &Error{Provider: provider, Op: op, Type: t, Err: err}
}

// statusError classifies an HTTP error response.
func statusError(provider, op string, status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &Error{
		Provider:   provider,
		Op:         op,
		Type:       ClassifyStatus(status, msg),
		StatusCode: status,
		Err:        errors.New(msg),
	}
}

// ClassifyStatus maps an HTTP status and response body to an ErrorType.
func ClassifyStatus(status int, body string) ErrorType {
	low := strings.ToLower(body)
	switch {
	case status == http.StatusTooManyRequests:
		if strings.Contains(low, "insufficient_quota") || strings.Contains(low, "quota") {
			return ErrorQuota
		}
		return ErrorRate
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorAuth
	case status == http.StatusRequestTimeout || status >= 500:
		return ErrorTransient
	case strings.Contains(low, "context_length") || strings.Contains(low, "too long"):
		return ErrorContext
	default:
		return ErrorPermanent
	}
}

// ClassifyError inspects an error message when no status code is available.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection refused"), strings.Contains(e, "connection reset"), strings.Contains(e, "eof"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}
