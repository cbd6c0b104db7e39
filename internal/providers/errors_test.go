package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota": ErrorQuota,
		"429 rate":           ErrorRate,
		"context too long":   ErrorContext,
		"timeout":            ErrorTransient,
		"bad request":        ErrorPermanent,
	}
	for msg, want := range cases {
		assert.Equal(t, want, ClassifyError(errors.New(msg)), msg)
	}
}

func TestClassifyErrorPrefersTypedError(t *testing.T) {
	err := fmt.Errorf("embed chunk 2: %w", &Error{Provider: "openai", Op: "embed", Type: ErrorAuth, Err: errors.New("quota words ignored")})
	assert.Equal(t, ErrorAuth, ClassifyError(err))
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   ErrorType
	}{
		{http.StatusTooManyRequests, `{"error":{"code":"rate_limit_exceeded"}}`, ErrorRate},
		{http.StatusTooManyRequests, `{"error":{"code":"insufficient_quota"}}`, ErrorQuota},
		{http.StatusUnauthorized, "", ErrorAuth},
		{http.StatusForbidden, "", ErrorAuth},
		{http.StatusRequestTimeout, "", ErrorTransient},
		{http.StatusBadGateway, "", ErrorTransient},
		{http.StatusServiceUnavailable, "", ErrorTransient},
		{http.StatusBadRequest, `{"error":{"code":"context_length_exceeded"}}`, ErrorContext},
		{http.StatusBadRequest, "bad input", ErrorPermanent},
		{http.StatusNotFound, "", ErrorPermanent},
		{http.StatusUnprocessableEntity, "", ErrorPermanent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyStatus(tc.status, tc.body), "status %d body %q", tc.status, tc.body)
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&Error{Type: ErrorRate}))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &Error{Type: ErrorTransient})))
	assert.False(t, IsRetryable(&Error{Type: ErrorQuota}))
	assert.False(t, IsRetryable(&Error{Type: ErrorAuth}))
	assert.False(t, IsRetryable(&Error{Type: ErrorPermanent}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestRequestErrorClassification(t *testing.T) {
	assert.Equal(t, ErrorTransient, requestError("openai", "embed", context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorPermanent, requestError("openai", "embed", context.Canceled).Type)
	assert.Equal(t, ErrorTransient, requestError("openai", "embed", errors.New("dial tcp: connection refused")).Type)
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	body := make([]byte, 2000)
	for i := range body {
		body[i] = 'x'
	}
	err := statusError("openai", "generate", http.StatusInternalServerError, body)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Len(t, err.Err.Error(), 512)
	assert.True(t, err.Retryable())
}

func TestRequestErrorTransportFailures(t *testing.T) {
	badScheme := &url.Error{Op: "Post", URL: "htp://api", Err: errors.New(`unsupported protocol scheme "htp"`)}
	assert.Equal(t, ErrorPermanent, requestError("openai", "embed", badScheme).Type)

	dial := &url.Error{Op: "Post", URL: "http://api", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route to host")}}
	assert.Equal(t, ErrorTransient, requestError("openai", "embed", dial).Type)
}

func TestDoJSONBadBaseURLIsNotRetryable(t *testing.T) {
	_, err := doJSON(context.Background(), &http.Client{}, "openai", "embed", "htp://api.example.com/v1/embeddings", []byte("{}"), nil)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestDoJSONClientTimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	_, err := doJSON(context.Background(), &http.Client{Timeout: 20 * time.Millisecond}, "openai", "embed", srv.URL, []byte("{}"), nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}
