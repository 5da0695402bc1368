package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respWithStatus(code int, retryAfter string) *http.Response {
	h := http.Header{}
	if retryAfter != "" {
		h.Set("Retry-After", retryAfter)
	}
	return &http.Response{StatusCode: code, Header: h}
}

func TestFromResponseClassification(t *testing.T) {
	e := FromResponse("oops", respWithStatus(http.StatusServiceUnavailable, ""))
	assert.True(t, e.Retryable)
	assert.Zero(t, e.RetryAfter)

	e = FromResponse("oops", respWithStatus(http.StatusBadRequest, ""))
	assert.False(t, e.Retryable)

	e = FromResponse("oops", respWithStatus(http.StatusNotFound, ""))
	assert.False(t, e.Retryable)
}

func TestFromResponseRateLimit(t *testing.T) {
	e := FromResponse("slow down", respWithStatus(http.StatusTooManyRequests, "15"))
	assert.True(t, e.Retryable)
	assert.Equal(t, 15*time.Second, e.RetryAfter)

	// absent or unparseable header yields no hint; still retryable
	e = FromResponse("slow down", respWithStatus(http.StatusTooManyRequests, ""))
	assert.True(t, e.Retryable)
	assert.Zero(t, e.RetryAfter)

	e = FromResponse("slow down", respWithStatus(http.StatusTooManyRequests, "soon"))
	assert.Zero(t, e.RetryAfter)
}

func TestIsRetryableUnwrapsNestedErrors(t *testing.T) {
	inner := Transient("socket closed", errors.New("EOF"))
	wrapped := fmt.Errorf("poll attempt: %w", inner)

	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestRetryAfterHint(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", RateLimit("429", 30*time.Second))
	assert.Equal(t, 30*time.Second, RetryAfterHint(err))
	assert.Zero(t, RetryAfterHint(errors.New("plain")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	e := Transient("request failed", errors.New("connection refused"))
	require.Contains(t, e.Error(), "request failed")
	require.Contains(t, e.Error(), "connection refused")
	assert.Equal(t, "fatal", New("fatal", 400).Error())
}
