package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRetryDoSucceedsAfterRetryableError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0

	got, err := RetryDo(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &HTTPError{Status: http.StatusServiceUnavailable, Body: "overloaded"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("RetryDo() error = %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", got, calls)
	}
}

func TestRetryDoStopsOnClientError(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0

	_, err := RetryDo(context.Background(), cfg, func() (string, error) {
		calls++
		return "", &HTTPError{Status: http.StatusBadRequest, Body: "bad prompt"}
	})
	if err == nil {
		t.Fatal("RetryDo() error = nil, want HTTPError")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (400 is not retryable)", calls)
	}
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}
	calls := 0

	_, err := RetryDo(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, &HTTPError{Status: http.StatusTooManyRequests, Body: "slow down"}
	})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("RetryDo() error = %v, want HTTPError", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}

	_, err := RetryDo(ctx, cfg, func() (int, error) {
		return 0, &HTTPError{Status: http.StatusInternalServerError, Body: "boom"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RetryDo() error = %v, want context.Canceled", err)
	}
}

func TestHTTPErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		e := &HTTPError{Status: tt.status}
		if got := e.Retryable(); got != tt.want {
			t.Errorf("Retryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := ParseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("ParseRetryAfter(3) = %v", got)
	}
	if got := ParseRetryAfter(""); got != 0 {
		t.Errorf("ParseRetryAfter(empty) = %v, want 0", got)
	}
	if got := ParseRetryAfter("soon"); got != 0 {
		t.Errorf("ParseRetryAfter(soon) = %v, want 0", got)
	}
}
