package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got != "[UPSTREAM_ERROR] upstream failed: root" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrRateLimited, "slow down").WithHTTPStatus(http.StatusTooManyRequests).WithRetryable(true)
	wrapped := fmt.Errorf("planner: %w", inner)

	if GetErrorCode(wrapped) != ErrRateLimited {
		t.Fatalf("expected code through wrapping, got %q", GetErrorCode(wrapped))
	}
	if !IsRetryable(wrapped) {
		t.Fatalf("expected retryable through wrapping")
	}
	if HTTPStatusOf(wrapped) != http.StatusTooManyRequests {
		t.Fatalf("unexpected status %d", HTTPStatusOf(wrapped))
	}
	if HTTPStatusOf(errors.New("plain")) != http.StatusInternalServerError {
		t.Fatalf("plain errors map to 500")
	}
	if GetErrorCode(nil) != "" || IsRetryable(nil) {
		t.Fatalf("nil error has no code")
	}
}

func TestErrorFromHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		code      ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, ErrAuthentication, false},
		{http.StatusNotFound, ErrModelNotFound, false},
		{http.StatusTooManyRequests, ErrRateLimited, true},
		{http.StatusGatewayTimeout, ErrUpstreamTimeout, true},
		{http.StatusBadGateway, ErrServiceUnavailable, true},
		{http.StatusInternalServerError, ErrUpstreamError, true},
		{http.StatusBadRequest, ErrInvalidRequest, false},
	}
	for _, c := range cases {
		err := ErrorFromHTTPStatus(c.status, "msg", "openai")
		if err.Code != c.code || err.Retryable != c.retryable || err.HTTPStatus != c.status {
			t.Errorf("status %d: got %+v", c.status, err)
		}
		if err.Provider != "openai" {
			t.Errorf("status %d: provider not set", c.status)
		}
	}
}
