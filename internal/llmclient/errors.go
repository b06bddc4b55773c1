package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"

	"github.com/NisargKadam/mental-wellness-agent/types"
)

// wrapError 将 SDK 错误映射为 types.Error，保留原始错误作为 Cause
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		if d := retryAfter(apiErr.Response); d > 0 {
			msg = fmt.Sprintf("%s (retry after %s)", msg, d)
		}
		return types.ErrorFromHTTPStatus(apiErr.StatusCode, msg, providerName).WithCause(err)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewError(types.ErrUpstreamTimeout, "chat completion timed out").
			WithCause(err).
			WithRetryable(true).
			WithProvider(providerName)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return types.NewError(types.ErrUpstreamError, "chat completion request failed").
			WithCause(err).
			WithRetryable(true).
			WithProvider(providerName)
	}
}

// retryAfter 从响应头中解析 Retry-After，无法解析时返回 0
func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
