package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// withRetry executes fn, retrying throttled and unavailable responses.
// A server Retry-After overrides the computed backoff, capped at MaxBackoff.
func withRetry[T any](c *Client, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if c.retryPolicy == nil || c.retryPolicy.MaxAttempts <= 1 {
		return fn(ctx)
	}

	var lastErr error
	backoff := c.retryPolicy.InitialBackoff

	for attempt := 1; attempt <= c.retryPolicy.MaxAttempts; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !c.isRetryableError(err) {
			return zero, err
		}

		// Don't retry on last attempt
		if attempt == c.retryPolicy.MaxAttempts {
			break
		}

		wait := backoff
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		if wait > c.retryPolicy.MaxBackoff {
			wait = c.retryPolicy.MaxBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
			backoff = time.Duration(float64(backoff) * c.retryPolicy.BackoffMultiplier)
			if backoff > c.retryPolicy.MaxBackoff {
				backoff = c.retryPolicy.MaxBackoff
			}
		}
	}

	return zero, fmt.Errorf("max retry attempts reached: %w", lastErr)
}

// isRetryableError checks if an error is retryable
func (c *Client) isRetryableError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, status := range c.retryPolicy.RetryableStatuses {
		if apiErr.StatusCode == status {
			return true
		}
	}
	return false
}

// parseRetryAfter reads a delay-seconds or HTTP-date Retry-After value.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
