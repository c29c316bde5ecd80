package api

import (
	"context"
	"errors"
	"net"
	"time"
)

// Retry defaults used when no option overrides them.
const (
	defaultRetries    = 2
	defaultRetryDelay = 1 * time.Second
)

// errorType represents the category of a failed attempt.
type errorType int

const (
	errTypeUnknown errorType = iota
	errTypeCanceled
	errTypeClient
	errTypeServer
	errTypeNetwork
)

// executeWithRetry runs fn up to retries+1 times with a fixed delay between
// attempts. Client errors (4xx except 408 and 429) and context cancellation are
// returned immediately; anything else is retried until the bound is exhausted,
// after which the last error is returned.
func executeWithRetry(ctx context.Context, retries int, delay time.Duration, fn func(attempt int) error) error {
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		switch classifyError(lastErr) {
		case errTypeCanceled, errTypeClient:
			return lastErr
		}

		if attempt == retries {
			break
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// classifyError determines how a failed attempt should be treated.
func classifyError(err error) errorType {
	if err == nil {
		return errTypeUnknown
	}

	if errors.Is(err, context.Canceled) {
		return errTypeCanceled
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Retryable() {
			return errTypeServer
		}
		return errTypeClient
	}

	if isNetworkError(err) {
		return errTypeNetwork
	}

	return errTypeUnknown
}

// isNetworkError checks if an error is a network-related error
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// sleepWithContext sleeps for the specified duration, respecting context cancellation
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
