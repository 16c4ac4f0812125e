package service

import (
	"context"
	"errors"
	"time"

	"github.com/textloom/textloom/internal/domain"
)

// maxStoreRetries bounds retries of transient store failures. Configuration
// and dimension errors are never retried.
const maxStoreRetries = 3

// isRetryable reports whether an error is a transient store failure worth
// retrying.
func isRetryable(err error) bool {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == domain.ErrCodeStoreUnavailable
}

// backoff returns the wait before retry attempt n (0-indexed).
func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// withRetry runs fn up to maxStoreRetries times, sleeping between attempts,
// and returns the last error if all attempts fail.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxStoreRetries; attempt++ {
		if err = fn(); err == nil || !isRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return err
}
