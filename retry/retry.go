/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package retry runs operations against remote dependencies with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable reports whether the error is transient and the operation may be attempted again.
type IsRetryable func(error) bool

// RetryableFunc does some work that can be potentially retried.
type RetryableFunc func(ctx context.Context) error

// Policy creates a backoff for a single DoWithRetry call.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// DoWithRetry calls fn until it succeeds, the policy gives up or ctx is done.
// Errors for which isRetryable returns false stop retrying immediately (nil isRetryable retries any error).
// Notify, if not nil, is called before every retry with the error and the delay.
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify backoff.Notify, fn RetryableFunc) error {
	b := backoff.WithContext(p.NewBackOff(), ctx)
	return backoff.RetryNotify(func() error {
		err := fn(ctx)
		if err == nil || isRetryable == nil || isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, notify)
}

// ExponentialBackoffPolicy retries with delays growing from InitialInterval up to MaxInterval.
type ExponentialBackoffPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// MaxRetryAttempts limits the number of retries. Zero means no limit.
	MaxRetryAttempts int
}

// NewExponentialBackoffPolicy returns an exponential backoff policy with given initial interval and max retry attempt count.
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxRetryAttempts int) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{InitialInterval: initialInterval, MaxRetryAttempts: maxRetryAttempts}
}

// NewBackOff implements Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.Reset()
	if p.MaxRetryAttempts <= 0 {
		return eb
	}
	return backoff.WithMaxRetries(eb, uint64(p.MaxRetryAttempts))
}
