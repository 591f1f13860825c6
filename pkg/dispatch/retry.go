package dispatch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultConnectAttempts = 5
	DefaultConnectDelay    = 10 * time.Second
)

// RetryPolicy is a bounded retry with a fixed delay between attempts.
type RetryPolicy struct {
	MaxAttempts uint
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultConnectAttempts,
		Delay:       DefaultConnectDelay,
	}
}

// Retry runs op until it succeeds, the attempts are exhausted or ctx is
// done. onFailure is called after every failed attempt that will be retried.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func() (T, error), onFailure func(err error, next time.Duration)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(policy.Delay)),
		backoff.WithMaxTries(attempts),
	}
	if onFailure != nil {
		opts = append(opts, backoff.WithNotify(onFailure))
	}

	return backoff.Retry(ctx, backoff.Operation[T](op), opts...)
}
