package resource

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
)

// DefaultReadPolicy is three exponential retries starting at 100ms.
func DefaultReadPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// RetryRead runs an idempotent read, retrying transport failures and
// retryable remote failures under policy. Any other failure is returned at
// once. Never use it for writes.
func RetryRead[T any](ctx context.Context, policy backoff.BackOff, read func(context.Context) (T, error)) (T, error) {
	var result T
	op := func() error {
		v, err := read(ctx)
		if err != nil {
			if errors.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = v
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	return result, err
}
