package resource

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/query"
)

// Future is the pending result of an asynchronous repository call. The call
// runs to completion even if nobody waits for it; its errors surface only
// through Result or Wait.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Async runs fn on its own goroutine, detached from ctx's cancellation.
func Async[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("async call panicked: %v", r)
			}
		}()
		f.value, f.err = fn(detached)
	}()
	return f
}

// Done is closed when the call has completed.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result blocks until the call completes.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Wait blocks until the call completes or ctx ends. Abandoning the wait does
// not cancel the call.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (r *Repository[T]) GetAsync(ctx context.Context, id uuid.UUID) *Future[*T] {
	return Async(ctx, func(ctx context.Context) (*T, error) {
		return r.Get(ctx, id)
	})
}

func (r *Repository[T]) ListAsync(ctx context.Context, q query.Query) *Future[[]T] {
	return Async(ctx, func(ctx context.Context) ([]T, error) {
		return r.List(ctx, q)
	})
}

func (r *Repository[T]) CreateAsync(ctx context.Context, value T) *Future[T] {
	return Async(ctx, func(ctx context.Context) (T, error) {
		return r.Create(ctx, value)
	})
}
