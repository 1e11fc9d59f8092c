package servicebus

import (
	"context"

	cbus "github.com/next-trace/scg-query-bus/contract/bus"
)

// Future holds the eventual result of an asynchronous Ask.
type Future[R any] struct {
	done chan struct{}
	res  R
	err  error
}

// AskAsync starts Ask in its own goroutine and returns immediately.
func AskAsync[Q cbus.Query, R any](ctx context.Context, b *Bus, q Q) *Future[R] {
	f := &Future[R]{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		f.res, f.err = Ask[Q, R](ctx, b, q)
	}()

	return f
}

// Done is closed once the result is available.
func (f *Future[R]) Done() <-chan struct{} { return f.done }

// Await blocks until the result is available or ctx is done.
func (f *Future[R]) Await(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		var zero R

		return zero, ctx.Err()
	}
}
