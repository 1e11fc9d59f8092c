package servicebus

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	cbus "github.com/next-trace/scg-query-bus/contract/bus"
	berr "github.com/next-trace/scg-query-bus/contract/errors"
)

// QueryFunc is the untyped form every bound handler is stored as.
type QueryFunc func(ctx context.Context, q any) (any, error)

// QueryMiddleware wraps query handler execution. Middlewares are executed in registration order.
type QueryMiddleware func(next QueryFunc) QueryFunc

// BusOption configures a Bus instance.
type BusOption func(*Bus)

// Bus is a thin in-process mediator with an internal binder.
// It routes each query to the single handler bound for the query's type
// and returns the handler's result unmodified.
//
// Bus is concurrency-safe and contains no global state. Once sealed, the
// registration table is read-only and lookups take no lock.
type Bus struct {
	mu     sync.RWMutex
	sealed atomic.Bool

	qry map[reflect.Type]QueryFunc

	// global query middleware executed in registration order
	mw []QueryMiddleware

	pub    cbus.EventPublisher
	logger *slog.Logger

	cleanups  []func()
	closeOnce sync.Once
}

var _ cbus.Bus = (*Bus)(nil)

// New constructs a new Bus with an optional publisher and logger.
func New(pub cbus.EventPublisher, logger *slog.Logger, opts ...BusOption) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bus{
		qry:    make(map[reflect.Type]QueryFunc),
		pub:    pub,
		logger: logger,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// WithQueryMiddleware registers global query middleware via an option.
func WithQueryMiddleware(mw ...QueryMiddleware) BusOption {
	return func(b *Bus) { b.mw = append(b.mw, mw...) }
}

// WithCleanup attaches a function that Close runs, e.g. closing a broker connection.
func WithCleanup(fn func()) BusOption {
	return func(b *Bus) {
		if fn != nil {
			b.cleanups = append(b.cleanups, fn)
		}
	}
}

// QueryBus is a thin facade over Bus for queries.
type QueryBus struct{ b *Bus }

// NewQueryBus constructs a QueryBus over a Bus.
func NewQueryBus(b *Bus) *QueryBus { return &QueryBus{b: b} }

// Ask executes an untyped query using the underlying Bus.
func (q *QueryBus) Ask(ctx context.Context, query any) (any, error) { return q.b.Ask(ctx, query) }

// AskGeneric is a typed helper to execute queries via a QueryBus.
func AskGeneric[Q cbus.Query, R any](ctx context.Context, qb *QueryBus, query Q) (R, error) {
	return Ask[Q, R](ctx, qb.b, query)
}

// BindQueryOf registers a handler for a specific query type returning any result.
// Provide a zero value of the query type via sample.
func (b *Bus) BindQueryOf(sample any, handler func(ctx context.Context, q any) (any, error)) error {
	return b.bind(reflect.TypeOf(sample), handler)
}

// BindQuery registers a handler for query type Q producing R. Duplicate bindings are rejected.
func BindQuery[Q cbus.Query, R any](b *Bus, h cbus.QueryHandler[Q, R]) error {
	var zero Q

	return b.bind(reflect.TypeOf(zero), func(ctx context.Context, v any) (any, error) {
		q, ok := v.(Q)
		if !ok {
			return nil, fmt.Errorf("ask %s: %w", typeName(v), berr.ErrHandlerTypeMismatch)
		}

		return h.Handle(ctx, q)
	})
}

func (b *Bus) bind(t reflect.Type, f QueryFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed.Load() {
		return fmt.Errorf("bind query %s: %w", typeString(t), berr.ErrBusSealed)
	}

	if _, exists := b.qry[t]; exists {
		return fmt.Errorf("bind query %s: %w", typeString(t), berr.ErrHandlerExists)
	}

	b.qry[t] = f

	b.logger.Debug("query handler bound", slog.String("query", typeString(t)))

	return nil
}

// Seal freezes the registration table. Further binds fail with ErrBusSealed.
func (b *Bus) Seal() {
	b.mu.Lock()
	b.sealed.Store(true)
	b.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (b *Bus) Sealed() bool { return b.sealed.Load() }

// Close seals the bus and runs attached cleanups once.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		b.Seal()

		for i := len(b.cleanups) - 1; i >= 0; i-- {
			b.cleanups[i]()
		}
	})

	return nil
}

func (b *Bus) lookup(q any) (QueryFunc, bool) {
	t := reflect.TypeOf(q)

	if b.sealed.Load() {
		f, ok := b.qry[t]

		return f, ok
	}

	b.mu.RLock()
	f, ok := b.qry[t]
	b.mu.RUnlock()

	return f, ok
}

// Ask executes a query handler synchronously and returns an untyped result.
func (b *Bus) Ask(ctx context.Context, q any) (any, error) {
	f, ok := b.lookup(q)
	if !ok {
		return nil, fmt.Errorf("ask %s: %w", typeName(q), berr.ErrHandlerNotFound)
	}

	return b.chain(f)(ctx, q)
}

// Ask executes a query handler synchronously and returns the result.
func Ask[Q cbus.Query, R any](ctx context.Context, b *Bus, q Q) (R, error) {
	var zero R

	res, err := b.Ask(ctx, q)
	if err != nil {
		return zero, err
	}

	r, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("ask %s: %w", typeName(q), berr.ErrHandlerTypeMismatch)
	}

	return r, nil
}

// PublishIntegration publishes an integration event via the configured EventPublisher.
func (b *Bus) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if b.pub == nil {
		return fmt.Errorf("publish integration %T: %w", e, berr.ErrAsyncNotConfigured)
	}

	return b.pub.PublishIntegration(ctx, e, opts)
}

// chain builds the middleware chain so the first registered middleware runs first.
func (b *Bus) chain(f QueryFunc) QueryFunc {
	final := f
	for i := len(b.mw) - 1; i >= 0; i-- {
		final = b.mw[i](final)
	}

	return final
}

func typeName(v any) string {
	return typeString(reflect.TypeOf(v))
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	return t.String()
}
