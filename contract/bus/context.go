package bus

import "context"

// Context is re-exported for convenience in handler signatures.
// It avoids importing context in user packages when referencing bus types.
type Context = context.Context

// HeaderRequestID carries the originating request id across process boundaries.
const HeaderRequestID = "x-request-id"

// HeaderPropagator abstracts injecting request context into headers.
// Implementations must be safe for concurrent use.
type HeaderPropagator interface {
	Inject(ctx context.Context, headers map[string]string)
}

// NopHeaderPropagator is a no-op implementation useful for tests.
type NopHeaderPropagator struct{}

func (NopHeaderPropagator) Inject(context.Context, map[string]string) {}

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id stored in ctx, if any.
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)

	return id, ok && id != ""
}

// RequestIDPropagator copies the request id from the context into HeaderRequestID.
type RequestIDPropagator struct{}

func (RequestIDPropagator) Inject(ctx context.Context, headers map[string]string) {
	if id, ok := RequestIDFrom(ctx); ok {
		headers[HeaderRequestID] = id
	}
}
