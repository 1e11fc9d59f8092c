package bus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	cbus "github.com/next-trace/scg-query-bus/contract/bus"
)

func TestRequestIDPropagator(t *testing.T) {
	t.Parallel()

	t.Run("copies request id", func(t *testing.T) {
		t.Parallel()

		ctx := cbus.WithRequestID(t.Context(), "rid-1")
		h := map[string]string{}

		cbus.RequestIDPropagator{}.Inject(ctx, h)

		assert.Equal(t, "rid-1", h[cbus.HeaderRequestID])
	})

	t.Run("leaves headers alone without id", func(t *testing.T) {
		t.Parallel()

		h := map[string]string{}
		cbus.RequestIDPropagator{}.Inject(t.Context(), h)

		assert.Empty(t, h)
	})
}

func TestNopHeaderPropagator(t *testing.T) {
	t.Parallel()

	ctx := cbus.WithRequestID(t.Context(), "rid-1")
	h := map[string]string{"key": "v"}

	var p cbus.HeaderPropagator = cbus.NopHeaderPropagator{}
	p.Inject(ctx, h)

	assert.Equal(t, map[string]string{"key": "v"}, h)
}

func TestQueryHandlerFunc(t *testing.T) {
	t.Parallel()

	var h cbus.QueryHandler[string, int] = cbus.QueryHandlerFunc[string, int](
		func(_ cbus.Context, q string) (int, error) { return len(q), nil },
	)

	n, err := h.Handle(t.Context(), "four")
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestQueryAnsweredTopic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "queries.answered", cbus.QueryAnswered{}.Topic())
}
