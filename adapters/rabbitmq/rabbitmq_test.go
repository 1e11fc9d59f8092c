package rabbitmq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-query-bus/adapters/rabbitmq"
	cbus "github.com/next-trace/scg-query-bus/contract/bus"
	berr "github.com/next-trace/scg-query-bus/contract/errors"
)

type fakePublisher struct {
	calls []rabbitmq.PubMsg
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, m rabbitmq.PubMsg) error {
	f.calls = append(f.calls, m)

	return f.err
}

type integ struct{ T string }

func (integ) Topic() string { return "evt.orders" }

func TestRabbitMQ_PublishIntegration(t *testing.T) {
	t.Parallel()

	fp := &fakePublisher{}
	ad := rabbitmq.New(fp)

	headers := map[string]string{"ph": "pv"}
	po := cbus.PublishOptions{TopicOverride: "evt.override", Key: "rk", Headers: headers}
	require.NoError(t, ad.PublishIntegration(t.Context(), integ{T: "t"}, po))

	require.Len(t, fp.calls, 1)

	p := fp.calls[0]
	assert.Empty(t, p.Exchange)
	assert.Equal(t, "evt.override", p.RoutingKey)
	assert.Equal(t, "pv", p.Headers["ph"])
	assert.Equal(t, "rk", p.Headers["key"])
	assert.NotEmpty(t, p.Body)
	assert.Len(t, headers, 1, "caller headers must not be mutated")
}

func TestRabbitMQ_DefaultRoutingAndExchange(t *testing.T) {
	t.Parallel()

	fp := &fakePublisher{}
	ad := &rabbitmq.Adapter{Publisher: fp, Exchange: "queries"}

	require.NoError(t, ad.PublishIntegration(t.Context(), cbus.QueryAnswered{ID: "1"}, cbus.PublishOptions{}))

	require.Len(t, fp.calls, 1)
	assert.Equal(t, "queries", fp.calls[0].Exchange)
	assert.Equal(t, cbus.TopicQueryAnswered, fp.calls[0].RoutingKey)
}

func TestRabbitMQ_Propagator(t *testing.T) {
	t.Parallel()

	fp := &fakePublisher{}
	ad := rabbitmq.NewWithPropagator(fp, cbus.RequestIDPropagator{})

	ctx := cbus.WithRequestID(t.Context(), "rid-9")
	require.NoError(t, ad.PublishIntegration(ctx, integ{}, cbus.PublishOptions{}))

	require.Len(t, fp.calls, 1)
	assert.Equal(t, "rid-9", fp.calls[0].Headers[cbus.HeaderRequestID])
}

func TestRabbitMQ_NilPublisherError(t *testing.T) {
	t.Parallel()

	err := rabbitmq.New(nil).PublishIntegration(t.Context(), integ{T: "t"}, cbus.PublishOptions{})
	assert.ErrorIs(t, err, berr.ErrPublishFailed)
}

func TestRabbitMQ_Publish_ErrorWrapping_And_ContextCancel(t *testing.T) {
	t.Parallel()

	err := rabbitmq.New(&fakePublisher{err: errors.New("boom")}).
		PublishIntegration(t.Context(), integ{}, cbus.PublishOptions{})
	assert.ErrorIs(t, err, berr.ErrPublishFailed)

	err = rabbitmq.New(&fakePublisher{err: context.Canceled}).
		PublishIntegration(t.Context(), integ{T: "evt.orders"}, cbus.PublishOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, berr.ErrPublishFailed)
}
