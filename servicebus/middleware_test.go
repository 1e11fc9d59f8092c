package servicebus_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-query-bus/adapters/inmemory"
	cbus "github.com/next-trace/scg-query-bus/contract/bus"
	"github.com/next-trace/scg-query-bus/servicebus"
)

func newDebugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogging(t *testing.T) {
	t.Parallel()

	t.Run("successful query", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		b := servicebus.New(nil, nil, servicebus.WithQueryMiddleware(servicebus.Logging(newDebugLogger(buf))))
		require.NoError(t, servicebus.BindQuery[testQry, testRes](b, echoHandler{}))

		_, err := b.Ask(t.Context(), testQry{})
		require.NoError(t, err)

		assert.Contains(t, buf.String(), `msg="executing query"`)
		assert.Contains(t, buf.String(), `query=servicebus_test.testQry`)
		assert.Contains(t, buf.String(), `msg="query executed successfully"`)
	})

	t.Run("failed query", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		b := servicebus.New(nil, nil, servicebus.WithQueryMiddleware(servicebus.Logging(newDebugLogger(buf))))
		require.NoError(t, b.BindQueryOf(testQry{}, func(context.Context, any) (any, error) {
			return nil, errors.New("some-error")
		}))

		_, err := b.Ask(t.Context(), testQry{})
		require.Error(t, err)

		assert.Contains(t, buf.String(), `msg="failed to execute query"`)
		assert.Contains(t, buf.String(), `error=some-error`)
	})
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()

	mw, err := servicebus.Metrics(reg)
	require.NoError(t, err)

	// a second bus on the same registry shares the collectors
	_, err = servicebus.Metrics(reg)
	require.NoError(t, err)

	b := servicebus.New(nil, nil, servicebus.WithQueryMiddleware(mw))
	require.NoError(t, servicebus.BindQuery[testQry, testRes](b, echoHandler{}))
	require.NoError(t, b.BindQueryOf(otherQry{}, func(context.Context, any) (any, error) {
		return nil, errors.New("fail")
	}))

	_, _ = b.Ask(t.Context(), testQry{})
	_, _ = b.Ask(t.Context(), testQry{})
	_, _ = b.Ask(t.Context(), otherQry{})

	n, err := testutil.GatherAndCount(reg, "query_bus_asks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per query and status")

	n, err = testutil.GatherAndCount(reg, "query_bus_ask_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

type failingPub struct{}

func (failingPub) PublishIntegration(context.Context, cbus.IntegrationEvent, cbus.PublishOptions) error {
	return errors.New("broker down")
}

// blockingPub holds every publish until its context ends, like a broker that never answers.
type blockingPub struct{}

func (blockingPub) PublishIntegration(ctx context.Context, _ cbus.IntegrationEvent, _ cbus.PublishOptions) error {
	<-ctx.Done()

	return ctx.Err()
}

func TestPublishAnswered(t *testing.T) {
	t.Parallel()

	t.Run("publishes success and failure", func(t *testing.T) {
		t.Parallel()

		pub := inmemory.New()
		b := servicebus.New(pub, nil, servicebus.WithQueryMiddleware(servicebus.PublishAnswered(pub, nil, 0)))
		require.NoError(t, servicebus.BindQuery[testQry, testRes](b, echoHandler{}))
		require.NoError(t, b.BindQueryOf(otherQry{}, func(context.Context, any) (any, error) {
			return nil, errors.New("nope")
		}))

		_, err := b.Ask(t.Context(), testQry{ID: "1"})
		require.NoError(t, err)
		_, err = b.Ask(t.Context(), otherQry{})
		require.Error(t, err)

		events := pub.Recorded()
		require.Len(t, events, 2)

		ok := events[0].(cbus.QueryAnswered)
		assert.Equal(t, "servicebus_test.testQry", ok.Query)
		assert.Equal(t, "success", ok.Status)
		assert.NotEmpty(t, ok.ID)
		assert.Empty(t, ok.Error)

		failed := events[1].(cbus.QueryAnswered)
		assert.Equal(t, "failure", failed.Status)
		assert.Equal(t, "nope", failed.Error)
		assert.NotEqual(t, ok.ID, failed.ID)
	})

	t.Run("publish failure does not fail the query", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		b := servicebus.New(nil, nil, servicebus.WithQueryMiddleware(
			servicebus.PublishAnswered(failingPub{}, newDebugLogger(buf), 0),
		))
		require.NoError(t, servicebus.BindQuery[testQry, testRes](b, echoHandler{}))

		res, err := servicebus.Ask[testQry, testRes](t.Context(), b, testQry{ID: "still"})
		require.NoError(t, err)
		assert.Equal(t, "still", res.ID)
		assert.Contains(t, buf.String(), "could not publish query answered event")
	})

	t.Run("stuck publisher is cut off by the timeout", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		b := servicebus.New(nil, nil, servicebus.WithQueryMiddleware(
			servicebus.PublishAnswered(blockingPub{}, newDebugLogger(buf), 50*time.Millisecond),
		))
		require.NoError(t, servicebus.BindQuery[testQry, testRes](b, echoHandler{}))

		type result struct {
			res testRes
			err error
		}

		done := make(chan result, 1)
		go func() {
			res, err := servicebus.Ask[testQry, testRes](context.Background(), b, testQry{ID: "bounded"})
			done <- result{res, err}
		}()

		select {
		case r := <-done:
			require.NoError(t, r.err)
			assert.Equal(t, "bounded", r.res.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("query blocked on the publisher")
		}

		assert.Contains(t, buf.String(), "could not publish query answered event")
		assert.Contains(t, buf.String(), "context deadline exceeded")
	})

	t.Run("stuck publisher ignores caller cancellation until the timeout", func(t *testing.T) {
		t.Parallel()

		b := servicebus.New(nil, nil, servicebus.WithQueryMiddleware(
			servicebus.PublishAnswered(blockingPub{}, nil, 30*time.Millisecond),
		))
		require.NoError(t, servicebus.BindQuery[testQry, testRes](b, echoHandler{}))

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		res, err := servicebus.Ask[testQry, testRes](ctx, b, testQry{ID: "after-cancel"})
		require.NoError(t, err)
		assert.Equal(t, "after-cancel", res.ID)
	})
}
