package servicebus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	cbus "github.com/next-trace/scg-query-bus/contract/bus"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// DefaultPublishTimeout bounds a QueryAnswered publish when PublishAnswered is given no timeout.
const DefaultPublishTimeout = 2 * time.Second

// Logging logs every query at debug level, before and after it is handled.
func Logging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next QueryFunc) QueryFunc {
		return func(ctx context.Context, q any) (any, error) {
			name := typeName(q)

			logger.DebugContext(ctx, "executing query", slog.String("query", name))

			res, err := next(ctx, q)
			if err != nil {
				logger.DebugContext(ctx, "failed to execute query",
					slog.String("query", name),
					slog.String("error", err.Error()),
				)
			} else {
				logger.DebugContext(ctx, "query executed successfully", slog.String("query", name))
			}

			return res, err //nolint:wrapcheck // decorate but not change anything
		}
	}
}

// Metrics counts queries and records their duration on reg.
// Registering twice on the same registry reuses the existing collectors.
func Metrics(reg prometheus.Registerer) (QueryMiddleware, error) {
	asks, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_bus_asks_total",
		Help: "Number of queries answered by the bus.",
	}, []string{"query", "status"}))
	if err != nil {
		return nil, fmt.Errorf("register asks counter: %w", err)
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "query_bus_ask_duration_seconds",
		Help:    "Time spent answering a query.",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"}))
	if err != nil {
		return nil, fmt.Errorf("register ask duration: %w", err)
	}

	return func(next QueryFunc) QueryFunc {
		return func(ctx context.Context, q any) (any, error) {
			name := typeName(q)
			start := time.Now()

			res, err := next(ctx, q)

			status := statusSuccess
			if err != nil {
				status = statusFailure
			}

			asks.WithLabelValues(name, status).Inc()
			duration.WithLabelValues(name).Observe(time.Since(start).Seconds())

			return res, err //nolint:wrapcheck // decorate but not change anything
		}
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}

		return c, err
	}

	return c, nil
}

// PublishAnswered emits a QueryAnswered event through pub after every query.
// The publish outlives the caller's cancellation but is cut off after timeout
// (DefaultPublishTimeout when timeout <= 0).
// A failed publish is logged; it never changes the query's result.
func PublishAnswered(pub cbus.EventPublisher, logger *slog.Logger, timeout time.Duration) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}

	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}

	return func(next QueryFunc) QueryFunc {
		return func(ctx context.Context, q any) (any, error) {
			start := time.Now()

			res, err := next(ctx, q)

			evt := cbus.QueryAnswered{
				ID:         uuid.NewString(),
				Query:      typeName(q),
				Status:     statusSuccess,
				DurationMS: time.Since(start).Milliseconds(),
				OccurredAt: time.Now().UTC(),
			}
			if err != nil {
				evt.Status = statusFailure
				evt.Error = err.Error()
			}

			opts := cbus.PublishOptions{Key: evt.Query}

			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()

			if perr := pub.PublishIntegration(pctx, evt, opts); perr != nil {
				logger.WarnContext(ctx, "could not publish query answered event",
					slog.String("query", evt.Query),
					slog.String("error", perr.Error()),
				)
			}

			return res, err //nolint:wrapcheck // decorate but not change anything
		}
	}
}
