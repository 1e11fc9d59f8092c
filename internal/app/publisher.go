package app

import (
	"fmt"
	"log/slog"

	"github.com/next-trace/scg-query-bus/adapters/inmemory"
	"github.com/next-trace/scg-query-bus/adapters/kafka"
	"github.com/next-trace/scg-query-bus/adapters/nats"
	"github.com/next-trace/scg-query-bus/adapters/rabbitmq"
	cbus "github.com/next-trace/scg-query-bus/contract/bus"
	"github.com/next-trace/scg-query-bus/internal/config"
)

// newPublisher builds the QueryAnswered publisher selected by cfg.Kind.
// A nil publisher means events are disabled. cleanup is never nil.
func newPublisher(cfg config.Publisher, appName string, logger *slog.Logger) (cbus.EventPublisher, func(), error) {
	noop := func() {}

	switch cfg.Kind {
	case config.PublisherMemory:
		return inmemory.New(), noop, nil
	case config.PublisherNATS:
		ad, cleanup, err := nats.NewWithNATS(nats.Config{
			URL:         cfg.NATS.URL,
			Name:        appName,
			ConnTimeout: cfg.NATS.ConnTimeout,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("nats publisher: %w", err)
		}

		return ad, cleanup, nil
	case config.PublisherKafka:
		ad, cleanup, err := kafka.NewWithKgo(kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("kafka publisher: %w", err)
		}

		return ad, cleanup, nil
	case config.PublisherRabbitMQ:
		ad, cleanup, err := rabbitmq.NewWithAMQPConn(rabbitmq.Config{
			URL:         cfg.RabbitMQ.URL,
			Exchange:    cfg.RabbitMQ.Exchange,
			ConnTimeout: cfg.RabbitMQ.ConnTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("rabbitmq publisher: %w", err)
		}

		ad.Propagator = cbus.RequestIDPropagator{}

		return ad, cleanup, nil
	default:
		return nil, noop, nil
	}
}
