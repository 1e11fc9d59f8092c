package bus

import "context"

// EventPublisher abstracts publishing integration events to a broker/bus.
// Implementations map to Kafka/NATS/RabbitMQ or keep events in memory.
type EventPublisher interface {
	PublishIntegration(ctx context.Context, evt IntegrationEvent, opts PublishOptions) error
}
