package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	cbus "github.com/next-trace/scg-query-bus/contract/bus"
	berr "github.com/next-trace/scg-query-bus/contract/errors"
)

// PubMsg is a transport-neutral AMQP publishing.
type PubMsg struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	Headers    map[string]string
}

// Publisher sends a PubMsg to the broker.
type Publisher interface {
	Publish(ctx context.Context, m PubMsg) error
}

// Adapter implements cbus.EventPublisher on top of a Publisher.
type Adapter struct {
	Publisher  Publisher
	Exchange   string
	Propagator cbus.HeaderPropagator // optional, for context propagation into headers
}

var _ cbus.EventPublisher = (*Adapter)(nil)

// New publishes through p to the default exchange.
func New(p Publisher) *Adapter { return &Adapter{Publisher: p} }

// NewWithPropagator allows configuring a HeaderPropagator for context propagation.
func NewWithPropagator(p Publisher, hp cbus.HeaderPropagator) *Adapter {
	return &Adapter{Publisher: p, Propagator: hp}
}

func (a *Adapter) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Publisher == nil {
		return fmt.Errorf("rabbitmq publish: %w", berr.ErrPublishFailed)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	// copy headers to avoid mutating caller-provided map
	hdrs := make(map[string]string, len(opts.Headers)+2)
	for k, v := range opts.Headers {
		hdrs[k] = v
	}

	if opts.Key != "" {
		hdrs["key"] = opts.Key
	}

	if a.Propagator != nil {
		a.Propagator.Inject(ctx, hdrs)
	}

	msg := PubMsg{
		Exchange:   a.Exchange,
		RoutingKey: routingForEvent(e, opts),
		Body:       body,
		Headers:    hdrs,
	}

	if err := a.Publisher.Publish(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq publish: %w", errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func routingForEvent(e cbus.IntegrationEvent, o cbus.PublishOptions) string {
	if o.TopicOverride != "" {
		return o.TopicOverride
	}

	return e.Topic()
}

func toPublishing(m PubMsg) amqp.Publishing {
	var h amqp.Table
	if len(m.Headers) > 0 {
		h = amqp.Table{}
		for k, v := range m.Headers {
			h[k] = v
		}
	}

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Headers:      h,
		ContentType:  "application/json",
		Body:         m.Body,
	}
}

type amqpChannelPublisher struct{ ch *amqp.Channel }

func (p amqpChannelPublisher) Publish(ctx context.Context, m PubMsg) error {
	return p.ch.PublishWithContext(ctx, m.Exchange, m.RoutingKey, false, false, toPublishing(m))
}

// NewWithAMQPChannel publishes on an already open channel. The caller owns the channel.
func NewWithAMQPChannel(ch *amqp.Channel, exchange string) *Adapter {
	return &Adapter{Publisher: amqpChannelPublisher{ch: ch}, Exchange: exchange}
}
