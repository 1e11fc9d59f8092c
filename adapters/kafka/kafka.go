package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	cbus "github.com/next-trace/scg-query-bus/contract/bus"
	berr "github.com/next-trace/scg-query-bus/contract/errors"
)

// Writer is a minimal Kafka-like writer interface.
// The franz-go client is adapted to it by NewWithKgo; tests use fakes.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Adapter implements cbus.EventPublisher using an injected Writer.
type Adapter struct {
	Writer Writer
}

var _ cbus.EventPublisher = (*Adapter)(nil)

// New creates a new Kafka adapter instance with the provided writer.
func New(w Writer) *Adapter { return &Adapter{Writer: w} }

func (a *Adapter) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Writer == nil {
		return fmt.Errorf("kafka publish: %w", berr.ErrPublishFailed)
	}

	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	var key []byte
	if opts.Key != "" {
		key = []byte(opts.Key)
	}

	if err = a.Writer.Write(ctx, topicForEvent(e, opts), key, val, publishHeaders(opts)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("kafka publish write: %w", errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func topicForEvent(e cbus.IntegrationEvent, o cbus.PublishOptions) string {
	if o.TopicOverride != "" {
		return o.TopicOverride
	}

	return e.Topic()
}

// Kafka carries the partition key natively, so it is not duplicated into headers.
func publishHeaders(o cbus.PublishOptions) map[string]string {
	h := make(map[string]string, len(o.Headers))
	for k, v := range o.Headers {
		h[k] = v
	}

	return h
}
