package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	berr "github.com/next-trace/scg-query-bus/contract/errors"
)

const (
	defaultExchange = "queries"
	exchangeKind    = "topic"

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Config describes the broker connection.
type Config struct {
	URL         string
	Exchange    string
	ConnTimeout time.Duration
	Logger      *slog.Logger
}

// reconnectingPublisher keeps one channel open and redials with jittered backoff when the connection drops.
type reconnectingPublisher struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel

	closed    chan struct{}
	closeOnce sync.Once

	done chan struct{} // closed when run returns
}

func newReconnectingPublisher(cfg Config) *reconnectingPublisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rp := &reconnectingPublisher{
		cfg:    cfg,
		logger: logger,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go rp.run()

	return rp
}

// Publish fails immediately while no connection is up; it never waits for a redial.
func (rp *reconnectingPublisher) Publish(ctx context.Context, m PubMsg) error {
	select {
	case <-rp.closed:
		return fmt.Errorf("%w: rabbitmq publisher closed", berr.ErrPublishFailed)
	default:
	}

	rp.mu.RLock()
	ch := rp.ch
	rp.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("%w: rabbitmq not connected", berr.ErrPublishFailed)
	}

	return ch.PublishWithContext(ctx, m.Exchange, m.RoutingKey, false, false, toPublishing(m))
}

func (rp *reconnectingPublisher) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(rp.cfg.URL, amqp.Config{
		Locale:     "en_US",
		Properties: amqp.Table{"product": "scg-query-bus"},
		Dial:       amqp.DefaultDial(rp.cfg.ConnTimeout),
	})
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, nil, err
	}

	if err := ch.ExchangeDeclare(rp.cfg.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, nil, err
	}

	return conn, ch, nil
}

func (rp *reconnectingPublisher) run() {
	defer close(rp.done)

	backoff := initialBackoff

	for {
		conn, ch, err := rp.dial()
		if err != nil {
			// #nosec G404 -- non-crypto RNG is acceptable for backoff jitter
			sleep := min(backoff+rand.N(backoff/2), maxBackoff) //nolint:gosec // jitter only

			rp.logger.Warn("rabbitmq dial failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", sleep),
			)

			t := time.NewTimer(sleep)
			select {
			case <-rp.closed:
				t.Stop()

				return
			case <-t.C:
			}

			backoff = min(backoff*2, maxBackoff)

			continue
		}

		backoff = initialBackoff

		rp.mu.Lock()
		select {
		case <-rp.closed:
			rp.mu.Unlock()

			_ = ch.Close()
			_ = conn.Close()

			return
		default:
		}
		rp.conn, rp.ch = conn, ch
		rp.mu.Unlock()

		rp.logger.Debug("rabbitmq connected", slog.String("exchange", rp.cfg.Exchange))

		notify := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-rp.closed:
			return
		case <-notify:
			rp.mu.Lock()
			rp.conn, rp.ch = nil, nil
			rp.mu.Unlock()

			_ = ch.Close()
			_ = conn.Close()

			rp.logger.Warn("rabbitmq connection lost, reconnecting")
		}
	}
}

func (rp *reconnectingPublisher) close() {
	rp.closeOnce.Do(func() {
		close(rp.closed)

		rp.mu.Lock()
		defer rp.mu.Unlock()

		if rp.ch != nil {
			_ = rp.ch.Close()
			rp.ch = nil
		}

		if rp.conn != nil {
			_ = rp.conn.Close()
			rp.conn = nil
		}
	})
}

// NewWithAMQPConn dials RabbitMQ in the background with auto-reconnect, declares the exchange
// and returns an Adapter and cleanup.
func NewWithAMQPConn(cfg Config) (*Adapter, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: rabbitmq url required", berr.ErrPublishFailed)
	}

	if cfg.Exchange == "" {
		cfg.Exchange = defaultExchange
	}

	pub := newReconnectingPublisher(cfg)

	return &Adapter{Publisher: pub, Exchange: cfg.Exchange}, pub.close, nil
}
