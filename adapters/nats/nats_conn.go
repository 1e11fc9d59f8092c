package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	berr "github.com/next-trace/scg-query-bus/contract/errors"
)

const (
	defaultName         = "scg-query-bus"
	defaultFlushTimeout = 2 * time.Second
)

// Config describes how to reach the NATS server.
type Config struct {
	URL           string
	Name          string
	ConnTimeout   time.Duration
	FlushTimeout  time.Duration
	MaxReconnects int
}

type connClient struct {
	nc           *nats.Conn
	flushTimeout time.Duration
}

func (c connClient) Publish(subject string, data []byte, headers map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data

	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	if err := c.nc.PublishMsg(msg); err != nil {
		return err
	}

	return c.nc.FlushTimeout(c.flushTimeout)
}

// NewWithNATS connects to NATS and returns an Adapter and a cleanup that drains the connection.
func NewWithNATS(cfg Config) (*Adapter, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: nats url required", berr.ErrPublishFailed)
	}

	name := cfg.Name
	if name == "" {
		name = defaultName
	}

	flush := cfg.FlushTimeout
	if flush <= 0 {
		flush = defaultFlushTimeout
	}

	opts := []nats.Option{nats.Name(name)}

	if cfg.ConnTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnTimeout))
	}

	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: nats connect: %w", berr.ErrPublishFailed, err)
	}

	cleanup := func() {
		if !nc.IsClosed() {
			_ = nc.Drain() //nolint:errcheck // best-effort shutdown; cannot return error here
		}
	}

	return New(connClient{nc: nc, flushTimeout: flush}), cleanup, nil
}
