// Package config loads the service configuration with viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported publisher kinds for QueryAnswered events.
const (
	PublisherNone     = "none"
	PublisherMemory   = "memory"
	PublisherNATS     = "nats"
	PublisherKafka    = "kafka"
	PublisherRabbitMQ = "rabbitmq"
)

// EnvPrefix prefixes every environment override, e.g. SCG_HTTP_PORT.
const EnvPrefix = "SCG"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is mapped by viper.
type Config struct {
	ApplicationName string `mapstructure:"application_name"`

	HTTP      HTTP      `mapstructure:"http"`
	Log       Log       `mapstructure:"log"`
	SelfCheck bool      `mapstructure:"self_check"`
	Publisher Publisher `mapstructure:"publisher"`
}

type (
	HTTP struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
	}

	Log struct {
		Level string `mapstructure:"level"`
	}

	Publisher struct {
		Kind     string        `mapstructure:"kind"`
		Timeout  time.Duration `mapstructure:"timeout"`
		NATS     NATS          `mapstructure:"nats"`
		Kafka    Kafka         `mapstructure:"kafka"`
		RabbitMQ RabbitMQ      `mapstructure:"rabbitmq"`
	}

	NATS struct {
		URL         string        `mapstructure:"url"`
		ConnTimeout time.Duration `mapstructure:"conn_timeout"`
	}

	Kafka struct {
		Brokers  []string `mapstructure:"brokers"`
		ClientID string   `mapstructure:"client_id"`
	}

	RabbitMQ struct {
		URL         string        `mapstructure:"url"`
		Exchange    string        `mapstructure:"exchange"`
		ConnTimeout time.Duration `mapstructure:"conn_timeout"`
	}
)

// Default returns a viper instance with every key of Config set to its default.
// Keys must be known to viper for environment overrides to reach Unmarshal.
func Default() *viper.Viper {
	vip := viper.New()

	vip.SetDefault("application_name", "scg-query-bus")
	vip.SetDefault("self_check", true)

	vip.SetDefault("http.host", "localhost")
	vip.SetDefault("http.port", 1111)
	vip.SetDefault("http.shutdown_timeout", 5*time.Second)
	vip.SetDefault("http.metrics_enabled", true)

	vip.SetDefault("log.level", "info")

	vip.SetDefault("publisher.kind", PublisherNone)
	vip.SetDefault("publisher.timeout", 2*time.Second)
	vip.SetDefault("publisher.nats.url", "")
	vip.SetDefault("publisher.nats.conn_timeout", 2*time.Second)
	vip.SetDefault("publisher.kafka.brokers", []string{})
	vip.SetDefault("publisher.kafka.client_id", "scg-query-bus")
	vip.SetDefault("publisher.rabbitmq.url", "")
	vip.SetDefault("publisher.rabbitmq.exchange", "queries")
	vip.SetDefault("publisher.rabbitmq.conn_timeout", 5*time.Second)

	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()

	return vip
}

// Load reads defaults, the optional file at path and environment overrides, in that order of precedence.
func Load(path string) (Config, error) {
	vip := Default()

	if path != "" {
		vip.SetConfigFile(path)

		if err := vip.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	// port 0 binds any free port
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port %d out of range", ErrInvalidConfig, c.HTTP.Port)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	kinds := []string{PublisherNone, PublisherMemory, PublisherNATS, PublisherKafka, PublisherRabbitMQ}
	if !slices.Contains(kinds, c.Publisher.Kind) {
		return fmt.Errorf("%w: publisher.kind %q, want one of %v", ErrInvalidConfig, c.Publisher.Kind, kinds)
	}

	switch c.Publisher.Kind {
	case PublisherNATS:
		if c.Publisher.NATS.URL == "" {
			return fmt.Errorf("%w: publisher.nats.url required", ErrInvalidConfig)
		}
	case PublisherKafka:
		if len(c.Publisher.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: publisher.kafka.brokers required", ErrInvalidConfig)
		}
	case PublisherRabbitMQ:
		if c.Publisher.RabbitMQ.URL == "" {
			return fmt.Errorf("%w: publisher.rabbitmq.url required", ErrInvalidConfig)
		}
	}

	return nil
}

// SlogLevel parses Level, e.g. "debug" or "warn+2".
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}

	return lvl, nil
}

// Addr is the listen address, e.g. ":1111".
func (h HTTP) Addr() string { return fmt.Sprintf(":%d", h.Port) }

// URL is the address printed on startup.
func (h HTTP) URL() string { return fmt.Sprintf("http://%s:%d", h.Host, h.Port) }
