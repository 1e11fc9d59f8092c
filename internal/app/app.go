// Package app composes the service: publisher, query bus, handlers and HTTP layer.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	cbus "github.com/next-trace/scg-query-bus/contract/bus"
	"github.com/next-trace/scg-query-bus/internal/config"
	"github.com/next-trace/scg-query-bus/internal/hello"
	"github.com/next-trace/scg-query-bus/internal/httpapi"
	"github.com/next-trace/scg-query-bus/servicebus"
)

// App owns every long-lived component of the process.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	publisher cbus.EventPublisher
	registry  *prometheus.Registry
	bus       *servicebus.Bus
	ctrl      *httpapi.Controller
	server    *httpapi.Server

	started chan struct{}
	addr    net.Addr
}

// New wires the application in order: publisher, bus, handlers, HTTP layer.
// The bus is sealed before New returns.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		started:  make(chan struct{}),
	}

	pub, cleanup, err := newPublisher(cfg.Publisher, cfg.ApplicationName, logger)
	if err != nil {
		return nil, err
	}

	a.publisher = pub

	metrics, err := servicebus.Metrics(a.registry)
	if err != nil {
		cleanup()

		return nil, fmt.Errorf("bus metrics: %w", err)
	}

	mws := []servicebus.QueryMiddleware{servicebus.Logging(logger), metrics}
	if pub != nil {
		mws = append(mws, servicebus.PublishAnswered(pub, logger, cfg.Publisher.Timeout))
	}

	a.bus = servicebus.New(pub, logger,
		servicebus.WithQueryMiddleware(mws...),
		servicebus.WithCleanup(cleanup),
	)

	if err := hello.Register(a.bus, hello.NewHandler(logger.With(slog.String("handler", "hello")))); err != nil {
		_ = a.bus.Close()

		return nil, fmt.Errorf("register handlers: %w", err)
	}

	a.bus.Seal()

	routerCfg := httpapi.RouterConfig{ApplicationName: cfg.ApplicationName}
	if cfg.HTTP.MetricsEnabled {
		routerCfg.Registry = a.registry
	}

	a.ctrl = httpapi.NewController(a.bus)
	a.server = httpapi.NewServer(httpapi.NewRouter(routerCfg, logger, a.ctrl))

	return a, nil
}

// Run listens, runs the self-check and serves until ctx is done, then shuts down gracefully.
// Run must be called at most once.
func (a *App) Run(ctx context.Context) error {
	defer func() { _ = a.bus.Close() }()

	addr, err := a.server.Listen(a.cfg.HTTP.Addr())
	if err != nil {
		return err
	}

	a.addr = addr

	a.logger.InfoContext(ctx, "app started", slog.String("url", a.url(addr)))
	close(a.started)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.server.Serve)

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		a.logger.InfoContext(shutdownCtx, "shutting down")

		return a.server.Shutdown(shutdownCtx)
	})

	if a.cfg.SelfCheck {
		g.Go(func() error {
			out, err := a.SelfCheck(gctx)
			if err != nil {
				return fmt.Errorf("self-check: %w", err)
			}

			a.logger.InfoContext(gctx, "message is",
				slog.Int("statusCode", out.StatusCode),
				slog.String("message", out.Message),
			)

			return nil
		})
	}

	return g.Wait()
}

// SelfCheck invokes the controller in-process, bypassing HTTP.
func (a *App) SelfCheck(ctx context.Context) (hello.Output, error) {
	return a.ctrl.SayHello(ctx)
}

// Started is closed once the listener is bound.
func (a *App) Started() <-chan struct{} { return a.started }

// Addr is the bound address. It is only valid after Started is closed.
func (a *App) Addr() net.Addr { return a.addr }

// Publisher is the configured event publisher, nil when events are disabled.
func (a *App) Publisher() cbus.EventPublisher { return a.publisher }

func (a *App) url(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return fmt.Sprintf("http://%s:%d", a.cfg.HTTP.Host, tcp.Port)
	}

	return a.cfg.HTTP.URL()
}
