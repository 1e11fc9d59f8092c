// Package httpapi exposes the query bus over HTTP using echo.
package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	cbus "github.com/next-trace/scg-query-bus/contract/bus"
	berr "github.com/next-trace/scg-query-bus/contract/errors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ApplicationName becomes the prometheus subsystem.
	ApplicationName string

	// Registry enables HTTP metrics and GET /metrics when set.
	Registry *prometheus.Registry
}

// NewRouter builds the echo router with GET / bound to ctrl.
func NewRouter(cfg RouterConfig, logger *slog.Logger, ctrl *Controller) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.Logger.SetOutput(io.Discard)
	router.HTTPErrorHandler = errorHandler(logger)

	router.Use(middleware.Recover())
	router.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, rid string) {
			c.SetRequest(c.Request().WithContext(cbus.WithRequestID(c.Request().Context(), rid)))
		},
	}))
	router.Use(requestLogger(logger))

	if cfg.Registry != nil {
		router.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  metricName(cfg.ApplicationName),
			Registerer: cfg.Registry,
		}))
		router.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
			Gatherer: cfg.Registry,
		}))
	}

	router.GET("/", ctrl.sayHello)

	return router
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}

			if id, ok := cbus.RequestIDFrom(c.Request().Context()); ok {
				attrs = append(attrs, slog.String("request_id", id))
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelDebug, "http request", attrs...)

			return nil
		},
	})
}

func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := ErrorBody{
			StatusCode: http.StatusInternalServerError,
			Message:    http.StatusText(http.StatusInternalServerError),
		}

		var he *echo.HTTPError

		switch {
		case errors.As(err, &he):
			body.StatusCode = he.Code
			body.Message = fmt.Sprint(he.Message)
		case errors.Is(err, berr.ErrHandlerNotFound):
			body.Message = "no handler registered for query"
		}

		if body.StatusCode >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				slog.String("uri", c.Request().RequestURI),
				slog.String("error", err.Error()),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(body.StatusCode)

			return
		}

		_ = c.JSON(body.StatusCode, body)
	}
}

func metricName(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}

		return '_'
	}, s)
}
