// Package hello holds the echo use case: a query carrying a message is answered
// with a fixed success status and the same message.
package hello

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/next-trace/scg-query-bus/servicebus"
)

// Query asks for Message to be echoed back.
type Query struct {
	Message string
}

// Output is the echo result.
type Output struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Handler answers Query. It has no state and never fails.
type Handler struct {
	logger *slog.Logger
}

// NewHandler returns a Handler that logs through logger.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{logger: logger}
}

func (h *Handler) Handle(ctx context.Context, q Query) (Output, error) {
	h.logger.DebugContext(ctx, "echoing message", slog.Int("length", len(q.Message)))

	return Output{StatusCode: http.StatusOK, Message: q.Message}, nil
}

// Register binds h to Query on b.
func Register(b *servicebus.Bus, h *Handler) error {
	return servicebus.BindQuery[Query, Output](b, h)
}
