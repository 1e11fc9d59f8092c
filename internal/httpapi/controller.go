package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/next-trace/scg-query-bus/internal/hello"
	"github.com/next-trace/scg-query-bus/servicebus"
)

// GreetingMessage is the fixed message GET / asks the bus to echo.
const GreetingMessage = "Hello"

// Controller turns HTTP requests into queries on the bus.
type Controller struct {
	bus *servicebus.Bus
}

func NewController(b *servicebus.Bus) *Controller { return &Controller{bus: b} }

// SayHello asks the bus to echo GreetingMessage.
// It is the same call for the HTTP route and the in-process self-check.
func (c *Controller) SayHello(ctx context.Context) (hello.Output, error) {
	return servicebus.Ask[hello.Query, hello.Output](ctx, c.bus, hello.Query{Message: GreetingMessage})
}

func (c *Controller) sayHello(e echo.Context) error {
	out, err := c.SayHello(e.Request().Context())
	if err != nil {
		return err
	}

	return e.JSON(http.StatusOK, out)
}
