// Package memory offers a ready-made query bus backed by the in-memory publisher.
// It exists for embedding the bus in other programs and for tests; the server composes its own bus in internal/app.
package memory

import (
	"github.com/next-trace/scg-query-bus/adapters/inmemory"
	cbus "github.com/next-trace/scg-query-bus/contract/bus"
	"github.com/next-trace/scg-query-bus/servicebus"
)

// New constructs a query bus whose QueryAnswered events are recorded in memory.
// It returns the bus as a contract.Bus, the recording publisher and a cleanup that closes the bus.
func New() (cbus.Bus, *inmemory.Publisher, func()) { //nolint:ireturn
	pub := inmemory.New()
	sb := servicebus.New(pub, nil, servicebus.WithQueryMiddleware(servicebus.PublishAnswered(pub, nil, 0)))
	cleanup := func() { _ = sb.Close() }

	return sb, pub, cleanup
}
