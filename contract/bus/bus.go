package bus

import "context"

// Bus is a minimal, tech-agnostic interface that mirrors the capabilities of the
// concrete query bus while remaining non-generic for interface compatibility.
//
// Typed helpers remain available via generic helper functions in the servicebus package.
type Bus interface {
	// BindQueryOf registers an untyped handler for the type of sample.
	BindQueryOf(sample any, handler func(ctx context.Context, q any) (any, error)) error

	// Ask routes q to the handler bound for its type.
	Ask(ctx context.Context, query any) (any, error)

	// Seal freezes the registration table.
	Seal()

	// Close seals the bus and releases attached resources.
	Close() error
}
