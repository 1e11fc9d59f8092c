package bus

// Query is a marker interface for queries. Queries are handled synchronously and must not change state.
// A query type has at most one handler; its identity is its Go type, not its value.
type Query interface{}
