/*
Package servicebus provides a thin, opinionated query bus.
It maps each query type to exactly one handler and routes queries to it,
while remaining decoupled from concrete transports via interfaces.
*/
package servicebus
