/*
Package rabbitmq publishes query bus integration events to RabbitMQ.
It maps events to AMQP publishings on a topic exchange, includes an auto-reconnect
publisher, and supports optional header propagation via a bus.HeaderPropagator.
*/
package rabbitmq
