package errors

// Error codes for the query bus contracts. Keep stable; used across adapters and bus.
const (
	ErrCodeHandlerExists       = "querybus.handler_exists"
	ErrCodeHandlerNotFound     = "querybus.handler_not_found"
	ErrCodeHandlerTypeMismatch = "querybus.handler_type_mismatch"
	ErrCodeBusSealed           = "querybus.bus_sealed"
	ErrCodeAsyncNotConfigured  = "querybus.async_not_configured"
	ErrCodePublishFailed       = "querybus.publish_failed"
	ErrCodeSerializationFailed = "querybus.serialization_failed"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrHandlerExists       = Code(ErrCodeHandlerExists)
	ErrHandlerNotFound     = Code(ErrCodeHandlerNotFound)
	ErrHandlerTypeMismatch = Code(ErrCodeHandlerTypeMismatch)
	ErrBusSealed           = Code(ErrCodeBusSealed)
	ErrAsyncNotConfigured  = Code(ErrCodeAsyncNotConfigured)
	ErrPublishFailed       = Code(ErrCodePublishFailed)
	ErrSerializationFailed = Code(ErrCodeSerializationFailed)
)
