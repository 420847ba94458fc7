package kgo

import "fmt"

// This file realizes every error kind of spec.md §7 as a distinct Go
// type satisfying error, so callers can distinguish them with
// errors.As rather than string matching.

// ConnectionError wraps a failed TCP dial.
type ConnectionError struct{ Reason error }

func (e *ConnectionError) Error() string { return fmt.Sprintf("kgo: connection failed: %v", e.Reason) }
func (e *ConnectionError) Unwrap() error { return e.Reason }

// TLSUpgradeError wraps a failed TLS handshake, plus the diagnostic
// hint of spec.md §4.4 when one applies.
type TLSUpgradeError struct {
	Reason error
	Hint   string
}

func (e *TLSUpgradeError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("kgo: failed to upgrade to tls: %v", e.Reason)
	}
	return fmt.Sprintf("kgo: failed to upgrade to tls: %v (%s)", e.Reason, e.Hint)
}
func (e *TLSUpgradeError) Unwrap() error { return e.Reason }

// SASLAuthError wraps a rejected SASL handshake or token exchange,
// plus a diagnostic hint when one applies.
type SASLAuthError struct {
	Detail error
	Hint   string
}

func (e *SASLAuthError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("kgo: sasl authentication error: %v", e.Detail)
	}
	return fmt.Sprintf("kgo: sasl authentication error: %v (%s)", e.Detail, e.Hint)
}
func (e *SASLAuthError) Unwrap() error { return e.Detail }

// SendError means a socket write failed; the connection that returned
// it is always already dead.
type SendError struct{ Reason error }

func (e *SendError) Error() string { return fmt.Sprintf("kgo: send error: %v", e.Reason) }
func (e *SendError) Unwrap() error { return e.Reason }

// TransportClosedError means the peer closed the connection cleanly.
type TransportClosedError struct{}

func (*TransportClosedError) Error() string { return "kgo: transport closed" }

// TransportError wraps an I/O error observed while reading from an
// established connection.
type TransportError struct{ Reason error }

func (e *TransportError) Error() string { return fmt.Sprintf("kgo: transport error: %v", e.Reason) }
func (e *TransportError) Unwrap() error { return e.Reason }

// TimeoutError means a synchronous caller's own wait deadline elapsed
// before a response arrived; the connection itself may still be
// healthy.
type TimeoutError struct{}

func (*TimeoutError) Error() string { return "kgo: timeout" }

// RequestTimeoutError means the oldest pending entry on a connection
// exceeded request_timeout; the connection is now dead and every other
// waiter on it receives TransportDownError.
type RequestTimeoutError struct{ Age, Limit int64 } // nanoseconds, for cheap comparison in tests

func (e *RequestTimeoutError) Error() string { return "kgo: request timeout" }

// TransportDownError is delivered to outstanding synchronous waiters
// when their connection's actor dies for a reason other than their own
// request (e.g. another request's RequestTimeoutError, or a transport
// error).
type TransportDownError struct{ Reason error }

func (e *TransportDownError) Error() string {
	return fmt.Sprintf("kgo: transport down: %v", e.Reason)
}
func (e *TransportDownError) Unwrap() error { return e.Reason }

// BadVersionError means the requested operation is not expressible at
// the negotiated API version.
type BadVersionError struct{ Detail string }

func (e *BadVersionError) Error() string { return fmt.Sprintf("kgo: bad version: %s", e.Detail) }

// NotSupportedError means the API is absent from the negotiated
// version map entirely.
type NotSupportedError struct{ API int16 }

func (e *NotSupportedError) Error() string { return fmt.Sprintf("kgo: api %d not supported", e.API) }

// KafkaError wraps an error code surfaced directly from a Kafka
// response (metadata, find-coordinator, ...).
type KafkaError struct {
	Code    int16
	Message string // optional, set for responses carrying error_message (v1+)
}

func (e *KafkaError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("kgo: kafka error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("kgo: kafka error %d", e.Code)
}

// ErrUnknownTopicOrPartition means the requested topic or partition
// was absent from a metadata response (spec.md §9 open question:
// exact-zero case).
type ErrUnknownTopicOrPartition struct{ Topic string; Partition int32 }

func (e *ErrUnknownTopicOrPartition) Error() string {
	return fmt.Sprintf("kgo: unknown topic or partition %s/%d", e.Topic, e.Partition)
}

// ErrProtocolError means a metadata response carried more than one
// entry for the requested topic/partition pair (spec.md §9 open
// question: exact-multiple case), which this client treats as a
// protocol violation rather than picking one arbitrarily.
type ErrProtocolError struct{ Detail string }

func (e *ErrProtocolError) Error() string { return fmt.Sprintf("kgo: protocol error: %s", e.Detail) }

// BootstrapEndpointError is one endpoint's failure within a
// BootstrapError.
type BootstrapEndpointError struct {
	Endpoint Endpoint
	Reason   error
}

// BootstrapError means connect_any exhausted every endpoint in its
// list.
type BootstrapError struct{ Attempts []BootstrapEndpointError }

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("kgo: failed to connect to any of %d endpoints", len(e.Attempts))
}

// ErrCorrelationCollision is returned if the 31-bit correlation ID
// space wraps around onto a still-live entry (spec.md §9 open
// question decision: fail fast rather than silently misdeliver).
type ErrCorrelationCollision struct{ CorrID int32 }

func (e *ErrCorrelationCollision) Error() string {
	return fmt.Sprintf("kgo: correlation id %d collided with a still-pending request", e.CorrID)
}

// ErrBrokerDead is the death reason recorded for a connection stopped
// with Stop; a request submitted to that handle afterwards fails with a
// TransportDownError wrapping it. A connection that died for another
// reason reports that reason instead.
var ErrBrokerDead = &TransportClosedError{}
