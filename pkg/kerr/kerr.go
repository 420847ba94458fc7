// Package kerr contains the Kafka error codes that this client's core
// operations can observe, and a function to turn a wire error code into
// a Go error.
//
// This is a narrow slice of the full Kafka error table: only the codes
// that ApiVersions, SASL handshake/authenticate, Metadata, and
// FindCoordinator responses can carry.
package kerr

import "fmt"

// Error is a Kafka protocol error. Two Errors with the same Code compare
// equal with errors.Is.
type Error struct {
	Message string
	Code    int16
	Retriable bool
}

func (e *Error) Error() string { return e.Message }

// Is allows errors.Is(err, kerr.UnknownTopicOrPartition) to work even
// when err was reconstructed from a wire code rather than being this
// exact pointer.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

var (
	None                      = &Error{"NONE", 0, false}
	UnknownServerError        = &Error{"UNKNOWN_SERVER_ERROR", -1, false}
	OffsetOutOfRange          = &Error{"OFFSET_OUT_OF_RANGE", 1, false}
	CorruptMessage            = &Error{"CORRUPT_MESSAGE", 2, true}
	UnknownTopicOrPartition   = &Error{"UNKNOWN_TOPIC_OR_PARTITION", 3, true}
	LeaderNotAvailable        = &Error{"LEADER_NOT_AVAILABLE", 5, true}
	NotLeaderForPartition     = &Error{"NOT_LEADER_OR_FOLLOWER", 6, true}
	RequestTimedOut           = &Error{"REQUEST_TIMED_OUT", 7, true}
	BrokerNotAvailable        = &Error{"BROKER_NOT_AVAILABLE", 8, false}
	NetworkException          = &Error{"NETWORK_EXCEPTION", 13, true}
	CoordinatorLoadInProgress = &Error{"COORDINATOR_LOAD_IN_PROGRESS", 14, true}
	CoordinatorNotAvailable   = &Error{"COORDINATOR_NOT_AVAILABLE", 15, true}
	NotCoordinator            = &Error{"NOT_COORDINATOR", 16, true}
	IllegalSaslState          = &Error{"ILLEGAL_SASL_STATE", 34, false}
	UnsupportedVersion        = &Error{"UNSUPPORTED_VERSION", 35, false}
	UnsupportedSaslMechanism  = &Error{"UNSUPPORTED_SASL_MECHANISM", 33, false}
	SaslAuthenticationFailed  = &Error{"SASL_AUTHENTICATION_FAILED", 58, false}
	GroupIDNotFound           = &Error{"GROUP_ID_NOT_FOUND", 69, false}
)

var byCode = map[int16]*Error{}

func register(es ...*Error) {
	for _, e := range es {
		byCode[e.Code] = e
	}
}

func init() {
	register(
		None, UnknownServerError, OffsetOutOfRange, CorruptMessage,
		UnknownTopicOrPartition, LeaderNotAvailable, NotLeaderForPartition,
		RequestTimedOut, BrokerNotAvailable, NetworkException,
		CoordinatorLoadInProgress, CoordinatorNotAvailable, NotCoordinator,
		IllegalSaslState, UnsupportedVersion, UnsupportedSaslMechanism,
		SaslAuthenticationFailed, GroupIDNotFound,
	)
}

// ErrorForCode returns the *Error registered for code, or a generic
// unknown error wrapping the code if none is registered. A code of 0
// (NONE) returns nil, matching the convention that a nil error means
// success.
func ErrorForCode(code int16) error {
	if code == 0 {
		return nil
	}
	if e, ok := byCode[code]; ok {
		return e
	}
	return &Error{fmt.Sprintf("UNKNOWN_ERROR_CODE_%d", code), code, false}
}
