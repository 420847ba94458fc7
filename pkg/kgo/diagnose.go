package kgo

// failureKind classifies the observed handshake failure for the
// purpose of producing a diagnostic hint (spec.md §4.4). It is a small
// pure enum so the (failure, tlsOn, saslOn) -> hint mapping can be
// tested in isolation, per spec.md §9's design note.
type failureKind int8

const (
	failureTLSClosed failureKind = iota
	failureSASLIllegalState
	failureSASLLooksLikeTLSExpected
	failureOther
)

// diagnose implements the hint table of spec.md §4.4.
func diagnose(kind failureKind, tlsOn, saslOn bool) string {
	switch kind {
	case failureTLSClosed:
		if saslOn {
			return "Make sure connecting to 'SASL_SSL://' listener"
		}
		return "Make sure connecting to 'SSL://' listener"
	case failureSASLIllegalState:
		if tlsOn {
			return "Make sure connecting to 'SASL_SSL://' listener"
		}
		return "Make sure connecting to 'SASL_PLAINTEXT://' listener"
	case failureSASLLooksLikeTLSExpected:
		return "Add TLS to config, or connect to 'SASL_PLAINTEXT://' listener"
	default:
		return ""
	}
}
