package sasl

import "context"

// Plain is the SASL PLAIN mechanism: a single client-first message of
// the form "\x00user\x00password", with no server challenge expected.
type Plain struct {
	User, Pass string
}

func (Plain) Name() string { return "PLAIN" }

func (p Plain) Authenticate(context.Context, string) (Session, []byte, error) {
	msg := make([]byte, 0, len(p.User)+len(p.Pass)+2)
	msg = append(msg, 0)
	msg = append(msg, p.User...)
	msg = append(msg, 0)
	msg = append(msg, p.Pass...)
	return plainSession{}, msg, nil
}

type plainSession struct{}

// Challenge is never actually invoked on the legacy v0 (raw frame) path
// the handshake engine uses for PLAIN — the broker acks with a bare
// zero-length frame rather than a SASL challenge — but is implemented
// for completeness when PLAIN is driven over SASLAuthenticate (v1+).
func (plainSession) Challenge([]byte) (bool, []byte, error) {
	return true, nil, nil
}
