// Package sasl contains the SASL authentication mechanisms the
// handshake engine (kgo.Connection's init phase) can drive, plus the
// pluggable external AuthBackend interface for mechanisms this module
// does not implement itself (spec.md §6's "auth_backend.auth").
package sasl

import (
	"context"
	"net"
	"time"
)

// Session represents one in-progress SASL exchange: repeated calls to
// Challenge drive the mechanism's state machine until it reports done.
type Session interface {
	// Challenge processes one server reply (the response to the bytes
	// the client last sent) and returns whether the exchange is
	// complete and, if not, the next bytes to send to the server.
	Challenge(challenge []byte) (done bool, clientWrite []byte, err error)
}

// Mechanism is a SASL mechanism a connection can authenticate with.
type Mechanism interface {
	// Name is the SASL mechanism name as announced in a
	// SASLHandshakeRequest, e.g. "PLAIN", "SCRAM-SHA-256".
	Name() string
	// Authenticate begins a session against host, returning the
	// session and the first bytes the client should write (PLAIN and
	// SCRAM are both client-first mechanisms).
	Authenticate(ctx context.Context, host string) (Session, []byte, error)
}

// TransportKind describes the transport a connection negotiated,
// passed to an AuthBackend so it can include it in its own diagnostics
// or protocol choices.
type TransportKind int

const (
	TransportPlain TransportKind = iota
	TransportTLS
)

func (t TransportKind) String() string {
	if t == TransportTLS {
		return "tls"
	}
	return "plain"
}

// AuthBackend is the narrow external collaborator spec.md §6 calls
// "auth_backend.auth": a pluggable callback that performs its own
// authentication I/O directly against the raw connection, for
// mechanisms (Kerberos/GSSAPI, organization-specific OAUTHBEARER
// token minting, etc.) this module does not implement.
type AuthBackend interface {
	Auth(ctx context.Context, module, host string, conn net.Conn, transport TransportKind, clientID []byte, deadline time.Time, opts map[string]any) error
}

// AuthBackendFunc adapts a plain function to the AuthBackend
// interface.
type AuthBackendFunc func(ctx context.Context, module, host string, conn net.Conn, transport TransportKind, clientID []byte, deadline time.Time, opts map[string]any) error

func (f AuthBackendFunc) Auth(ctx context.Context, module, host string, conn net.Conn, transport TransportKind, clientID []byte, deadline time.Time, opts map[string]any) error {
	return f(ctx, module, host, conn, transport, clientID, deadline, opts)
}
