package sasl

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/brokercore/kpro/pkg/kerr"
	"github.com/brokercore/kpro/pkg/kmsg"
)

// DefaultBackend is the built-in AuthBackend this module registers for
// the "scram256", "scram512", and "plain" module identifiers, driving
// the standard SASLHandshake + SASLAuthenticate exchange itself
// directly against the connection's raw socket. A caller supplying
// their own AuthBackend (GSSAPI, OAUTHBEARER, ...) never goes through
// this type.
type DefaultBackend struct{}

func mechanismFor(module, user, pass string) (Mechanism, error) {
	switch module {
	case "plain":
		return Plain{User: user, Pass: pass}, nil
	case "scram256":
		return Scram{User: user, Pass: pass}, nil
	case "scram512":
		return Scram{User: user, Pass: pass, SHA512: true}, nil
	default:
		return nil, fmt.Errorf("sasl: unknown callback module %q", module)
	}
}

// Auth implements AuthBackend by running mechanismFor(module) through a
// SASLHandshake + repeated SASLAuthenticate round trip, using opts
// "user" and "password" as mechanism credentials. If the broker rejects
// module as unsupported, opts["fallbacks"] (a []string of module
// identifiers, tried in order) is consulted: the first fallback that
// also appears in the broker's advertised SupportedMechanisms is
// retried once before giving up.
func (DefaultBackend) Auth(ctx context.Context, module, host string, conn net.Conn, transport TransportKind, clientID []byte, deadline time.Time, opts map[string]any) error {
	user, _ := opts["user"].(string)
	pass, _ := opts["password"].(string)

	const corrID = int32(1<<31 - 1) // reserved handshake correlation ID, shared with the engine's own handshake requests

	mech, err := mechanismFor(module, user, pass)
	if err != nil {
		return err
	}

	hsResp, err := handshake(conn, deadline, clientID, mech.Name(), corrID)
	if err != nil {
		return fmt.Errorf("sasl: handshake: %w", err)
	}
	if hsErr := kerr.ErrorForCode(hsResp.ErrorCode); hsErr != nil {
		fallback, ferr := pickFallback(module, opts, hsResp.SupportedMechanisms)
		if ferr != nil {
			return fmt.Errorf("sasl: handshake rejected mechanism %s: %w", mech.Name(), hsErr)
		}
		mech, err = mechanismFor(fallback, user, pass)
		if err != nil {
			return err
		}
		hsResp, err = handshake(conn, deadline, clientID, mech.Name(), corrID)
		if err != nil {
			return fmt.Errorf("sasl: handshake (fallback %s): %w", fallback, err)
		}
		if hsErr := kerr.ErrorForCode(hsResp.ErrorCode); hsErr != nil {
			return fmt.Errorf("sasl: handshake rejected fallback mechanism %s: %w", mech.Name(), hsErr)
		}
	}

	session, clientWrite, err := mech.Authenticate(ctx, host)
	if err != nil {
		return err
	}
	var challenge []byte
	for {
		req := &kmsg.SASLAuthenticateRequest{SASLAuthBytes: clientWrite}
		resp := new(kmsg.SASLAuthenticateResponse)
		if err := roundTrip(conn, deadline, clientID, req, resp, corrID); err != nil {
			return fmt.Errorf("sasl: authenticate: %w", err)
		}
		if err := kerr.ErrorForCode(resp.ErrorCode); err != nil {
			msg := mech.Name()
			if resp.ErrorMessage != nil {
				msg = *resp.ErrorMessage
			}
			return fmt.Errorf("sasl: authentication failed (%s): %w", msg, err)
		}
		challenge = resp.SASLAuthBytes
		done, next, err := session.Challenge(challenge)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		clientWrite = next
	}
}

// handshake sends one SASLHandshakeRequest for mechanismName and
// returns the decoded response.
func handshake(conn net.Conn, deadline time.Time, clientID []byte, mechanismName string, corrID int32) (*kmsg.SASLHandshakeResponse, error) {
	hsReq := &kmsg.SASLHandshakeRequest{Version: 1, Mechanism: mechanismName}
	hsResp := new(kmsg.SASLHandshakeResponse)
	if err := roundTrip(conn, deadline, clientID, hsReq, hsResp, corrID); err != nil {
		return nil, err
	}
	return hsResp, nil
}

// pickFallback returns the first module in opts["fallbacks"] (excluding
// the one that was just rejected) that the broker also advertised in
// supported, preserving the caller's fallback order.
func pickFallback(rejected string, opts map[string]any, supported []string) (string, error) {
	fallbacks, _ := opts["fallbacks"].([]string)
	if len(fallbacks) == 0 {
		return "", fmt.Errorf("sasl: no fallbacks configured")
	}
	advertised := make(map[string]bool, len(supported))
	for _, s := range supported {
		advertised[wireNameToModule(s)] = true
	}
	for _, f := range fallbacks {
		if f == rejected {
			continue
		}
		if advertised[f] {
			return f, nil
		}
	}
	return "", fmt.Errorf("sasl: no configured fallback is in the broker's supported mechanisms %v", supported)
}

// wireNameToModule maps a SASLHandshakeResponse wire mechanism name
// back to this package's module identifier.
func wireNameToModule(wireName string) string {
	switch wireName {
	case "PLAIN":
		return "plain"
	case "SCRAM-SHA-256":
		return "scram256"
	case "SCRAM-SHA-512":
		return "scram512"
	default:
		return wireName
	}
}

// roundTrip writes one framed request and reads back the matching
// framed response. It is used only during the handshake, before a
// connection's steady-state actor loop owns the socket, so blocking
// I/O here is safe.
func roundTrip(conn net.Conn, deadline time.Time, clientID []byte, req kmsg.Request, resp kmsg.Response, corrID int32) error {
	f := kmsg.RequestFormatter{ClientID: clientID}
	buf := f.AppendRequest(nil, req, corrID)

	conn.SetDeadline(deadline)
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(buf); err != nil {
		return err
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(conn, sizeBuf[:]); err != nil {
		return err
	}
	size := int32(binary.BigEndian.Uint32(sizeBuf[:]))
	if size < 0 || size > 1<<20 {
		return fmt.Errorf("sasl: invalid response size %d", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return err
	}
	if len(body) < 4 {
		return fmt.Errorf("sasl: short response")
	}
	gotCorrID := int32(binary.BigEndian.Uint32(body))
	if gotCorrID != corrID {
		return fmt.Errorf("sasl: correlation ID mismatch: got %d want %d", gotCorrID, corrID)
	}
	return resp.ReadFrom(body[4:])
}
