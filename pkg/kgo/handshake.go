package kgo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/brokercore/kpro/pkg/kerr"
	"github.com/brokercore/kpro/pkg/kmsg"
	"github.com/brokercore/kpro/pkg/kplog"
	"github.com/brokercore/kpro/pkg/sasl"
)

// handshakeResult is what the handshake engine (C4) hands back to the
// caller once a socket is ready for the connection actor to take
// ownership of.
type handshakeResult struct {
	conn      net.Conn
	transport transportKind
}

// runHandshake drives the state machine of spec.md §4.4:
//
//	init -> tcp_connected -> [tls_upgraded] -> [sasl_handshaked -> sasl_authed] -> ready
//
// All handshake requests use the reserved correlation ID so that the
// connection actor's own IDs can start cleanly at 0 once it takes
// over.
func runHandshake(ctx context.Context, addr, host string, cfg *Config) (*handshakeResult, error) {
	conn, err := dial(ctx, addr, cfg)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			conn.Close()
		}
	}()

	transport := transportPlain
	tlsOn := cfg.TLS.Kind != TLSOff
	saslOn := cfg.SASL.Kind != SASLOff

	if tlsOn {
		upgraded, err := upgradeTLS(conn, host, &cfg.TLS, cfg.ConnectTimeout)
		if err != nil {
			hint := diagnose(failureTLSClosed, tlsOn, saslOn)
			cfg.logger.Log(kplog.LogLevelError, "tls upgrade failed", "addr", addr, "err", err, "hint", hint)
			return nil, &TLSUpgradeError{Reason: err, Hint: hint}
		}
		conn = upgraded
		transport = transportTLS
		cfg.logger.Log(kplog.LogLevelDebug, "tls upgrade succeeded", "addr", addr)
	}

	if saslOn {
		if err := runSASL(ctx, conn, host, transport, cfg, tlsOn); err != nil {
			return nil, err
		}
	}

	ok = true
	cfg.logger.Log(kplog.LogLevelDebug, "handshake ready", "addr", addr, "transport", transport)
	return &handshakeResult{conn: conn, transport: transport}, nil
}

func runSASL(ctx context.Context, conn net.Conn, host string, transport transportKind, cfg *Config, tlsOn bool) error {
	switch cfg.SASL.Kind {
	case SASLPlain:
		err := runSASLPlain(conn, cfg, tlsOn)
		var se *SASLAuthError
		if errors.As(err, &se) && se.Hint != "" {
			cfg.logger.Log(kplog.LogLevelError, "sasl plain authentication failed", "err", err, "hint", se.Hint)
		}
		return err
	case SASLCallback:
		backend := cfg.SASL.Backend
		if backend == nil {
			backend = sasl.DefaultBackend{}
		}
		tk := sasl.TransportPlain
		if transport == transportTLS {
			tk = sasl.TransportTLS
		}
		opts := cfg.SASL.Opts
		if len(cfg.SASL.Fallbacks) > 0 {
			opts = withFallbacks(opts, cfg.SASL.Fallbacks)
		}
		deadline := time.Now().Add(cfg.ConnectTimeout)
		if err := backend.Auth(ctx, cfg.SASL.Module, host, conn, tk, cfg.ClientID, deadline, opts); err != nil {
			hint := diagnose(failureSASLIllegalState, tlsOn, true)
			cfg.logger.Log(kplog.LogLevelError, "sasl callback authentication failed", "module", cfg.SASL.Module, "err", err, "hint", hint)
			return &SASLAuthError{Detail: err, Hint: hint}
		}
		return nil
	default:
		return nil
	}
}

// runSASLPlain implements the legacy (pre-SASLAuthenticate) exchange
// of spec.md §4.4: a SASLHandshakeRequest(version 0) announcing
// "PLAIN", then one raw length-prefixed frame of "\x00user\x00pass",
// acked by 4 raw zero bytes.
func runSASLPlain(conn net.Conn, cfg *Config, tlsOn bool) error {
	user, password, err := resolveSASLCredentials(cfg.SASL)
	if err != nil {
		return &SASLAuthError{Detail: err}
	}

	hsReq := &kmsg.SASLHandshakeRequest{Version: 0, Mechanism: "PLAIN"}
	f := kmsg.RequestFormatter{ClientID: cfg.ClientID}
	buf := f.AppendRequest(nil, hsReq, reservedCorrID)
	if err := blockingSend(conn, buf, cfg.ConnectTimeout); err != nil {
		return &SASLAuthError{Detail: err}
	}

	rawResp, err := blockingRecvFrame(conn, cfg.ConnectTimeout)
	if err != nil {
		hint := diagnose(failureSASLIllegalState, tlsOn, true)
		return &SASLAuthError{Detail: err, Hint: hint}
	}
	if len(rawResp) < 4 {
		return &SASLAuthError{Detail: errors.New("short sasl handshake response")}
	}
	gotCorrID := int32(rawResp[0])<<24 | int32(rawResp[1])<<16 | int32(rawResp[2])<<8 | int32(rawResp[3])
	if gotCorrID != reservedCorrID {
		return &SASLAuthError{Detail: errors.New("correlation id mismatch during sasl handshake")}
	}
	hsResp := new(kmsg.SASLHandshakeResponse)
	if err := hsResp.ReadFrom(rawResp[4:]); err != nil {
		return &SASLAuthError{Detail: err}
	}
	if err := kerr.ErrorForCode(hsResp.ErrorCode); err != nil {
		hint := ""
		if errors.Is(err, kerr.IllegalSaslState) {
			hint = diagnose(failureSASLIllegalState, tlsOn, true)
		}
		return &SASLAuthError{Detail: err, Hint: hint}
	}

	msg := make([]byte, 0, len(user)+len(password)+2)
	msg = append(msg, 0)
	msg = append(msg, user...)
	msg = append(msg, 0)
	msg = append(msg, password...)

	frame := make([]byte, 0, 4+len(msg))
	frame = append(frame, 0, 0, 0, 0)
	frame[0] = byte(len(msg) >> 24)
	frame[1] = byte(len(msg) >> 16)
	frame[2] = byte(len(msg) >> 8)
	frame[3] = byte(len(msg))
	frame = append(frame, msg...)
	if err := blockingSend(conn, frame, cfg.ConnectTimeout); err != nil {
		return &SASLAuthError{Detail: err}
	}

	ack, err := blockingRecvN(conn, 4, cfg.ConnectTimeout)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			var hint string
			if looksLikeTLSRecord(ack) {
				hint = diagnose(failureSASLLooksLikeTLSExpected, tlsOn, true)
			}
			return &SASLAuthError{Detail: errors.New("bad_credentials"), Hint: hint}
		}
		return &SASLAuthError{Detail: err}
	}
	if !bytes.Equal(ack, []byte{0, 0, 0, 0}) {
		cfg.logger.Log(kplog.LogLevelWarn, "sasl plain ack was non-zero", "ack", ack)
	}
	return nil
}

// withFallbacks returns a copy of opts with "fallbacks" set, leaving
// the caller's map untouched.
func withFallbacks(opts map[string]any, fallbacks []string) map[string]any {
	out := make(map[string]any, len(opts)+1)
	for k, v := range opts {
		out[k] = v
	}
	out["fallbacks"] = fallbacks
	return out
}

func looksLikeTLSRecord(b []byte) bool {
	return len(b) > 0 && b[0] >= 20 && b[0] <= 23
}
