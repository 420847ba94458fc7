package kgo

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"time"
)

// transportKind records whether a connection ended up plain or TLS,
// per spec.md §3's Connection state.
type transportKind int8

const (
	transportPlain transportKind = iota
	transportTLS
)

// dial opens a TCP connection to addr with cfg.ConnectTimeout as its
// deadline, and tunes the usual socket options for a Kafka-style
// request/response protocol: TCP_NODELAY on, and a receive buffer
// sized generously since responses can be large (component C3).
func dial(ctx context.Context, addr string, cfg *Config) (net.Conn, error) {
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Reason: err}
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetReadBuffer(256 << 10)
		_ = tc.SetWriteBuffer(256 << 10)
	}
	return conn, nil
}

// upgradeTLS performs a TLS handshake over an already-connected socket
// within cfg.ConnectTimeout, per spec.md §4.3.
func upgradeTLS(conn net.Conn, host string, tc *TLSConfig, timeout time.Duration) (net.Conn, error) {
	conf := tc.Config
	if conf == nil {
		conf = &tls.Config{ServerName: host}
	} else if conf.ServerName == "" {
		cp := conf.Clone()
		cp.ServerName = host
		conf = cp
	}
	tlsConn := tls.Client(conn, conf)
	_ = tlsConn.SetDeadline(time.Now().Add(timeout))
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return nil, err
	}
	_ = tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}

// blockingSend writes buf to conn with a write deadline, for use only
// during the handshake (spec.md §4.3's "synchronous primitive used
// ONLY during handshake").
func blockingSend(conn net.Conn, buf []byte, timeout time.Duration) error {
	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		defer conn.SetWriteDeadline(time.Time{})
	}
	_, err := conn.Write(buf)
	return err
}

// blockingRecvFrame reads one complete length-prefixed frame from
// conn, blocking with a read deadline, for use only during the
// handshake.
func blockingRecvFrame(conn net.Conn, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}
	var sizeBuf [4]byte
	if _, err := io.ReadFull(conn, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := int32(binary.BigEndian.Uint32(sizeBuf[:]))
	if size < 0 {
		return nil, &ErrInvalidFrameSize{Size: size}
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	return body, nil
}

// blockingRecvN reads exactly n raw bytes from conn, blocking with a
// read deadline. Used for the legacy SASL PLAIN ack, which is 4 raw
// zero bytes rather than a framed response.
//
// On error, the bytes actually read (which may be a non-TLS peer's
// plaintext response, or the leading bytes of a TLS alert/handshake
// record if the peer expected TLS) are still returned alongside the
// error so the handshake engine can diagnose the failure.
func blockingRecvN(conn net.Conn, n int, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(conn, buf)
	if err != nil {
		return buf[:got], err
	}
	return buf, nil
}
