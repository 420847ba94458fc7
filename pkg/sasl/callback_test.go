package sasl

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/brokercore/kpro/pkg/kbin"
)

// fakeReq is one request frame decoded off the wire by the tests in
// this file, independent of kmsg.RequestFormatter's own encode path.
type fakeReq struct {
	api, version int16
	corrID       int32
	body         []byte
}

func readFakeReq(conn net.Conn) (fakeReq, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(conn, sizeBuf[:]); err != nil {
		return fakeReq{}, err
	}
	size := binary.BigEndian.Uint32(sizeBuf[:])
	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return fakeReq{}, err
	}
	api := int16(binary.BigEndian.Uint16(body[0:2]))
	version := int16(binary.BigEndian.Uint16(body[2:4]))
	corrID := int32(binary.BigEndian.Uint32(body[4:8]))
	clientIDLen := int16(binary.BigEndian.Uint16(body[8:10]))
	rest := body[10:]
	if clientIDLen >= 0 {
		rest = rest[clientIDLen:]
	}
	return fakeReq{api: api, version: version, corrID: corrID, body: rest}, nil
}

func writeFakeResp(conn net.Conn, corrID int32, body []byte) error {
	frame := make([]byte, 4+4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(4+len(body)))
	binary.BigEndian.PutUint32(frame[4:], uint32(corrID))
	copy(frame[8:], body)
	_, err := conn.Write(frame)
	return err
}

func encodeHandshakeResp(errorCode int16, supported []string) []byte {
	var dst []byte
	dst = kbin.AppendInt16(dst, errorCode)
	dst = kbin.AppendArrayLen(dst, len(supported))
	for _, s := range supported {
		dst = kbin.AppendString(dst, s)
	}
	return dst
}

func encodeAuthenticateResp(errorCode int16, authBytes []byte) []byte {
	var dst []byte
	dst = kbin.AppendInt16(dst, errorCode)
	dst = kbin.AppendNullableString(dst, nil)
	dst = kbin.AppendInt32(dst, int32(len(authBytes)))
	dst = append(dst, authBytes...)
	var lifetime [8]byte
	dst = append(dst, lifetime[:]...)
	return dst
}

func TestDefaultBackendAuthFallsBackToAdvertisedMechanism(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan []fakeReq, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var seen []fakeReq

		// First handshake: the caller's primary module, scram512,
		// rejected as unsupported. The broker advertises only PLAIN.
		req, err := readFakeReq(conn)
		if err != nil {
			t.Errorf("read first handshake: %v", err)
			return
		}
		seen = append(seen, req)
		writeFakeResp(conn, req.corrID, encodeHandshakeResp(33 /* UNSUPPORTED_SASL_MECHANISM */, []string{"PLAIN"}))

		// Second handshake: the fallback, PLAIN, accepted.
		req, err = readFakeReq(conn)
		if err != nil {
			t.Errorf("read fallback handshake: %v", err)
			return
		}
		seen = append(seen, req)
		writeFakeResp(conn, req.corrID, encodeHandshakeResp(0, nil))

		// One SASLAuthenticate round completes PLAIN.
		req, err = readFakeReq(conn)
		if err != nil {
			t.Errorf("read authenticate: %v", err)
			return
		}
		seen = append(seen, req)
		writeFakeResp(conn, req.corrID, encodeAuthenticateResp(0, nil))

		serverDone <- seen
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	opts := map[string]any{
		"user":      "alice",
		"password":  "hunter2",
		"fallbacks": []string{"scram256", "plain"},
	}

	backend := DefaultBackend{}
	err = backend.Auth(context.Background(), "scram512", "localhost", conn, TransportPlain, []byte("test-client"), time.Now().Add(5*time.Second), opts)
	if err != nil {
		t.Fatalf("Auth() = %v, want nil", err)
	}

	select {
	case seen := <-serverDone:
		if len(seen) != 3 {
			t.Fatalf("server observed %d requests, want 3:\n%s", len(seen), spew.Sdump(seen))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server goroutine never finished")
	}
}

func TestDefaultBackendAuthNoMatchingFallbackFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := readFakeReq(conn)
		if err != nil {
			return
		}
		writeFakeResp(conn, req.corrID, encodeHandshakeResp(33, []string{"GSSAPI"}))
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	opts := map[string]any{
		"user":      "alice",
		"password":  "hunter2",
		"fallbacks": []string{"scram256", "plain"},
	}

	backend := DefaultBackend{}
	err = backend.Auth(context.Background(), "scram512", "localhost", conn, TransportPlain, []byte("test-client"), time.Now().Add(5*time.Second), opts)
	if err == nil {
		t.Fatal("Auth() = nil, want an error since no fallback matches the broker's GSSAPI-only advertisement")
	}
}
