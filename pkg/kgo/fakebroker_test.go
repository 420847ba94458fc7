package kgo

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/brokercore/kpro/pkg/kbin"
	"github.com/brokercore/kpro/pkg/kmsg"
)

// fakeRequest is one request frame a fakeBroker decoded off the wire,
// stripped down to the header fields the test handlers care about.
type fakeRequest struct {
	api     int16
	version int16
	corrID  int32
	body    []byte
}

// readFakeRequest reads and decodes one full request frame (length
// prefix, request header, body) from conn.
func readFakeRequest(conn net.Conn) (fakeRequest, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(conn, sizeBuf[:]); err != nil {
		return fakeRequest{}, err
	}
	size := binary.BigEndian.Uint32(sizeBuf[:])
	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return fakeRequest{}, err
	}
	api := int16(binary.BigEndian.Uint16(body[0:2]))
	version := int16(binary.BigEndian.Uint16(body[2:4]))
	corrID := int32(binary.BigEndian.Uint32(body[4:8]))
	clientIDLen := int16(binary.BigEndian.Uint16(body[8:10]))
	rest := body[10:]
	if clientIDLen >= 0 {
		rest = rest[clientIDLen:]
	}
	return fakeRequest{api: api, version: version, corrID: corrID, body: rest}, nil
}

// writeFakeResponse writes one framed response: length prefix,
// correlation id, body.
func writeFakeResponse(conn net.Conn, corrID int32, body []byte) error {
	frame := make([]byte, 4+4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(4+len(body)))
	binary.BigEndian.PutUint32(frame[4:], uint32(corrID))
	copy(frame[8:], body)
	_, err := conn.Write(frame)
	return err
}

// startFakeBroker listens on an ephemeral local port and runs handle
// once per accepted connection on its own goroutine. It returns the
// listener's address and a func to shut it down.
func startFakeBroker(t *testing.T, handle func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
	return ln.Addr().String()
}

// serveWithAPIVersions runs a standard fakeBroker session: it answers
// the connection actor's opening ApiVersions request by advertising
// every API this module knows about at this module's own max
// versions, then dispatches every subsequent request to handle.
func serveWithAPIVersions(t *testing.T, conn net.Conn, handle func(fakeRequest, net.Conn)) {
	t.Helper()
	req, err := readFakeRequest(conn)
	if err != nil {
		return
	}
	if req.api != kmsg.ApiVersionsKey {
		t.Errorf("first request api = %d, want ApiVersions (%d)", req.api, kmsg.ApiVersionsKey)
		return
	}
	writeFakeResponse(conn, req.corrID, encodeAPIVersionsResponse(0, allSupportedAPIKeys()))

	for {
		req, err := readFakeRequest(conn)
		if err != nil {
			return
		}
		handle(req, conn)
	}
}

func allSupportedAPIKeys() []kmsg.ApiVersionKey {
	var keys []kmsg.ApiVersionKey
	for _, api := range kmsg.AllAPIs() {
		vr, _ := kmsg.SupportedVersionRange(api)
		keys = append(keys, kmsg.ApiVersionKey{APIKey: api, MinVersion: vr.Min, MaxVersion: vr.Max})
	}
	return keys
}

func encodeAPIVersionsResponse(errorCode int16, keys []kmsg.ApiVersionKey) []byte {
	var dst []byte
	dst = kbin.AppendInt16(dst, errorCode)
	dst = kbin.AppendArrayLen(dst, len(keys))
	for _, k := range keys {
		dst = kbin.AppendInt16(dst, k.APIKey)
		dst = kbin.AppendInt16(dst, k.MinVersion)
		dst = kbin.AppendInt16(dst, k.MaxVersion)
	}
	return dst
}

func encodeMetadataResponse(brokers []kmsg.MetadataResponseBroker, topics []kmsg.MetadataResponseTopic) []byte {
	var dst []byte
	dst = kbin.AppendArrayLen(dst, len(brokers))
	for _, b := range brokers {
		dst = kbin.AppendInt32(dst, b.NodeID)
		dst = kbin.AppendString(dst, b.Host)
		dst = kbin.AppendInt32(dst, b.Port)
	}
	dst = kbin.AppendArrayLen(dst, len(topics))
	for _, tp := range topics {
		dst = kbin.AppendInt16(dst, tp.ErrorCode)
		dst = kbin.AppendString(dst, tp.Topic)
		dst = kbin.AppendArrayLen(dst, len(tp.Partitions))
		for _, p := range tp.Partitions {
			dst = kbin.AppendInt16(dst, p.ErrorCode)
			dst = kbin.AppendInt32(dst, p.Partition)
			dst = kbin.AppendInt32(dst, p.Leader)
		}
	}
	return dst
}

// encodeFindCoordinatorResponse encodes a version 1+ response body
// (the version this package's fake broker always negotiates, since it
// advertises every API at this module's own max supported version).
func encodeFindCoordinatorResponse(errorCode int16, nodeID int32, host string, port int32) []byte {
	var dst []byte
	dst = kbin.AppendInt16(dst, errorCode)
	dst = kbin.AppendNullableString(dst, nil)
	dst = kbin.AppendInt32(dst, nodeID)
	dst = kbin.AppendString(dst, host)
	dst = kbin.AppendInt32(dst, port)
	return dst
}

func fakeBrokerHostPort(t *testing.T, addr string) (string, uint16) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, uint16(port)
}
