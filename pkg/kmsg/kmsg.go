// Package kmsg contains the Kafka request and response types this
// client's core needs to bootstrap a connection and discover cluster
// endpoints: ApiVersions, SASLHandshake, SASLAuthenticate, Metadata,
// and FindCoordinator.
//
// This is deliberately not the full generated Kafka protocol schema —
// per this module's scope, encoding/decoding the rest of the protocol
// (Produce, Fetch, and friends) is an external concern the connection
// layer never needs to know about.
package kmsg

import (
	"encoding/binary"

	"github.com/brokercore/kpro/pkg/kbin"
)

// Request represents a type that can be sent to a Kafka broker.
type Request interface {
	// Key returns the protocol API key for this request.
	Key() int16
	// GetVersion returns the version currently set for this request.
	GetVersion() int16
	// SetVersion pins the wire version to use for this request.
	SetVersion(int16)
	// IsFlexible reports whether this request, at its pinned version,
	// uses KIP-482 flexible (tagged-field) framing.
	IsFlexible() bool
	// AppendTo appends the wire-encoded request body (header
	// excluded) to dst and returns the extended slice.
	AppendTo(dst []byte) []byte
	// ResponseKind returns a zero-value Response of the kind this
	// request expects back.
	ResponseKind() Response
}

// Response represents a type that a Kafka broker replies with.
type Response interface {
	Key() int16
	SetVersion(int16)
	GetVersion() int16
	// ReadFrom parses the wire-encoded response body (header already
	// stripped) into the response. It returns an error if the body is
	// truncated.
	ReadFrom(src []byte) error
}

// RequestFormatter renders full request frames (length prefix, header,
// body) for the wire. The zero value is immediately usable.
type RequestFormatter struct {
	ClientID []byte
}

// AppendRequest appends a complete framed request — 4-byte length
// prefix, request header (API key, version, correlation ID, client
// ID), and body — to dst, and returns the extended slice.
func (f RequestFormatter) AppendRequest(dst []byte, r Request, corrID int32) []byte {
	lenAt := len(dst)
	dst = append(dst, 0, 0, 0, 0) // reserved length, patched below
	dst = kbin.AppendInt16(dst, r.Key())
	dst = kbin.AppendInt16(dst, r.GetVersion())
	dst = kbin.AppendInt32(dst, corrID)
	var clientID *string
	if f.ClientID != nil {
		s := string(f.ClientID)
		clientID = &s
	}
	dst = kbin.AppendNullableString(dst, clientID)
	if r.IsFlexible() {
		dst = append(dst, 0) // no tagged fields in the request header
	}
	dst = r.AppendTo(dst)
	binary.BigEndian.PutUint32(dst[lenAt:lenAt+4], uint32(len(dst)-lenAt-4))
	return dst
}

// AppendRaw appends a complete framed request the same way AppendRequest
// does, but for an already-encoded body (this module's generic
// pass-through send path, for requests whose schema the connection
// layer has no knowledge of) rather than a typed Request value.
func (f RequestFormatter) AppendRaw(dst []byte, api, version int16, corrID int32, body []byte) []byte {
	lenAt := len(dst)
	dst = append(dst, 0, 0, 0, 0)
	dst = kbin.AppendInt16(dst, api)
	dst = kbin.AppendInt16(dst, version)
	dst = kbin.AppendInt32(dst, corrID)
	var clientID *string
	if f.ClientID != nil {
		s := string(f.ClientID)
		clientID = &s
	}
	dst = kbin.AppendNullableString(dst, clientID)
	dst = append(dst, body...)
	binary.BigEndian.PutUint32(dst[lenAt:lenAt+4], uint32(len(dst)-lenAt-4))
	return dst
}
