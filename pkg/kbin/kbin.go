// Package kbin contains the primitive Kafka wire-format encoders and
// decoders used to build the small kmsg request/response types in this
// module: big-endian fixed-width ints, and length-prefixed strings and
// byte arrays using Kafka's "nullable" (int16-length or int32-length)
// framing.
package kbin

import (
	"encoding/binary"
	"errors"
)

// ErrNotEnoughData is returned by Reader methods once the source is
// exhausted before a value could be fully decoded.
var ErrNotEnoughData = errors.New("response did not contain enough data")

func AppendInt16(dst []byte, i int16) []byte {
	return append(dst, byte(i>>8), byte(i))
}

func AppendInt32(dst []byte, i int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(i))
	return append(dst, b[:]...)
}

func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// AppendNullableString appends a Kafka nullable string: an int16 length
// prefix (-1 for nil) followed by the raw bytes.
func AppendNullableString(dst []byte, s *string) []byte {
	if s == nil {
		return AppendInt16(dst, -1)
	}
	dst = AppendInt16(dst, int16(len(*s)))
	return append(dst, *s...)
}

func AppendString(dst []byte, s string) []byte {
	dst = AppendInt16(dst, int16(len(s)))
	return append(dst, s...)
}

// AppendArrayLen appends a Kafka (non-compact) array length prefix.
func AppendArrayLen(dst []byte, n int) []byte {
	return AppendInt32(dst, int32(n))
}

// Reader decodes primitive values from Src in order, accumulating the
// first error encountered so call sites need not check errors between
// every field.
type Reader struct {
	Src []byte
	err error
}

func (r *Reader) fail() {
	r.Src = nil
	if r.err == nil {
		r.err = ErrNotEnoughData
	}
}

func (r *Reader) Int16() int16 {
	if r.err != nil || len(r.Src) < 2 {
		r.fail()
		return 0
	}
	v := int16(binary.BigEndian.Uint16(r.Src))
	r.Src = r.Src[2:]
	return v
}

func (r *Reader) Int32() int32 {
	if r.err != nil || len(r.Src) < 4 {
		r.fail()
		return 0
	}
	v := int32(binary.BigEndian.Uint32(r.Src))
	r.Src = r.Src[4:]
	return v
}

func (r *Reader) Int64() int64 {
	if r.err != nil || len(r.Src) < 8 {
		r.fail()
		return 0
	}
	v := int64(binary.BigEndian.Uint64(r.Src))
	r.Src = r.Src[8:]
	return v
}

func (r *Reader) Bool() bool {
	if r.err != nil || len(r.Src) < 1 {
		r.fail()
		return false
	}
	v := r.Src[0] != 0
	r.Src = r.Src[1:]
	return v
}

// NullableString reads an int16-length-prefixed string, returning nil
// for a -1 length.
func (r *Reader) NullableString() *string {
	l := r.Int16()
	if r.err != nil {
		return nil
	}
	if l < 0 {
		return nil
	}
	if int(l) > len(r.Src) {
		r.fail()
		return nil
	}
	s := string(r.Src[:l])
	r.Src = r.Src[l:]
	return &s
}

func (r *Reader) String() string {
	if s := r.NullableString(); s != nil {
		return *s
	}
	return ""
}

// ArrayLen reads a Kafka (non-compact) array length prefix. A negative
// length (used by some responses to mean "null array") is normalized
// to 0.
func (r *Reader) ArrayLen() int32 {
	n := r.Int32()
	if n < 0 {
		n = 0
	}
	return n
}

func (r *Reader) Span(n int) []byte {
	if r.err != nil || n < 0 || n > len(r.Src) {
		r.fail()
		return nil
	}
	v := r.Src[:n]
	r.Src = r.Src[n:]
	return v
}

// Complete returns the accumulated decode error, if any. Trailing
// unconsumed bytes are not an error: newer broker versions routinely
// append fields (tagged fields, new response members) this module's
// narrow schema doesn't know about.
func (r *Reader) Complete() error {
	return r.err
}
