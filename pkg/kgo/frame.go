package kgo

import (
	"encoding/binary"
	"fmt"
)

// ErrInvalidFrameSize is returned when a frame header decodes to a
// negative payload length — a fatal decode error per spec.md §3
// invariant 3.
type ErrInvalidFrameSize struct{ Size int32 }

func (e *ErrInvalidFrameSize) Error() string {
	return fmt.Sprintf("kgo: invalid frame size %d", e.Size)
}

// frameAccumulator reassembles length-prefixed Kafka frames (a 4-byte
// big-endian signed length, followed by that many bytes) from an
// arbitrary, arbitrarily-chunked byte stream. It is component C1.
//
// It holds either fewer than 4 bytes (gathering the header) or a known
// expected total size (gathering the body); spec.md §3 invariant 3.
type frameAccumulator struct {
	// buf accumulates whatever has been seen since the last complete
	// frame. Its first 4 bytes, once present, are the length header.
	buf []byte
	// expected is the total frame size (4 + payload length) once
	// known, or 0 while still gathering the header.
	expected int32
}

// feed appends chunk's bytes and returns every complete frame body
// (header included) that can now be extracted, in order. Returns an
// error only for a negative decoded length, which is fatal to the
// connection.
func (a *frameAccumulator) feed(chunk []byte) ([][]byte, error) {
	a.buf = append(a.buf, chunk...)

	var frames [][]byte
	for {
		if a.expected == 0 {
			if len(a.buf) < 4 {
				return frames, nil
			}
			length := int32(binary.BigEndian.Uint32(a.buf))
			if length < 0 {
				return frames, &ErrInvalidFrameSize{Size: length}
			}
			a.expected = 4 + length
		}
		if int32(len(a.buf)) < a.expected {
			return frames, nil
		}
		frame := a.buf[:a.expected]
		a.buf = a.buf[a.expected:]
		a.expected = 0
		frames = append(frames, frame)
	}
}

// residual returns the bytes currently held that do not yet form a
// complete frame — used by tests to assert the accumulator's exposed
// state matches spec.md §8's scenarios.
func (a *frameAccumulator) residual() []byte { return a.buf }
