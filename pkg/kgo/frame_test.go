package kgo

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func frameBytes(payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

func TestFrameAccumulatorWholeFrame(t *testing.T) {
	a := &frameAccumulator{}
	want := frameBytes([]byte("hello"))

	got, err := a.feed(want)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if diff := cmp.Diff([][]byte{want}, got); diff != "" {
		t.Errorf("feed() mismatch (-want +got):\n%s", diff)
	}
	if len(a.residual()) != 0 {
		t.Errorf("residual = %v, want empty", a.residual())
	}
}

func TestFrameAccumulatorByteAtATime(t *testing.T) {
	a := &frameAccumulator{}
	frame := frameBytes([]byte("kafka"))

	var frames [][]byte
	for _, b := range frame {
		fs, err := a.feed([]byte{b})
		if err != nil {
			t.Fatalf("feed: %v", err)
		}
		frames = append(frames, fs...)
	}
	if diff := cmp.Diff([][]byte{frame}, frames); diff != "" {
		t.Errorf("reassembled frames mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameAccumulatorMultipleFramesInOneChunk(t *testing.T) {
	a := &frameAccumulator{}
	f1 := frameBytes([]byte("one"))
	f2 := frameBytes([]byte("two"))
	chunk := append(append([]byte{}, f1...), f2...)

	got, err := a.feed(chunk)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if diff := cmp.Diff([][]byte{f1, f2}, got); diff != "" {
		t.Errorf("feed() mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameAccumulatorNegativeLength(t *testing.T) {
	a := &frameAccumulator{}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(-1))

	_, err := a.feed(header[:])
	var target *ErrInvalidFrameSize
	if !errors.As(err, &target) {
		t.Fatalf("feed() err = %v, want *ErrInvalidFrameSize", err)
	}
}
