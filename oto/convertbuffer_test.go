package oto

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/vsariola/quanta"
)

func TestEncodePCM16(t *testing.T) {
	buf := quanta.AudioBuffer{{0, 1}, {-1, 0.5}, {2, -3}}
	p := make([]byte, len(buf)*bytesPerPCMFrame)
	encodePCM16(p, buf)
	want := []int16{0, math.MaxInt16, -math.MaxInt16, math.MaxInt16 / 2, math.MaxInt16, -math.MaxInt16}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(p[i*2:])); got != w {
			t.Fatalf("sample %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestEncodeFloat32(t *testing.T) {
	buf := quanta.AudioBuffer{{0.25, -0.75}}
	p := make([]byte, bytesPerFloatFrame)
	encodeFloat32(p, buf)
	l := math.Float32frombits(binary.LittleEndian.Uint32(p[0:]))
	r := math.Float32frombits(binary.LittleEndian.Uint32(p[4:]))
	if l != 0.25 || r != -0.75 {
		t.Fatalf("expected (0.25, -0.75), got (%v, %v)", l, r)
	}
}

func TestReadWithoutSourceIsSilent(t *testing.T) {
	o := &Output{frames: make(quanta.AudioBuffer, 16)}
	p := make([]byte, 100)
	for i := range p {
		p[i] = 0xff
	}
	n, err := o.Read(p)
	if err != nil || n != 96 {
		t.Fatalf("Read = (%v, %v), expected 96 bytes", n, err)
	}
	for _, b := range p[:n] {
		if b != 0 {
			t.Fatalf("expected silence")
		}
	}
	if o.Frames() != 12 {
		t.Fatalf("expected 12 frames written, got %v", o.Frames())
	}
}

func TestReadLargerThanChunk(t *testing.T) {
	o := &Output{frames: make(quanta.AudioBuffer, 16)}
	p := make([]byte, 100*bytesPerFloatFrame)
	for i := range p {
		p[i] = 0xff
	}
	var n int
	allocs := testing.AllocsPerRun(10, func() {
		n, _ = o.Read(p)
	})
	if n != len(p) {
		t.Fatalf("Read returned %v bytes, expected %v", n, len(p))
	}
	if allocs != 0 {
		t.Fatalf("expected no allocations, got %v", allocs)
	}
	if len(o.frames) != 16 {
		t.Fatalf("Read reallocated its buffer")
	}
	for _, b := range p {
		if b != 0 {
			t.Fatalf("expected silence over the whole buffer")
		}
	}
}
