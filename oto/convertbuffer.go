package oto

import (
	"encoding/binary"
	"math"

	"github.com/vsariola/quanta"
)

const bytesPerPCMFrame = 4

// encodeFloat32 writes buf as little-endian float32 pairs into p, which must
// hold 8 bytes per frame.
func encodeFloat32(p []byte, buf quanta.AudioBuffer) {
	for i, f := range buf {
		binary.LittleEndian.PutUint32(p[i*8:], math.Float32bits(f[0]))
		binary.LittleEndian.PutUint32(p[i*8+4:], math.Float32bits(f[1]))
	}
}

// encodePCM16 writes buf as little-endian signed 16-bit pairs into p, which
// must hold 4 bytes per frame. Samples outside [-1, 1] are clipped.
func encodePCM16(p []byte, buf quanta.AudioBuffer) {
	for i, f := range buf {
		binary.LittleEndian.PutUint16(p[i*4:], uint16(toInt16(f[0])))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(toInt16(f[1])))
	}
}

func toInt16(v float32) int16 {
	if v < -1.0 {
		return -math.MaxInt16
	}
	if v > 1.0 {
		return math.MaxInt16
	}
	return int16(v * math.MaxInt16)
}
