package modplayer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/vsariola/quanta"
)

// RawDecoder streams headerless stereo float32 audio, the format written by
// quanta.AudioBuffer.Raw(false). It has no sample rate of its own and plays
// the frames as they are.
type RawDecoder struct {
	frames quanta.AudioBuffer
	pos    int
	loop   bool
}

// RawFactory returns a DecoderFactory for raw audio. If loop is set, the
// decoder starts over when it reaches the end instead of finishing.
func RawFactory(loop bool) quanta.DecoderFactory {
	return func(data []byte, sampleRate int) (quanta.Decoder, error) {
		if len(data)%8 != 0 {
			return nil, fmt.Errorf("raw audio is %d bytes, not a whole number of stereo float32 frames", len(data))
		}
		d := &RawDecoder{frames: make(quanta.AudioBuffer, len(data)/8), loop: loop}
		if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, d.frames); err != nil {
			return nil, fmt.Errorf("reading raw audio: %w", err)
		}
		return d, nil
	}
}

func (d *RawDecoder) Decode(buf quanta.AudioBuffer) int {
	if d.pos >= len(d.frames) {
		if !d.loop || len(d.frames) == 0 {
			return 0
		}
		d.pos = 0
	}
	n := copy(buf, d.frames[d.pos:])
	d.pos += n
	return n
}

func (d *RawDecoder) Rewind() { d.pos = 0 }
