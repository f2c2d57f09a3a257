package quanta

type (
	// AudioBus is the host-owned output of a node for one render quantum. It is
	// planar: Channels[c][i] is the sample i of channel c. All channels have
	// the same length, which is the number of frames in the quantum.
	AudioBus struct {
		Channels [][]float32
	}

	// AudioBuffer is an interleaved stereo buffer, used when handing audio to
	// devices and files.
	AudioBuffer [][2]float32

	// AudioSink receives rendered audio, e.g. a device or a file.
	AudioSink interface {
		WriteAudio(buffer AudioBuffer) error
		Close() error
	}
)

// NewAudioBus allocates a bus with the given number of channels and frames.
// Allocate buses outside the render goroutine and reuse them.
func NewAudioBus(channels, frames int) AudioBus {
	data := make([]float32, channels*frames)
	bus := AudioBus{Channels: make([][]float32, channels)}
	for c := range bus.Channels {
		bus.Channels[c] = data[c*frames : (c+1)*frames : (c+1)*frames]
	}
	return bus
}

func (b AudioBus) NumChannels() int { return len(b.Channels) }

// Frames returns the number of frames in the bus, 0 if it has no channels.
func (b AudioBus) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Channel returns the samples of channel c, or nil if the bus has no such
// channel.
func (b AudioBus) Channel(c int) []float32 {
	if c < 0 || c >= len(b.Channels) {
		return nil
	}
	return b.Channels[c]
}

// Slice returns a view of the frames [from, to) of every channel. The
// returned bus shares the channel slice header storage of dst, so dst must
// have room for as many channels as b.
func (b AudioBus) Slice(dst AudioBus, from, to int) AudioBus {
	dst.Channels = dst.Channels[:len(b.Channels)]
	for c, ch := range b.Channels {
		dst.Channels[c] = ch[from:to]
	}
	return dst
}

// Zero silences every channel.
func (b AudioBus) Zero() {
	for _, ch := range b.Channels {
		clear(ch)
	}
}

// Interleave writes the first two channels of the bus into dst, growing dst
// if needed. A mono bus is duplicated to both sides. The possibly reallocated
// buffer is returned.
func (b AudioBus) Interleave(dst AudioBuffer) AudioBuffer {
	n := b.Frames()
	if cap(dst) < n {
		dst = make(AudioBuffer, n)
	}
	dst = dst[:n]
	switch len(b.Channels) {
	case 0:
		clear(dst)
	case 1:
		for i, v := range b.Channels[0] {
			dst[i] = [2]float32{v, v}
		}
	default:
		l, r := b.Channels[0], b.Channels[1]
		for i := range dst {
			dst[i] = [2]float32{l[i], r[i]}
		}
	}
	return dst
}
