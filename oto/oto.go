// Package oto plays a host.Context on the default audio device. The device
// callback pulls the context, so the goroutine oto reads from becomes the
// render goroutine.
package oto

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/host"
)

type (
	Output struct {
		ctx     *oto.Context
		player  *oto.Player
		pcm16   bool
		source  atomic.Pointer[host.Context]
		frames  quanta.AudioBuffer
		written atomic.Uint64

		mu sync.Mutex // guards player
	}

	Options struct {
		SampleRate int
		// BufferSize is the device buffer length; 0 lets oto decide.
		BufferSize time.Duration
		// PCM16 makes the device run in signed 16-bit instead of float32.
		PCM16 bool
	}
)

const (
	bytesPerFloatFrame = 8
	chunkFrames        = 4096 // frames rendered per chunk in Read
)

// Open opens the audio device. Only one Output can exist per process, as oto
// allows only one context.
func Open(opts Options) (*Output, error) {
	format := oto.FormatFloat32LE
	if opts.PCM16 {
		format = oto.FormatSignedInt16LE
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: 2,
		Format:       format,
		BufferSize:   opts.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Output{ctx: ctx, pcm16: opts.PCM16, frames: make(quanta.AudioBuffer, chunkFrames)}, nil
}

// Play starts pulling audio from c. Calling Play again switches to another
// context without stopping the device.
func (o *Output) Play(c *host.Context) {
	o.source.Store(c)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		o.player = o.ctx.NewPlayer(o)
		o.player.Play()
	}
}

// Frames returns the number of frames handed to the device so far.
func (o *Output) Frames() uint64 { return o.written.Load() }

// Read implements io.Reader for the oto player. It renders as many whole
// frames as fit in p, a chunk of the preallocated buffer at a time.
func (o *Output) Read(p []byte) (int, error) {
	frameSize := bytesPerFloatFrame
	if o.pcm16 {
		frameSize = bytesPerPCMFrame
	}
	n := len(p) / frameSize
	c := o.source.Load()
	for done := 0; done < n; {
		buf := o.frames[:min(n-done, len(o.frames))]
		if c != nil {
			c.Render(buf)
		} else {
			clear(buf)
		}
		dst := p[done*frameSize:]
		if o.pcm16 {
			encodePCM16(dst, buf)
		} else {
			encodeFloat32(dst, buf)
		}
		done += len(buf)
	}
	o.written.Add(uint64(n))
	return n * frameSize, nil
}

// Close stops playback. The oto context itself lives until the process
// exits.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	if err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
