package host

import (
	"github.com/vsariola/quanta"
)

// RenderFor renders the given number of seconds of output, rounded to whole
// frames, without an audio device. It runs the render goroutine's side of the
// context on the calling goroutine, so nothing else may render meanwhile.
func (c *Context) RenderFor(seconds float64) quanta.AudioBuffer {
	frames := quanta.SecondsToFrames(seconds, c.clock.SampleRate())
	if frames <= 0 {
		return nil
	}
	buf := make(quanta.AudioBuffer, frames)
	c.Render(buf)
	return buf
}

// Output writes rendered audio into an AudioSink in blocks of the given
// number of frames until stop returns true or the sink fails.
func (c *Context) Output(sink quanta.AudioSink, blockFrames int, stop func() bool) error {
	if blockFrames <= 0 {
		blockFrames = c.frames
	}
	buf := make(quanta.AudioBuffer, blockFrames)
	for !stop() {
		c.Render(buf)
		if err := sink.WriteAudio(buf); err != nil {
			return err
		}
	}
	return nil
}
