package quanta

import (
	"errors"
	"math"
	"sync/atomic"
)

type (
	// Clock is the context clock of a host: the number of frames rendered so
	// far at a fixed sample rate. The render goroutine advances it once per
	// quantum; any goroutine may read it.
	Clock struct {
		sampleRate float64
		frames     atomic.Uint64
	}

	// Quantum describes one render quantum: Frames samples starting at the
	// absolute context time Start (seconds).
	Quantum struct {
		Start      float64
		Frames     int
		SampleRate float64
	}
)

var ErrInvalidSampleRate = errors.New("sample rate must be positive")

// Immediately is a time before any quantum. A command scheduled at it is
// applied at the start of the next quantum, before anything else that is due
// then.
var Immediately = math.Inf(-1)

func NewClock(sampleRate int) (*Clock, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	return &Clock{sampleRate: float64(sampleRate)}, nil
}

func (c *Clock) SampleRate() float64 { return c.sampleRate }

// Frame returns the number of frames rendered so far.
func (c *Clock) Frame() uint64 { return c.frames.Load() }

// Now returns the current context time in seconds, i.e. the start time of the
// quantum that will be rendered next.
func (c *Clock) Now() float64 {
	return float64(c.frames.Load()) / c.sampleRate
}

// Quantum returns the quantum of the given length starting at the current
// context time.
func (c *Clock) Quantum(frames int) Quantum {
	return Quantum{Start: c.Now(), Frames: frames, SampleRate: c.sampleRate}
}

// Advance moves the clock forward after a quantum of the given length has been
// rendered. Only the render goroutine should call Advance.
func (c *Clock) Advance(frames int) {
	if frames > 0 {
		c.frames.Add(uint64(frames))
	}
}

// Reset rewinds the clock to zero.
func (c *Clock) Reset() { c.frames.Store(0) }

// End is the first instant not belonging to the quantum.
func (q Quantum) End() float64 {
	return q.Start + float64(q.Frames)/q.SampleRate
}

// Due reports whether an event at time t must be applied during this quantum.
// Events exactly at End belong to the next quantum.
func (q Quantum) Due(t float64) bool { return t < q.End() }

// Offset returns the frame within the quantum where an event at time t takes
// effect. Overdue events land on the first frame; rounding is guarded so that
// the offset always stays inside [0, Frames-1].
func (q Quantum) Offset(t float64) int {
	if t < q.Start || q.Frames <= 0 {
		return 0
	}
	offset := int(math.Round((t - q.Start) * q.SampleRate))
	if offset > q.Frames-1 {
		offset = q.Frames - 1
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

func FramesToSeconds(frames int, sampleRate float64) float64 {
	return float64(frames) / sampleRate
}

func SecondsToFrames(seconds float64, sampleRate float64) int {
	return int(math.Round(seconds * sampleRate))
}
