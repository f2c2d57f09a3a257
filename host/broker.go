package host

import (
	"sync"
	"time"

	"github.com/vsariola/quanta"
)

type (
	// Broker carries messages off the render goroutine. The render goroutine
	// only ever sends with TrySend; if a recipient is not keeping up, its
	// messages are dropped rather than stalling the audio.
	//
	// The detector goroutine is closed with the CloseDetector and
	// FinishedDetector pair: CloseDetector has a capacity of 1, so a close
	// request can always be sent without blocking, and FinishedDetector is
	// closed (never sent to) once the detector has stopped.
	Broker struct {
		ToControl  chan MsgToControl
		ToDetector chan MsgToDetector

		CloseDetector    chan struct{}
		FinishedDetector chan struct{}

		bufferPool sync.Pool
	}

	// MsgToControl is a message to the goroutine driving the host. Alerts
	// and meter readings are not boxed, so sending them does not allocate.
	MsgToControl struct {
		HasAlert bool
		Alert    quanta.Alert

		HasPeaks bool
		Peaks    PeakResult
		Frame    uint64 // context frame at the end of the metered audio
	}

	// MsgToDetector hands rendered audio to the detector. Data is returned
	// to the broker's pool once analyzed.
	MsgToDetector struct {
		Reset bool
		Data  *quanta.AudioBuffer
		Frame uint64
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToControl:        make(chan MsgToControl, 1024),
		ToDetector:       make(chan MsgToDetector, 1024),
		CloseDetector:    make(chan struct{}, 1),
		FinishedDetector: make(chan struct{}),
		bufferPool:       sync.Pool{New: func() any { return &quanta.AudioBuffer{} }},
	}
}

// Alert implements quanta.Alerter.
func (b *Broker) Alert(a quanta.Alert) {
	TrySend(b.ToControl, MsgToControl{HasAlert: true, Alert: a})
}

// GetAudioBuffer returns an empty audio buffer from the pool. Return it with
// PutAudioBuffer when done.
func (b *Broker) GetAudioBuffer() *quanta.AudioBuffer {
	return b.bufferPool.Get().(*quanta.AudioBuffer)
}

// PutAudioBuffer returns a buffer to the pool, truncated but with its
// capacity kept.
func (b *Broker) PutAudioBuffer(buf *quanta.AudioBuffer) {
	if len(*buf) > 0 {
		*buf = (*buf)[:0]
	}
	b.bufferPool.Put(buf)
}

// TrySend sends v to c if c has room. It never blocks, and reports whether
// the value was sent.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value is received from c or t has passed. ok
// is false on timeout or if c was closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
