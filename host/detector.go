package host

import (
	"math"

	"github.com/viterin/vek/vek32"
)

type (
	// Detector meters the audio rendered by a Context. It runs on its own
	// goroutine, reading from Broker.ToDetector and sending a PeakResult to
	// Broker.ToControl for every chunk of audio it has seen.
	Detector struct {
		broker      *Broker
		chunkFrames int
		peaks       peakDetector
	}

	Decibel float32

	PeakType int

	// PeakResult holds the peaks of the left and right channel, for each
	// PeakType.
	PeakResult [NumPeakTypes][2]Decibel

	peakDetector struct {
		windows  [2][2]ringBuffer // [window][channel]
		maxPower [2]float32
		tmp      []float32
	}

	ringBuffer struct {
		buffer []float32
		cursor int
	}
)

const (
	PeakMomentary PeakType = iota
	PeakShortTerm
	PeakIntegrated
	NumPeakTypes
)

// DefaultChunkFrames is 100 ms at 44.1 kHz.
const DefaultChunkFrames = 4410

func NewDetector(b *Broker, chunkFrames int) *Detector {
	if chunkFrames <= 0 {
		chunkFrames = DefaultChunkFrames
	}
	return &Detector{broker: b, chunkFrames: chunkFrames, peaks: makePeakDetector()}
}

// Run analyzes audio until a close is requested. It closes
// Broker.FinishedDetector on return.
func (d *Detector) Run() {
	defer close(d.broker.FinishedDetector)
	var pending [][2]float32
	for {
		select {
		case <-d.broker.CloseDetector:
			return
		case msg := <-d.broker.ToDetector:
			if msg.Reset {
				d.peaks.reset()
				pending = pending[:0]
			}
			if msg.Data == nil {
				continue
			}
			pending = append(pending, (*msg.Data)...)
			d.broker.PutAudioBuffer(msg.Data)
			for len(pending) >= d.chunkFrames {
				TrySend(d.broker.ToControl, MsgToControl{
					HasPeaks: true,
					Peaks:    d.peaks.update(pending[:d.chunkFrames]),
					Frame:    msg.Frame - uint64(len(pending)-d.chunkFrames),
				})
				pending = append(pending[:0], pending[d.chunkFrames:]...)
			}
		}
	}
}

// Close asks Run to return. It does not wait; receive from
// Broker.FinishedDetector for that.
func (d *Detector) Close() {
	TrySend(d.broker.CloseDetector, struct{}{})
}

func makePeakDetector() peakDetector {
	return peakDetector{
		windows: [2][2]ringBuffer{
			{{buffer: make([]float32, 4)}, {buffer: make([]float32, 4)}},   // momentary, 400 ms
			{{buffer: make([]float32, 30)}, {buffer: make([]float32, 30)}}, // short-term, 3 s
		},
	}
}

func (d *peakDetector) update(buf [][2]float32) (ret PeakResult) {
	if len(d.tmp) < len(buf) {
		d.tmp = make([]float32, len(buf))
	}
	for chn := range 2 {
		t := d.tmp[:len(buf)]
		for i := range buf {
			t[i] = buf[i][chn]
		}
		vek32.Abs_Inplace(t)
		p := vek32.Max(t)
		for i := range d.windows {
			d.windows[i][chn].write(p)
			windowPeak := vek32.Max(d.windows[i][chn].buffer)
			ret[i+int(PeakMomentary)][chn] = toDecibel(windowPeak)
		}
		d.maxPower[chn] = max(d.maxPower[chn], p)
		ret[PeakIntegrated][chn] = toDecibel(d.maxPower[chn])
	}
	return
}

func (d *peakDetector) reset() {
	for i := range d.windows {
		for chn := range d.windows[i] {
			clear(d.windows[i][chn].buffer)
			d.windows[i][chn].cursor = 0
		}
	}
	d.maxPower = [2]float32{}
}

func (r *ringBuffer) write(v float32) {
	r.buffer[r.cursor] = v
	r.cursor = (r.cursor + 1) % len(r.buffer)
}

func toDecibel(amplitude float32) Decibel {
	return Decibel(20 * math.Log10(float64(amplitude)))
}
