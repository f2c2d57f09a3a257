// Package minisynth is a small polyphonic synthesizer with simple waveforms
// and ADSR envelopes. It is the built-in engine of the synth node, used
// when no other instruments are loaded.
package minisynth

import (
	"io"
	"math"
	"math/rand"

	"github.com/vsariola/quanta"
)

type (
	// Synther creates minisynth engines.
	Synther struct {
		Polyphony int
	}

	Engine struct {
		sampleRate float64
		bank       Bank
		voices     []voice
		channels   [numChannels]channel
		nextAge    uint64
		rand       *rand.Rand
	}

	channel struct {
		preset  int
		bend    float64 // semitones
		volume  float64
		pan     float64 // -1..1
		sustain bool
	}

	voice struct {
		active   bool
		channel  int // -1 if the voice was started with PresetNoteOn
		key      int
		preset   int
		age      uint64
		velocity float64
		freq     float64
		phase    float64
		env      float64
		stage    envStage
		held     bool // released while the sustain pedal was down
	}

	envStage int
)

const (
	stageAttack envStage = iota
	stageDecay
	stageSustain
	stageRelease
)

const (
	numChannels      = 16
	defaultPolyphony = 32
	bendRange        = 2 // semitones
	drumChannel      = 9
)

const (
	ccVolume           = 7
	ccPan              = 10
	ccSustain          = 64
	ccAllSoundOff      = 120
	ccResetControllers = 121
	ccAllNotesOff      = 123
)

func (s Synther) Name() string { return "minisynth" }

// Synth reads a bank from r, or uses DefaultBank if r is nil.
func (s Synther) Synth(r io.Reader, sampleRate int) (quanta.Synth, error) {
	bank := DefaultBank()
	if r != nil {
		var err error
		if bank, err = ReadBank(r); err != nil {
			return nil, err
		}
	}
	return New(bank, sampleRate, s.Polyphony), nil
}

// New creates an engine playing the presets of bank.
func New(bank Bank, sampleRate int, polyphony int) *Engine {
	if polyphony <= 0 {
		polyphony = defaultPolyphony
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		bank:       bank,
		voices:     make([]voice, polyphony),
		rand:       rand.New(rand.NewSource(1)),
	}
	e.resetChannels()
	return e
}

func (e *Engine) PresetCount() int { return len(e.bank.Presets) }

// ActiveVoices returns the number of sounding voices.
func (e *Engine) ActiveVoices() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

func (e *Engine) NoteOn(ch, key int, velocity float32) {
	if ch < 0 || ch >= numChannels {
		return
	}
	if velocity <= 0 {
		e.NoteOff(ch, key)
		return
	}
	e.start(ch, e.channels[ch].preset, key, velocity)
}

func (e *Engine) NoteOff(ch, key int) {
	if ch < 0 || ch >= numChannels {
		return
	}
	sustain := e.channels[ch].sustain
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active || v.channel != ch || v.key != key || v.stage == stageRelease {
			continue
		}
		if sustain {
			v.held = true
			continue
		}
		v.stage = stageRelease
	}
}

func (e *Engine) PresetNoteOn(preset, key int, velocity float32) {
	if preset < 0 || preset >= len(e.bank.Presets) {
		return
	}
	if velocity <= 0 {
		e.PresetNoteOff(preset, key)
		return
	}
	e.start(-1, preset, key, velocity)
}

func (e *Engine) PresetNoteOff(preset, key int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.channel < 0 && v.preset == preset && v.key == key {
			v.stage = stageRelease
		}
	}
}

func (e *Engine) NoteOffAll() {
	for i := range e.voices {
		if e.voices[i].active {
			e.voices[i].stage = stageRelease
			e.voices[i].held = false
		}
	}
}

func (e *Engine) SetPreset(ch, program int, drums bool) {
	if ch < 0 || ch >= numChannels {
		return
	}
	e.channels[ch].preset = e.bank.find(program, drums)
}

func (e *Engine) PitchBend(ch, bend int) {
	if ch < 0 || ch >= numChannels {
		return
	}
	e.channels[ch].bend = float64(bend-8192) / 8192 * bendRange
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.channel == ch {
			v.freq = e.frequency(ch, v.key)
		}
	}
}

func (e *Engine) ControlChange(ch, control, value int) {
	if ch < 0 || ch >= numChannels {
		return
	}
	c := &e.channels[ch]
	switch control {
	case ccVolume:
		c.volume = float64(value) / 127
	case ccPan:
		c.pan = float64(value-64) / 64
	case ccSustain:
		c.sustain = value >= 64
		if !c.sustain {
			for i := range e.voices {
				v := &e.voices[i]
				if v.active && v.channel == ch && v.held {
					v.held = false
					v.stage = stageRelease
				}
			}
		}
	case ccAllSoundOff:
		for i := range e.voices {
			if e.voices[i].channel == ch {
				e.voices[i].active = false
			}
		}
	case ccResetControllers:
		*c = channel{preset: c.preset, volume: 1}
	case ccAllNotesOff:
		for i := range e.voices {
			v := &e.voices[i]
			if v.active && v.channel == ch {
				v.stage = stageRelease
			}
		}
	}
}

// Render overwrites left and right with the next len(left) frames.
func (e *Engine) Render(left, right []float32) {
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		l, r := e.renderFrame()
		left[i] = l
		right[i] = r
	}
}

func (e *Engine) renderFrame() (float32, float32) {
	var l, r float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		p := &e.bank.Presets[v.preset]
		env := e.advanceEnv(v, p)
		if !v.active {
			continue
		}
		sig := e.oscillator(p.Wave, v.phase) * env * v.velocity * p.Gain
		volume, pan := 1.0, 0.0
		if v.channel >= 0 {
			volume, pan = e.channels[v.channel].volume, e.channels[v.channel].pan
		}
		angle := (pan + 1) * math.Pi / 4
		l += sig * volume * math.Cos(angle)
		r += sig * volume * math.Sin(angle)
		v.phase += v.freq / e.sampleRate
		v.phase -= math.Floor(v.phase)
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (e *Engine) oscillator(w Wave, phase float64) float64 {
	switch w {
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Triangle:
		return 1 - 4*math.Abs(phase-0.5)
	case Sine:
		return math.Sin(2 * math.Pi * phase)
	case Noise:
		return e.rand.Float64()*2 - 1
	}
	return 2*phase - 1
}

func (e *Engine) advanceEnv(v *voice, p *Preset) float64 {
	switch v.stage {
	case stageAttack:
		v.env += e.rate(p.Attack)
		if v.env >= 1 {
			v.env = 1
			v.stage = stageDecay
		}
	case stageDecay:
		v.env -= e.rate(p.Decay) * (1 - p.Sustain)
		if v.env <= p.Sustain {
			v.env = p.Sustain
			v.stage = stageSustain
		}
	case stageSustain:
		if p.Sustain <= 0 {
			v.active = false
		}
	case stageRelease:
		v.env -= e.rate(p.Release)
		if v.env <= 0 {
			v.env = 0
			v.active = false
		}
	}
	return v.env
}

// rate is the per-frame envelope step for a segment of the given length.
func (e *Engine) rate(seconds float64) float64 {
	if seconds <= 0 {
		return 1
	}
	return 1 / (seconds * e.sampleRate)
}

func (e *Engine) start(ch, preset, key int, velocity float32) {
	i := e.stealVoice()
	e.nextAge++
	e.voices[i] = voice{
		active:   true,
		channel:  ch,
		key:      key,
		preset:   preset,
		age:      e.nextAge,
		velocity: clamp(float64(velocity), 0, 1),
		freq:     e.frequency(ch, key),
		stage:    stageAttack,
	}
}

// stealVoice returns a free voice, or the oldest one if all are in use.
// Released voices are stolen before held ones.
func (e *Engine) stealVoice() int {
	oldest, oldestReleased := -1, -1
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			return i
		}
		if v.stage == stageRelease && (oldestReleased < 0 || v.age < e.voices[oldestReleased].age) {
			oldestReleased = i
		}
		if oldest < 0 || v.age < e.voices[oldest].age {
			oldest = i
		}
	}
	if oldestReleased >= 0 {
		return oldestReleased
	}
	return oldest
}

func (e *Engine) frequency(ch, key int) float64 {
	note := float64(key)
	if ch >= 0 {
		note += e.channels[ch].bend
	}
	return 440 * math.Pow(2, (note-69)/12)
}

func (e *Engine) resetChannels() {
	for i := range e.channels {
		e.channels[i] = channel{volume: 1}
	}
	e.channels[drumChannel].preset = e.bank.find(0, true)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
