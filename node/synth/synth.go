// Package synth implements a node that plays a synthesis engine. Commands are
// applied to the engine in order at the start of the quantum they fall in,
// after which the engine renders the whole quantum at once.
package synth

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/sched"
)

type (
	Node struct {
		clock     *quanta.Clock
		scheduler *sched.Scheduler[Command]
		engine    atomic.Pointer[engine]
		alerter   atomic.Pointer[quanta.Alerter]
		applier   applier
	}

	// Command is one synth command. Which fields are used depends on Kind:
	// Channel is the preset number for the preset notes, Aux is the value of
	// a control change.
	Command struct {
		Kind     Kind
		Channel  int
		Key      int
		Aux      int
		Velocity float32
	}

	Kind int

	engine struct {
		synth quanta.Synth
		name  string
	}

	applier struct {
		synth quanta.Synth
	}
)

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindPresetNoteOn
	KindPresetNoteOff
	KindAllNotesOff
	KindSetPreset
	KindSetDrums
	KindPitchBend
	KindControlChange
	KindClear
)

const Name = "synth"

var ErrNoEngine = errors.New("no synth engine loaded")

func (c Command) IsClear() bool { return c.Kind == KindClear }

// New creates an uninitialized synth node with no engine loaded.
func New(clock *quanta.Clock, opts sched.Options) *Node {
	n := &Node{clock: clock}
	n.scheduler = sched.New[Command](&n.applier, opts)
	return n
}

// Factory returns a registry factory creating initialized synth nodes with
// the default instruments of synther loaded.
func Factory(synther quanta.Synther, opts sched.Options) quanta.NodeFactory {
	return func(clock *quanta.Clock) (quanta.Node, error) {
		n := New(clock, opts)
		if err := n.Load(synther, nil); err != nil {
			return nil, err
		}
		n.Initialize()
		return n, nil
	}
}

func (n *Node) Name() string        { return Name }
func (n *Node) NumChannels() int    { return 2 }
func (n *Node) Initialize()         { n.scheduler.Initialize() }
func (n *Node) Uninitialize()       { n.scheduler.Uninitialize() }
func (n *Node) IsInitialized() bool { return n.scheduler.IsInitialized() }
func (n *Node) Reset()              { n.scheduler.Reset() }

func (n *Node) Stats() sched.Stats { return n.scheduler.Stats() }

func (n *Node) ReportAlertsTo(a quanta.Alerter) { n.alerter.Store(&a) }

// Load creates a new engine from the instrument data in r and swaps it in.
// A nil r loads the default instruments of the synther. Loading happens on
// the calling goroutine; the render goroutine picks up the new engine on its
// next quantum. Commands already scheduled are kept and go to the new
// engine.
func (n *Node) Load(synther quanta.Synther, r io.Reader) error {
	s, err := synther.Synth(r, int(n.clock.SampleRate()))
	if err != nil {
		return fmt.Errorf("synth: loading %s instruments: %w", synther.Name(), err)
	}
	n.engine.Store(&engine{synth: s, name: synther.Name()})
	return nil
}

// Unload detaches the engine. The node renders silence until something is
// loaded again.
func (n *Node) Unload() { n.engine.Store(nil) }

// Engine returns the name of the synther of the loaded engine, or "" if none
// is loaded.
func (n *Node) Engine() string {
	if e := n.engine.Load(); e != nil {
		return e.name
	}
	return ""
}

// PresetCount is the number of presets in the loaded instruments, 0 if no
// engine is loaded.
func (n *Node) PresetCount() int {
	if e := n.engine.Load(); e != nil {
		return e.synth.PresetCount()
	}
	return 0
}

// Schedule schedules c at the absolute context time t. It fails with
// ErrNoEngine if no engine is loaded, unless c is a clear.
func (n *Node) Schedule(t float64, c Command) error {
	if !c.IsClear() && n.engine.Load() == nil {
		return ErrNoEngine
	}
	if _, err := n.scheduler.Schedule(t, c); err != nil {
		return fmt.Errorf("synth: %w", err)
	}
	return nil
}

func (n *Node) NoteOn(t float64, channel, key int, velocity float32) error {
	return n.Schedule(t, Command{Kind: KindNoteOn, Channel: channel, Key: key, Velocity: velocity})
}

func (n *Node) NoteOff(t float64, channel, key int) error {
	return n.Schedule(t, Command{Kind: KindNoteOff, Channel: channel, Key: key})
}

func (n *Node) PresetNoteOn(t float64, preset, key int, velocity float32) error {
	return n.Schedule(t, Command{Kind: KindPresetNoteOn, Channel: preset, Key: key, Velocity: velocity})
}

func (n *Node) PresetNoteOff(t float64, preset, key int) error {
	return n.Schedule(t, Command{Kind: KindPresetNoteOff, Channel: preset, Key: key})
}

func (n *Node) AllNotesOff(t float64) error {
	return n.Schedule(t, Command{Kind: KindAllNotesOff})
}

// SetPreset selects the program of a channel; drums selects from the
// percussion bank.
func (n *Node) SetPreset(t float64, channel, program int, drums bool) error {
	kind := KindSetPreset
	if drums {
		kind = KindSetDrums
	}
	return n.Schedule(t, Command{Kind: kind, Channel: channel, Key: program})
}

// PitchBend sets the pitch wheel of a channel, 0..16383 with 8192 centered.
func (n *Node) PitchBend(t float64, channel, bend int) error {
	return n.Schedule(t, Command{Kind: KindPitchBend, Channel: channel, Key: bend})
}

func (n *Node) ControlChange(t float64, channel, control, value int) error {
	return n.Schedule(t, Command{Kind: KindControlChange, Channel: channel, Key: control, Aux: value})
}

// Clear schedules a cancellation at time t of everything scheduled before
// it; use quanta.Immediately to cancel all of it. Notes already playing keep
// playing, schedule AllNotesOff for that.
func (n *Node) Clear(t float64) error {
	return n.Schedule(t, Command{Kind: KindClear})
}

func (n *Node) Process(q quanta.Quantum, out quanta.AudioBus) {
	e := n.engine.Load()
	if e == nil || !n.scheduler.IsInitialized() {
		// still dispatch: the scheduler drops everything when uninitialized,
		// and with no engine the due commands have nowhere to go
		out.Zero()
		n.applier.synth = nil
		n.scheduler.Dispatch(q)
		return
	}
	defer n.recoverEngine(e, out)
	n.applier.synth = e.synth
	n.scheduler.Dispatch(q)
	left, right := out.Channel(0), out.Channel(1)
	if right == nil {
		right = left
	}
	if left == nil {
		return
	}
	e.synth.Render(left, right)
}

// recoverEngine detaches an engine that panicked and silences the quantum.
func (n *Node) recoverEngine(e *engine, out quanta.AudioBus) {
	n.applier.synth = nil
	r := recover()
	if r == nil {
		return
	}
	n.engine.CompareAndSwap(e, nil)
	out.Zero()
	if a := n.alerter.Load(); a != nil {
		(*a).Alert(quanta.Alert{
			Name:     "SynthCrash",
			Priority: quanta.Error,
			Message:  fmt.Sprintf("%s engine crashed and was unloaded: %v", e.name, r),
		})
	}
}

func (a *applier) Apply(c Command, offset int) {
	s := a.synth
	if s == nil {
		return
	}
	switch c.Kind {
	case KindNoteOn:
		s.NoteOn(c.Channel, c.Key, c.Velocity)
	case KindNoteOff:
		s.NoteOff(c.Channel, c.Key)
	case KindPresetNoteOn:
		s.PresetNoteOn(c.Channel, c.Key, c.Velocity)
	case KindPresetNoteOff:
		s.PresetNoteOff(c.Channel, c.Key)
	case KindAllNotesOff:
		s.NoteOffAll()
	case KindSetPreset:
		s.SetPreset(c.Channel, c.Key, false)
	case KindSetDrums:
		s.SetPreset(c.Channel, c.Key, true)
	case KindPitchBend:
		s.PitchBend(c.Channel, c.Key)
	case KindControlChange:
		s.ControlChange(c.Channel, c.Key, c.Aux)
	}
}
