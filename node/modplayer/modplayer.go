// Package modplayer implements a node that streams a module through a
// Decoder. The decoder is pulled once per quantum while playing; scheduled
// commands only start, stop and rewind playback, and drop signpost clicks
// into the output.
package modplayer

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
		module    atomic.Pointer[module]
		alerter   atomic.Pointer[quanta.Alerter]
		chunk     int
		transport transport
	}

	Command struct {
		Kind Kind
		ID   int
	}

	Kind int

	Options struct {
		sched.Options
		// ChunkFrames is how many frames the decoder is asked for at a time.
		ChunkFrames int
	}

	// module is a loaded decoder with its staging buffer. The staging buffer
	// holds frames decoded but not yet played; only the render goroutine
	// touches it.
	module struct {
		decoder quanta.Decoder
		stage   quanta.AudioBuffer
		pos     int // next staged frame to play
		end     int // number of valid frames in stage
	}

	// transport is the sink of the node and owns the playback state.
	transport struct {
		playing bool
		restart bool
		current *module
		out     []float32
	}
)

const (
	KindPlay Kind = iota
	KindPause
	KindRestart
	KindSignpost
	KindClear
)

const (
	Name               = "modplayer"
	DefaultChunkFrames = 1024
	impulseHalfWidth   = 4
)

var ErrNoModule = errors.New("no module loaded")

func (c Command) IsClear() bool { return c.Kind == KindClear }

func DefaultOptions() Options {
	return Options{Options: sched.DefaultOptions(), ChunkFrames: DefaultChunkFrames}
}

// New creates an uninitialized player with nothing loaded.
func New(clock *quanta.Clock, opts Options) *Node {
	if opts.ChunkFrames <= 0 {
		opts.ChunkFrames = DefaultChunkFrames
	}
	n := &Node{clock: clock, chunk: opts.ChunkFrames}
	n.scheduler = sched.New[Command](&n.transport, opts.Options)
	return n
}

// Factory returns a registry factory creating initialized players.
func Factory(opts Options) quanta.NodeFactory {
	return func(clock *quanta.Clock) (quanta.Node, error) {
		n := New(clock, opts)
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

// Load reads a module from r and decodes it with a decoder made by factory.
// The module starts playing from the beginning on the next quantum.
func (n *Node) Load(factory quanta.DecoderFactory, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("modplayer: reading module: %w", err)
	}
	dec, err := factory(data, int(n.clock.SampleRate()))
	if err != nil {
		return fmt.Errorf("modplayer: decoding module: %w", err)
	}
	n.module.Store(&module{decoder: dec, stage: make(quanta.AudioBuffer, n.chunk)})
	return nil
}

// Loaded reports whether a module is loaded.
func (n *Node) Loaded() bool { return n.module.Load() != nil }

func (n *Node) schedule(t float64, c Command) error {
	if !c.IsClear() && c.Kind != KindSignpost && n.module.Load() == nil {
		return ErrNoModule
	}
	if _, err := n.scheduler.Schedule(t, c); err != nil {
		return fmt.Errorf("modplayer: %w", err)
	}
	return nil
}

func (n *Node) Play(t float64) error    { return n.schedule(t, Command{Kind: KindPlay}) }
func (n *Node) Pause(t float64) error   { return n.schedule(t, Command{Kind: KindPause}) }
func (n *Node) Restart(t float64) error { return n.schedule(t, Command{Kind: KindRestart}) }

// Signpost schedules a click at time t. Signposts need no module.
func (n *Node) Signpost(t float64, id int) error {
	return n.schedule(t, Command{Kind: KindSignpost, ID: id})
}

func (n *Node) Clear(t float64) error { return n.schedule(t, Command{Kind: KindClear}) }

func (n *Node) Process(q quanta.Quantum, out quanta.AudioBus) {
	out.Zero()
	tr := &n.transport
	if m := n.module.Load(); m != tr.current {
		tr.current = m
		tr.playing = m != nil
	}
	tr.out = out.Channel(0)
	_, ok := n.scheduler.Dispatch(q)
	tr.out = nil
	if !ok || tr.current == nil {
		return
	}
	if tr.restart {
		tr.restart = false
		tr.current.decoder.Rewind()
		tr.current.pos, tr.current.end = 0, 0
	}
	if !tr.playing {
		return
	}
	defer n.recoverDecoder(tr.current, out)
	if !n.stream(tr.current, out) {
		tr.playing = false
		n.alert(quanta.Info, "ModuleFinished", "module reached its end")
	}
}

// stream adds the next frames of the module to out. It returns false if the
// decoder ran out before the quantum was filled.
func (n *Node) stream(m *module, out quanta.AudioBus) bool {
	left, right := out.Channel(0), out.Channel(1)
	if left == nil {
		return true
	}
	if right == nil {
		right = left
	}
	frames := len(left)
	for i := 0; i < frames; {
		if m.pos >= m.end {
			m.pos, m.end = 0, m.decoder.Decode(m.stage)
			if m.end <= 0 {
				m.end = 0
				return false
			}
			m.end = min(m.end, len(m.stage))
		}
		c := min(frames-i, m.end-m.pos)
		for _, s := range m.stage[m.pos : m.pos+c] {
			left[i] += s[0]
			right[i] += s[1]
			i++
		}
		m.pos += c
	}
	return true
}

func (n *Node) recoverDecoder(m *module, out quanta.AudioBus) {
	r := recover()
	if r == nil {
		return
	}
	n.module.CompareAndSwap(m, nil)
	n.transport.current = nil
	n.transport.playing = false
	out.Zero()
	n.alert(quanta.Error, "DecoderCrash", fmt.Sprintf("decoder crashed and was unloaded: %v", r))
}

func (n *Node) alert(priority quanta.AlertPriority, name, message string) {
	if a := n.alerter.Load(); a != nil {
		(*a).Alert(quanta.Alert{Name: name, Priority: priority, Message: message})
	}
}

func (t *transport) Apply(c Command, offset int) {
	switch c.Kind {
	case KindPlay:
		t.playing = t.current != nil
	case KindPause:
		t.playing = false
	case KindRestart:
		t.restart = true
		t.playing = t.current != nil
	case KindSignpost:
		from := max(0, offset-impulseHalfWidth)
		to := min(offset+impulseHalfWidth, len(t.out))
		for i := from; i < to; i++ {
			t.out[i] = 1
		}
	}
}
