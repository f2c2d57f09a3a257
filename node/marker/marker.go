// Package marker implements a node that clicks at scheduled times. Every mark
// writes a short impulse into the output at the exact frame it was scheduled
// for, which makes the node a self-test of the scheduling: the clicks can be
// listened to, or inspected from the rendered buffer.
package marker

import (
	"fmt"
	"sync/atomic"

	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/sched"
)

type (
	Node struct {
		clock     *quanta.Clock
		scheduler *sched.Scheduler[Command]
		impulses  impulseWriter
	}

	Command struct {
		Kind Kind
		ID   int
	}

	Kind int

	// impulseWriter is the sink of the node. out is only valid during
	// Process.
	impulseWriter struct {
		out    []float32
		onMark atomic.Pointer[func(id, offset int)]
	}
)

const (
	KindMark Kind = iota
	KindClear
)

const (
	Name = "marker"

	// ImpulseHalfWidth is the number of frames written on each side of the
	// marked frame; the impulse covers [offset-4, offset+4).
	ImpulseHalfWidth = 4
)

func (c Command) IsClear() bool { return c.Kind == KindClear }

// New creates an uninitialized marker node.
func New(clock *quanta.Clock, opts sched.Options) *Node {
	n := &Node{clock: clock}
	n.scheduler = sched.New[Command](&n.impulses, opts)
	return n
}

// Factory returns a registry factory creating initialized marker nodes.
func Factory(opts sched.Options) quanta.NodeFactory {
	return func(clock *quanta.Clock) (quanta.Node, error) {
		n := New(clock, opts)
		n.Initialize()
		return n, nil
	}
}

func (n *Node) Name() string        { return Name }
func (n *Node) NumChannels() int    { return 1 }
func (n *Node) Initialize()         { n.scheduler.Initialize() }
func (n *Node) Uninitialize()       { n.scheduler.Uninitialize() }
func (n *Node) IsInitialized() bool { return n.scheduler.IsInitialized() }
func (n *Node) Reset()              { n.scheduler.Reset() }

func (n *Node) Stats() sched.Stats { return n.scheduler.Stats() }

// OnMark sets a function called on the render goroutine for every mark, with
// the frame offset the mark landed on. f must not block. nil removes it.
func (n *Node) OnMark(f func(id, offset int)) {
	if f == nil {
		n.impulses.onMark.Store(nil)
		return
	}
	n.impulses.onMark.Store(&f)
}

// Mark schedules a mark at the absolute context time t.
func (n *Node) Mark(t float64, id int) error {
	if _, err := n.scheduler.Schedule(t, Command{Kind: KindMark, ID: id}); err != nil {
		return fmt.Errorf("marker: mark %d: %w", id, err)
	}
	return nil
}

// MarkAfter schedules a mark delay seconds after the current context time.
func (n *Node) MarkAfter(delay float64, id int) error {
	return n.Mark(n.clock.Now()+delay, id)
}

// Clear schedules a cancellation at time t: marks scheduled before this call
// that are still pending at t are dropped.
func (n *Node) Clear(t float64) error {
	if _, err := n.scheduler.Schedule(t, Command{Kind: KindClear}); err != nil {
		return fmt.Errorf("marker: clear: %w", err)
	}
	return nil
}

func (n *Node) Process(q quanta.Quantum, out quanta.AudioBus) {
	out.Zero()
	n.impulses.out = out.Channel(0)
	n.scheduler.Dispatch(q)
	n.impulses.out = nil
}

func (w *impulseWriter) Apply(c Command, offset int) {
	from := max(0, offset-ImpulseHalfWidth)
	to := min(offset+ImpulseHalfWidth, len(w.out))
	for i := from; i < to; i++ {
		w.out[i] = 1
	}
	if f := w.onMark.Load(); f != nil {
		(*f)(c.ID, offset)
	}
}
