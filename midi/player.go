package midi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/node/synth"
	"github.com/vsariola/quanta/sched"
)

// Player feeds a Sequence to a synth node a little ahead of time, so that the
// node's queue never has to hold the whole file.
type Player struct {
	Node  *synth.Node
	Clock *quanta.Clock
	// Lookahead is how far ahead of the context time events are scheduled.
	Lookahead time.Duration
	// Poll is how often the player wakes up to schedule more.
	Poll time.Duration
}

const (
	DefaultLookahead = time.Second
	DefaultPoll      = 100 * time.Millisecond
)

// Play schedules seq starting at the current context time and returns once
// every event has been scheduled and played, or ctx is done. On cancellation
// the events still pending in the node are cleared and all notes are
// released; if that cannot be scheduled, its error is joined to ctx.Err().
func (p *Player) Play(ctx context.Context, seq Sequence) error {
	lookahead, poll := p.Lookahead, p.Poll
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if poll <= 0 {
		poll = DefaultPoll
	}
	f := &Feeder{Node: p.Node, Seq: seq, Origin: p.Clock.Now()}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if err := f.Feed(p.Clock.Now() + lookahead.Seconds()); err != nil {
			return err
		}
		if f.Done() && p.Clock.Now() >= f.End() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(
				ctx.Err(),
				p.Node.Clear(quanta.Immediately),
				p.Node.AllNotesOff(quanta.Immediately),
			)
		case <-ticker.C:
		}
	}
}

// Feeder schedules a sequence on a node in order, a window at a time. Player
// drives one from a ticker; offline renderers call Feed between blocks.
type Feeder struct {
	Node   *synth.Node
	Seq    Sequence
	Origin float64 // absolute context time of the start of the sequence
	next   int
}

// Feed schedules every not yet scheduled event due at or before the absolute
// time until. A full queue is not an error: the rest is left for the next
// call.
func (f *Feeder) Feed(until float64) error {
	for f.next < len(f.Seq.Events) {
		e := f.Seq.Events[f.next]
		if f.Origin+e.Time > until {
			return nil
		}
		err := f.Node.Schedule(f.Origin+e.Time, e.Command)
		if errors.Is(err, sched.ErrQueueFull) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("playing MIDI event %d: %w", f.next, err)
		}
		f.next++
	}
	return nil
}

func (f *Feeder) Done() bool { return f.next == len(f.Seq.Events) }

// End is the absolute context time the sequence ends at.
func (f *Feeder) End() float64 { return f.Origin + f.Seq.Length }
