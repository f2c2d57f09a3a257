package midi

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/vsariola/quanta/node/synth"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type (
	// Sequence is a MIDI file flattened into synth commands at absolute
	// times, in seconds from the start of the file, sorted by time. Commands
	// at the same time keep the order they had in the file.
	Sequence struct {
		Events []Event
		Length float64 // time of the last event, including meta events
	}

	Event struct {
		Time    float64
		Command synth.Command
	}

	tempoChange struct {
		tick uint64
		bpm  float64
	}
)

const defaultBPM = 120

var ErrTimeCode = errors.New("SMPTE time code MIDI files are not supported")

// ReadSMF reads a Standard MIDI File and converts all of its tracks into one
// Sequence, using the tempo changes found in any track.
func ReadSMF(r io.Reader) (Sequence, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return Sequence{}, fmt.Errorf("reading MIDI file: %w", err)
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return Sequence{}, ErrTimeCode
	}
	type tickEvent struct {
		tick  uint64
		track int
		index int
		msg   smf.Message
	}
	var events []tickEvent
	var tempos []tempoChange
	var lastTick uint64
	for ti, track := range s.Tracks {
		var tick uint64
		for ei, ev := range track {
			tick += uint64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				tempos = append(tempos, tempoChange{tick: tick, bpm: bpm})
				continue
			}
			lastTick = max(lastTick, tick)
			events = append(events, tickEvent{tick: tick, track: ti, index: ei, msg: ev.Message})
		}
	}
	sort.SliceStable(tempos, func(i, j int) bool { return tempos[i].tick < tempos[j].tick })
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		if events[i].track != events[j].track {
			return events[i].track < events[j].track
		}
		return events[i].index < events[j].index
	})
	tm := tempoMap{resolution: float64(ticks.Ticks4th()), changes: tempos}
	seq := Sequence{Length: tm.seconds(lastTick)}
	for _, e := range events {
		cmd, ok := Translate(gomidi.Message(e.msg))
		if !ok {
			continue
		}
		seq.Events = append(seq.Events, Event{Time: tm.seconds(e.tick), Command: cmd})
	}
	return seq, nil
}

// tempoMap converts ticks to seconds. changes must be sorted by tick.
type tempoMap struct {
	resolution float64 // ticks per quarter note
	changes    []tempoChange
}

func (m tempoMap) seconds(tick uint64) float64 {
	var secs float64
	var prevTick uint64
	bpm := float64(defaultBPM)
	for _, c := range m.changes {
		if c.tick >= tick {
			break
		}
		secs += float64(c.tick-prevTick) / m.resolution * 60 / bpm
		prevTick, bpm = c.tick, c.bpm
	}
	return secs + float64(tick-prevTick)/m.resolution*60/bpm
}

// Schedule schedules the whole sequence on n, starting at the absolute
// context time origin. It returns the number of commands scheduled before an
// error, if any.
func (s Sequence) Schedule(n *synth.Node, origin float64) (int, error) {
	for i, e := range s.Events {
		if err := n.Schedule(origin+e.Time, e.Command); err != nil {
			return i, fmt.Errorf("scheduling MIDI event %d: %w", i, err)
		}
	}
	return len(s.Events), nil
}
