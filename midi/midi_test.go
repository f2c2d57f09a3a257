package midi_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/midi"
	"github.com/vsariola/quanta/minisynth"
	"github.com/vsariola/quanta/node/synth"
	"github.com/vsariola/quanta/sched"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		msg  gomidi.Message
		want synth.Command
	}{
		{"note on", gomidi.NoteOn(2, 60, 127), synth.Command{Kind: synth.KindNoteOn, Channel: 2, Key: 60, Velocity: 1}},
		{"zero velocity", gomidi.NoteOn(2, 60, 0), synth.Command{Kind: synth.KindNoteOff, Channel: 2, Key: 60}},
		{"note off", gomidi.NoteOff(3, 61), synth.Command{Kind: synth.KindNoteOff, Channel: 3, Key: 61}},
		{"program", gomidi.ProgramChange(1, 5), synth.Command{Kind: synth.KindSetPreset, Channel: 1, Key: 5}},
		{"drums", gomidi.ProgramChange(midi.DrumChannel, 0), synth.Command{Kind: synth.KindSetDrums, Channel: 9}},
		{"control", gomidi.ControlChange(0, 7, 100), synth.Command{Kind: synth.KindControlChange, Key: 7, Aux: 100}},
		{"bend", gomidi.Pitchbend(4, 0), synth.Command{Kind: synth.KindPitchBend, Channel: 4, Key: 8192}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := midi.Translate(tt.msg)
			if !ok || got != tt.want {
				t.Fatalf("Translate = (%+v, %v), want %+v", got, ok, tt.want)
			}
		})
	}
	if _, ok := midi.Translate(gomidi.AfterTouch(0, 10)); ok {
		t.Fatalf("aftertouch was translated")
	}
}

// testFile is two tracks at 96 ticks per quarter: a tempo change from 120 to
// 60 bpm after one beat, and notes on and off the beats.
func testFile(t *testing.T) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(96)
	var tempo smf.Track
	tempo.Add(0, smf.MetaTempo(120))
	tempo.Add(96, smf.MetaTempo(60))
	tempo.Close(0)
	var notes smf.Track
	notes.Add(0, gomidi.ProgramChange(midi.DrumChannel, 0))
	notes.Add(0, gomidi.NoteOn(0, 60, 100))
	notes.Add(96, gomidi.NoteOff(0, 60))
	notes.Add(0, gomidi.NoteOn(0, 62, 100))
	notes.Add(96, gomidi.NoteOff(0, 62))
	notes.Close(0)
	if err := s.Add(tempo); err != nil {
		t.Fatalf("adding track: %v", err)
	}
	if err := s.Add(notes); err != nil {
		t.Fatalf("adding track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("writing MIDI file: %v", err)
	}
	return buf.Bytes()
}

func TestReadSMF(t *testing.T) {
	seq, err := midi.ReadSMF(bytes.NewReader(testFile(t)))
	if err != nil {
		t.Fatalf("ReadSMF failed: %v", err)
	}
	want := []struct {
		time float64
		kind synth.Kind
		key  int
	}{
		{0, synth.KindSetDrums, 0},
		{0, synth.KindNoteOn, 60},
		{0.5, synth.KindNoteOff, 60},
		{0.5, synth.KindNoteOn, 62},
		{1.5, synth.KindNoteOff, 62},
	}
	if len(seq.Events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), seq.Events)
	}
	for i, w := range want {
		e := seq.Events[i]
		if math.Abs(e.Time-w.time) > 1e-9 || e.Command.Kind != w.kind || e.Command.Key != w.key {
			t.Fatalf("event %d: expected %+v, got %+v", i, w, e)
		}
	}
	if math.Abs(seq.Length-1.5) > 1e-9 {
		t.Fatalf("expected length 1.5, got %v", seq.Length)
	}
}

func TestReadSMFErrors(t *testing.T) {
	if _, err := midi.ReadSMF(bytes.NewReader([]byte("MThd"))); err == nil {
		t.Fatalf("truncated file was accepted")
	}
	// 25 fps, 40 subframes
	smpte := []byte{
		'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0xE7, 40,
		'M', 'T', 'r', 'k', 0, 0, 0, 4, 0, 0xFF, 0x2F, 0,
	}
	buf := bytes.NewReader(smpte)
	if _, err := midi.ReadSMF(buf); !errors.Is(err, midi.ErrTimeCode) {
		t.Fatalf("expected ErrTimeCode, got %v", err)
	}
}

func TestScheduleSequence(t *testing.T) {
	clock, _ := quanta.NewClock(48000)
	node, _ := synth.Factory(minisynth.Synther{}, sched.DefaultOptions())(clock)
	n := node.(*synth.Node)
	seq, _ := midi.ReadSMF(bytes.NewReader(testFile(t)))
	count, err := seq.Schedule(n, 0)
	if err != nil || count != 5 {
		t.Fatalf("Schedule = (%v, %v)", count, err)
	}
	bus := quanta.NewAudioBus(2, 512)
	for clock.Now() < 2 {
		n.Process(clock.Quantum(512), bus)
		clock.Advance(512)
	}
	if st := n.Stats(); st.Applied != 5 {
		t.Fatalf("expected 5 applied commands, got %+v", st)
	}
}

func TestPlayerCancel(t *testing.T) {
	clock, _ := quanta.NewClock(48000)
	node, _ := synth.Factory(minisynth.Synther{}, sched.DefaultOptions())(clock)
	n := node.(*synth.Node)
	seq, _ := midi.ReadSMF(bytes.NewReader(testFile(t)))
	p := midi.Player{Node: n, Clock: clock, Lookahead: 100 * time.Millisecond, Poll: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Play(ctx, seq); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	bus := quanta.NewAudioBus(2, 512)
	for clock.Now() < 2 {
		n.Process(clock.Quantum(512), bus)
		clock.Advance(512)
	}
	// the first two commands fit in the lookahead and were scheduled before
	// the cancellation; the clear drops them and the all notes off runs
	if st := n.Stats(); st.Applied != 1 || st.Discarded != 2 {
		t.Fatalf("unexpected stats after cancellation %+v", st)
	}
}

func TestPlayerCancelReportsFullQueue(t *testing.T) {
	clock, _ := quanta.NewClock(48000)
	node, _ := synth.Factory(minisynth.Synther{}, sched.Options{QueueCapacity: 2})(clock)
	n := node.(*synth.Node)
	n.NoteOn(10, 0, 60, 1)
	n.NoteOn(10, 0, 64, 1)
	seq, _ := midi.ReadSMF(bytes.NewReader(testFile(t)))
	p := midi.Player{Node: n, Clock: clock, Poll: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Play(ctx, seq)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !errors.Is(err, sched.ErrQueueFull) {
		t.Fatalf("expected the failed clear to be reported, got %v", err)
	}
}

func TestFeeder(t *testing.T) {
	clock, _ := quanta.NewClock(48000)
	node, _ := synth.Factory(minisynth.Synther{}, sched.Options{QueueCapacity: 2})(clock)
	n := node.(*synth.Node)
	seq, _ := midi.ReadSMF(bytes.NewReader(testFile(t)))
	f := &midi.Feeder{Node: n, Seq: seq, Origin: 1}
	if err := f.Feed(0.5); err != nil || n.Stats().Rejected != 0 {
		t.Fatalf("nothing is due before the origin")
	}
	bus := quanta.NewAudioBus(2, 512)
	for !f.Done() {
		if clock.Now() > 5 {
			t.Fatalf("feeder never finished")
		}
		if err := f.Feed(clock.Now() + 0.1); err != nil {
			t.Fatalf("Feed error: %v", err)
		}
		n.Process(clock.Quantum(512), bus)
		clock.Advance(512)
	}
	if f.End() != 2.5 {
		t.Fatalf("expected the sequence to end at 2.5, got %v", f.End())
	}
	for clock.Now() < f.End() {
		n.Process(clock.Quantum(512), bus)
		clock.Advance(512)
	}
	if st := n.Stats(); st.Applied != 5 || st.Overdue != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
