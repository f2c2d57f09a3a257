package marker_test

import (
	"strings"
	"testing"

	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/node/marker"
	"github.com/vsariola/quanta/sched"
)

const sampleRate = 48000

type markRecord struct{ id, offset int }

func newMarker(t *testing.T) (*marker.Node, *quanta.Clock, *[]markRecord) {
	t.Helper()
	clock, err := quanta.NewClock(sampleRate)
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	n, err := marker.Factory(sched.DefaultOptions())(clock)
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	m := n.(*marker.Node)
	var marks []markRecord
	m.OnMark(func(id, offset int) { marks = append(marks, markRecord{id, offset}) })
	return m, clock, &marks
}

// render processes quanta of the given size until the clock reaches end and
// returns channel 0 of the whole output.
func render(n quanta.Node, clock *quanta.Clock, frames int, end float64) []float32 {
	bus := quanta.NewAudioBus(n.NumChannels(), frames)
	var ret []float32
	for clock.Now() < end {
		n.Process(clock.Quantum(frames), bus)
		ret = append(ret, bus.Channels[0]...)
		clock.Advance(frames)
	}
	return ret
}

func TestImpulse(t *testing.T) {
	m, clock, marks := newMarker(t)
	m.Mark(0.002, 1)
	out := render(m, clock, 512, 512.0/sampleRate)
	for i, v := range out {
		want := float32(0)
		if i >= 92 && i < 100 {
			want = 1
		}
		if v != want {
			t.Fatalf("frame %d: expected %v, got %v", i, want, v)
		}
	}
	if len(*marks) != 1 || (*marks)[0] != (markRecord{1, 96}) {
		t.Fatalf("unexpected marks %v", *marks)
	}
}

func TestImpulseIsClippedAtQuantumEdges(t *testing.T) {
	m, clock, _ := newMarker(t)
	m.Mark(0, 1)
	m.Mark(511.0/sampleRate, 2)
	out := render(m, clock, 512, 512.0/sampleRate)
	ones := 0
	for _, v := range out {
		if v == 1 {
			ones++
		}
	}
	if ones != 4+5 {
		t.Fatalf("expected 9 impulse frames, got %v", ones)
	}
	if out[0] != 1 || out[3] != 1 || out[4] != 0 || out[506] != 0 || out[507] != 1 || out[511] != 1 {
		t.Fatalf("impulse edges misplaced")
	}
}

func TestTimingTestComesOutSorted(t *testing.T) {
	m, clock, marks := newMarker(t)
	score := marker.TimingTest()
	for i := range score.Marks {
		score.Marks[i].Time /= 100 // keep the test short
	}
	if n, err := m.Schedule(score); err != nil || n != 20 {
		t.Fatalf("Schedule = (%v, %v)", n, err)
	}
	render(m, clock, 128, score.Length()+0.01)
	if len(*marks) != 20 {
		t.Fatalf("expected 20 marks, got %v", len(*marks))
	}
	for i := 1; i < len(*marks); i++ {
		prev, cur := score.Marks[(*marks)[i-1].id].Time, score.Marks[(*marks)[i].id].Time
		if cur < prev {
			t.Fatalf("mark %d at %v came after mark at %v", (*marks)[i].id, cur, prev)
		}
	}
}

func TestMarkAfterIsRelativeToNow(t *testing.T) {
	m, clock, marks := newMarker(t)
	clock.Advance(sampleRate)
	m.MarkAfter(0.001, 7)
	render(m, clock, 256, 1.01)
	if len(*marks) != 1 || (*marks)[0] != (markRecord{7, 48}) {
		t.Fatalf("unexpected marks %v", *marks)
	}
}

func TestClear(t *testing.T) {
	m, clock, marks := newMarker(t)
	m.Mark(0.01, 1)
	m.Mark(0.05, 2)
	m.Clear(0.02)
	m.Mark(0.06, 3)
	render(m, clock, 512, 0.1)
	if len(*marks) != 2 || (*marks)[0].id != 1 || (*marks)[1].id != 3 {
		t.Fatalf("expected marks 1 and 3, got %v", *marks)
	}
}

func TestUninitializedIsSilent(t *testing.T) {
	clock, _ := quanta.NewClock(sampleRate)
	m := marker.New(clock, sched.DefaultOptions())
	m.Mark(0, 1)
	bus := quanta.NewAudioBus(1, 256)
	bus.Channels[0][10] = 0.5
	m.Process(clock.Quantum(256), bus)
	for _, v := range bus.Channels[0] {
		if v != 0 {
			t.Fatalf("uninitialized node produced sound")
		}
	}
	m.Initialize()
	out := render(m, clock, 256, 0.01)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("a mark from the uninitialized period was rendered")
		}
	}
}

func TestReadScore(t *testing.T) {
	s, err := marker.ReadScore(strings.NewReader("marks: [{time: 0.5, id: 3}, {time: 0.25, id: 4}]\n"))
	if err != nil {
		t.Fatalf("ReadScore failed: %v", err)
	}
	if len(s.Marks) != 2 || s.Marks[0] != (marker.Mark{Time: 0.5, ID: 3}) || s.Length() != 0.5 {
		t.Fatalf("unexpected score %+v", s)
	}
	if _, err := marker.ReadScore(strings.NewReader("marks: [{tme: 1}]")); err == nil {
		t.Fatalf("unknown fields were accepted")
	}
}
