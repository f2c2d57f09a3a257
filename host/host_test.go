package host_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/host"
	"github.com/vsariola/quanta/node/marker"
	"github.com/vsariola/quanta/sched"
)

// rampNode outputs the context frame number on every frame, on one channel.
type rampNode struct {
	clock  *quanta.Clock
	panics bool
	reset  int
}

func (n *rampNode) Name() string        { return "ramp" }
func (n *rampNode) NumChannels() int    { return 1 }
func (n *rampNode) Initialize()         {}
func (n *rampNode) Uninitialize()       {}
func (n *rampNode) IsInitialized() bool { return true }
func (n *rampNode) Reset()              { n.reset++ }
func (n *rampNode) Process(q quanta.Quantum, out quanta.AudioBus) {
	if n.panics {
		panic("broken node")
	}
	start := quanta.SecondsToFrames(q.Start, q.SampleRate)
	for i := range out.Channels[0] {
		out.Channels[0][i] = float32(start + i)
	}
}

func newContext(t *testing.T, quantum int) *host.Context {
	t.Helper()
	opts := host.DefaultOptions()
	opts.QuantumSize = quantum
	c, err := host.New(opts, nil)
	if err != nil {
		t.Fatalf("host.New failed: %v", err)
	}
	return c
}

func TestRenderAnyBufferSize(t *testing.T) {
	c := newContext(t, 128)
	c.Connect(&rampNode{})
	want := float32(0)
	for _, size := range []int{1, 100, 128, 300, 7, 1000} {
		buf := make(quanta.AudioBuffer, size)
		c.Render(buf)
		for i, f := range buf {
			if f != [2]float32{want, want} {
				t.Fatalf("block of %d frames, frame %d: expected %v, got %v", size, i, want, f)
			}
			want++
		}
	}
}

func TestMixAndGain(t *testing.T) {
	c := newContext(t, 256)
	m1, _ := marker.Factory(sched.DefaultOptions())(c.Clock())
	m2, _ := marker.Factory(sched.DefaultOptions())(c.Clock())
	c.Connect(m1)
	c.Connect(m2)
	m1.(*marker.Node).Mark(0, 1)
	m2.(*marker.Node).Mark(0, 2)
	m2.(*marker.Node).Mark(0.002, 3)
	c.SetGain(0.5)
	mix := c.Process()
	if mix.Channels[0][0] != 1 || mix.Channels[1][0] != 1 {
		t.Fatalf("expected overlapping impulses to add up, got %v", mix.Channels[0][0])
	}
	if mix.Channels[0][96] != 0.5 {
		t.Fatalf("expected a single impulse at half gain, got %v", mix.Channels[0][96])
	}
	if c.Clock().Frame() != 256 {
		t.Fatalf("clock not advanced by Process")
	}
}

func TestConnectDisconnect(t *testing.T) {
	c := newContext(t, 64)
	id1, err := c.Connect(&rampNode{})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m, _ := marker.Factory(sched.DefaultOptions())(c.Clock())
	id2, _ := c.Connect(m)
	if id1 == id2 || id1 == uuid.Nil {
		t.Fatalf("connection ids not unique")
	}
	conns := c.Connections()
	if len(conns) != 2 || conns[0].ID != id1 || conns[1].Node != m {
		t.Fatalf("unexpected connections %v", conns)
	}
	if err := c.Disconnect(id2); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if m.IsInitialized() {
		t.Fatalf("disconnected node still initialized")
	}
	if err := c.Disconnect(id2); !errors.Is(err, host.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := c.Node(id1); err != nil {
		t.Fatalf("Node(%v) failed: %v", id1, err)
	}
}

func TestDisconnectDropsScheduledCommands(t *testing.T) {
	c := newContext(t, 64)
	m := marker.New(c.Clock(), sched.DefaultOptions())
	m.Initialize()
	marks := 0
	m.OnMark(func(id, offset int) { marks++ })
	id, _ := c.Connect(m)
	m.Mark(0.01, 1)
	if err := c.Disconnect(id); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	m.Mark(0.01, 2)
	m.Initialize()
	c.Process()
	c.Connect(m)
	c.RenderFor(0.1)
	if marks != 0 {
		t.Fatalf("expected the marks scheduled before reconnecting to be dropped, got %d marks", marks)
	}
	if st := m.Stats(); st.Discarded != 2 {
		t.Fatalf("expected 2 discarded marks, got %+v", st)
	}
	m.MarkAfter(0.01, 3)
	c.RenderFor(0.1)
	if marks != 1 {
		t.Fatalf("expected the reconnected node to play new marks, got %d marks", marks)
	}
}

func TestCrashingNodeIsMuted(t *testing.T) {
	c := newContext(t, 64)
	c.Connect(&rampNode{panics: true})
	m, _ := marker.Factory(sched.DefaultOptions())(c.Clock())
	c.Connect(m)
	m.(*marker.Node).Mark(0, 1)
	mix := c.Process()
	if mix.Channels[0][0] != 1 {
		t.Fatalf("the healthy node was not mixed")
	}
	msg, ok := host.TimeoutReceive(c.Broker().ToControl, time.Second)
	if !ok || !msg.HasAlert || msg.Alert.Name != "NodeCrash" {
		t.Fatalf("expected a crash alert, got %+v", msg)
	}
	c.Process()
	if _, ok := host.TimeoutReceive(c.Broker().ToControl, 10*time.Millisecond); ok {
		t.Fatalf("muted node was processed again")
	}
}

func TestResetAndClose(t *testing.T) {
	c := newContext(t, 64)
	n := &rampNode{}
	c.Connect(n)
	c.Reset()
	c.Close()
	if n.reset != 2 {
		t.Fatalf("expected the node to be reset twice, got %v", n.reset)
	}
	if len(c.Connections()) != 0 {
		t.Fatalf("nodes still connected after Close")
	}
}

func TestRenderFor(t *testing.T) {
	c := newContext(t, 512)
	buf := c.RenderFor(0.1)
	if len(buf) != 4800 {
		t.Fatalf("expected 4800 frames, got %v", len(buf))
	}
	if c.RenderFor(0) != nil {
		t.Fatalf("rendering nothing returned audio")
	}
}

type countingSink struct {
	frames int
	fail   error
}

func (s *countingSink) WriteAudio(buf quanta.AudioBuffer) error {
	s.frames += len(buf)
	return s.fail
}
func (s *countingSink) Close() error { return nil }

func TestOutput(t *testing.T) {
	c := newContext(t, 128)
	sink := &countingSink{}
	blocks := 0
	err := c.Output(sink, 100, func() bool { blocks++; return blocks > 5 })
	if err != nil || sink.frames != 500 {
		t.Fatalf("Output = %v after %v frames", err, sink.frames)
	}
	failure := errors.New("device lost")
	if err := c.Output(&countingSink{fail: failure}, 0, func() bool { return false }); !errors.Is(err, failure) {
		t.Fatalf("expected the sink error, got %v", err)
	}
}

func TestDetector(t *testing.T) {
	opts := host.DefaultOptions()
	opts.QuantumSize = 100
	opts.MeterEnabled = true
	b := host.NewBroker()
	c, _ := host.New(opts, b)
	m, _ := marker.Factory(sched.DefaultOptions())(c.Clock())
	c.Connect(m)
	m.(*marker.Node).Mark(0.001, 1)
	d := host.NewDetector(b, 400)
	go d.Run()
	c.Render(make(quanta.AudioBuffer, 400))
	msg, ok := host.TimeoutReceive(b.ToControl, time.Second)
	if !ok || !msg.HasPeaks {
		t.Fatalf("expected a meter reading, got %+v", msg)
	}
	if p := msg.Peaks[host.PeakMomentary]; p[0] != 0 || p[1] != 0 {
		t.Fatalf("expected a 0 dB peak from the impulse, got %v", p)
	}
	if msg.Frame != 400 {
		t.Fatalf("expected the reading to end at frame 400, got %v", msg.Frame)
	}
	d.Close()
	select {
	case <-b.FinishedDetector:
	case <-time.After(3 * time.Second):
		t.Fatalf("detector did not finish")
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	for _, opts := range []host.Options{
		{SampleRate: 0, QuantumSize: 128, Channels: 2},
		{SampleRate: 48000, QuantumSize: 0, Channels: 2},
		{SampleRate: 48000, QuantumSize: 128, Channels: 6},
	} {
		if _, err := host.New(opts, nil); err == nil {
			t.Fatalf("host.New accepted %+v", opts)
		}
	}
}
