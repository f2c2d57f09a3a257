// Package host runs nodes: it owns the context clock, renders the connected
// nodes quantum by quantum, and mixes them into one stereo output.
package host

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/quanta"
)

type (
	// Context renders a set of connected nodes. Process, Render and Reset
	// belong to the render goroutine; everything else may be called from any
	// goroutine, also while rendering.
	Context struct {
		clock    *quanta.Clock
		frames   int
		channels int
		gain     atomic.Uint32 // float32 bits
		broker   *Broker
		metered  bool

		mu    sync.Mutex                    // serializes changes to conns
		conns atomic.Pointer[[]*connection] // copy on write, read by the render goroutine

		// nodes disconnected since the last quantum, reset by the render
		// goroutine before it renders the next one
		retired atomic.Pointer[[]quanta.Node]

		mix     quanta.AudioBus
		pending quanta.AudioBuffer // interleaved output of the last quantum
		pos     int                // next frame of pending to hand out
	}

	Options struct {
		SampleRate   int
		QuantumSize  int // frames per quantum
		Channels     int // channels of the mix, 1 or 2
		Gain         float32
		MeterEnabled bool // send rendered audio to Broker.ToDetector
	}

	// Connection describes a connected node.
	Connection struct {
		ID   uuid.UUID
		Node quanta.Node
	}

	connection struct {
		Connection
		bus    quanta.AudioBus
		failed atomic.Bool
	}
)

var ErrNotConnected = errors.New("node is not connected")

func DefaultOptions() Options {
	return Options{SampleRate: 48000, QuantumSize: 512, Channels: 2, Gain: 1}
}

func New(opts Options, broker *Broker) (*Context, error) {
	clock, err := quanta.NewClock(opts.SampleRate)
	if err != nil {
		return nil, err
	}
	if opts.QuantumSize <= 0 {
		return nil, fmt.Errorf("quantum size must be positive, got %d", opts.QuantumSize)
	}
	if opts.Channels != 1 && opts.Channels != 2 {
		return nil, fmt.Errorf("the mix must have 1 or 2 channels, got %d", opts.Channels)
	}
	if broker == nil {
		broker = NewBroker()
	}
	c := &Context{
		clock:    clock,
		frames:   opts.QuantumSize,
		channels: opts.Channels,
		broker:   broker,
		metered:  opts.MeterEnabled,
		mix:      quanta.NewAudioBus(opts.Channels, opts.QuantumSize),
		pending:  make(quanta.AudioBuffer, opts.QuantumSize),
	}
	c.pos = len(c.pending)
	c.SetGain(opts.Gain)
	c.conns.Store(&[]*connection{})
	return c, nil
}

func (c *Context) Clock() *quanta.Clock { return c.clock }
func (c *Context) Broker() *Broker      { return c.broker }
func (c *Context) QuantumSize() int     { return c.frames }

func (c *Context) SetGain(g float32) { c.gain.Store(math.Float32bits(g)) }
func (c *Context) Gain() float32     { return math.Float32frombits(c.gain.Load()) }

// Connect adds a node to the mix and returns the id of the connection. Nodes
// that raise alerts report them to the broker.
func (c *Context) Connect(n quanta.Node) (uuid.UUID, error) {
	if n == nil {
		return uuid.Nil, errors.New("cannot connect a nil node")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("connecting %s: %w", n.Name(), err)
	}
	if r, ok := n.(quanta.AlertReporter); ok {
		r.ReportAlertsTo(c.broker)
	}
	conn := &connection{
		Connection: Connection{ID: id, Node: n},
		bus:        quanta.NewAudioBus(max(n.NumChannels(), 1), c.frames),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	old := *c.conns.Load()
	conns := make([]*connection, len(old), len(old)+1)
	copy(conns, old)
	conns = append(conns, conn)
	c.conns.Store(&conns)
	return id, nil
}

// Disconnect removes a node from the mix. The node is uninitialized, and the
// render goroutine resets it at the start of the next quantum, dropping
// whatever was scheduled on it up to then. Reconnect it only after that
// quantum, or its new commands may be dropped too.
func (c *Context) Disconnect(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := *c.conns.Load()
	conns := make([]*connection, 0, len(old))
	var removed *connection
	for _, conn := range old {
		if conn.ID == id {
			removed = conn
			continue
		}
		conns = append(conns, conn)
	}
	if removed == nil {
		return fmt.Errorf("disconnecting %v: %w", id, ErrNotConnected)
	}
	c.conns.Store(&conns)
	removed.Node.Uninitialize()
	c.retire(removed.Node)
	return nil
}

func (c *Context) retire(n quanta.Node) {
	for {
		old := c.retired.Load()
		var nodes []quanta.Node
		if old != nil {
			nodes = append(nodes, *old...)
		}
		nodes = append(nodes, n)
		if c.retired.CompareAndSwap(old, &nodes) {
			return
		}
	}
}

// resetRetired resets the nodes disconnected since the last call. Render
// goroutine only.
func (c *Context) resetRetired() {
	if nodes := c.retired.Swap(nil); nodes != nil {
		for _, n := range *nodes {
			n.Reset()
		}
	}
}

// Connections lists the connected nodes in the order they were connected.
func (c *Context) Connections() []Connection {
	conns := *c.conns.Load()
	ret := make([]Connection, len(conns))
	for i, conn := range conns {
		ret[i] = conn.Connection
	}
	return ret
}

// Node returns the node of a connection.
func (c *Context) Node(id uuid.UUID) (quanta.Node, error) {
	for _, conn := range *c.conns.Load() {
		if conn.ID == id {
			return conn.Node, nil
		}
	}
	return nil, fmt.Errorf("%v: %w", id, ErrNotConnected)
}

// Process renders one quantum of every connected node, mixes them and
// advances the clock. The returned bus is only valid until the next call.
func (c *Context) Process() quanta.AudioBus {
	c.resetRetired()
	q := c.clock.Quantum(c.frames)
	c.mix.Zero()
	for _, conn := range *c.conns.Load() {
		if conn.failed.Load() {
			continue
		}
		if !c.processNode(q, conn) {
			continue
		}
		last := conn.bus.NumChannels() - 1
		for ch, dst := range c.mix.Channels {
			vek32.Add_Inplace(dst, conn.bus.Channels[min(ch, last)])
		}
	}
	if g := c.Gain(); g != 1 {
		for _, ch := range c.mix.Channels {
			vek32.MulNumber_Inplace(ch, g)
		}
	}
	c.clock.Advance(c.frames)
	return c.mix
}

// processNode runs one node, taking it out of the mix if it panics.
func (c *Context) processNode(q quanta.Quantum, conn *connection) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			conn.failed.Store(true)
			c.broker.Alert(quanta.Alert{
				Name:     "NodeCrash",
				Priority: quanta.Error,
				Message:  fmt.Sprintf("node %s crashed and was muted: %v", conn.Node.Name(), r),
			})
			ok = false
		}
	}()
	conn.Node.Process(q, conn.bus)
	return true
}

// Render fills buf with interleaved stereo output, processing as many quanta
// as needed. Frames of a quantum that do not fit are kept for the next call,
// so buf may have any length.
func (c *Context) Render(buf quanta.AudioBuffer) {
	for len(buf) > 0 {
		if c.pos >= len(c.pending) {
			mix := c.Process()
			c.pending = mix.Interleave(c.pending)
			c.pos = 0
			if c.metered {
				c.meter()
			}
		}
		n := copy(buf, c.pending[c.pos:])
		c.pos += n
		buf = buf[n:]
	}
}

func (c *Context) meter() {
	buf := c.broker.GetAudioBuffer()
	*buf = append(*buf, c.pending...)
	if !TrySend(c.broker.ToDetector, MsgToDetector{Data: buf, Frame: c.clock.Frame()}) {
		c.broker.PutAudioBuffer(buf)
	}
}

// Reset resets every node and drops the audio rendered but not yet handed
// out. Render goroutine only, or after rendering has stopped.
func (c *Context) Reset() {
	for _, conn := range *c.conns.Load() {
		conn.Node.Reset()
	}
	c.pos = len(c.pending)
	TrySend(c.broker.ToDetector, MsgToDetector{Reset: true})
}

// Close uninitializes and resets all nodes and disconnects them. Rendering
// must have stopped.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetRetired()
	for _, conn := range *c.conns.Load() {
		conn.Node.Uninitialize()
		conn.Node.Reset()
	}
	c.conns.Store(&[]*connection{})
}
