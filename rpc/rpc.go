// Package rpc lets other processes act as producers: they schedule commands
// on the nodes of a host.Context over net/rpc.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/rpc"

	"github.com/google/uuid"
	"github.com/vsariola/quanta/host"
	"github.com/vsariola/quanta/node/marker"
	"github.com/vsariola/quanta/node/modplayer"
	"github.com/vsariola/quanta/node/synth"
	"github.com/vsariola/quanta/sched"
)

type (
	// Request schedules one command on a connected node. Which fields are
	// used depends on Op.
	Request struct {
		Node     uuid.UUID
		Op       string
		Time     float64
		Relative bool // Time is a delay from the current context time
		Channel  int
		Key      int
		Value    int
		Velocity float32
		Drums    bool
	}

	Reply struct {
		Time float64 // the absolute context time the command was scheduled at
	}

	NodeInfo struct {
		ID          uuid.UUID
		Name        string
		Initialized bool
		Stats       sched.Stats
	}

	// Scheduler is the service registered on the rpc server.
	Scheduler struct {
		host *host.Context
	}

	Client struct {
		client *rpc.Client
	}

	statser interface {
		Stats() sched.Stats
	}
)

const ServiceName = "Scheduler"

// Ops understood by Scheduler.Schedule.
const (
	OpMark          = "mark"
	OpClear         = "clear"
	OpNoteOn        = "noteon"
	OpNoteOff       = "noteoff"
	OpAllNotesOff   = "allnotesoff"
	OpPreset        = "preset"
	OpPitchBend     = "pitchbend"
	OpControlChange = "cc"
	OpPlay          = "play"
	OpPause         = "pause"
	OpRestart       = "restart"
	OpSignpost      = "signpost"
)

var ErrUnsupportedOp = errors.New("operation not supported by node")

// NewServer returns an rpc server with a Scheduler service for c.
func NewServer(c *host.Context) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(ServiceName, &Scheduler{host: c}); err != nil {
		return nil, fmt.Errorf("registering rpc service: %w", err)
	}
	return server, nil
}

// Serve accepts connections on l until ctx is done, then closes l.
func Serve(ctx context.Context, c *host.Context, l net.Listener) error {
	server, err := NewServer(c)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := l.Accept()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[rpc] accept: %v", err)
				}
				return
			}
			go server.ServeConn(conn)
		}
	}()
	log.Printf("[rpc] listening on %v", l.Addr())
	select {
	case <-ctx.Done():
	case <-done:
	}
	l.Close()
	<-done
	return ctx.Err()
}

func (s *Scheduler) Now(_ int, reply *float64) error {
	*reply = s.host.Clock().Now()
	return nil
}

func (s *Scheduler) Nodes(_ int, reply *[]NodeInfo) error {
	conns := s.host.Connections()
	ret := make([]NodeInfo, len(conns))
	for i, c := range conns {
		ret[i] = NodeInfo{ID: c.ID, Name: c.Node.Name(), Initialized: c.Node.IsInitialized()}
		if st, ok := c.Node.(statser); ok {
			ret[i].Stats = st.Stats()
		}
	}
	*reply = ret
	return nil
}

func (s *Scheduler) Schedule(req Request, reply *Reply) error {
	n, err := s.host.Node(req.Node)
	if err != nil {
		return err
	}
	t := req.Time
	if req.Relative {
		t += s.host.Clock().Now()
	}
	switch n := n.(type) {
	case *marker.Node:
		err = scheduleMarker(n, t, req)
	case *synth.Node:
		err = scheduleSynth(n, t, req)
	case *modplayer.Node:
		err = scheduleModPlayer(n, t, req)
	default:
		err = fmt.Errorf("%s %s: %w", n.Name(), req.Op, ErrUnsupportedOp)
	}
	if err != nil {
		return err
	}
	reply.Time = t
	return nil
}

func scheduleMarker(n *marker.Node, t float64, req Request) error {
	switch req.Op {
	case OpMark:
		return n.Mark(t, req.Value)
	case OpClear:
		return n.Clear(t)
	}
	return fmt.Errorf("%s %s: %w", n.Name(), req.Op, ErrUnsupportedOp)
}

func scheduleSynth(n *synth.Node, t float64, req Request) error {
	switch req.Op {
	case OpNoteOn:
		return n.NoteOn(t, req.Channel, req.Key, req.Velocity)
	case OpNoteOff:
		return n.NoteOff(t, req.Channel, req.Key)
	case OpAllNotesOff:
		return n.AllNotesOff(t)
	case OpPreset:
		return n.SetPreset(t, req.Channel, req.Value, req.Drums)
	case OpPitchBend:
		return n.PitchBend(t, req.Channel, req.Value)
	case OpControlChange:
		return n.ControlChange(t, req.Channel, req.Key, req.Value)
	case OpClear:
		return n.Clear(t)
	}
	return fmt.Errorf("%s %s: %w", n.Name(), req.Op, ErrUnsupportedOp)
}

func scheduleModPlayer(n *modplayer.Node, t float64, req Request) error {
	switch req.Op {
	case OpPlay:
		return n.Play(t)
	case OpPause:
		return n.Pause(t)
	case OpRestart:
		return n.Restart(t)
	case OpSignpost:
		return n.Signpost(t, req.Value)
	case OpClear:
		return n.Clear(t)
	}
	return fmt.Errorf("%s %s: %w", n.Name(), req.Op, ErrUnsupportedOp)
}

func Dial(address string) (*Client, error) {
	client, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("rpc.Dial failed: %w", err)
	}
	return &Client{client: client}, nil
}

// Schedule sends req and returns the absolute time it was scheduled at.
func (c *Client) Schedule(req Request) (float64, error) {
	var reply Reply
	if err := c.client.Call(ServiceName+".Schedule", req, &reply); err != nil {
		return 0, err
	}
	return reply.Time, nil
}

func (c *Client) Nodes() ([]NodeInfo, error) {
	var reply []NodeInfo
	err := c.client.Call(ServiceName+".Nodes", 0, &reply)
	return reply, err
}

func (c *Client) Now() (float64, error) {
	var reply float64
	err := c.client.Call(ServiceName+".Now", 0, &reply)
	return reply, err
}

func (c *Client) Close() error { return c.client.Close() }
