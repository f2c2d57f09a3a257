package sched

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/vsariola/quanta"
)

type (
	// Sink applies the commands of a node when they become due. offset is the
	// frame within the current quantum where the command takes effect; sinks
	// without sub-quantum resolution may ignore it. Apply is called on the
	// render goroutine and must not block.
	Sink[P any] interface {
		Apply(payload P, offset int)
	}

	// Scheduler moves timestamped commands from any number of producer
	// goroutines to the render goroutine, and applies them to a Sink in
	// (Time, Seq) order, once per render quantum.
	//
	// Producers call Schedule. The render goroutine calls Dispatch once per
	// quantum, and Reset when the host asks for all state to be dropped. The
	// queue between the two is the only shared structure; the heap and the
	// clear watermark belong to the render goroutine.
	Scheduler[P quanta.Payload] struct {
		queue *Queue[quanta.Event[P]]
		heap  *Heap[P]
		sink  Sink[P]

		seq         atomic.Uint64
		initialized atomic.Bool

		// events with Seq < clearedBefore were cancelled by a clear that has
		// already been applied
		clearedBefore uint64

		applied   atomic.Uint64
		discarded atomic.Uint64
		overdue   atomic.Uint64
		rejected  atomic.Uint64
	}

	Options struct {
		QueueCapacity int // maximum number of events in flight between producers and the render goroutine
		HeapCapacity  int // preallocated number of pending events
	}

	// Stats are running totals, readable from any goroutine.
	Stats struct {
		Applied   uint64 // commands given to the sink
		Discarded uint64 // commands dropped by clears and resets
		Overdue   uint64 // commands applied after their time had passed
		Rejected  uint64 // Schedule calls that failed, for a full queue or an invalid time
	}
)

const (
	DefaultQueueCapacity = 4096
	DefaultHeapCapacity  = 1024
)

var (
	ErrQueueFull   = errors.New("event queue is full")
	ErrInvalidTime = errors.New("event time is not a number")
)

func DefaultOptions() Options {
	return Options{QueueCapacity: DefaultQueueCapacity, HeapCapacity: DefaultHeapCapacity}
}

// New creates a scheduler applying its commands to sink. The scheduler starts
// uninitialized.
func New[P quanta.Payload](sink Sink[P], opts Options) *Scheduler[P] {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.HeapCapacity <= 0 {
		opts.HeapCapacity = DefaultHeapCapacity
	}
	return &Scheduler[P]{
		queue: NewQueue[quanta.Event[P]](opts.QueueCapacity),
		heap:  NewHeap[P](opts.HeapCapacity),
		sink:  sink,
	}
}

func (s *Scheduler[P]) Initialize()         { s.initialized.Store(true) }
func (s *Scheduler[P]) Uninitialize()       { s.initialized.Store(false) }
func (s *Scheduler[P]) IsInitialized() bool { return s.initialized.Load() }

// Schedule enqueues payload p to be applied at context time t and returns the
// sequence number given to it. Safe to call from any goroutine, concurrently
// with Dispatch. Payloads that clear go through here as well, so that they
// take effect in order with everything else. A NaN time is rejected with
// ErrInvalidTime, as it has no place in the (Time, Seq) order.
func (s *Scheduler[P]) Schedule(t float64, p P) (uint64, error) {
	if math.IsNaN(t) {
		s.rejected.Add(1)
		return 0, ErrInvalidTime
	}
	seq := s.seq.Add(1)
	if !s.queue.Push(quanta.Event[P]{Time: t, Seq: seq, Payload: p}) {
		s.rejected.Add(1)
		return 0, ErrQueueFull
	}
	return seq, nil
}

// Dispatch runs one quantum: it moves everything enqueued so far into the
// heap, then applies every event due before the end of q. ok is false if the
// scheduler is not initialized, in which case all queued and pending events
// are dropped and nothing is applied. Must be called from the render
// goroutine only.
func (s *Scheduler[P]) Dispatch(q quanta.Quantum) (applied int, ok bool) {
	if !s.initialized.Load() {
		s.Reset()
		return 0, false
	}
	s.drain()
	end := q.End()
	for {
		e, found := s.heap.Peek()
		if !found || e.Time >= end {
			break
		}
		s.heap.Pop()
		if e.Payload.IsClear() {
			s.discardBefore(e.Seq)
			continue
		}
		if e.Time < q.Start {
			s.overdue.Add(1)
		}
		s.sink.Apply(e.Payload, q.Offset(e.Time))
		applied++
	}
	s.applied.Add(uint64(applied))
	return applied, true
}

// Reset drops everything queued and pending without applying it. It touches
// the heap, so it must only be called from the render goroutine, or once the
// render goroutine is known to be stopped. Producers cancel with a clearing
// payload instead.
func (s *Scheduler[P]) Reset() {
	n := 0
	for {
		if _, ok := s.queue.Pop(); !ok {
			break
		}
		n++
	}
	n += s.heap.Len()
	s.heap.Clear()
	if n > 0 {
		s.discarded.Add(uint64(n))
	}
}

// Pending is the number of events in the heap. Render goroutine only.
func (s *Scheduler[P]) Pending() int { return s.heap.Len() }

// Queued is the approximate number of events waiting in the queue.
func (s *Scheduler[P]) Queued() int { return s.queue.Len() }

func (s *Scheduler[P]) Stats() Stats {
	return Stats{
		Applied:   s.applied.Load(),
		Discarded: s.discarded.Load(),
		Overdue:   s.overdue.Load(),
		Rejected:  s.rejected.Load(),
	}
}

func (s *Scheduler[P]) drain() {
	dropped := 0
	for {
		e, ok := s.queue.Pop()
		if !ok {
			break
		}
		if e.Seq < s.clearedBefore {
			// a producer got its sequence number before an already applied
			// clear, but was slow to push
			dropped++
			continue
		}
		s.heap.Push(e)
	}
	if dropped > 0 {
		s.discarded.Add(uint64(dropped))
	}
}

func (s *Scheduler[P]) discardBefore(seq uint64) {
	if seq > s.clearedBefore {
		s.clearedBefore = seq
	}
	if n := s.heap.DiscardBefore(seq); n > 0 {
		s.discarded.Add(uint64(n))
	}
}
