package sched

import "sync/atomic"

type (
	// Queue is a bounded, lock-free, multiple-producer single-consumer FIFO.
	// Push can be called from any number of goroutines and never blocks or
	// allocates; Pop and Drain must only be called from one goroutine at a
	// time.
	//
	// Every slot carries a sequence number telling whose turn it is: a slot at
	// position p is free for the producer that claimed p when seq == p, and
	// ready for the consumer when seq == p+1. A producer first claims a
	// position by advancing tail, then writes the value and publishes it by
	// storing seq; the consumer only reads slots that have been published.
	Queue[T any] struct {
		_     [64]byte
		tail  atomic.Uint64 // next position to be claimed by a producer
		_     [56]byte
		head  atomic.Uint64 // next position to be read by the consumer
		_     [56]byte
		mask  uint64
		slots []slot[T]
	}

	slot[T any] struct {
		seq   atomic.Uint64
		value T
	}
)

// NewQueue creates a queue holding at least capacity elements. The capacity
// is rounded up to the next power of two.
func NewQueue[T any](capacity int) *Queue[T] {
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &Queue[T]{mask: uint64(size - 1), slots: make([]slot[T], size)}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

func (q *Queue[T]) Cap() int { return len(q.slots) }

// Len returns the number of claimed but not yet consumed positions. It is
// only a snapshot when producers are running.
func (q *Queue[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Push appends v to the queue. It returns false if the queue is full.
func (q *Queue[T]) Push(v T) bool {
	pos := q.tail.Load()
	for {
		s := &q.slots[pos&q.mask]
		seq := s.seq.Load()
		switch dif := int64(seq - pos); {
		case dif == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				s.value = v
				s.seq.Store(pos + 1)
				return true
			}
			pos = q.tail.Load()
		case dif < 0:
			// the slot still holds an element from the previous lap
			return false
		default:
			// another producer claimed pos already
			pos = q.tail.Load()
		}
	}
}

// Pop removes the oldest published element. ok is false if there is nothing
// to read: either the queue is empty, or the producer that claimed the oldest
// position has not finished writing it yet.
func (q *Queue[T]) Pop() (v T, ok bool) {
	pos := q.head.Load()
	s := &q.slots[pos&q.mask]
	if s.seq.Load() != pos+1 {
		return v, false
	}
	v = s.value
	var zero T
	s.value = zero
	s.seq.Store(pos + q.mask + 1)
	q.head.Store(pos + 1)
	return v, true
}

// Drain pops until the queue is observed empty, passing every element to f,
// and returns the number of elements drained. Elements pushed while draining
// may or may not be included.
func (q *Queue[T]) Drain(f func(T)) int {
	n := 0
	for {
		v, ok := q.Pop()
		if !ok {
			return n
		}
		f(v)
		n++
	}
}
