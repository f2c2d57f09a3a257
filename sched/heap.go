package sched

import "github.com/vsariola/quanta"

// Heap is a binary min-heap of events ordered by (Time, Seq). It is owned by
// a single goroutine and does no locking. Unlike container/heap, it never
// boxes its elements, so Push and Pop do not allocate as long as the heap
// stays within its capacity.
type Heap[P any] struct {
	events []quanta.Event[P]
}

func NewHeap[P any](capacity int) *Heap[P] {
	return &Heap[P]{events: make([]quanta.Event[P], 0, capacity)}
}

func (h *Heap[P]) Len() int      { return len(h.events) }
func (h *Heap[P]) IsEmpty() bool { return len(h.events) == 0 }

func (h *Heap[P]) Push(e quanta.Event[P]) {
	h.events = append(h.events, e)
	h.up(len(h.events) - 1)
}

// Peek returns the earliest event without removing it.
func (h *Heap[P]) Peek() (e quanta.Event[P], ok bool) {
	if len(h.events) == 0 {
		return e, false
	}
	return h.events[0], true
}

// Pop removes and returns the earliest event.
func (h *Heap[P]) Pop() (e quanta.Event[P], ok bool) {
	n := len(h.events) - 1
	if n < 0 {
		return e, false
	}
	e = h.events[0]
	h.events[0] = h.events[n]
	h.events[n] = quanta.Event[P]{}
	h.events = h.events[:n]
	if n > 0 {
		h.down(0)
	}
	return e, true
}

// Clear drops all events, keeping the capacity.
func (h *Heap[P]) Clear() {
	clear(h.events)
	h.events = h.events[:0]
}

// DiscardBefore drops every event with a sequence number smaller than seq and
// returns how many were dropped. The remaining events are compacted in place.
func (h *Heap[P]) DiscardBefore(seq uint64) int {
	kept := 0
	for _, e := range h.events {
		if e.Seq >= seq {
			h.events[kept] = e
			kept++
		}
	}
	dropped := len(h.events) - kept
	if dropped == 0 {
		return 0
	}
	clear(h.events[kept:])
	h.events = h.events[:kept]
	for i := kept/2 - 1; i >= 0; i-- {
		h.down(i)
	}
	return dropped
}

func (h *Heap[P]) up(j int) {
	for j > 0 {
		i := (j - 1) / 2 // parent
		if !h.events[j].Less(h.events[i]) {
			break
		}
		h.events[i], h.events[j] = h.events[j], h.events[i]
		j = i
	}
}

func (h *Heap[P]) down(i int) {
	n := len(h.events)
	for {
		j := 2*i + 1
		if j >= n {
			return
		}
		if r := j + 1; r < n && h.events[r].Less(h.events[j]) {
			j = r
		}
		if !h.events[j].Less(h.events[i]) {
			return
		}
		h.events[i], h.events[j] = h.events[j], h.events[i]
		i = j
	}
}
