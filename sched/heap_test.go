package sched_test

import (
	"math/rand"
	"testing"

	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/sched"
)

func TestHeapOrder(t *testing.T) {
	h := sched.NewHeap[int](4)
	r := rand.New(rand.NewSource(1))
	for seq := uint64(1); seq <= 500; seq++ {
		h.Push(quanta.Event[int]{Time: float64(r.Intn(20)), Seq: seq})
	}
	prev, _ := h.Pop()
	for !h.IsEmpty() {
		e, _ := h.Pop()
		if e.Less(prev) {
			t.Fatalf("event (%v, %v) popped after (%v, %v)", e.Time, e.Seq, prev.Time, prev.Seq)
		}
		prev = e
	}
	if _, ok := h.Pop(); ok {
		t.Fatalf("pop succeeded on an empty heap")
	}
}

func TestHeapTiesAreFIFO(t *testing.T) {
	h := sched.NewHeap[int](0)
	for _, seq := range []uint64{5, 3, 9, 1, 7} {
		h.Push(quanta.Event[int]{Time: 1, Seq: seq})
	}
	for _, want := range []uint64{1, 3, 5, 7, 9} {
		e, _ := h.Pop()
		if e.Seq != want {
			t.Fatalf("expected seq %v, got %v", want, e.Seq)
		}
	}
}

func TestHeapDiscardBefore(t *testing.T) {
	h := sched.NewHeap[int](16)
	for seq := uint64(1); seq <= 10; seq++ {
		h.Push(quanta.Event[int]{Time: float64(11 - seq), Seq: seq})
	}
	if n := h.DiscardBefore(6); n != 5 {
		t.Fatalf("expected 5 discarded events, got %v", n)
	}
	if h.Len() != 5 {
		t.Fatalf("expected 5 events left, got %v", h.Len())
	}
	for want := uint64(10); want >= 6; want-- {
		e, _ := h.Pop()
		if e.Seq != want {
			t.Fatalf("expected seq %v, got %v", want, e.Seq)
		}
	}
	if n := h.DiscardBefore(100); n != 0 {
		t.Fatalf("discarding from an empty heap dropped %v events", n)
	}
}

func TestHeapClear(t *testing.T) {
	h := sched.NewHeap[int](4)
	h.Push(quanta.Event[int]{Time: 1, Seq: 1})
	h.Clear()
	h.Clear()
	if !h.IsEmpty() {
		t.Fatalf("heap not empty after Clear")
	}
	if _, ok := h.Peek(); ok {
		t.Fatalf("peek succeeded on a cleared heap")
	}
}
