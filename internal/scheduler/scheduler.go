// Package scheduler implements the time-indexed queue of pending operations
// keyed by future-seconds (spec component C10): a deadline-ordered min-heap,
// drained once per pump cycle (spec.md §5 step 4).
package scheduler

import (
	"container/heap"
	"time"

	"github.com/worldforge/worldcore/internal/op"
)

// entry is one scheduled operation. seq breaks ties between equal deadlines
// in insertion order (spec.md §4.9: "Scheduling is monotonic in deadline;
// ties broken by insertion order").
type entry struct {
	deadline time.Time
	seq      uint64
	op       op.Operation
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler holds operations whose FutureSeconds > 0 (spec.md §4.9). An
// operation with FutureSeconds <= 0 is "already due" (spec.md §5 "Operations
// with future-seconds < 0 are treated as immediate") and should never be
// handed to Schedule — the pump delivers it straight to the world router.
type Scheduler struct {
	h       entryHeap
	nextSeq uint64
}

func New() *Scheduler {
	s := &Scheduler{}
	heap.Init(&s.h)
	return s
}

// Schedule enqueues o to be delivered at now + o.FutureSeconds.
func (s *Scheduler) Schedule(o op.Operation, now time.Time) {
	deadline := now.Add(time.Duration(o.FutureSeconds * float64(time.Second)))
	heap.Push(&s.h, &entry{deadline: deadline, seq: s.nextSeq, op: o})
	s.nextSeq++
}

// Due pops every entry whose deadline is <= now, in deadline order (ties by
// insertion order), and returns the operations for delivery into the world
// router (spec.md §4.9, §5 step 4). FutureSeconds is cleared on each popped
// operation — the delay has been served, and the pump must not re-schedule.
func (s *Scheduler) Due(now time.Time) []op.Operation {
	var out []op.Operation
	for s.h.Len() > 0 && !s.h[0].deadline.After(now) {
		e := heap.Pop(&s.h).(*entry)
		e.op.FutureSeconds = 0
		out = append(out, e.op)
	}
	return out
}

// Len reports how many operations are currently pending.
func (s *Scheduler) Len() int { return s.h.Len() }

// NextDeadline reports the earliest pending deadline. The pump does not
// consult it: it wakes on a fixed-rate ticker instead.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	if s.h.Len() == 0 {
		return time.Time{}, false
	}
	return s.h[0].deadline, true
}
