package rollback

import "quickstep.gg/internal/sim"

// PendingInput is one network input waiting to be reconciled into the input
// buffer.
type PendingInput[T sim.Value[T]] struct {
	Frame  int32
	Player int
	Value  T
}

// PendingQueue is a flat, fixed-capacity intake buffer for inputs arriving
// from the network. Enqueue silently drops beyond capacity; back-pressure is
// the transport's problem, this buffer never blocks and never grows. It is
// drained wholesale once per tick.
type PendingQueue[T sim.Value[T]] struct {
	items   []PendingInput[T]
	count   int
	dropped uint64
}

// NewPendingQueue allocates a queue with the given capacity.
func NewPendingQueue[T sim.Value[T]](capacity int) *PendingQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &PendingQueue[T]{items: make([]PendingInput[T], capacity)}
}

// Enqueue appends an input, dropping it silently when the queue is full.
func (q *PendingQueue[T]) Enqueue(frame int32, player int, value T) {
	if q.count == len(q.items) {
		q.dropped++
		return
	}
	q.items[q.count] = PendingInput[T]{Frame: frame, Player: player, Value: value}
	q.count++
}

// Len reports the number of queued inputs.
func (q *PendingQueue[T]) Len() int { return q.count }

// Items returns the live queued inputs. The slice aliases internal storage
// and is only valid until the next Enqueue or Clear.
func (q *PendingQueue[T]) Items() []PendingInput[T] {
	return q.items[:q.count]
}

// Clear empties the queue.
func (q *PendingQueue[T]) Clear() { q.count = 0 }

// Dropped reports how many inputs were discarded due to overflow.
func (q *PendingQueue[T]) Dropped() uint64 { return q.dropped }
