// Package rollback implements the deterministic rollback networking core: the
// multi-player input history buffer, the pending network-input queue and the
// manager that orchestrates snapshot save/restore, input reconciliation and
// hash-based desync detection.
//
// Everything here is single-threaded by contract. All mutation must happen on
// the simulation goroutine, once per fixed tick; network receipt hands decoded
// inputs over through an external thread-safe handoff before EnqueueInput.
package rollback

import (
	"quickstep.gg/internal/sim"
	"quickstep.gg/internal/slotring"
)

const (
	// MaxRollbackFrames is how far back the simulation can be rewound.
	MaxRollbackFrames = 7

	// MaxPlayers is bounded by the one-byte presence mask used on disk.
	MaxPlayers = 8
)

type inputSlot[T any] struct {
	values    []T
	confirmed []bool
}

// InputBuffer is a circular per-frame, per-player store of confirmed and
// predicted inputs. Slots are tagged with the frame they were written for so
// ring reuse never leaks stale data.
type InputBuffer[T sim.Value[T]] struct {
	ring       *slotring.Ring[inputSlot[T]]
	maxPlayers int

	lastConfirmed []int32 // per player, -1 until the first confirmed input
	lastValue     []T     // value at lastConfirmed, used for prediction
}

// NewInputBuffer allocates a grid of frameCapacity x maxPlayers slots.
func NewInputBuffer[T sim.Value[T]](frameCapacity, maxPlayers int) *InputBuffer[T] {
	if maxPlayers < 1 || maxPlayers > MaxPlayers {
		panic("rollback: maxPlayers out of range")
	}
	b := &InputBuffer[T]{
		ring:          slotring.New[inputSlot[T]](frameCapacity),
		maxPlayers:    maxPlayers,
		lastConfirmed: make([]int32, maxPlayers),
		lastValue:     make([]T, maxPlayers),
	}
	for f := int32(0); f < int32(frameCapacity); f++ {
		s := b.ring.Slot(f)
		s.values = make([]T, maxPlayers)
		s.confirmed = make([]bool, maxPlayers)
	}
	for p := range b.lastConfirmed {
		b.lastConfirmed[p] = -1
	}
	return b
}

// MaxPlayersStored reports the per-frame player capacity.
func (b *InputBuffer[T]) MaxPlayersStored() int { return b.maxPlayers }

// slotFor returns the slot for frame, recycling it if it still holds an older
// frame's data.
func (b *InputBuffer[T]) slotFor(frame int32) *inputSlot[T] {
	s := b.ring.Slot(frame)
	if !b.ring.Matches(frame) {
		var zero T
		for p := 0; p < b.maxPlayers; p++ {
			s.values[p] = zero
			s.confirmed[p] = false
		}
		b.ring.SetTag(frame)
	}
	return s
}

// StoreInput records a confirmed input, unconditionally overwriting whatever
// the slot held (including a prior prediction).
func (b *InputBuffer[T]) StoreInput(frame int32, player int, value T) {
	s := b.slotFor(frame)
	s.values[player] = value
	s.confirmed[player] = true
	if frame > b.lastConfirmed[player] {
		b.lastConfirmed[player] = frame
		b.lastValue[player] = value
	}
}

// StorePredictedInput records a predicted input, unless the slot already holds
// a confirmed value for exactly this frame. Confirmed data always wins.
func (b *InputBuffer[T]) StorePredictedInput(frame int32, player int, value T) {
	if b.ring.Matches(frame) && b.ring.Slot(frame).confirmed[player] {
		return
	}
	s := b.slotFor(frame)
	s.values[player] = value
}

// HasInput reports whether a confirmed input exists for frame/player.
func (b *InputBuffer[T]) HasInput(frame int32, player int) bool {
	return b.ring.Matches(frame) && b.ring.Slot(frame).confirmed[player]
}

// HasAllInputs reports whether every player in [0, playerCount) has a
// confirmed input at frame.
func (b *InputBuffer[T]) HasAllInputs(frame int32, playerCount int) bool {
	if !b.ring.Matches(frame) {
		return false
	}
	s := b.ring.Slot(frame)
	for p := 0; p < playerCount; p++ {
		if !s.confirmed[p] {
			return false
		}
	}
	return true
}

// GetInput returns the stored value (confirmed or predicted) at frame/player.
// ok is false when the slot does not hold data for this frame.
func (b *InputBuffer[T]) GetInput(frame int32, player int) (value T, ok bool) {
	if !b.ring.Matches(frame) {
		var zero T
		return zero, false
	}
	return b.ring.Slot(frame).values[player], true
}

// PredictInput returns the player's input at their last confirmed frame.
// Last-known-input prediction: no velocity, no extrapolation.
func (b *InputBuffer[T]) PredictInput(player int) T {
	return b.lastValue[player]
}

// LastConfirmedFrame returns the newest frame with a confirmed input for
// player, or -1.
func (b *InputBuffer[T]) LastConfirmedFrame(player int) int32 {
	return b.lastConfirmed[player]
}

// GetOldestUnconfirmedFrame returns the earliest frame that cannot yet be
// treated as final for every player in [0, playerCount).
func (b *InputBuffer[T]) GetOldestUnconfirmedFrame(playerCount int) int32 {
	oldest := b.lastConfirmed[0] + 1
	for p := 1; p < playerCount; p++ {
		if f := b.lastConfirmed[p] + 1; f < oldest {
			oldest = f
		}
	}
	return oldest
}

// ClearFrame resets the slot for frame to the unconfirmed, untagged state.
func (b *InputBuffer[T]) ClearFrame(frame int32) {
	if !b.ring.Matches(frame) {
		return
	}
	s := b.ring.Slot(frame)
	var zero T
	for p := 0; p < b.maxPlayers; p++ {
		s.values[p] = zero
		s.confirmed[p] = false
	}
	b.ring.ClearSlot(frame)
}

// Clear resets the whole buffer, including per-player confirmation tracking.
func (b *InputBuffer[T]) Clear() {
	b.ring.Reset()
	var zero T
	for p := 0; p < b.maxPlayers; p++ {
		b.lastConfirmed[p] = -1
		b.lastValue[p] = zero
	}
}
