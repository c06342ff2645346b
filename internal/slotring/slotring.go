// Package slotring provides a fixed-capacity ring indexed by frame number with
// an explicit per-slot frame tag. The tag disambiguates ring reuse: a slot is
// only meaningful for the frame it was last written for, never for an older
// frame that happened to share the same index. The same shape backs the input
// grid, the snapshot ring and the state-hash history.
package slotring

// NoFrame marks a slot that has never been written.
const NoFrame int32 = -1

// Ring stores one S per slot plus the frame tag of the last write. All slots
// are allocated up front; entries are overwritten in place as frames advance.
type Ring[S any] struct {
	slots []S
	tags  []int32
}

// New returns a ring with the given capacity. Capacity must be positive.
func New[S any](capacity int) *Ring[S] {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring[S]{
		slots: make([]S, capacity),
		tags:  make([]int32, capacity),
	}
	r.Reset()
	return r
}

// Capacity reports the number of slots.
func (r *Ring[S]) Capacity() int { return len(r.slots) }

func (r *Ring[S]) index(frame int32) int {
	return int(frame) % len(r.slots)
}

// Slot returns a pointer to the slot for frame. The caller must tag the slot
// via SetTag after writing it; until then Matches reports false.
func (r *Ring[S]) Slot(frame int32) *S {
	return &r.slots[r.index(frame)]
}

// Tag returns the frame the slot was last written for, or NoFrame.
func (r *Ring[S]) Tag(frame int32) int32 {
	return r.tags[r.index(frame)]
}

// SetTag marks the slot as holding data for frame.
func (r *Ring[S]) SetTag(frame int32) {
	r.tags[r.index(frame)] = frame
}

// Matches reports whether the slot currently holds data for exactly frame.
func (r *Ring[S]) Matches(frame int32) bool {
	return frame >= 0 && r.tags[r.index(frame)] == frame
}

// ClearSlot untags the slot for frame. Slot contents are left in place; the
// tag alone decides validity, and slots may own buffers that must survive.
func (r *Ring[S]) ClearSlot(frame int32) {
	r.tags[r.index(frame)] = NoFrame
}

// Reset untags every slot.
func (r *Ring[S]) Reset() {
	for i := range r.tags {
		r.tags[i] = NoFrame
	}
}
