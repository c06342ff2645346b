package snapshot

import (
	"errors"
	"fmt"

	"quickstep.gg/internal/slotring"
)

// ErrNoSnapshot is returned when no valid blob exists for the requested frame.
var ErrNoSnapshot = errors.New("snapshot: no valid slot for frame")

type slot struct {
	buf  []byte
	used int
}

// Ring is a fixed-capacity circular store of serialized snapshots, one slot
// per recent frame. A slot stays valid only while the frame is within the
// rollback window; older writes are overwritten in place as the ring wraps.
type Ring struct {
	ring   *slotring.Ring[slot]
	window int32
}

// NewRing allocates window+1 slots of slotSize bytes each. Nothing allocates
// after construction.
func NewRing(window int, slotSize int) *Ring {
	r := &Ring{
		ring:   slotring.New[slot](window + 1),
		window: int32(window),
	}
	for f := int32(0); f < int32(window+1); f++ {
		r.ring.Slot(f).buf = make([]byte, slotSize)
	}
	return r
}

// Window reports the maximum age (current-frame distance) a slot stays valid.
func (r *Ring) Window() int32 { return r.window }

// WriteBuffer returns the raw slot for frame, to be filled by the codec. The
// slot is not valid until SetUsed records the written length.
func (r *Ring) WriteBuffer(frame int32) []byte {
	return r.ring.Slot(frame).buf
}

// SetUsed records the real byte length written for frame and tags the slot.
func (r *Ring) SetUsed(frame int32, n int) {
	s := r.ring.Slot(frame)
	s.used = n
	r.ring.SetTag(frame)
}

// HasFrame reports whether a valid blob exists for frame, given the current
// frame. A slot whose tag was overwritten by a newer frame, or whose frame
// fell out of the rollback window, is not valid.
func (r *Ring) HasFrame(frame, current int32) bool {
	if frame < 0 || current-frame > r.window {
		return false
	}
	return r.ring.Matches(frame)
}

// ReadBuffer returns the valid blob for frame.
func (r *Ring) ReadBuffer(frame, current int32) ([]byte, error) {
	if !r.HasFrame(frame, current) {
		return nil, fmt.Errorf("%w: frame %d at current %d", ErrNoSnapshot, frame, current)
	}
	s := r.ring.Slot(frame)
	return s.buf[:s.used], nil
}

// Clear invalidates every slot. Buffers stay allocated.
func (r *Ring) Clear() {
	r.ring.Reset()
}
