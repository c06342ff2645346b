// Package sim declares the two contracts the rollback core consumes from the
// game simulation. The core never owns world state or input semantics; it only
// moves bytes and frames around.
package sim

// Value is a per-frame input for one player. Implementations must be
// pointer-free structs with a stable fixed layout so the byte encoding is
// identical on every peer. The zero value is the empty sentinel.
type Value[T any] interface {
	comparable

	// IsEmpty reports whether the value is the empty sentinel.
	IsEmpty() bool

	// EncodedSize returns the fixed on-wire size in bytes. It must not
	// depend on the receiver.
	EncodedSize() int

	// Encode writes the value into dst, which is at least EncodedSize bytes.
	Encode(dst []byte)

	// Decode reads a value back from src (at least EncodedSize bytes).
	Decode(src []byte) T
}

// StateProvider exposes the simulation's state as two raw byte regions: a bulk
// slab (row/entity data) and compact metadata (free lists, counts). Sizes are
// fixed for the lifetime of a session.
type StateProvider interface {
	TotalSlabSize() int
	TotalMetaSize() int

	// TotalSnapshotSize is TotalSlabSize + TotalMetaSize.
	TotalSnapshotSize() int

	// SaveTo copies the slab region into dst (exactly TotalSlabSize bytes).
	SaveTo(dst []byte)

	// LoadFrom copies src (exactly TotalSlabSize bytes) back into the slab.
	LoadFrom(src []byte)

	SaveMetaTo(dst []byte)
	LoadMetaFrom(src []byte)

	// ComputeStateHash returns a content hash of the current state. Two peers
	// at the same frame with identical state must produce identical hashes.
	ComputeStateHash() uint64
}
