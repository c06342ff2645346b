// Package snapshot serializes full simulation state into fixed byte blobs and
// keeps a bounded ring of recent blobs, one slot per frame, for rollback.
package snapshot

import (
	"encoding/binary"
	"fmt"

	"quickstep.gg/internal/sim"
)

const (
	// Magic identifies a serialized world snapshot buffer.
	Magic uint32 = 0x43415452

	// Version of the snapshot buffer layout.
	Version uint32 = 2

	// HeaderSize is the fixed header region reserved at offset 0.
	HeaderSize = 16
)

// Serialize writes the provider's full state into dst and returns the number
// of bytes written. The payload goes first (slab at offset 16, then metadata);
// the header is back-filled last so a torn write never looks valid.
func Serialize(p sim.StateProvider, frame int32, dst []byte) (int, error) {
	slab := p.TotalSlabSize()
	meta := p.TotalMetaSize()
	total := HeaderSize + slab + meta
	if len(dst) < total {
		return 0, fmt.Errorf("snapshot: buffer too small: %d < %d", len(dst), total)
	}

	p.SaveTo(dst[HeaderSize : HeaderSize+slab])
	p.SaveMetaTo(dst[HeaderSize+slab : total])

	binary.LittleEndian.PutUint32(dst[0:4], Magic)
	binary.LittleEndian.PutUint32(dst[4:8], Version)
	binary.LittleEndian.PutUint32(dst[8:12], uint32(frame))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(total))
	return total, nil
}

// Deserialize copies the state held in src back into the provider and returns
// the frame the snapshot was taken at. Magic or version mismatch is fatal:
// it means the buffer is not a snapshot at all, or was written by different
// code, and restoring it would corrupt the simulation.
func Deserialize(p sim.StateProvider, src []byte) (int32, error) {
	if len(src) < HeaderSize {
		return 0, fmt.Errorf("snapshot: truncated header: %d bytes", len(src))
	}
	if got := binary.LittleEndian.Uint32(src[0:4]); got != Magic {
		return 0, fmt.Errorf("snapshot: bad magic 0x%08x", got)
	}
	if got := binary.LittleEndian.Uint32(src[4:8]); got != Version {
		return 0, fmt.Errorf("snapshot: unsupported version %d (want %d)", got, Version)
	}
	frame := int32(binary.LittleEndian.Uint32(src[8:12]))
	total := int(binary.LittleEndian.Uint32(src[12:16]))

	slab := p.TotalSlabSize()
	meta := p.TotalMetaSize()
	if total != HeaderSize+slab+meta || len(src) < total {
		return 0, fmt.Errorf("snapshot: size mismatch: header says %d, provider wants %d, have %d",
			total, HeaderSize+slab+meta, len(src))
	}

	p.LoadFrom(src[HeaderSize : HeaderSize+slab])
	p.LoadMetaFrom(src[HeaderSize+slab : total])
	return frame, nil
}
