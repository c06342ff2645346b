// Package replay persists confirmed input streams as sparse binary files and
// plays them back deterministically. A companion validator compares multiple
// recordings of the same session for byte-exact agreement.
package replay

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// File format, version 3, little-endian.
//
// Header: magic u32 · version u32 · player count u32 · per-input size u32 ·
// seed i64.
//
// Per recorded frame (omitted entirely when all players are empty):
// frame u32 · presence mask u8 (bit i = player i has input) · for each set
// bit, in ascending player order, the raw fixed-layout input bytes.
const (
	Magic   uint32 = 0x52504C59
	Version uint32 = 3

	headerSize = 24
	seedOffset = 16

	frameEntryPrefix = 5 // frame u32 + mask u8
)

var (
	ErrBadMagic          = errors.New("replay: bad file magic")
	ErrBadVersion        = errors.New("replay: unsupported file version")
	ErrInputSizeMismatch = errors.New("replay: input size does not match input type")
)

type header struct {
	playerCount int
	inputSize   int
	seed        int64
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], Version)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.playerCount))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.inputSize))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.seed))
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("replay: truncated header: %d bytes", len(buf))
	}
	if got := binary.LittleEndian.Uint32(buf[0:4]); got != Magic {
		return header{}, fmt.Errorf("%w: 0x%08x", ErrBadMagic, got)
	}
	if got := binary.LittleEndian.Uint32(buf[4:8]); got != Version {
		return header{}, fmt.Errorf("%w: %d (want %d)", ErrBadVersion, got, Version)
	}
	return header{
		playerCount: int(binary.LittleEndian.Uint32(buf[8:12])),
		inputSize:   int(binary.LittleEndian.Uint32(buf[12:16])),
		seed:        int64(binary.LittleEndian.Uint64(buf[16:24])),
	}, nil
}

func popcount8(b byte) int {
	n := 0
	for ; b != 0; b &= b - 1 {
		n++
	}
	return n
}
