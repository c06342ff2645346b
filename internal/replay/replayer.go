package replay

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"quickstep.gg/internal/sim"
)

// Replayer reads a sparse replay file and serves per-frame inputs in random
// access order. The whole stream is scanned once on open to build a
// frame → offset index.
type Replayer[T sim.Value[T]] struct {
	f *os.File

	playerCount int
	inputSize   int
	seed        int64

	index    map[int32]int64
	maxFrame int32

	readBuf []byte
}

// OpenReplayer opens and indexes path. Magic, version or input-size mismatch
// against the compiled input type is fatal; a missing file surfaces the os
// error untouched.
func OpenReplayer[T sim.Value[T]](path string) (*Replayer[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	hbuf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, hbuf); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("replay: read header: %w", err)
	}
	h, err := decodeHeader(hbuf)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	var zero T
	if h.inputSize != zero.EncodedSize() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: file %d, type %d", ErrInputSizeMismatch, h.inputSize, zero.EncodedSize())
	}

	r := &Replayer[T]{
		f:           f,
		playerCount: h.playerCount,
		inputSize:   h.inputSize,
		seed:        h.seed,
		index:       make(map[int32]int64),
		maxFrame:    -1,
		readBuf:     make([]byte, frameEntryPrefix+h.playerCount*h.inputSize),
	}
	if err := r.buildIndex(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Replayer[T]) buildIndex() error {
	offset := int64(headerSize)
	prefix := make([]byte, frameEntryPrefix)
	for {
		if _, err := r.f.ReadAt(prefix, offset); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("replay: scan at %d: %w", offset, err)
		}
		frame := int32(binary.LittleEndian.Uint32(prefix[0:4]))
		mask := prefix[4]
		r.index[frame] = offset
		if frame > r.maxFrame {
			r.maxFrame = frame
		}
		offset += int64(frameEntryPrefix + popcount8(mask)*r.inputSize)
	}
}

// PlayerCount reports the recorded player count.
func (r *Replayer[T]) PlayerCount() int { return r.playerCount }

// Seed reports the recorded session seed.
func (r *Replayer[T]) Seed() int64 { return r.seed }

// MaxFrame is the last frame present in the sparse stream, or -1 for an
// empty recording.
func (r *Replayer[T]) MaxFrame() int32 { return r.maxFrame }

// TryGetInputsForFrame fills out with the recorded inputs for frame. Frames
// absent from the index but within [0, MaxFrame] are valid and resolve to
// all-empty inputs. Frames beyond MaxFrame report false: end of replay.
func (r *Replayer[T]) TryGetInputsForFrame(frame int32, out []T) (bool, error) {
	if frame < 0 || frame > r.maxFrame {
		return false, nil
	}
	var zero T
	for p := range out {
		out[p] = zero
	}

	offset, ok := r.index[frame]
	if !ok {
		return true, nil
	}

	if _, err := r.f.ReadAt(r.readBuf[:frameEntryPrefix], offset); err != nil {
		return false, fmt.Errorf("replay: read frame %d: %w", frame, err)
	}
	mask := r.readBuf[4]
	payload := popcount8(mask) * r.inputSize
	if _, err := r.f.ReadAt(r.readBuf[:payload], offset+frameEntryPrefix); err != nil {
		return false, fmt.Errorf("replay: read frame %d inputs: %w", frame, err)
	}

	pos := 0
	for p := 0; p < r.playerCount && p < len(out); p++ {
		if mask&(1<<p) == 0 {
			continue
		}
		out[p] = zero.Decode(r.readBuf[pos : pos+r.inputSize])
		pos += r.inputSize
	}
	return true, nil
}

// Close releases the file handle.
func (r *Replayer[T]) Close() error { return r.f.Close() }
