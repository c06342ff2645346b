package replay

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"quickstep.gg/internal/sim"
)

// flushEveryFrames batches disk writes so recording costs one syscall per
// interval, not per frame.
const flushEveryFrames = 30

// Recorder appends confirmed per-frame inputs to a sparse replay file.
// Frames where every player's input is the empty sentinel are skipped.
type Recorder[T sim.Value[T]] struct {
	f    *os.File
	path string

	playerCount int
	inputSize   int
	seed        int64

	pending     []byte
	sinceFlush  int
	framesKept  int
	lastFrame   int32
	encodeBuf   []byte
}

// NewRecorder creates the file and writes the header. Seed may be zero at
// this point and patched in later via SetSeed.
func NewRecorder[T sim.Value[T]](path string, playerCount int, seed int64) (*Recorder[T], error) {
	if playerCount < 1 || playerCount > 8 {
		return nil, fmt.Errorf("replay: player count %d out of range", playerCount)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	var zero T
	r := &Recorder[T]{
		f:           f,
		path:        path,
		playerCount: playerCount,
		inputSize:   zero.EncodedSize(),
		seed:        seed,
		pending:     make([]byte, 0, 16*1024),
		lastFrame:   -1,
		encodeBuf:   make([]byte, zero.EncodedSize()),
	}
	if _, err := f.Write(encodeHeader(header{playerCount: playerCount, inputSize: r.inputSize, seed: seed})); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// Path returns the file being written.
func (r *Recorder[T]) Path() string { return r.path }

// FramesRecorded reports how many sparse entries have been emitted.
func (r *Recorder[T]) FramesRecorded() int { return r.framesKept }

// SetSeed patches the session seed into the reserved header slot. The seed is
// often known only after session setup, well after recording started.
func (r *Recorder[T]) SetSeed(seed int64) error {
	r.seed = seed
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(seed))
	_, err := r.f.WriteAt(buf, seedOffset)
	return err
}

// RecordFrame stages one frame's inputs. Entirely-empty frames are omitted
// from the stream. Frames must be fed in increasing order.
func (r *Recorder[T]) RecordFrame(frame int32, inputs []T) error {
	if frame <= r.lastFrame {
		return fmt.Errorf("replay: frame %d not after %d", frame, r.lastFrame)
	}
	r.lastFrame = frame

	var mask byte
	for p := 0; p < r.playerCount && p < len(inputs); p++ {
		if !inputs[p].IsEmpty() {
			mask |= 1 << p
		}
	}
	if mask == 0 {
		return nil
	}

	r.pending = binary.LittleEndian.AppendUint32(r.pending, uint32(frame))
	r.pending = append(r.pending, mask)
	for p := 0; p < r.playerCount; p++ {
		if mask&(1<<p) == 0 {
			continue
		}
		inputs[p].Encode(r.encodeBuf)
		r.pending = append(r.pending, r.encodeBuf...)
	}
	r.framesKept++

	r.sinceFlush++
	if r.sinceFlush >= flushEveryFrames {
		return r.Flush()
	}
	return nil
}

// Flush writes staged entries to the file.
func (r *Recorder[T]) Flush() error {
	r.sinceFlush = 0
	if len(r.pending) == 0 {
		return nil
	}
	if _, err := r.f.Write(r.pending); err != nil {
		return err
	}
	r.pending = r.pending[:0]
	return nil
}

// Close flushes and closes the file.
func (r *Recorder[T]) Close() error {
	flushErr := r.Flush()
	closeErr := r.f.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
