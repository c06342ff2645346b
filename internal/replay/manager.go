package replay

import (
	"errors"
	"fmt"

	"quickstep.gg/internal/rollback"
	"quickstep.gg/internal/sim"
	"quickstep.gg/internal/slotring"
)

// systemHashWindow bounds the per-system hash history kept for desync triage.
const systemHashWindow = 60

var (
	errAlreadyRecording = errors.New("replay: recording already active")
	errAlreadyReplaying = errors.New("replay: replay already active")
)

// Manager owns at most one active recorder and one active replayer, and an
// optional per-simulation-system hash capture used to narrow down which
// system diverged first after a desync. The capture is purely diagnostic; it
// has no effect on correctness.
type Manager[T sim.Value[T]] struct {
	rec *Recorder[T]
	rep *Replayer[T]

	seedPending  bool
	lastRecorded int32

	sysHashes map[string]*slotring.Ring[uint64]

	scratch []T
}

// NewManager returns an empty lifecycle manager.
func NewManager[T sim.Value[T]]() *Manager[T] {
	return &Manager[T]{
		lastRecorded: -1,
		sysHashes:    make(map[string]*slotring.Ring[uint64]),
	}
}

// Recording reports whether a recorder is active.
func (m *Manager[T]) Recording() bool { return m.rec != nil }

// Replaying reports whether a replayer is active.
func (m *Manager[T]) Replaying() bool { return m.rep != nil }

// StartRecording opens a new recording with a known seed.
func (m *Manager[T]) StartRecording(path string, playerCount int, seed int64) error {
	if m.rec != nil {
		return errAlreadyRecording
	}
	rec, err := NewRecorder[T](path, playerCount, seed)
	if err != nil {
		return err
	}
	m.rec = rec
	m.seedPending = false
	m.lastRecorded = -1
	m.scratch = make([]T, playerCount)
	return nil
}

// StartRecordingPending opens a recording before the session seed is known.
// The header carries a zero seed until CommitSeed patches the real one in.
func (m *Manager[T]) StartRecordingPending(path string, playerCount int) error {
	if err := m.StartRecording(path, playerCount, 0); err != nil {
		return err
	}
	m.seedPending = true
	return nil
}

// CommitSeed embeds the session seed into the pending recording's header.
func (m *Manager[T]) CommitSeed(seed int64) error {
	if m.rec == nil || !m.seedPending {
		return errors.New("replay: no pending recording")
	}
	if err := m.rec.SetSeed(seed); err != nil {
		return err
	}
	m.seedPending = false
	return nil
}

// CaptureConfirmed records every frame that has become final since the last
// call. Only confirmed inputs ever reach the file: the capture is gated by
// the input buffer's oldest unconfirmed frame, so a recorded stream never
// contains a value that could still change.
func (m *Manager[T]) CaptureConfirmed(buf *rollback.InputBuffer[T], playerCount int) error {
	if m.rec == nil {
		return nil
	}
	oldest := buf.GetOldestUnconfirmedFrame(playerCount)
	for f := m.lastRecorded + 1; f < oldest; f++ {
		var zero T
		for p := 0; p < playerCount; p++ {
			v, ok := buf.GetInput(f, p)
			if !ok {
				v = zero
			}
			m.scratch[p] = v
		}
		if err := m.rec.RecordFrame(f, m.scratch); err != nil {
			return fmt.Errorf("replay: capture frame %d: %w", f, err)
		}
		m.lastRecorded = f
	}
	return nil
}

// StopRecording flushes and closes the active recording and returns its path.
func (m *Manager[T]) StopRecording() (string, error) {
	if m.rec == nil {
		return "", nil
	}
	path := m.rec.Path()
	err := m.rec.Close()
	m.rec = nil
	m.seedPending = false
	return path, err
}

// StartReplay opens a recording for playback.
func (m *Manager[T]) StartReplay(path string) error {
	if m.rep != nil {
		return errAlreadyReplaying
	}
	rep, err := OpenReplayer[T](path)
	if err != nil {
		return err
	}
	m.rep = rep
	return nil
}

// TryGetInputsForFrame proxies to the active replayer.
func (m *Manager[T]) TryGetInputsForFrame(frame int32, out []T) (bool, error) {
	if m.rep == nil {
		return false, errors.New("replay: no active replay")
	}
	return m.rep.TryGetInputsForFrame(frame, out)
}

// ReplaySeed returns the active replay's recorded seed.
func (m *Manager[T]) ReplaySeed() (int64, bool) {
	if m.rep == nil {
		return 0, false
	}
	return m.rep.Seed(), true
}

// StopReplay closes the active replayer.
func (m *Manager[T]) StopReplay() error {
	if m.rep == nil {
		return nil
	}
	err := m.rep.Close()
	m.rep = nil
	return err
}

// StoreSystemHash retains one named system's state hash for a frame, inside a
// bounded window. Comparing per-system hashes across peers after a desync
// narrows which system diverged first.
func (m *Manager[T]) StoreSystemHash(system string, frame int32, hash uint64) {
	ring, ok := m.sysHashes[system]
	if !ok {
		ring = slotring.New[uint64](systemHashWindow)
		m.sysHashes[system] = ring
	}
	*ring.Slot(frame) = hash
	ring.SetTag(frame)
}

// SystemHashesForFrame collects every system's retained hash at frame.
// Systems whose entry was evicted are omitted.
func (m *Manager[T]) SystemHashesForFrame(frame int32) map[string]uint64 {
	if len(m.sysHashes) == 0 {
		return nil
	}
	out := make(map[string]uint64, len(m.sysHashes))
	for name, ring := range m.sysHashes {
		if ring.Matches(frame) {
			out[name] = *ring.Slot(frame)
		}
	}
	return out
}

// Close stops any active recording and replay.
func (m *Manager[T]) Close() error {
	_, recErr := m.StopRecording()
	repErr := m.StopReplay()
	if recErr != nil {
		return recErr
	}
	return repErr
}
