package rollback

import (
	"errors"
	"fmt"
	"hash/fnv"

	"quickstep.gg/internal/sim"
	"quickstep.gg/internal/slotring"
	"quickstep.gg/internal/snapshot"
)

const (
	// MaxStoredHashes bounds the per-frame state hash history used for
	// desync detection. Older entries are evicted as frames advance.
	MaxStoredHashes = 60

	// maxPendingSyncChecks bounds queued hash comparisons. Oldest dropped
	// on overflow.
	maxPendingSyncChecks = 16

	defaultInputBufferFrames = 120
	defaultPendingCapacity   = 256
	defaultSnapshotMargin    = 64
)

// ErrRollbackTooFar is returned when a restore is requested beyond
// MaxRollbackFrames. That is a programming error in the caller's frame
// pacing, not a transient network condition.
var ErrRollbackTooFar = errors.New("rollback: target beyond max rollback window")

// Desync records the first detected state divergence. At most one is latched
// per session until ClearDesyncState.
type Desync struct {
	Frame      int32
	LocalHash  uint64
	RemoteHash uint64
	Peer       int
}

type syncCheck struct {
	peer  int
	frame int32
	hash  uint64
}

// Config sizes a Manager. Zero fields fall back to defaults.
type Config struct {
	PlayerCount       int
	InputBufferFrames int
	PendingCapacity   int
	SnapshotMargin    int
}

// Manager coordinates snapshot save/restore, input reconciliation,
// conflict/rollback-target detection and hash-based desync detection. It does
// not drive the resimulation loop itself; the caller composes the primitives
// per tick in the documented order.
type Manager[T sim.Value[T]] struct {
	provider    sim.StateProvider
	playerCount int

	inputs *InputBuffer[T]
	queue  *PendingQueue[T]
	ring   *snapshot.Ring

	hashes *slotring.Ring[uint64]

	checks       []syncCheck
	desync       *Desync
	droppedStale uint64
}

// NewManager wires the buffers around the given state provider. All storage
// is allocated here; the per-tick hot path does not allocate.
func NewManager[T sim.Value[T]](provider sim.StateProvider, cfg Config) *Manager[T] {
	if cfg.PlayerCount < 1 || cfg.PlayerCount > MaxPlayers {
		panic("rollback: player count out of range")
	}
	frames := cfg.InputBufferFrames
	if frames == 0 {
		frames = defaultInputBufferFrames
	}
	pending := cfg.PendingCapacity
	if pending == 0 {
		pending = defaultPendingCapacity
	}
	margin := cfg.SnapshotMargin
	if margin == 0 {
		margin = defaultSnapshotMargin
	}
	slotSize := snapshot.HeaderSize + provider.TotalSnapshotSize() + margin
	return &Manager[T]{
		provider:    provider,
		playerCount: cfg.PlayerCount,
		inputs:      NewInputBuffer[T](frames, cfg.PlayerCount),
		queue:       NewPendingQueue[T](pending),
		ring:        snapshot.NewRing(MaxRollbackFrames, slotSize),
		hashes:      slotring.New[uint64](MaxStoredHashes),
		checks:      make([]syncCheck, 0, maxPendingSyncChecks),
	}
}

// Inputs exposes the input buffer for the simulation loop and replay capture.
func (m *Manager[T]) Inputs() *InputBuffer[T] { return m.inputs }

// PlayerCount reports the session's player count.
func (m *Manager[T]) PlayerCount() int { return m.playerCount }

// EnqueueInput queues a decoded network input for the next reconciliation
// pass. Overflow is silently dropped, bounded by the queue capacity.
func (m *Manager[T]) EnqueueInput(frame int32, player int, value T) {
	m.queue.Enqueue(frame, player, value)
}

// StoreConfirmedInput records a final input (local, or remote past the
// reconciliation path) directly into the buffer.
func (m *Manager[T]) StoreConfirmedInput(frame int32, player int, value T) {
	m.inputs.StoreInput(frame, player, value)
}

// ProcessPendingInputs reconciles every queued network input against the
// buffer and returns the earliest frame whose stored (predicted) value turned
// out wrong, or -1 when no rollback is needed. The caller is responsible for
// acting on a non-negative return: restore the snapshot at that frame, then
// resimulate forward to the current frame, saving snapshots as it goes.
func (m *Manager[T]) ProcessPendingInputs(currentFrame int32) int32 {
	conflict := int32(-1)
	for _, in := range m.queue.Items() {
		switch {
		case in.Frame < 0 || in.Frame < currentFrame-MaxRollbackFrames:
			// Malformed or too old to matter: the window has moved past it.

		case in.Frame > currentFrame:
			// Pure future buffering, nothing to compare against yet.
			m.inputs.StoreInput(in.Frame, in.Player, in.Value)

		default:
			if m.inputs.HasInput(in.Frame, in.Player) {
				continue
			}
			if stored, ok := m.inputs.GetInput(in.Frame, in.Player); ok && stored != in.Value {
				if conflict < 0 || in.Frame < conflict {
					conflict = in.Frame
				}
			}
			m.inputs.StoreInput(in.Frame, in.Player, in.Value)
		}
	}
	m.queue.Clear()
	return conflict
}

// PredictMissingInputs fills every unconfirmed player slot at frame with that
// player's last known input. This includes the local player during
// input-delay startup.
func (m *Manager[T]) PredictMissingInputs(frame int32) {
	for p := 0; p < m.playerCount; p++ {
		if !m.inputs.HasInput(frame, p) {
			m.inputs.StorePredictedInput(frame, p, m.inputs.PredictInput(p))
		}
	}
}

// SaveSnapshot serializes the provider's state into the ring slot for frame.
func (m *Manager[T]) SaveSnapshot(frame int32) error {
	buf := m.ring.WriteBuffer(frame)
	n, err := snapshot.Serialize(m.provider, frame, buf)
	if err != nil {
		return err
	}
	m.ring.SetUsed(frame, n)
	return nil
}

// RestoreSnapshot rewinds the provider to target. It fails fast when target
// is outside the rollback window or no valid slot exists.
func (m *Manager[T]) RestoreSnapshot(target, current int32) error {
	if current-target > MaxRollbackFrames {
		return fmt.Errorf("%w: target %d, current %d", ErrRollbackTooFar, target, current)
	}
	buf, err := m.ring.ReadBuffer(target, current)
	if err != nil {
		return err
	}
	if _, err := snapshot.Deserialize(m.provider, buf); err != nil {
		return err
	}
	return nil
}

// HasSnapshot reports whether a valid snapshot exists for frame.
func (m *Manager[T]) HasSnapshot(frame, current int32) bool {
	return m.ring.HasFrame(frame, current)
}

// StoreHashForFrame hashes the saved snapshot bytes for frame (FNV-1a) and
// retains the result in the bounded history. Call it right after
// SaveSnapshot. The hash is returned so the caller can report it to peers.
func (m *Manager[T]) StoreHashForFrame(frame int32) (uint64, error) {
	buf, err := m.ring.ReadBuffer(frame, frame)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	h.Write(buf)
	sum := h.Sum64()
	*m.hashes.Slot(frame) = sum
	m.hashes.SetTag(frame)
	return sum, nil
}

// LocalHashForFrame returns the retained state hash for frame, if it has not
// been evicted yet.
func (m *Manager[T]) LocalHashForFrame(frame int32) (uint64, bool) {
	if !m.hashes.Matches(frame) {
		return 0, false
	}
	return *m.hashes.Slot(frame), true
}

// EnqueueSyncCheck queues a hash comparison for frame against a peer-reported
// (or locally recomputed) hash. Bounded; the oldest entry is dropped on
// overflow.
func (m *Manager[T]) EnqueueSyncCheck(peer int, frame int32, hash uint64) {
	if len(m.checks) == maxPendingSyncChecks {
		copy(m.checks, m.checks[1:])
		m.checks = m.checks[:maxPendingSyncChecks-1]
	}
	m.checks = append(m.checks, syncCheck{peer: peer, frame: frame, hash: hash})
}

// ProcessPendingSyncChecks retires every queued check whose frame now has
// confirmed input from all players, comparing local against remote hashes.
// Call it once per tick, strictly after simulation and any rollback for the
// tick have completed, so the local hashes reflect post-rollback state.
//
// The first mismatch latches the desync state and discards every other
// pending check; nothing further is processed until ClearDesyncState. Checks
// whose local hash has already been evicted from the history are dropped
// silently (too old to verify).
func (m *Manager[T]) ProcessPendingSyncChecks() {
	if m.desync != nil {
		return
	}
	kept := m.checks[:0]
	for _, c := range m.checks {
		if !m.inputs.HasAllInputs(c.frame, m.playerCount) {
			kept = append(kept, c)
			continue
		}
		if !m.hashes.Matches(c.frame) {
			m.droppedStale++
			continue
		}
		local := *m.hashes.Slot(c.frame)
		if local != c.hash {
			m.desync = &Desync{
				Frame:      c.frame,
				LocalHash:  local,
				RemoteHash: c.hash,
				Peer:       c.peer,
			}
			m.checks = m.checks[:0]
			return
		}
	}
	m.checks = kept
}

// DesyncDetected reports whether a desync has been latched.
func (m *Manager[T]) DesyncDetected() bool { return m.desync != nil }

// DesyncState returns the latched desync record, if any. Desync is not an
// error: it is surfaced once and handled at the application level (resync,
// session abort, diagnostic dump).
func (m *Manager[T]) DesyncState() (Desync, bool) {
	if m.desync == nil {
		return Desync{}, false
	}
	return *m.desync, true
}

// ClearDesyncState resumes sync checking after the application has handled
// the divergence.
func (m *Manager[T]) ClearDesyncState() { m.desync = nil }

// DroppedStaleChecks counts sync checks that referenced frames whose local
// hash had already been evicted. The source of those checks is simply too far
// behind; the counter exists for observability only.
func (m *Manager[T]) DroppedStaleChecks() uint64 { return m.droppedStale }

// DroppedInputs counts network inputs discarded due to queue overflow.
func (m *Manager[T]) DroppedInputs() uint64 { return m.queue.Dropped() }
