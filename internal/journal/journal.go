package journal

import (
	"sync"
	"time"
)

// PatchKind identifies the type of diff entry.
type PatchKind string

const (
	// PatchPosition moves a combatant between cells.
	PatchPosition PatchKind = "position"
	// PatchPools replaces a combatant's resource pools.
	PatchPools PatchKind = "pools"
	// PatchStyle records an equipped style change.
	PatchStyle PatchKind = "style"
	// PatchStatus replaces a combatant's active status effects.
	PatchStatus PatchKind = "status"
	// PatchRemoved signals that a combatant left the grid.
	PatchRemoved PatchKind = "removed"
	// PatchActor records the elected actor, zero between turns.
	PatchActor PatchKind = "actor"
)

// Patch is a single diff entry mirrors apply on top of their last snapshot.
type Patch struct {
	Seq      uint64    `json:"seq" msgpack:"seq"`
	Turn     uint64    `json:"turn" msgpack:"turn"`
	Kind     PatchKind `json:"kind" msgpack:"kind"`
	EntityID int64     `json:"entityId,omitempty" msgpack:"entityId,omitempty"`
	Payload  any       `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// PositionPayload is the body of a PatchPosition entry.
type PositionPayload struct {
	FromQ int `json:"fromQ" msgpack:"fromQ"`
	FromR int `json:"fromR" msgpack:"fromR"`
	Q     int `json:"q" msgpack:"q"`
	R     int `json:"r" msgpack:"r"`
}

// PoolsPayload is the body of a PatchPools entry.
type PoolsPayload struct {
	Health       float64 `json:"hp" msgpack:"hp"`
	MaxHealth    float64 `json:"maxHp" msgpack:"maxHp"`
	Stamina      float64 `json:"stamina" msgpack:"stamina"`
	Organization float64 `json:"org" msgpack:"org"`
	Posture      float64 `json:"posture" msgpack:"posture"`
	Mana         float64 `json:"mana" msgpack:"mana"`
}

// Keyframe is a full state capture retained for resynchronisation.
type Keyframe[S any] struct {
	Turn       uint64    `json:"turn"`
	Sequence   uint64    `json:"sequence"`
	State      S         `json:"state"`
	RecordedAt time.Time `json:"recordedAt"`
}

// KeyframeEviction describes a keyframe removed from the buffer and why it was dropped.
type KeyframeEviction struct {
	Sequence uint64 `json:"sequence"`
	Turn     uint64 `json:"turn"`
	Reason   string `json:"reason,omitempty"`
}

// KeyframeRecordResult reports journal state after storing a keyframe.
type KeyframeRecordResult struct {
	Size           int                `json:"size"`
	OldestSequence uint64             `json:"oldestSequence"`
	NewestSequence uint64             `json:"newestSequence"`
	Evicted        []KeyframeEviction `json:"evicted,omitempty"`
}

// Journal accumulates patches generated by commits and keeps a rolling
// buffer of recent keyframes so lagging mirrors can rehydrate state.
type Journal[S any] struct {
	mu        sync.RWMutex
	seq       uint64
	patches   []Patch
	keyframes []Keyframe[S]
	maxFrames int
	maxAge    time.Duration
	now       func() time.Time
}

// New constructs a journal with storage for the configured number of
// keyframes and retention window.
func New[S any](keyframeCapacity int, maxAge time.Duration) *Journal[S] {
	if keyframeCapacity < 0 {
		keyframeCapacity = 0
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &Journal[S]{
		patches:   make([]Patch, 0),
		keyframes: make([]Keyframe[S], 0, keyframeCapacity),
		maxFrames: keyframeCapacity,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// AppendPatch stamps p with the next sequence number and stages it.
func (j *Journal[S]) AppendPatch(p Patch) Patch {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	p.Seq = j.seq
	j.patches = append(j.patches, p)
	return p
}

// Sequence returns the last assigned patch sequence.
func (j *Journal[S]) Sequence() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.seq
}

// PurgeEntity drops all staged patches that reference the provided entity.
func (j *Journal[S]) PurgeEntity(entityID int64) {
	if entityID == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.patches) == 0 {
		return
	}
	filtered := j.patches[:0]
	for _, patch := range j.patches {
		if patch.EntityID == entityID && patch.Kind != PatchRemoved {
			continue
		}
		filtered = append(filtered, patch)
	}
	j.patches = filtered
}

// DrainPatches returns all staged patches and clears the in-memory slice.
func (j *Journal[S]) DrainPatches() []Patch {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.patches) == 0 {
		return nil
	}
	drained := make([]Patch, len(j.patches))
	copy(drained, j.patches)
	j.patches = j.patches[:0]
	return drained
}

// SnapshotPatches returns a copy of the staged patches without clearing the
// journal.
func (j *Journal[S]) SnapshotPatches() []Patch {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.patches) == 0 {
		return nil
	}
	snapshot := make([]Patch, len(j.patches))
	copy(snapshot, j.patches)
	return snapshot
}

// RestorePatches prepends the provided patches back into the journal. It is
// used when a caller drains the journal but the broadcast then fails.
func (j *Journal[S]) RestorePatches(p []Patch) {
	if len(p) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	restored := make([]Patch, 0, len(p)+len(j.patches))
	restored = append(restored, p...)
	restored = append(restored, j.patches...)
	j.patches = restored
}

// RecordKeyframe stores a keyframe in the buffer enforcing retention limits
// by count and age.
func (j *Journal[S]) RecordKeyframe(frame Keyframe[S]) KeyframeRecordResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxFrames == 0 {
		j.keyframes = j.keyframes[:0]
		return KeyframeRecordResult{}
	}

	frame.RecordedAt = j.now()
	if frame.Sequence == 0 {
		frame.Sequence = j.seq
	}
	j.keyframes = append(j.keyframes, frame)

	cutoff := time.Time{}
	if j.maxAge > 0 {
		cutoff = frame.RecordedAt.Add(-j.maxAge)
	}

	evicted := make([]KeyframeEviction, 0)
	if !cutoff.IsZero() {
		idx := 0
		for idx < len(j.keyframes) {
			if !j.keyframes[idx].RecordedAt.Before(cutoff) {
				break
			}
			evicted = append(evicted, KeyframeEviction{
				Sequence: j.keyframes[idx].Sequence,
				Turn:     j.keyframes[idx].Turn,
				Reason:   "expired",
			})
			idx++
		}
		if idx > 0 {
			copy(j.keyframes, j.keyframes[idx:])
			j.keyframes = j.keyframes[:len(j.keyframes)-idx]
		}
	}

	if len(j.keyframes) > j.maxFrames {
		overflow := len(j.keyframes) - j.maxFrames
		for i := 0; i < overflow; i++ {
			frame := j.keyframes[i]
			evicted = append(evicted, KeyframeEviction{
				Sequence: frame.Sequence,
				Turn:     frame.Turn,
				Reason:   "count",
			})
		}
		copy(j.keyframes, j.keyframes[overflow:])
		j.keyframes = j.keyframes[:len(j.keyframes)-overflow]
	}

	size := len(j.keyframes)
	result := KeyframeRecordResult{Size: size}
	if size > 0 {
		result.OldestSequence = j.keyframes[0].Sequence
		result.NewestSequence = j.keyframes[size-1].Sequence
	}
	result.Evicted = evicted
	return result
}

// Keyframes exposes the current keyframe buffer contents in chronological
// order.
func (j *Journal[S]) Keyframes() []Keyframe[S] {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.keyframes) == 0 {
		return nil
	}
	frames := make([]Keyframe[S], len(j.keyframes))
	copy(frames, j.keyframes)
	return frames
}

// Latest returns the newest keyframe.
func (j *Journal[S]) Latest() (Keyframe[S], bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.keyframes) == 0 {
		return Keyframe[S]{}, false
	}
	return j.keyframes[len(j.keyframes)-1], true
}

// KeyframeBySequence returns the keyframe matching the provided sequence.
func (j *Journal[S]) KeyframeBySequence(sequence uint64) (Keyframe[S], bool) {
	if sequence == 0 {
		return Keyframe[S]{}, false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, frame := range j.keyframes {
		if frame.Sequence == sequence {
			return frame, true
		}
	}
	return Keyframe[S]{}, false
}

// KeyframeWindow reports the current retention window.
func (j *Journal[S]) KeyframeWindow() (size int, oldest, newest uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	size = len(j.keyframes)
	if size == 0 {
		return size, 0, 0
	}
	oldest = j.keyframes[0].Sequence
	newest = j.keyframes[size-1].Sequence
	return size, oldest, newest
}
