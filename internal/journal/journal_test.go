package journal

import (
	"testing"
	"time"
)

func TestJournalPatchBuffersClone(t *testing.T) {
	j := New[string](0, 0)

	original := Patch{
		Kind:     PatchPools,
		EntityID: 1,
		Payload:  PoolsPayload{Health: 75, MaxHealth: 100},
	}
	stamped := j.AppendPatch(original)
	if stamped.Seq != 1 {
		t.Fatalf("expected first patch to carry seq 1, got %d", stamped.Seq)
	}

	snapshot := j.SnapshotPatches()
	if len(snapshot) != 1 {
		t.Fatalf("expected snapshot to contain 1 patch, got %d", len(snapshot))
	}
	snapshot[0].EntityID = 99
	snapshot[0].Kind = PatchStyle

	drained := j.DrainPatches()
	if len(drained) != 1 {
		t.Fatalf("expected drain to return 1 patch, got %d", len(drained))
	}
	if drained[0].EntityID != original.EntityID || drained[0].Kind != original.Kind {
		t.Fatalf("expected drain to preserve the stored patch, got %+v", drained[0])
	}

	drained[0].EntityID = 2
	j.RestorePatches(drained)
	drained[0].EntityID = 3

	restored := j.SnapshotPatches()
	if len(restored) != 1 || restored[0].EntityID != 2 {
		t.Fatalf("expected restore to capture entity 2, got %+v", restored)
	}

	if j.DrainPatches() == nil {
		t.Fatalf("expected restored patch to drain")
	}
	if cleared := j.DrainPatches(); len(cleared) != 0 {
		t.Fatalf("expected journal to be empty after drain, got %d patches", len(cleared))
	}
}

func TestJournalPurgeEntityKeepsRemoval(t *testing.T) {
	j := New[string](0, 0)
	j.AppendPatch(Patch{Kind: PatchPools, EntityID: 1})
	j.AppendPatch(Patch{Kind: PatchPosition, EntityID: 2})
	j.AppendPatch(Patch{Kind: PatchRemoved, EntityID: 1})

	j.PurgeEntity(1)
	patches := j.DrainPatches()
	if len(patches) != 2 {
		t.Fatalf("expected 2 patches after purge, got %d", len(patches))
	}
	if patches[0].EntityID != 2 || patches[1].Kind != PatchRemoved {
		t.Fatalf("unexpected patches after purge: %+v", patches)
	}
}

func TestKeyframeRetentionByCountAndAge(t *testing.T) {
	j := New[int](2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	j.RecordKeyframe(Keyframe[int]{Turn: 1, Sequence: 1, State: 10})
	j.RecordKeyframe(Keyframe[int]{Turn: 2, Sequence: 2, State: 20})
	result := j.RecordKeyframe(Keyframe[int]{Turn: 3, Sequence: 3, State: 30})
	if result.Size != 2 || result.OldestSequence != 2 || result.NewestSequence != 3 {
		t.Fatalf("unexpected window after count eviction: %+v", result)
	}
	if len(result.Evicted) != 1 || result.Evicted[0].Reason != "count" {
		t.Fatalf("expected one count eviction, got %+v", result.Evicted)
	}

	now = now.Add(2 * time.Minute)
	result = j.RecordKeyframe(Keyframe[int]{Turn: 4, Sequence: 4, State: 40})
	if result.Size != 1 || result.OldestSequence != 4 {
		t.Fatalf("expected expired frames to be evicted, got %+v", result)
	}
	frame, ok := j.Latest()
	if !ok || frame.State != 40 {
		t.Fatalf("expected latest keyframe state 40, got %+v", frame)
	}
	if _, ok := j.KeyframeBySequence(2); ok {
		t.Fatalf("evicted keyframe should not be found")
	}
}

func TestPolicyRequestsResyncAfterDivergence(t *testing.T) {
	p := NewPolicy()
	for i := 0; i < 50; i++ {
		p.NoteEvent()
	}
	if _, ok := p.Consume(); ok {
		t.Fatalf("no divergence should not request resync")
	}
	p.NoteDivergence("pools", 4)
	signal, ok := p.Consume()
	if !ok {
		t.Fatalf("expected resync after divergence")
	}
	if signal.Divergences != 1 || len(signal.Reasons) != 1 || signal.Reasons[0].EntityID != 4 {
		t.Fatalf("unexpected signal %+v", signal)
	}
	if _, ok := p.Consume(); ok {
		t.Fatalf("signal should reset after consumption")
	}
}

func TestPolicyKeepsOneReasonPerCombatantAndKind(t *testing.T) {
	p := NewPolicy()
	p.NoteEvent()
	p.NoteDivergence("position", 7)
	p.NoteDivergence("position", 7)
	p.NoteDivergence("evicted", 7)
	signal, ok := p.Consume()
	if !ok {
		t.Fatalf("expected resync after divergence")
	}
	if signal.Divergences != 3 || len(signal.Reasons) != 2 {
		t.Fatalf("expected 3 divergences with 2 reasons, got %+v", signal)
	}
}
