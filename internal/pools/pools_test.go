package pools

import (
	"encoding/json"
	"math"
	"testing"
)

func TestPoolsNeverGoNegative(t *testing.T) {
	p := New(50)
	for r := Resource(0); r < ResourceCount; r++ {
		p.Set(r, 10)
		p.Add(r, -100)
		if got := p.Get(r); got != 0 {
			t.Fatalf("%s should floor at 0, got %.2f", r, got)
		}
	}
}

func TestHealthCappedByMax(t *testing.T) {
	p := New(50)
	p.Add(Health, 500)
	if got := p.Get(Health); got != 50 {
		t.Fatalf("health should cap at 50, got %.2f", got)
	}
	p.SetMaxHealth(20)
	if got := p.Get(Health); got != 20 {
		t.Fatalf("lowering max should clamp health, got %.2f", got)
	}
	p.Set(Posture, 250)
	if got := p.Get(Posture); got != 250 {
		t.Fatalf("posture has no implicit max, got %.2f", got)
	}
}

func TestSetRejectsNonFiniteAndUnknown(t *testing.T) {
	p := New(10)
	if _, ok := p.Set(Health, math.NaN()); ok {
		t.Fatalf("NaN should be rejected")
	}
	if _, ok := p.Set(ResourceCount, 3); ok {
		t.Fatalf("unknown resource should be rejected")
	}
	if p.Get(Health) != 10 {
		t.Fatalf("rejected writes must not change state")
	}
}

func TestApplyReportsClampedDelta(t *testing.T) {
	p := New(30)
	p.Set(Health, 25)
	applied := p.Apply(Delta{Health: 20, Mana: -5, Posture: 7})
	if applied[Health] != 5 {
		t.Fatalf("expected clamped health delta 5, got %.2f", applied[Health])
	}
	if _, ok := applied[Mana]; ok {
		t.Fatalf("mana was already 0, nothing should be applied")
	}
	if applied[Posture] != 7 {
		t.Fatalf("expected posture +7, got %.2f", applied[Posture])
	}
}

func TestResourceTextRoundTrip(t *testing.T) {
	payload, err := json.Marshal(map[Resource]float64{Posture: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"posture":3}` {
		t.Fatalf("unexpected encoding %s", payload)
	}
	var decoded map[Resource]float64
	if err := json.Unmarshal([]byte(`{"readiness":4,"hp":1}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded[Posture] != 4 || decoded[Health] != 1 {
		t.Fatalf("unexpected decode %+v", decoded)
	}
}
