package validate

import (
	"testing"
	"time"

	"hexclash/server/internal/abilities"
	"hexclash/server/internal/action"
	"hexclash/server/internal/combat"
	"hexclash/server/internal/combatant"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/pools"
	"hexclash/server/stats"
)

type fakeView struct {
	grid    *hex.Grid
	members map[int64]*combatant.Combatant
	actor   int64
	over    bool
}

func (v *fakeView) Grid() *hex.Grid { return v.grid }
func (v *fakeView) Over() bool      { return v.over }

func (v *fakeView) Combatant(id int64) (*combatant.Combatant, bool) {
	c, ok := v.members[id]
	return c, ok
}

func (v *fakeView) CurrentActor() (int64, bool) {
	return v.actor, v.actor != 0
}

func newView(t *testing.T) *fakeView {
	t.Helper()
	view := &fakeView{grid: hex.NewGrid(3, hex.DefaultLayout()), members: map[int64]*combatant.Combatant{}}
	place := func(id int64, team string, at hex.Coord) {
		var attrs stats.ValueSet
		for i := range attrs {
			attrs[i] = 10
		}
		style := &abilities.Style{ID: "duelist", Actives: []abilities.Active{
			{ID: "jab", Dice: []int{4}, Range: abilities.Range{Min: 1, Max: 1}, Cost: abilities.Cost{Posture: 20}},
			{ID: "lunge", Dice: []int{6}, Range: abilities.Range{Min: 1, Max: 2}},
		}}
		c, err := combatant.New(combatant.Config{
			ID:         id,
			Team:       team,
			Attributes: attrs,
			Styles:     []*abilities.Style{style, {ID: "guard", Actives: []abilities.Active{{ID: "block", Dice: []int{4}}}}},
		})
		if err != nil {
			t.Fatalf("new combatant: %v", err)
		}
		if err := c.Place(view.grid, at); err != nil {
			t.Fatalf("place: %v", err)
		}
		view.members[id] = c
	}
	place(1, "red", hex.NewCoord(0, 0))
	place(2, "blue", hex.NewCoord(1, 0))
	place(3, "red", hex.NewCoord(-1, 0))
	view.actor = 1
	return view
}

func expectReason(t *testing.T, err error, want Reason) {
	t.Helper()
	if got := ReasonOf(err); got != want {
		t.Fatalf("expected rejection %q, got %v", want, err)
	}
}

func TestCheckTurn(t *testing.T) {
	view := newView(t)
	if _, err := CheckTurn(view, 1); err != nil {
		t.Fatalf("actor should pass: %v", err)
	}
	_, err := CheckTurn(view, 2)
	expectReason(t, err, RejectNotYourTurn)
	_, err = CheckTurn(view, 99)
	expectReason(t, err, RejectNotParticipant)
	view.over = true
	_, err = CheckTurn(view, 1)
	expectReason(t, err, RejectMatchOver)
}

func TestCheckMove(t *testing.T) {
	view := newView(t)
	rules := Rules{}
	actor := view.members[1]
	actor.Set(pools.Posture, 100)

	plan, err := rules.CheckMove(view, 1, action.Move{From: hex.NewCoord(0, 0), To: hex.NewCoord(0, 2)})
	if err != nil {
		t.Fatalf("expected legal move: %v", err)
	}
	if plan.Steps() != 2 || plan.Cost != 2*MovementCost {
		t.Fatalf("expected 2 steps costing %.0f, got %d / %.0f", 2*MovementCost, plan.Steps(), plan.Cost)
	}

	_, err = rules.CheckMove(view, 1, action.Move{From: hex.NewCoord(0, 1), To: hex.NewCoord(0, 2)})
	expectReason(t, err, RejectSourceMismatch)
	_, err = rules.CheckMove(view, 1, action.Move{From: hex.NewCoord(0, 0), To: hex.NewCoord(1, 0)})
	expectReason(t, err, RejectDestinationOccupied)
	_, err = rules.CheckMove(view, 1, action.Move{From: hex.NewCoord(0, 0), To: hex.NewCoord(9, 0)})
	expectReason(t, err, RejectOutOfBounds)

	actor.Set(pools.Posture, 15)
	_, err = rules.CheckMove(view, 1, action.Move{From: hex.NewCoord(0, 0), To: hex.NewCoord(0, 2)})
	if err == nil {
		t.Fatalf("expected move beyond posture budget to be rejected")
	}
}

func TestCheckAttack(t *testing.T) {
	view := newView(t)
	rules := Rules{}
	actor := view.members[1]
	actor.Set(pools.Posture, 50)

	plan, err := rules.CheckAttack(view, 1, action.Attack{Ability: "jab", Target: hex.NewCoord(1, 0)})
	if err != nil {
		t.Fatalf("expected legal attack: %v", err)
	}
	if plan.Target.ID() != 2 || plan.Distance != 1 {
		t.Fatalf("unexpected plan %+v", plan)
	}

	_, err = rules.CheckAttack(view, 1, action.Attack{Ability: "fireball", Target: hex.NewCoord(1, 0)})
	expectReason(t, err, RejectUnknownAbility)
	_, err = rules.CheckAttack(view, 1, action.Attack{Ability: "jab", Target: hex.NewCoord(-1, 0)})
	expectReason(t, err, RejectFriendlyTarget)
	_, err = rules.CheckAttack(view, 1, action.Attack{Ability: "jab", Target: hex.NewCoord(0, 2)})
	expectReason(t, err, RejectNoTarget)

	actor.Usage().MarkActive(actor.Style(), "lunge")
	_, err = rules.CheckAttack(view, 1, action.Attack{Ability: "lunge", Target: hex.NewCoord(1, 0)})
	expectReason(t, err, RejectAbilityUsed)

	actor.Set(pools.Posture, 5)
	_, err = rules.CheckAttack(view, 1, action.Attack{Ability: "jab", Target: hex.NewCoord(1, 0)})
	expectReason(t, err, RejectInsufficient)
}

func TestCheckDispatch(t *testing.T) {
	view := newView(t)
	rules := Rules{}
	err := rules.Check(view, 1, action.Action{Kind: action.KindMove})
	expectReason(t, err, RejectMalformed)
	err = rules.Check(view, 1, action.NewResolveAttacks(testClash()))
	expectReason(t, err, RejectAuthorityOnly)
	err = rules.Check(view, 1, action.NewStyleSwitch(0))
	expectReason(t, err, RejectInvalidStyle)
	err = rules.Check(view, 1, action.NewStyleSwitch(4))
	expectReason(t, err, RejectInvalidStyle)
	if err := rules.Check(view, 1, action.NewStyleSwitch(1)); err != nil {
		t.Fatalf("expected legal switch: %v", err)
	}
}

func newTestGate(t *testing.T, now *time.Time) *Gate {
	t.Helper()
	gate, err := NewGate("match-1", TokenConfig{Secret: []byte("test-secret"), Now: func() time.Time { return *now }})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return gate
}

func TestGateAcceptsOnlyCurrentToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	gate := newTestGate(t, &now)

	first, err := gate.Issue(1, 4)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := gate.Verify(first, 1, 4); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
	_, err = gate.Verify(first, 2, 4)
	expectReason(t, err, RejectStaleToken)
	_, err = gate.Verify(first, 1, 5)
	expectReason(t, err, RejectStaleToken)

	second, err := gate.Issue(1, 4)
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	_, err = gate.Verify(first, 1, 4)
	expectReason(t, err, RejectStaleToken)
	if _, err := gate.Verify(second, 1, 4); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}

	gate.Consume()
	_, err = gate.Verify(second, 1, 4)
	expectReason(t, err, RejectStaleToken)
	_, err = gate.Verify("", 1, 4)
	expectReason(t, err, RejectMissingToken)
}

func TestGateRejectsForeignAndExpiredTokens(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	gate := newTestGate(t, &now)
	other, err := NewGate("match-1", TokenConfig{Secret: []byte("other-secret")})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	forged, err := other.Issue(1, 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := gate.Issue(1, 1); err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = gate.Verify(forged, 1, 1)
	expectReason(t, err, RejectInvalidToken)

	token, err := gate.Issue(1, 2)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(DefaultTokenTTL + time.Second)
	_, err = gate.Verify(token, 1, 2)
	expectReason(t, err, RejectInvalidToken)
}

func TestNewGateRequiresSecret(t *testing.T) {
	if _, err := NewGate("m", TokenConfig{}); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func testClash() combat.ClashResult {
	return combat.ClashResult{
		Mode:     combat.ModeStrike,
		Sequence: combat.StrikeSequence{Attacker: 1, Defender: 2, Ability: "jab"},
		Outcome:  combat.TagMiss,
	}
}
