package match

import (
	"context"
	"testing"

	"hexclash/server/internal/action"
	"hexclash/server/internal/catalog"
	"hexclash/server/internal/events"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/pools"
	"hexclash/server/internal/validate"
)

func newTestMatch(t *testing.T) *Match {
	t.Helper()
	m, err := New(Config{
		ID:        "test-match",
		Radius:    3,
		Seed:      "match-test",
		Authority: true,
		Token:     validate.TokenConfig{Secret: []byte("test-secret")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func joinAt(t *testing.T, m *Match, team string, q, r int) int64 {
	t.Helper()
	at := hex.NewCoord(q, r)
	id, err := m.Join(context.Background(), catalog.Spec{Name: team, Team: team, Template: "knight"}, &at)
	if err != nil {
		t.Fatalf("Join %s at %s: %v", team, at, err)
	}
	return id
}

// newDuel builds an authority with two adjacent knights on opposing teams
// and elects the first actor.
func newDuel(t *testing.T) (*Match, int64, int64) {
	t.Helper()
	m := newTestMatch(t)
	red := joinAt(t, m, "red", 0, 0)
	blue := joinAt(t, m, "blue", 1, 0)
	actor, ok, err := m.Advance(context.Background())
	if err != nil || !ok {
		t.Fatalf("Advance: actor=%d ok=%v err=%v", actor, ok, err)
	}
	if actor != red && actor != blue {
		t.Fatalf("elected %d, want one of %d/%d", actor, red, blue)
	}
	other := red
	if actor == red {
		other = blue
	}
	return m, actor, other
}

func setPool(m *Match, id int64, r pools.Resource, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arena[id].Set(r, v)
}

func position(t *testing.T, m *Match, id int64) hex.Coord {
	t.Helper()
	state, ok := m.Combatant(id)
	if !ok || !state.Placed {
		t.Fatalf("combatant %d missing or unplaced", id)
	}
	return state.Position
}

// vacantAt returns a vacant cell exactly dist steps from origin.
func vacantAt(t *testing.T, m *Match, origin hex.Coord, dist int) hex.Coord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cell := range m.grid.Cells() {
		if !cell.Occupied() && hex.Distance(origin, cell.Coord) == dist {
			return cell.Coord
		}
	}
	t.Fatalf("no vacant cell %d steps from %s", dist, origin)
	return hex.Coord{}
}

func TestJoinPlacesCombatants(t *testing.T) {
	m := newTestMatch(t)
	red := joinAt(t, m, "red", 0, 0)
	if got := position(t, m, red); got != hex.NewCoord(0, 0) {
		t.Fatalf("position = %s, want 0,0", got)
	}
	blue, err := m.Join(context.Background(), catalog.Spec{Team: "blue", Template: "duelist"}, nil)
	if err != nil {
		t.Fatalf("Join without cell: %v", err)
	}
	if blue == red || blue == 0 {
		t.Fatalf("assigned id %d collides with %d", blue, red)
	}
	at := hex.NewCoord(0, 0)
	if _, err := m.Join(context.Background(), catalog.Spec{Team: "blue", Template: "mage"}, &at); err == nil {
		t.Fatalf("expected join on occupied cell to fail")
	}
	if _, err := m.Join(context.Background(), catalog.Spec{ID: red, Template: "knight"}, nil); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}
	if statuses := m.Statuses(red); len(statuses) == 0 {
		t.Fatalf("expected style passive on knight")
	}
}

func TestMoveSpendsPostureAndRotatesToken(t *testing.T) {
	ctx := context.Background()
	m, actor, _ := newDuel(t)
	setPool(m, actor, pools.Posture, 100)

	tok := m.RequestToAct(ctx, actor)
	if !tok.Allowed || tok.Token == "" {
		t.Fatalf("RequestToAct denied for actor: %+v", tok)
	}
	if m.Phase() != PhaseActing {
		t.Fatalf("phase = %s, want %s", m.Phase(), PhaseActing)
	}

	from := position(t, m, actor)
	to := vacantAt(t, m, from, 2)
	move := action.NewMove(from, to)
	tok.Action = &move
	resp := m.SubmitAction(ctx, tok)
	if resp.Action == nil || resp.Action.Kind != action.KindMove {
		t.Fatalf("expected move echo, got %+v", resp)
	}
	if !resp.Allowed || resp.Token == "" || resp.Token == tok.Token {
		t.Fatalf("expected rotated token at posture 80, got %+v", resp)
	}
	state, _ := m.Combatant(actor)
	if got := state.Pools[pools.Posture]; got != 80 {
		t.Fatalf("posture = %v, want 80", got)
	}
	m.Inspect(func(view validate.View) {
		if occupant := view.Grid().Occupant(to); occupant != actor {
			t.Fatalf("destination occupant = %d, want %d", occupant, actor)
		}
		if !view.Grid().IsVacant(from) {
			t.Fatalf("source %s still occupied", from)
		}
	})

	// The consumed token is dead even with a valid action.
	back := action.NewMove(to, from)
	tok.Action = &back
	if replay := m.SubmitAction(ctx, tok); replay.Allowed || replay.Action != nil {
		t.Fatalf("consumed token accepted: %+v", replay)
	}

	// One more step drops readiness below the continuation threshold.
	step := vacantAt(t, m, to, 1)
	next := action.NewMove(to, step)
	resp.Action = &next
	final := m.SubmitAction(ctx, resp)
	if final.Allowed || final.Token != "" {
		t.Fatalf("expected the turn to end at posture 70, got %+v", final)
	}
	if final.Action == nil {
		t.Fatalf("expected the committed action echoed on turn end")
	}
	if _, ok := m.CurrentActor(); ok {
		t.Fatalf("actor still elected after exhaustion")
	}
	state, _ = m.Combatant(actor)
	if got := state.Pools[pools.Posture]; got != 70 {
		t.Fatalf("posture = %v, want 70 kept after exhausted end", got)
	}
}

func TestMoveRejectedBeyondBudget(t *testing.T) {
	ctx := context.Background()
	m, actor, _ := newDuel(t)
	setPool(m, actor, pools.Posture, 15)

	tok := m.RequestToAct(ctx, actor)
	from := position(t, m, actor)
	move := action.NewMove(from, vacantAt(t, m, from, 2))
	tok.Action = &move
	before := m.Version()
	if resp := m.SubmitAction(ctx, tok); resp.Allowed || resp.Action != nil {
		t.Fatalf("over-budget move accepted: %+v", resp)
	}
	if got := position(t, m, actor); got != from {
		t.Fatalf("rejected move changed position to %s", got)
	}
	if m.Version() != before {
		t.Fatalf("rejected move changed the version")
	}
}

func TestTokenChecks(t *testing.T) {
	ctx := context.Background()
	m, actor, other := newDuel(t)
	setPool(m, actor, pools.Posture, 100)

	if resp := m.RequestToAct(ctx, other); resp.Allowed || resp.Token != "" {
		t.Fatalf("token issued to non-actor: %+v", resp)
	}
	if resp := m.RequestToAct(ctx, 999); resp.Allowed {
		t.Fatalf("token issued to unknown user")
	}

	first := m.RequestToAct(ctx, actor)
	second := m.RequestToAct(ctx, actor)
	if !first.Allowed || !second.Allowed {
		t.Fatalf("actor denied: %+v %+v", first, second)
	}
	from := position(t, m, actor)
	move := action.NewMove(from, vacantAt(t, m, from, 1))

	stale := first
	stale.Action = &move
	if resp := m.SubmitAction(ctx, stale); resp.Allowed || resp.Action != nil {
		t.Fatalf("revoked token accepted")
	}

	stolen := second
	stolen.UserID = other
	stolen.Action = &move
	if resp := m.SubmitAction(ctx, stolen); resp.Allowed || resp.Action != nil {
		t.Fatalf("token accepted for another user")
	}

	garbage := AccessToken{UserID: actor, Token: "not-a-token", Action: &move}
	if resp := m.SubmitAction(ctx, garbage); resp.Allowed || resp.Action != nil {
		t.Fatalf("garbage token accepted")
	}

	if !m.RequestEndTurn(ctx, second) {
		t.Fatalf("RequestEndTurn rejected a live token")
	}
	state, _ := m.Combatant(actor)
	if state.Pools[pools.Posture] != 0 {
		t.Fatalf("voluntary end kept readiness %v", state.Pools[pools.Posture])
	}
	if m.RequestEndTurn(ctx, second) {
		t.Fatalf("RequestEndTurn accepted a token from an ended turn")
	}

	if _, _, err := m.Advance(ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	next, _ := m.CurrentActor()
	prior := second
	prior.UserID = next
	prior.Action = &move
	if resp := m.SubmitAction(ctx, prior); resp.Allowed || resp.Action != nil {
		t.Fatalf("prior-turn token accepted")
	}
}

func TestAttackEchoesResolvedClash(t *testing.T) {
	ctx := context.Background()
	m, actor, target := newDuel(t)
	setPool(m, actor, pools.Posture, 100)

	var clashes, committed int
	m.Bus().Subscribe(events.ClashResolved, func(events.Event) { clashes++ })
	m.Bus().Subscribe(events.ActionCommitted, func(e events.Event) {
		committed++
		act, ok := e.Payload.(action.Action)
		if !ok || act.Kind != action.KindResolveAttacks {
			t.Errorf("committed payload = %#v, want resolve_attacks", e.Payload)
		}
		// Handlers run after the lock is released.
		_ = m.Turn()
	})

	tok := m.RequestToAct(ctx, actor)
	attack := action.NewAttack("cut", position(t, m, target))
	tok.Action = &attack
	resp := m.SubmitAction(ctx, tok)
	if resp.Action == nil || resp.Action.Kind != action.KindResolveAttacks {
		t.Fatalf("expected resolve_attacks echo, got %+v", resp)
	}
	if len(resp.Action.ResolveAttacks.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(resp.Action.ResolveAttacks.Results))
	}
	if clashes != 1 || committed != 1 {
		t.Fatalf("clashes=%d committed=%d, want 1/1", clashes, committed)
	}

	state, _ := m.Combatant(actor)
	if len(state.UsedActives) != 1 || state.UsedActives[0] != "cut" {
		t.Fatalf("used actives = %v, want [cut]", state.UsedActives)
	}
	if !resp.Allowed {
		return
	}
	again := action.NewAttack("cut", position(t, m, target))
	resp.Action = &again
	if repeat := m.SubmitAction(ctx, resp); repeat.Action != nil {
		t.Fatalf("used ability accepted twice")
	}
}

func TestClientResolveAttacksRejected(t *testing.T) {
	ctx := context.Background()
	m, actor, _ := newDuel(t)
	tok := m.RequestToAct(ctx, actor)
	forged := action.NewResolveAttacks()
	tok.Action = &forged
	if resp := m.SubmitAction(ctx, tok); resp.Allowed || resp.Action != nil {
		t.Fatalf("client resolve_attacks accepted: %+v", resp)
	}
}

func TestStunnedActorsLoseTheirTurn(t *testing.T) {
	ctx := context.Background()
	m := newTestMatch(t)
	red := joinAt(t, m, "red", 0, 0)
	blue := joinAt(t, m, "blue", 2, 0)
	m.mu.Lock()
	m.applyStatus(ctx, m.arena[red], blue, catalog.StatusStun, "test", 1)
	m.applyStatus(ctx, m.arena[blue], red, catalog.StatusStun, "test", 1)
	m.mu.Unlock()

	var skipped []int64
	m.Bus().Subscribe(events.TurnSkipped, func(e events.Event) { skipped = append(skipped, e.Actor) })

	actor, ok, err := m.Advance(ctx)
	if err != nil || !ok {
		t.Fatalf("Advance: ok=%v err=%v", ok, err)
	}
	if len(skipped) != 2 || skipped[0] == skipped[1] {
		t.Fatalf("skipped = %v, want both combatants once", skipped)
	}
	if m.Turn() != 3 {
		t.Fatalf("turn = %d, want 3", m.Turn())
	}
	for _, id := range []int64{red, blue} {
		for _, inst := range m.Statuses(id) {
			if inst.EffectID == catalog.StatusStun {
				t.Fatalf("stun still on %d after its turn", id)
			}
		}
	}
	if actor != red && actor != blue {
		t.Fatalf("actor = %d", actor)
	}
}

func TestDefeatFinishesMatch(t *testing.T) {
	ctx := context.Background()
	m := newTestMatch(t)
	red := joinAt(t, m, "red", 0, 0)
	blue := joinAt(t, m, "blue", 2, 0)
	m.mu.Lock()
	for _, id := range []int64{red, blue} {
		m.arena[id].Set(pools.Health, 2)
		m.applyStatus(ctx, m.arena[id], 0, catalog.StatusBleed, "test", 1)
	}
	m.mu.Unlock()

	var defeated []int64
	var ended []any
	m.Bus().Subscribe(events.EntityDefeated, func(e events.Event) { defeated = append(defeated, e.Target) })
	m.Bus().Subscribe(events.MatchEnded, func(e events.Event) { ended = append(ended, e.Payload) })

	if _, ok, err := m.Advance(ctx); err != nil || ok {
		t.Fatalf("Advance: ok=%v err=%v, want no actor after defeat", ok, err)
	}
	if len(defeated) != 1 {
		t.Fatalf("defeated = %v, want one", defeated)
	}
	over, winner := m.Over()
	if !over {
		t.Fatalf("match not over")
	}
	survivor := red
	if defeated[0] == red {
		survivor = blue
	}
	state, ok := m.Combatant(survivor)
	if !ok || winner != state.Team {
		t.Fatalf("winner = %q, want %q", winner, state.Team)
	}
	if len(ended) != 1 {
		t.Fatalf("match ended %d times", len(ended))
	}
	if _, _, err := m.Advance(ctx); err != ErrFinished {
		t.Fatalf("Advance after finish = %v, want ErrFinished", err)
	}
	if m.Phase() != PhaseFinished {
		t.Fatalf("phase = %s", m.Phase())
	}
	if _, ok := m.Journal().Latest(); !ok {
		t.Fatalf("no keyframe recorded at match end")
	}
}

func TestRemovingActorEndsTurn(t *testing.T) {
	ctx := context.Background()
	m := newTestMatch(t)
	joinAt(t, m, "red", 0, 0)
	joinAt(t, m, "red", 1, 0)
	blue := joinAt(t, m, "blue", 3, 0)
	actor, _, err := m.Advance(ctx)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	tok := m.RequestToAct(ctx, actor)
	if err := m.Remove(ctx, actor, "left"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := m.CurrentActor(); ok {
		t.Fatalf("removed actor still holds the turn")
	}
	if m.RequestEndTurn(ctx, tok) {
		t.Fatalf("token survived removal")
	}
	if err := m.Remove(ctx, actor, "left"); err == nil {
		t.Fatalf("expected second removal to fail")
	}
	over, winner := m.Over()
	if actor == blue {
		if !over || winner != "red" {
			t.Fatalf("over=%v winner=%q after removing the last blue", over, winner)
		}
		return
	}
	if over {
		t.Fatalf("match ended with both teams alive")
	}
}

func TestStyleSwitchSwapsPassives(t *testing.T) {
	ctx := context.Background()
	m, actor, _ := newDuel(t)
	tok := m.RequestToAct(ctx, actor)
	sw := action.NewStyleSwitch(1)
	tok.Action = &sw
	resp := m.SubmitAction(ctx, tok)
	if resp.Action == nil {
		t.Fatalf("style switch rejected")
	}
	state, _ := m.Combatant(actor)
	if state.StyleIndex != 1 {
		t.Fatalf("style index = %d, want 1", state.StyleIndex)
	}
	for _, inst := range m.Statuses(actor) {
		if inst.EffectID == catalog.StatusPoise {
			t.Fatalf("blade passive survived the switch")
		}
	}
}

func TestSnapshotShape(t *testing.T) {
	m, actor, _ := newDuel(t)
	snap := m.RequestStateSync()
	if snap.MatchID != "test-match" || snap.Grid.Radius != 3 {
		t.Fatalf("snapshot header = %+v", snap)
	}
	if len(snap.Grid.Cells) != m.grid.Size() {
		t.Fatalf("cells = %d, want %d", len(snap.Grid.Cells), m.grid.Size())
	}
	if snap.CurrentActorID == nil || *snap.CurrentActorID != actor {
		t.Fatalf("current actor = %v, want %d", snap.CurrentActorID, actor)
	}
	if len(snap.Teams) != 2 || snap.Teams[0].Name != "red" {
		t.Fatalf("teams = %+v", snap.Teams)
	}
	entity, ok := snap.Entity(actor)
	if !ok {
		t.Fatalf("actor missing from snapshot")
	}
	cell, ok := snap.Cell(entity.Q, entity.R)
	if !ok || cell.OccupantID == nil || *cell.OccupantID != actor {
		t.Fatalf("cell %d,%d does not hold the actor", entity.Q, entity.R)
	}
	if entity.Stats["str"] == 0 {
		t.Fatalf("stats block missing attributes: %v", entity.Stats)
	}
}
