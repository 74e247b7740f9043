package match

import (
	"context"
	"errors"
	"testing"

	"hexclash/server/internal/action"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/pools"
	"hexclash/server/internal/validate"
)

func newTestMirror(t *testing.T) *Match {
	t.Helper()
	m, err := NewMirror(Config{ID: "test-match", Radius: 3, Seed: "match-test"})
	if err != nil {
		t.Fatalf("NewMirror: %v", err)
	}
	return m
}

func TestMirrorAdoptsSnapshot(t *testing.T) {
	ctx := context.Background()
	auth, actor, other := newDuel(t)
	mirror := newTestMirror(t)

	if err := mirror.Sync(ctx, auth.RequestStateSync()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := len(mirror.Combatants()); got != 2 {
		t.Fatalf("mirror combatants = %d, want 2", got)
	}
	if got, ok := mirror.CurrentActor(); !ok || got != actor {
		t.Fatalf("mirror actor = %d, want %d", got, actor)
	}
	if mirror.Turn() != auth.Turn() || mirror.Phase() != auth.Phase() {
		t.Fatalf("mirror turn/phase = %d/%s, want %d/%s", mirror.Turn(), mirror.Phase(), auth.Turn(), auth.Phase())
	}
	for _, id := range []int64{actor, other} {
		want, _ := auth.Combatant(id)
		got, ok := mirror.Combatant(id)
		if !ok || got.Position != want.Position || got.Pools != want.Pools {
			t.Fatalf("mirror %d = %+v, want %+v", id, got, want)
		}
	}

	// A move on the authority relocates the mirror copy on the next sync.
	setPool(auth, actor, pools.Posture, 100)
	tok := auth.RequestToAct(ctx, actor)
	from := position(t, auth, actor)
	to := vacantAt(t, auth, from, 1)
	move := action.NewMove(from, to)
	tok.Action = &move
	if resp := auth.SubmitAction(ctx, tok); resp.Action == nil {
		t.Fatalf("authority rejected move")
	}
	if err := mirror.Sync(ctx, auth.RequestStateSync()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	mirror.Inspect(func(view validate.View) {
		if view.Grid().Occupant(to) != actor || !view.Grid().IsVacant(from) {
			t.Fatalf("mirror grid not updated: %s holds %d, %s holds %d",
				to, view.Grid().Occupant(to), from, view.Grid().Occupant(from))
		}
	})
}

func TestMirrorReplaysResolvedAttacks(t *testing.T) {
	ctx := context.Background()
	auth, actor, target := newDuel(t)
	setPool(auth, actor, pools.Posture, 100)
	mirror := newTestMirror(t)
	if err := mirror.Sync(ctx, auth.RequestStateSync()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	// A mirror validates an attack but cannot roll for it.
	attack := action.NewAttack("cut", position(t, auth, target))
	predicted, err := mirror.Commit(ctx, actor, attack)
	if err != nil || !predicted.Pending {
		t.Fatalf("mirror attack = %+v, %v; want pending", predicted, err)
	}

	tok := auth.RequestToAct(ctx, actor)
	tok.Action = &attack
	resp := auth.SubmitAction(ctx, tok)
	if resp.Action == nil || resp.Action.Kind != action.KindResolveAttacks {
		t.Fatalf("authority echo = %+v", resp)
	}
	replayed, err := mirror.Commit(ctx, actor, *resp.Action)
	if err != nil {
		t.Fatalf("mirror replay: %v", err)
	}
	if len(replayed.Clashes) != 1 {
		t.Fatalf("replayed clashes = %d, want 1", len(replayed.Clashes))
	}

	want, wantOK := auth.Combatant(target)
	got, gotOK := mirror.Combatant(target)
	if wantOK != gotOK {
		t.Fatalf("target presence differs: authority %v, mirror %v", wantOK, gotOK)
	}
	if wantOK && got.Pools[pools.Health] != want.Pools[pools.Health] {
		t.Fatalf("mirror health = %v, authority %v", got.Pools[pools.Health], want.Pools[pools.Health])
	}
	if _, ok := mirror.ResyncRequested(); ok {
		t.Fatalf("clean replay requested a resync")
	}
}

func TestMirrorRejectsAuthorityOperations(t *testing.T) {
	ctx := context.Background()
	mirror := newTestMirror(t)
	if _, _, err := mirror.Advance(ctx); !errors.Is(err, ErrMirror) {
		t.Fatalf("Advance on mirror = %v, want ErrMirror", err)
	}
	if resp := mirror.RequestToAct(ctx, 1); resp.Allowed {
		t.Fatalf("mirror issued a token")
	}

	auth := newTestMatch(t)
	if err := auth.Sync(ctx, Snapshot{}); !errors.Is(err, ErrAuthority) {
		t.Fatalf("Sync on authority = %v, want ErrAuthority", err)
	}
	if err := mirror.Sync(ctx, Snapshot{Grid: GridSnapshot{Radius: 7}}); !errors.Is(err, ErrGridMismatch) {
		t.Fatalf("Sync with wrong radius = %v, want ErrGridMismatch", err)
	}
}

func TestFullSyncDropsMissingEntities(t *testing.T) {
	ctx := context.Background()
	auth, actor, other := newDuel(t)
	mirror := newTestMirror(t)
	if err := mirror.Sync(ctx, auth.RequestStateSync()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := auth.Remove(ctx, other, "left"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	partial := auth.RequestStateSync()
	partial.Partial = true
	if err := mirror.Sync(ctx, partial); err != nil {
		t.Fatalf("partial Sync: %v", err)
	}
	if _, ok := mirror.Combatant(other); !ok {
		t.Fatalf("partial sync removed an entity it did not mention")
	}

	if err := mirror.Sync(ctx, auth.RequestStateSync()); err != nil {
		t.Fatalf("full Sync: %v", err)
	}
	if _, ok := mirror.Combatant(other); ok {
		t.Fatalf("full sync kept a removed entity")
	}
	if _, ok := mirror.Combatant(actor); !ok {
		t.Fatalf("full sync dropped the survivor")
	}
	over, winner := mirror.Over()
	authOver, authWinner := auth.Over()
	if over != authOver || winner != authWinner {
		t.Fatalf("mirror over=%v/%q, authority %v/%q", over, winner, authOver, authWinner)
	}
	mirror.Inspect(func(view validate.View) {
		for _, cell := range view.Grid().Cells() {
			if cell.Occupant == other {
				t.Fatalf("removed entity still occupies %s", cell.Coord)
			}
		}
	})
}

// relocate moves a combatant on the authority without going through a turn.
func relocate(t *testing.T, m *Match, id int64, q, r int) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.arena[id].Move(m.grid, hex.NewCoord(q, r)); err != nil {
		t.Fatalf("move %d to %d,%d: %v", id, q, r, err)
	}
}

func onlyMembers(snap Snapshot, ids ...int64) Snapshot {
	keep := make(map[int64]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	teams := make([]TeamSnapshot, 0, len(snap.Teams))
	for _, team := range snap.Teams {
		members := make([]EntitySnapshot, 0, len(team.Members))
		for _, member := range team.Members {
			if keep[member.PlayerID] {
				members = append(members, member)
			}
		}
		teams = append(teams, TeamSnapshot{Name: team.Name, Members: members})
	}
	snap.Teams = teams
	snap.Partial = true
	return snap
}

func assertCellsAgree(t *testing.T, m *Match) {
	t.Helper()
	for _, id := range m.Combatants() {
		state, _ := m.Combatant(id)
		if !state.Placed {
			continue
		}
		m.Inspect(func(view validate.View) {
			if got := view.Grid().Occupant(state.Position); got != id {
				t.Fatalf("%d records %s but the cell holds %d", id, state.Position, got)
			}
		})
	}
	m.Inspect(func(view validate.View) {
		for _, cell := range view.Grid().Cells() {
			if !cell.Occupied() {
				continue
			}
			c, ok := m.arena[cell.Occupant]
			if !ok {
				t.Fatalf("%s holds unknown combatant %d", cell.Coord, cell.Occupant)
			}
			if pos, placed := c.Position(); !placed || pos != cell.Coord {
				t.Fatalf("%s holds %d, which records %s placed=%v", cell.Coord, cell.Occupant, pos, placed)
			}
		}
	})
}

func TestPartialSyncEvictsOmittedOccupant(t *testing.T) {
	ctx := context.Background()
	auth := newTestMatch(t)
	a := joinAt(t, auth, "red", 0, 0)
	b := joinAt(t, auth, "blue", 2, 0)
	mirror := newTestMirror(t)
	if err := mirror.Sync(ctx, auth.RequestStateSync()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	// b follows a into the cell a just left; the partial update only names b.
	relocate(t, auth, a, -1, 0)
	relocate(t, auth, b, 0, 0)
	if err := mirror.Sync(ctx, onlyMembers(auth.RequestStateSync(), b)); err != nil {
		t.Fatalf("partial Sync: %v", err)
	}

	if _, ok := mirror.Combatant(a); !ok {
		t.Fatalf("partial sync removed %d", a)
	}
	if got := position(t, mirror, b); got != hex.NewCoord(0, 0) {
		t.Fatalf("b at %s, want 0,0", got)
	}
	mirror.Inspect(func(view validate.View) {
		if !view.Grid().IsVacant(hex.NewCoord(2, 0)) {
			t.Fatalf("b's old cell still held by %d", view.Grid().Occupant(hex.NewCoord(2, 0)))
		}
	})
	assertCellsAgree(t, mirror)
	if _, ok := mirror.ResyncRequested(); !ok {
		t.Fatalf("eviction should request a resync")
	}

	// b can keep moving from the cell the mirror now credits it with.
	mirror.mu.Lock()
	err := mirror.arena[b].Move(mirror.grid, hex.NewCoord(1, 0))
	mirror.mu.Unlock()
	if err != nil {
		t.Fatalf("b move after partial sync: %v", err)
	}

	relocate(t, auth, b, 1, 0)
	if err := mirror.Sync(ctx, auth.RequestStateSync()); err != nil {
		t.Fatalf("full Sync: %v", err)
	}
	if got := position(t, mirror, a); got != hex.NewCoord(-1, 0) {
		t.Fatalf("a at %s after full sync, want -1,0", got)
	}
	assertCellsAgree(t, mirror)
}

func TestPartialSyncUnplacesWhenCellStaysContested(t *testing.T) {
	ctx := context.Background()
	auth := newTestMatch(t)
	a := joinAt(t, auth, "red", 0, 0)
	b := joinAt(t, auth, "blue", 2, 0)
	mirror := newTestMirror(t)
	if err := mirror.Sync(ctx, auth.RequestStateSync()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	// A malformed update lists a where it stands and moves b onto it.
	snap := onlyMembers(auth.RequestStateSync(), a, b)
	for ti := range snap.Teams {
		for mi := range snap.Teams[ti].Members {
			if snap.Teams[ti].Members[mi].PlayerID == b {
				snap.Teams[ti].Members[mi].Q = 0
				snap.Teams[ti].Members[mi].R = 0
			}
		}
	}
	if err := mirror.Sync(ctx, snap); err != nil {
		t.Fatalf("partial Sync: %v", err)
	}
	if got := position(t, mirror, a); got != hex.NewCoord(0, 0) {
		t.Fatalf("a at %s, want 0,0", got)
	}
	if state, _ := mirror.Combatant(b); state.Placed {
		t.Fatalf("b should be off the board, records %s", state.Position)
	}
	assertCellsAgree(t, mirror)
}
