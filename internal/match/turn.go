package match

import (
	"context"
	"fmt"

	"hexclash/server/internal/combatant"
	"hexclash/server/internal/events"
	"hexclash/server/internal/journal"
	"hexclash/server/internal/pools"
	"hexclash/server/internal/scheduler"
	"hexclash/server/internal/status"
	loggingcombat "hexclash/server/logging/combat"
	logginglifecycle "hexclash/server/logging/lifecycle"
	loggingturns "hexclash/server/logging/turns"
)

// Turn end reasons.
const (
	EndExhausted = "exhausted"
	EndRequested = "requested"
	EndStunned   = "stunned"
	EndDefeated  = "defeated"
	EndTimeout   = "idle_timeout"
	EndRemoved   = "removed"
	EndFinished  = "match_finished"
)

// Advance elects the next actor when nobody holds the turn. Stunned winners
// lose their turn and the race runs again. It returns the actor holding the
// turn afterwards.
func (m *Match) Advance(ctx context.Context) (int64, bool, error) {
	m.mu.Lock()
	actor, ok, err := m.advanceLocked(ctx)
	pending := m.takePending()
	m.mu.Unlock()
	m.flush(pending)
	return actor, ok, err
}

func (m *Match) advanceLocked(ctx context.Context) (int64, bool, error) {
	if !m.cfg.Authority {
		return 0, false, ErrMirror
	}
	if m.over {
		return 0, false, ErrFinished
	}
	if m.actor != 0 {
		return m.actor, true, nil
	}
	for attempt := 0; attempt < maxSkippedElections && !m.over; attempt++ {
		contenders := m.contenders()
		if len(contenders) == 0 {
			return 0, false, nil
		}
		result := scheduler.Race(contenders, m.raceRNG)
		if !result.Found {
			loggingturns.RaceExhausted(ctx, m.cfg.Publisher, m.turn, loggingturns.RaceExhaustedPayload{
				Iterations: result.Iterations,
				Contenders: len(contenders),
			}, nil)
			return 0, false, nil
		}
		m.started = true
		m.turn++
		m.actor = result.Winner
		m.actions = 0
		m.transition(ctx, eventElect)
		m.touch()
		m.patchActor()
		loggingturns.Elected(ctx, m.cfg.Publisher, m.turn, m.entityRef(result.Winner), loggingturns.ElectedPayload{
			Readiness:  result.Readiness,
			Iterations: result.Iterations,
		}, nil)
		m.emit(events.Event{Kind: events.ActorElected, Actor: result.Winner, Payload: result.Readiness})

		if m.startTurnLocked(ctx) {
			return m.actor, true, nil
		}
	}
	return 0, false, nil
}

// contenders lists live placed combatants in join order.
func (m *Match) contenders() []scheduler.Contender {
	out := make([]scheduler.Contender, 0, len(m.order))
	for _, id := range m.order {
		c := m.arena[id]
		if _, placed := c.Position(); !placed || !c.Alive() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// startTurnLocked ticks the actor's status effects. It reports false when
// the turn was lost to a stun or the ticks defeated the actor.
func (m *Match) startTurnLocked(ctx context.Context) bool {
	id := m.actor
	c := m.arena[id]
	mgr := m.statuses[id]

	tick := mgr.TurnStart(c)
	if !tick.Delta.Empty() {
		c.Apply(tick.Delta)
	}
	for _, removal := range tick.Removed {
		m.noteRemoval(ctx, c, removal)
	}
	m.applyFired(mgr.Dispatch(status.OnTurnStart, 0))
	m.refreshModifiers(c)
	m.patchPools(c)
	m.patchStatus(id)

	if !c.Alive() {
		m.defeat(ctx, id, 0, loggingcombat.DefeatPayload{Team: c.Team()})
		return false
	}
	if tick.Stunned {
		loggingturns.Skipped(ctx, m.cfg.Publisher, m.turn, m.entityRef(id), loggingturns.SkippedPayload{Reason: EndStunned}, nil)
		m.emit(events.Event{Kind: events.TurnSkipped, Actor: id, Payload: EndStunned})
		m.endTurnLocked(ctx, EndStunned, true)
		return false
	}
	m.emit(events.Event{Kind: events.TurnStarted, Actor: id})
	return true
}

// EndTurn force-ends the current turn, for example from an idle timeout.
// It reports whether a turn was running.
func (m *Match) EndTurn(ctx context.Context, reason string) bool {
	m.mu.Lock()
	ended := false
	if m.actor != 0 {
		m.endTurnLocked(ctx, reason, true)
		ended = true
	}
	pending := m.takePending()
	m.mu.Unlock()
	m.flush(pending)
	return ended
}

// endTurnLocked closes the actor's turn. drain empties the actor's
// readiness so a voluntary or forced end does not hand the turn straight
// back on the next race.
func (m *Match) endTurnLocked(ctx context.Context, reason string, drain bool) {
	id := m.actor
	if id == 0 {
		return
	}
	readiness := 0.0
	if c, ok := m.arena[id]; ok {
		m.applyFired(m.statuses[id].Dispatch(status.OnTurnEnd, 0))
		if drain && c.Alive() {
			c.Set(pools.Posture, 0)
		}
		readiness = c.Get(pools.Posture)
		m.patchPools(c)
	}
	if m.gate != nil {
		m.gate.Consume()
	}
	actions := m.actions
	m.actor = 0
	m.actions = 0
	m.transition(ctx, eventEnd)
	m.touch()
	m.patchActor()

	loggingturns.Ended(ctx, m.cfg.Publisher, m.turn, m.entityRef(id), loggingturns.EndedPayload{
		Reason:    reason,
		Actions:   actions,
		Readiness: readiness,
	}, nil)
	m.emit(events.Event{Kind: events.TurnEnded, Actor: id, Payload: reason})
	m.recordKeyframe()
}

// defeat removes a combatant whose health reached zero. by is the
// combatant that dealt the blow, zero for status ticks.
func (m *Match) defeat(ctx context.Context, id, by int64, payload loggingcombat.DefeatPayload) {
	c, ok := m.arena[id]
	if !ok || c.Alive() {
		return
	}
	loggingcombat.Defeat(ctx, m.cfg.Publisher, m.turn, m.entityRef(by), m.entityRef(id), payload, nil)
	m.emit(events.Event{Kind: events.EntityDefeated, Actor: by, Target: id, Payload: c.Team()})
	if err := m.removeLocked(ctx, id, EndDefeated); err != nil {
		m.cfg.Logger.Printf("match %s: remove defeated %d: %v", m.cfg.ID, id, err)
	}
}

// checkDefeats runs the defeat check over ids in order.
func (m *Match) checkDefeats(ctx context.Context, by int64, ability string, ids ...int64) {
	for _, id := range ids {
		c, ok := m.arena[id]
		if !ok || c.Alive() {
			continue
		}
		m.defeat(ctx, id, by, loggingcombat.DefeatPayload{Ability: ability, Team: c.Team()})
	}
}

// checkWinner finishes the match once at most one team has live members.
func (m *Match) checkWinner(ctx context.Context) {
	if m.over || !m.started {
		return
	}
	live := m.liveTeams()
	if len(live) > 1 {
		return
	}
	winner := ""
	if len(live) == 1 {
		winner = live[0]
	}
	if m.actor != 0 {
		m.endTurnLocked(ctx, EndFinished, false)
	}
	m.over = true
	m.winner = winner
	m.transition(ctx, eventFinish)
	m.touch()
	logginglifecycle.MatchEnded(ctx, m.cfg.Publisher, m.turn, logginglifecycle.MatchEndedPayload{Winner: winner, Turns: m.turn}, nil)
	m.emit(events.Event{Kind: events.MatchEnded, Payload: winner})
	m.recordKeyframe()
}

func (m *Match) recordKeyframe() {
	result := m.journal.RecordKeyframe(journal.Keyframe[Snapshot]{
		Turn:     m.turn,
		Sequence: m.journal.Sequence(),
		State:    m.snapshotLocked(),
	})
	for _, evicted := range result.Evicted {
		m.cfg.Logger.Printf("match %s: keyframe %d (turn %d) evicted: %s", m.cfg.ID, evicted.Sequence, evicted.Turn, evicted.Reason)
	}
}

func (m *Match) refreshModifiers(c *combatant.Combatant) {
	if c == nil {
		return
	}
	c.SetStatusModifiers(m.turn, m.statuses[c.ID()].Computed().Stats)
}

func (m *Match) mustCombatant(id int64) (*combatant.Combatant, error) {
	c, ok := m.arena[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCombatant, id)
	}
	return c, nil
}
