package match

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hexclash/server/internal/action"
	"hexclash/server/internal/combat"
	"hexclash/server/internal/events"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/pools"
	"hexclash/server/internal/status"
	"hexclash/server/internal/validate"
	loggingcombat "hexclash/server/logging/combat"
)

// Outcome is what a committed action produced.
type Outcome struct {
	// Action is the committed action in the form mirrors replay. An
	// authoritative attack comes back as resolve_attacks.
	Action action.Action
	// Clashes lists the clashes applied by the commit.
	Clashes []combat.ClashResult
	// Path is the walked route of a move.
	Path []hex.Coord
	// Pending is set when a mirror accepted an attack it cannot resolve
	// locally and waits for the authority's replay.
	Pending bool
}

// MovePayload is published with events.EntityMoved.
type MovePayload struct {
	From hex.Coord   `json:"from"`
	To   hex.Coord   `json:"to"`
	Path []hex.Coord `json:"path"`
	Cost float64     `json:"cost"`
}

// Commit validates act for actorID and applies it. The authority resolves
// attacks itself and rejects resolve_attacks; a mirror replays
// resolve_attacks and only predicts the rest.
func (m *Match) Commit(ctx context.Context, actorID int64, act action.Action) (Outcome, error) {
	m.mu.Lock()
	outcome, err := m.commitLocked(ctx, actorID, act)
	pending := m.takePending()
	m.mu.Unlock()
	m.flush(pending)
	return outcome, err
}

func (m *Match) commitLocked(ctx context.Context, actorID int64, act action.Action) (outcome Outcome, err error) {
	ctx, span := m.tracer.Start(ctx, "match.commit", trace.WithAttributes(
		attribute.String("match.id", m.cfg.ID),
		attribute.Int64("match.turn", int64(m.turn)),
		attribute.Int64("action.actor", actorID),
		attribute.String("action.kind", string(act.Kind)),
		attribute.Bool("match.authority", m.cfg.Authority),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(validate.ReasonOf(err)))
		}
		span.End()
	}()

	if m.over {
		return Outcome{}, validate.Reject(validate.RejectMatchOver, "match %s finished", m.cfg.ID)
	}
	if act.Kind == action.KindResolveAttacks && !m.cfg.Authority {
		if err := act.WellFormed(); err != nil {
			return Outcome{}, validate.Reject(validate.RejectMalformed, "%v", err)
		}
		return m.replayLocked(ctx, act)
	}
	if err := m.rules.Check(matchView{m}, actorID, act); err != nil {
		return Outcome{}, err
	}

	switch act.Kind {
	case action.KindMove:
		outcome, err = m.commitMove(ctx, actorID, *act.Move)
	case action.KindAttack:
		outcome, err = m.commitAttack(ctx, actorID, *act.Attack)
	case action.KindStyleSwitch:
		outcome, err = m.commitStyleSwitch(ctx, actorID, *act.StyleSwitch)
	default:
		err = validate.Reject(validate.RejectMalformed, "unknown kind %q", act.Kind)
	}
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Action.Kind == "" {
		outcome.Action = act
	}
	m.touch()
	if !outcome.Pending {
		m.emit(events.Event{Kind: events.ActionCommitted, Actor: actorID, Payload: outcome.Action})
	}
	return outcome, nil
}

func (m *Match) commitMove(ctx context.Context, actorID int64, move action.Move) (Outcome, error) {
	plan, err := m.rules.CheckMove(matchView{m}, actorID, move)
	if err != nil {
		return Outcome{}, err
	}
	c := m.arena[actorID]
	if err := c.Move(m.grid, move.To); err != nil {
		return Outcome{}, fmt.Errorf("match: move %d: %w", actorID, err)
	}
	c.Set(pools.Posture, c.Get(pools.Posture)-plan.Cost)
	m.applyFired(m.statuses[actorID].Dispatch(status.OnMove, 0))
	m.patchPosition(actorID, move.From, move.To)
	m.patchPools(c)
	m.emit(events.Event{Kind: events.EntityMoved, Actor: actorID, Payload: MovePayload{
		From: move.From,
		To:   move.To,
		Path: plan.Path,
		Cost: plan.Cost,
	}})
	m.checkDefeats(ctx, 0, "", actorID)
	return Outcome{Path: plan.Path}, nil
}

func (m *Match) commitAttack(ctx context.Context, actorID int64, attack action.Attack) (Outcome, error) {
	plan, err := m.rules.CheckAttack(matchView{m}, actorID, attack)
	if err != nil {
		return Outcome{}, err
	}
	if m.resolver == nil {
		return Outcome{Pending: true}, nil
	}
	attacker := m.participant(actorID)
	defender := m.participant(plan.Target.ID())
	result, err := m.resolver.Resolve(ctx, attacker, defender, plan.Ability)
	if err != nil {
		loggingcombat.Aborted(ctx, m.cfg.Publisher, m.turn, m.entityRef(actorID), loggingcombat.AbortedPayload{
			Ability: plan.Ability.ID,
			Reason:  err.Error(),
		}, nil)
		return Outcome{}, err
	}
	if err := m.applyClash(ctx, result); err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: action.NewResolveAttacks(result), Clashes: []combat.ClashResult{result}}, nil
}

func (m *Match) commitStyleSwitch(ctx context.Context, actorID int64, sw action.StyleSwitch) (Outcome, error) {
	c := m.arena[actorID]
	previous := c.Style()
	if err := c.SwitchStyle(sw.Index); err != nil {
		return Outcome{}, validate.Reject(validate.RejectInvalidStyle, "%v", err)
	}
	m.stripStylePassives(ctx, c, previous)
	m.applyStylePassives(ctx, c)
	m.journal.AppendPatch(newStylePatch(m.turn, actorID, sw.Index))
	m.emit(events.Event{Kind: events.StyleSwitched, Actor: actorID, Payload: c.Style().ID})
	return Outcome{}, nil
}

// replayLocked applies authority-resolved clashes on a mirror. A clash whose
// combatants are unknown locally is skipped without aborting the rest.
func (m *Match) replayLocked(ctx context.Context, act action.Action) (Outcome, error) {
	outcome := Outcome{Action: act}
	for _, result := range act.ResolveAttacks.Results {
		if err := m.applyClash(ctx, result); err != nil {
			m.policy.NoteDivergence("clash", result.Attacker())
			m.cfg.Logger.Printf("match %s: replay clash %d->%d: %v", m.cfg.ID, result.Attacker(), result.Defender(), err)
			continue
		}
		m.policy.NoteEvent()
		outcome.Clashes = append(outcome.Clashes, result)
	}
	m.touch()
	return outcome, nil
}

// participant builds the resolver's view of a combatant.
func (m *Match) participant(id int64) *combat.Participant {
	c, ok := m.arena[id]
	if !ok {
		return nil
	}
	return &combat.Participant{
		ID:      id,
		Derived: c.Derived(),
		Loadout: c.Loadout(),
		Mods:    m.statuses[id].Computed(),
		Pools:   c.PoolsRef(),
		Style:   c.Style(),
		Usage:   c.Usage(),
	}
}

// applyClash commits a resolved clash: ability usage, pool deltas, status
// applications and damage triggers, then the defeat checks.
func (m *Match) applyClash(ctx context.Context, result combat.ClashResult) error {
	attacker, ok := m.arena[result.Attacker()]
	if !ok {
		return fmt.Errorf("%w: attacker %d", combat.ErrUnresolvedCombatant, result.Attacker())
	}
	defender, ok := m.arena[result.Defender()]
	if !ok {
		return fmt.Errorf("%w: defender %d", combat.ErrUnresolvedCombatant, result.Defender())
	}
	ability := result.Sequence.Ability
	attacker.Usage().MarkActive(attacker.Style(), ability)
	if result.Reaction != nil {
		defender.Usage().MarkReactive(defender.Style(), result.Reaction.Ability)
	}

	deltas := result.Deltas()
	for _, id := range sortedIDs(deltas) {
		if c, ok := m.arena[id]; ok {
			c.Apply(deltas[id])
		}
	}
	for _, trigger := range result.Triggers {
		if trigger.Status == "" {
			continue
		}
		m.applyStatus(ctx, m.arena[trigger.Target], attacker.ID(), trigger.Status, "ability:"+ability, trigger.Stacks)
	}
	if result.Reaction != nil && result.Reaction.Status != "" {
		m.applyStatus(ctx, defender, defender.ID(), result.Reaction.Status, "reaction:"+result.Reaction.Ability, 1)
	}
	if result.FinalDamage() > 0 {
		m.applyFired(m.statuses[attacker.ID()].Dispatch(status.OnDealDamage, defender.ID()))
		m.applyFired(m.statuses[defender.ID()].Dispatch(status.OnTakeDamage, attacker.ID()))
		m.refreshModifiers(attacker)
		m.refreshModifiers(defender)
		m.patchStatus(attacker.ID())
		m.patchStatus(defender.ID())
	}

	if m.recorder != nil {
		m.recorder(ctx, result, defender.Get(pools.Health))
	}
	m.patchPools(attacker)
	m.patchPools(defender)
	m.emit(events.Event{Kind: events.ClashResolved, Actor: attacker.ID(), Target: defender.ID(), Payload: result})
	m.checkDefeats(ctx, attacker.ID(), ability, defender.ID(), attacker.ID())
	return nil
}
