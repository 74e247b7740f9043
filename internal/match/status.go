package match

import (
	"context"
	"sort"

	"hexclash/server/internal/abilities"
	"hexclash/server/internal/combatant"
	"hexclash/server/internal/events"
	"hexclash/server/internal/status"
	loggingstatus "hexclash/server/logging/status_effects"
)

func styleSource(style *abilities.Style) string {
	if style == nil {
		return ""
	}
	return "style:" + style.ID
}

// applyStatus runs the stacking rule on target and commits the OnApply delta.
func (m *Match) applyStatus(ctx context.Context, target *combatant.Combatant, caster int64, effect, source string, stacks int) {
	if target == nil || effect == "" {
		return
	}
	mgr := m.statuses[target.ID()]
	result, err := mgr.Apply(effect, status.ApplyContext{Caster: caster, Source: source, Stacks: stacks})
	payload := loggingstatus.AppliedPayload{
		StatusEffect: effect,
		Outcome:      string(result.Outcome),
		SourceID:     source,
		Stacks:       result.Instance.Stacks,
		Remaining:    result.Instance.Remaining,
		Permanent:    result.Instance.Permanent,
	}
	casterRef := m.entityRef(caster)
	targetRef := m.entityRef(target.ID())
	if err != nil {
		m.cfg.Logger.Printf("match %s: apply %s to %d: %v", m.cfg.ID, effect, target.ID(), err)
		loggingstatus.Rejected(ctx, m.cfg.Publisher, m.turn, casterRef, targetRef, payload, nil)
		return
	}

	switch result.Outcome {
	case status.OutcomeApplied, status.OutcomeReplaced:
		loggingstatus.Applied(ctx, m.cfg.Publisher, m.turn, casterRef, targetRef, payload, nil)
	case status.OutcomeStacked, status.OutcomeRefreshed:
		loggingstatus.Stacked(ctx, m.cfg.Publisher, m.turn, casterRef, targetRef, payload, nil)
	default:
		loggingstatus.Rejected(ctx, m.cfg.Publisher, m.turn, casterRef, targetRef, payload, nil)
		return
	}
	if !result.Delta.Empty() {
		target.Apply(result.Delta)
	}
	m.refreshModifiers(target)
	m.touch()
	m.emit(events.Event{Kind: events.StatusApplied, Actor: caster, Target: target.ID(), Payload: result.Instance})
	m.patchStatus(target.ID())
}

// noteRemoval commits the OnRemove delta of a purged instance.
func (m *Match) noteRemoval(ctx context.Context, target *combatant.Combatant, removal status.Removal) {
	if target == nil {
		return
	}
	if !removal.Delta.Empty() {
		target.Apply(removal.Delta)
	}
	loggingstatus.Removed(ctx, m.cfg.Publisher, m.turn, m.entityRef(target.ID()), loggingstatus.RemovedPayload{
		StatusEffect: removal.Instance.EffectID,
		Reason:       removal.Reason,
		Stacks:       removal.Instance.Stacks,
	}, nil)
	m.emit(events.Event{Kind: events.StatusRemoved, Target: target.ID(), Payload: removal.Instance})
}

// applyFired commits trigger deltas to their recipients.
func (m *Match) applyFired(fired []status.Fired) []int64 {
	touched := make([]int64, 0, len(fired))
	for _, f := range fired {
		recipient, ok := m.arena[f.RecipientID]
		if !ok || f.Delta.Empty() {
			continue
		}
		recipient.Apply(f.Delta)
		touched = append(touched, recipient.ID())
		m.patchPools(recipient)
	}
	return touched
}

// applyStylePassives grants the equipped style's passives as permanent
// effects tagged with the style so a switch can strip them.
func (m *Match) applyStylePassives(ctx context.Context, c *combatant.Combatant) {
	style := c.Style()
	if style == nil {
		return
	}
	for _, passive := range style.Passives {
		m.applyStatus(ctx, c, c.ID(), passive.Status, styleSource(style), passive.Stacks)
	}
}

// stripStylePassives removes everything granted by style.
func (m *Match) stripStylePassives(ctx context.Context, c *combatant.Combatant, style *abilities.Style) {
	removed := m.statuses[c.ID()].RemoveSource(styleSource(style))
	for _, removal := range removed {
		m.noteRemoval(ctx, c, removal)
	}
	if len(removed) > 0 {
		m.refreshModifiers(c)
		m.patchStatus(c.ID())
	}
}

func sortedIDs[V any](in map[int64]V) []int64 {
	ids := make([]int64, 0, len(in))
	for id := range in {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
