package combat

import (
	"context"

	"hexclash/server/logging"
)

const (
	// EventClash is emitted once per resolved attack.
	EventClash logging.EventType = "combat.clash"
	// EventDamage is emitted when a clash deals damage to a target.
	EventDamage logging.EventType = "combat.damage"
	// EventDefeat is emitted when a combatant is defeated.
	EventDefeat logging.EventType = "combat.defeat"
	// EventReaction is emitted when a defender rolls a reactive ability.
	EventReaction logging.EventType = "combat.reaction"
	// EventAborted is emitted when a clash cannot be resolved.
	EventAborted logging.EventType = "combat.aborted"
)

// ClashPayload summarises a strike sequence.
type ClashPayload struct {
	Ability string  `json:"ability"`
	Mode    string  `json:"mode"`
	Outcome string  `json:"outcome"`
	Damage  float64 `json:"damage"`
	Strikes int     `json:"strikes"`
	Crits   int     `json:"crits,omitempty"`
	Clings  int     `json:"clings,omitempty"`
}

// DamagePayload captures the amount dealt to a single target.
type DamagePayload struct {
	Ability      string  `json:"ability,omitempty"`
	Amount       float64 `json:"amount"`
	TargetHealth float64 `json:"targetHealth"`
	StatusEffect string  `json:"statusEffect,omitempty"`
}

// DefeatPayload describes the context for a fatal blow.
type DefeatPayload struct {
	Ability      string `json:"ability,omitempty"`
	StatusEffect string `json:"statusEffect,omitempty"`
	Team         string `json:"team,omitempty"`
}

// ReactionPayload describes a reactive ability roll.
type ReactionPayload struct {
	Ability string  `json:"ability"`
	Success bool    `json:"success"`
	Chance  float64 `json:"chance"`
	Roll    int     `json:"roll"`
}

// AbortedPayload explains why a clash produced no result.
type AbortedPayload struct {
	Ability string `json:"ability,omitempty"`
	Reason  string `json:"reason"`
}

// Clash publishes a clash summary event.
func Clash(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, target logging.EntityRef, payload ClashPayload, extra map[string]any) {
	publish(ctx, pub, EventClash, logging.SeverityInfo, turn, actor, target, payload, extra)
}

// Damage publishes a combat damage event for a single target.
func Damage(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, target logging.EntityRef, payload DamagePayload, extra map[string]any) {
	publish(ctx, pub, EventDamage, logging.SeverityInfo, turn, actor, target, payload, extra)
}

// Defeat publishes a combat defeat event for the eliminated combatant.
func Defeat(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, target logging.EntityRef, payload DefeatPayload, extra map[string]any) {
	publish(ctx, pub, EventDefeat, logging.SeverityInfo, turn, actor, target, payload, extra)
}

// Reaction publishes a reactive ability roll. The actor is the defender.
func Reaction(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, target logging.EntityRef, payload ReactionPayload, extra map[string]any) {
	publish(ctx, pub, EventReaction, logging.SeverityDebug, turn, actor, target, payload, extra)
}

// Aborted publishes a warning for a clash that could not be resolved.
func Aborted(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload AbortedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAborted,
		Turn:     turn,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}

func publish(ctx context.Context, pub logging.Publisher, kind logging.EventType, severity logging.Severity, turn uint64, actor, target logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     kind,
		Turn:     turn,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: severity,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
