package abilities

import (
	"fmt"

	"hexclash/server/internal/pools"
	"hexclash/server/stats"
)

// Hook names a point in the clash where triggers fire.
type Hook string

const (
	HookBeforeAttack Hook = "before_attack"
	HookAfterAttack  Hook = "after_attack"
	HookBeforeStrike Hook = "before_strike"
	HookAfterStrike  Hook = "after_strike"
)

// Valid reports whether h is one of the four clash hooks.
func (h Hook) Valid() bool {
	switch h {
	case HookBeforeAttack, HookAfterAttack, HookBeforeStrike, HookAfterStrike:
		return true
	}
	return false
}

// TriggerKind selects how a trigger descriptor is interpreted.
type TriggerKind string

const (
	// TriggerResourceDelta shifts a pool by a fixed amount, optionally
	// scaled by a reality of the side named in ScaleFrom.
	TriggerResourceDelta TriggerKind = "resource_delta"
	// TriggerApplyStatus applies a status effect to the target side.
	TriggerApplyStatus TriggerKind = "apply_status"
)

// Side selects which participant of the clash a trigger touches.
type Side string

const (
	SideAttacker Side = "attacker"
	SideDefender Side = "defender"
)

// Trigger is a data-only hook effect. The combat dispatcher interprets it
// into a TriggerModify record without running user code.
type Trigger struct {
	Kind     TriggerKind    `json:"kind" yaml:"kind" jsonschema:"required"`
	Target   Side           `json:"target" yaml:"target" jsonschema:"required"`
	Resource pools.Resource `json:"resource,omitempty" yaml:"resource,omitempty"`
	Amount   float64        `json:"amount,omitempty" yaml:"amount,omitempty"`
	// ScaleFrom and Reality make Amount a coefficient of that side's reality.
	ScaleFrom Side   `json:"scaleFrom,omitempty" yaml:"scaleFrom,omitempty"`
	Reality   string `json:"reality,omitempty" yaml:"reality,omitempty"`
	Status    string `json:"status,omitempty" yaml:"status,omitempty"`
	Stacks    int    `json:"stacks,omitempty" yaml:"stacks,omitempty"`
	// OnlyOnHit limits strike-level triggers to strikes that dealt damage.
	OnlyOnHit bool `json:"onlyOnHit,omitempty" yaml:"onlyOnHit,omitempty"`
}

// Validate checks the descriptor is interpretable.
func (t Trigger) Validate() error {
	if t.Target != SideAttacker && t.Target != SideDefender {
		return fmt.Errorf("trigger target %q invalid", t.Target)
	}
	switch t.Kind {
	case TriggerResourceDelta:
		if !t.Resource.Valid() {
			return fmt.Errorf("trigger resource %d invalid", t.Resource)
		}
		if t.Reality != "" {
			if _, ok := stats.ParseReality(t.Reality); !ok {
				return fmt.Errorf("trigger reality %q unknown", t.Reality)
			}
			if t.ScaleFrom != SideAttacker && t.ScaleFrom != SideDefender {
				return fmt.Errorf("trigger scaleFrom %q invalid", t.ScaleFrom)
			}
		}
	case TriggerApplyStatus:
		if t.Status == "" {
			return fmt.Errorf("trigger status required")
		}
	default:
		return fmt.Errorf("trigger kind %q unknown", t.Kind)
	}
	return nil
}

// Evaluate returns the resource delta for a resource trigger given the
// derived values of both sides. Status triggers return nil.
func (t Trigger) Evaluate(attacker, defender stats.DerivedSet) pools.Delta {
	if t.Kind != TriggerResourceDelta || !t.Resource.Valid() {
		return nil
	}
	amount := t.Amount
	if t.Reality != "" {
		if id, ok := stats.ParseReality(t.Reality); ok {
			source := attacker
			if t.ScaleFrom == SideDefender {
				source = defender
			}
			amount *= source[id]
		}
	}
	if amount == 0 {
		return nil
	}
	return pools.Delta{t.Resource: amount}
}
