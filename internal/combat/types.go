// Package combat resolves clashes between an attacker and a defender. The
// resolver never mutates combatants: it returns a ClashResult that the match
// commits in one step.
package combat

import (
	"errors"

	"hexclash/server/internal/abilities"
	"hexclash/server/internal/pools"
)

const (
	// MaxDamage and MinDamage bound the final damage of a clash.
	MaxDamage = 1000.0
	MinDamage = 0.0
	// MinHitDamage is the floor for any strike that passes both checks.
	MinHitDamage = 1.0
	// CritMultiplier scales damage on a critical strike.
	CritMultiplier = 2.0
)

var (
	// ErrUnresolvedCombatant reports a clash whose attacker or defender could
	// not be resolved to a live combatant.
	ErrUnresolvedCombatant = errors.New("combat: unresolved combatant")
	// ErrInvalidAbility reports a clash with no usable ability.
	ErrInvalidAbility = errors.New("combat: invalid ability")
)

// Mode selects the resolution algorithm for a match.
type Mode string

const (
	ModeStrike Mode = "strike"
	ModeSingle Mode = "single"
)

// ParseMode resolves a mode name, defaulting to the strike sequence.
func ParseMode(name string) (Mode, bool) {
	switch Mode(name) {
	case "", ModeStrike:
		return ModeStrike, true
	case ModeSingle:
		return ModeSingle, true
	}
	return ModeStrike, false
}

// Check names the threshold a roll was compared against.
type Check string

const (
	CheckDV Check = "DV"
	CheckPV Check = "PV"
)

// Tag classifies a roll.
type Tag string

const (
	TagMiss  Tag = "MISS"
	TagCling Tag = "CLING"
	TagHit   Tag = "HIT"
	TagCrit  Tag = "CRIT"
)

func (t Tag) rank() int {
	switch t {
	case TagCling:
		return 1
	case TagHit:
		return 2
	case TagCrit:
		return 3
	}
	return 0
}

// Strike is one die roll of a sequence.
type Strike struct {
	Die     int     `json:"die" msgpack:"die"`
	Faces   int     `json:"faces" msgpack:"faces"`
	Check   Check   `json:"check" msgpack:"check"`
	Target  float64 `json:"target" msgpack:"target"`
	Roll    int     `json:"roll" msgpack:"roll"`
	Bonus   float64 `json:"bonus" msgpack:"bonus"`
	Outcome Tag     `json:"outcome" msgpack:"outcome"`
	Damage  float64 `json:"damage,omitempty" msgpack:"damage,omitempty"`
}

// StrikeSequence is the ordered roll log of one attack.
type StrikeSequence struct {
	Attacker int64    `json:"attacker" msgpack:"attacker"`
	Defender int64    `json:"defender" msgpack:"defender"`
	Ability  string   `json:"ability" msgpack:"ability"`
	Strikes  []Strike `json:"strikes" msgpack:"strikes"`
}

// TriggerModify is a recorded trigger outcome, committed with the clash.
type TriggerModify struct {
	Hook   abilities.Hook `json:"hook" msgpack:"hook"`
	Die    int            `json:"die" msgpack:"die"`
	Target int64          `json:"target" msgpack:"target"`
	Delta  pools.Delta    `json:"delta,omitempty" msgpack:"delta,omitempty"`
	Status string         `json:"status,omitempty" msgpack:"status,omitempty"`
	Stacks int            `json:"stacks,omitempty" msgpack:"stacks,omitempty"`
}

// ReactionUpdate is the outcome of the defender's reactive ability.
type ReactionUpdate struct {
	Ability  string      `json:"ability" msgpack:"ability"`
	Success  bool        `json:"success" msgpack:"success"`
	Chance   float64     `json:"chance" msgpack:"chance"`
	Roll     int         `json:"roll" msgpack:"roll"`
	Attacker pools.Delta `json:"attacker,omitempty" msgpack:"attacker,omitempty"`
	Defender pools.Delta `json:"defender,omitempty" msgpack:"defender,omitempty"`
	// Damage, when set, replaces the clash damage.
	Damage *float64 `json:"damage,omitempty" msgpack:"damage,omitempty"`
	Status string   `json:"status,omitempty" msgpack:"status,omitempty"`
}

// ClashResult aggregates one resolved attack.
type ClashResult struct {
	Mode     Mode            `json:"mode" msgpack:"mode"`
	Sequence StrikeSequence  `json:"sequence" msgpack:"sequence"`
	Damage   float64         `json:"damage" msgpack:"damage"`
	Outcome  Tag             `json:"outcome" msgpack:"outcome"`
	Cost     pools.Delta     `json:"cost,omitempty" msgpack:"cost,omitempty"`
	Reaction *ReactionUpdate `json:"reaction,omitempty" msgpack:"reaction,omitempty"`
	Triggers []TriggerModify `json:"triggers,omitempty" msgpack:"triggers,omitempty"`
}

// Attacker returns the attacking combatant id.
func (r ClashResult) Attacker() int64 { return r.Sequence.Attacker }

// Defender returns the defending combatant id.
func (r ClashResult) Defender() int64 { return r.Sequence.Defender }

// FinalDamage applies the reaction override and clamps to [MinDamage, MaxDamage].
func (r ClashResult) FinalDamage() float64 {
	damage := r.Damage
	if r.Reaction != nil && r.Reaction.Damage != nil {
		damage = *r.Reaction.Damage
	}
	return ClampDamage(damage)
}

// Deltas folds the clash into per-combatant resource updates: attack cost,
// damage, reaction deltas and trigger deltas. Status applications are left
// to the caller.
func (r ClashResult) Deltas() map[int64]pools.Delta {
	out := make(map[int64]pools.Delta, 2)
	merge := func(id int64, d pools.Delta) {
		if id == 0 || len(d) == 0 {
			return
		}
		out[id] = out[id].Merge(d)
	}
	merge(r.Attacker(), r.Cost)
	if damage := r.FinalDamage(); damage > 0 {
		merge(r.Defender(), pools.Delta{pools.Health: -damage})
	}
	if r.Reaction != nil {
		merge(r.Attacker(), r.Reaction.Attacker)
		merge(r.Defender(), r.Reaction.Defender)
	}
	for _, t := range r.Triggers {
		merge(t.Target, t.Delta)
	}
	return out
}

// ClampDamage bounds damage to [MinDamage, MaxDamage].
func ClampDamage(damage float64) float64 {
	if !(damage > MinDamage) {
		return MinDamage
	}
	if damage > MaxDamage {
		return MaxDamage
	}
	return damage
}
