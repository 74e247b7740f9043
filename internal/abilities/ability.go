// Package abilities defines the active and reactive abilities a fighting
// style grants, plus the availability bookkeeping for a style in play.
package abilities

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"hexclash/server/internal/equipment"
	"hexclash/server/internal/pools"
	"hexclash/server/stats"
)

// Kind tags the ability union.
type Kind string

const (
	KindActive   Kind = "active"
	KindReactive Kind = "reactive"
)

var (
	// ErrInvalidAbility reports an ability that cannot be used in a clash.
	ErrInvalidAbility = errors.New("abilities: invalid ability")
)

// Cost is what using an ability spends.
type Cost struct {
	Posture float64 `json:"posture,omitempty" yaml:"posture,omitempty"`
	Mana    float64 `json:"mana,omitempty" yaml:"mana,omitempty"`
}

// Delta returns the negative pool delta that pays the cost.
func (c Cost) Delta() pools.Delta {
	d := pools.Delta{}
	if c.Posture > 0 {
		d[pools.Posture] = -c.Posture
	}
	if c.Mana > 0 {
		d[pools.Mana] = -c.Mana
	}
	if len(d) == 0 {
		return nil
	}
	return d
}

// Affordable reports whether the pools can pay the cost.
func (c Cost) Affordable(p *pools.Pools) bool {
	if p == nil {
		return false
	}
	return p.Get(pools.Posture) >= c.Posture && p.Get(pools.Mana) >= c.Mana
}

// Range is an inclusive hex-distance window.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Contains reports whether distance d is inside the window.
func (r Range) Contains(d int) bool {
	return d >= r.Min && d <= r.Max
}

// Active is an ability the acting combatant declares.
type Active struct {
	ID        string    `json:"id" yaml:"id" jsonschema:"required"`
	Name      string    `json:"name" yaml:"name"`
	Animation string    `json:"animation,omitempty" yaml:"animation,omitempty"`
	Cost      Cost      `json:"cost" yaml:"cost"`
	Stance    Stance    `json:"stance" yaml:"stance"`
	Direction Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
	Range     Range     `json:"range" yaml:"range"`
	// Dice is the ordered pool, each entry the number of die faces.
	Dice []int `json:"dice" yaml:"dice" jsonschema:"required"`
	// Potencies and DamageTypes are percentage weights.
	Potencies   map[equipment.Potency]float64    `json:"potencies" yaml:"potencies"`
	DamageTypes map[equipment.DamageType]float64 `json:"damageTypes" yaml:"damageTypes"`
	Triggers    map[Hook][]Trigger               `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	// HitChance and CritChance drive the single-roll resolution mode.
	HitChance  float64 `json:"hitChance,omitempty" yaml:"hitChance,omitempty"`
	CritChance float64 `json:"critChance,omitempty" yaml:"critChance,omitempty"`
}

// Kind implements the ability union.
func (a *Active) Kind() Kind { return KindActive }

// Validate checks structural constraints on the ability.
func (a *Active) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil active", ErrInvalidAbility)
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: active id required", ErrInvalidAbility)
	}
	if len(a.Dice) == 0 {
		return fmt.Errorf("%w: %s has an empty dice pool", ErrInvalidAbility, a.ID)
	}
	for _, faces := range a.Dice {
		if faces < 2 {
			return fmt.Errorf("%w: %s die with %d faces", ErrInvalidAbility, a.ID, faces)
		}
	}
	if a.Range.Min < 0 || a.Range.Max < a.Range.Min {
		return fmt.Errorf("%w: %s range [%d,%d]", ErrInvalidAbility, a.ID, a.Range.Min, a.Range.Max)
	}
	if a.Cost.Posture < 0 || a.Cost.Mana < 0 {
		return fmt.Errorf("%w: %s negative cost", ErrInvalidAbility, a.ID)
	}
	for hook, triggers := range a.Triggers {
		if !hook.Valid() {
			return fmt.Errorf("%w: %s hook %q", ErrInvalidAbility, a.ID, hook)
		}
		for _, trigger := range triggers {
			if err := trigger.Validate(); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidAbility, a.ID, err)
			}
		}
	}
	if a.Direction == "" {
		a.Direction = DirectionAny
	}
	return nil
}

// TotalDamage sums, over every potency weight, the weapon-derived potency
// damage array scaled by weight/100.
func (a *Active) TotalDamage(weapon *equipment.Weapon, derived stats.DerivedSet) float64 {
	if a == nil || len(a.Potencies) == 0 {
		return 0
	}
	total := 0.0
	for _, potency := range sortedPotencies(a.Potencies) {
		weight := a.Potencies[potency]
		for _, v := range weapon.PotencyDamage(potency, derived) {
			total += v * weight / 100
		}
	}
	return total
}

// TotalDamageByType distributes TotalDamage across the damage-type weights.
// Weights are normalised when they do not sum to 100.
func (a *Active) TotalDamageByType(weapon *equipment.Weapon, derived stats.DerivedSet) map[equipment.DamageType]float64 {
	total := a.TotalDamage(weapon, derived)
	if total <= 0 {
		return nil
	}
	weightSum := 0.0
	for _, w := range a.DamageTypes {
		if w > 0 {
			weightSum += w
		}
	}
	if weightSum <= 0 {
		return map[equipment.DamageType]float64{equipment.DamageUntyped: total}
	}
	out := make(map[equipment.DamageType]float64, len(a.DamageTypes))
	for kind, w := range a.DamageTypes {
		if w <= 0 {
			continue
		}
		out[kind] = total * w / weightSum
	}
	return out
}

// TriggersFor returns the triggers registered at hook.
func (a *Active) TriggersFor(hook Hook) []Trigger {
	if a == nil || len(a.Triggers) == 0 {
		return nil
	}
	return a.Triggers[hook]
}

// InRange reports whether distance satisfies the range window.
func (a *Active) InRange(distance int) bool {
	return a != nil && a.Range.Contains(distance)
}

// ChanceFormula computes a reactive success percentage from both sides'
// realities: Base + DefenderScale*defender[reality] - AttackerScale*attacker[reality].
type ChanceFormula struct {
	Base          float64 `json:"base" yaml:"base"`
	Reality       string  `json:"reality,omitempty" yaml:"reality,omitempty"`
	DefenderScale float64 `json:"defenderScale,omitempty" yaml:"defenderScale,omitempty"`
	AttackerScale float64 `json:"attackerScale,omitempty" yaml:"attackerScale,omitempty"`
}

// Evaluate returns the clamped success chance in [0,100].
func (f ChanceFormula) Evaluate(attacker, defender stats.DerivedSet) float64 {
	chance := f.Base
	if id, ok := stats.ParseReality(f.Reality); ok && f.Reality != "" {
		chance += f.DefenderScale*defender[id] - f.AttackerScale*attacker[id]
	}
	if math.IsNaN(chance) || chance < 0 {
		return 0
	}
	if chance > 100 {
		return 100
	}
	return chance
}

// Outcome is the partial update a reaction produces.
type Outcome struct {
	Attacker pools.Delta `json:"attacker,omitempty" yaml:"attacker,omitempty"`
	Defender pools.Delta `json:"defender,omitempty" yaml:"defender,omitempty"`
	// DamageFactor, when set, overrides the clash damage with damage*factor.
	DamageFactor *float64 `json:"damageFactor,omitempty" yaml:"damageFactor,omitempty"`
	Status       string   `json:"status,omitempty" yaml:"status,omitempty"`
}

// Reactive is an ability the defender uses in response to an attack.
type Reactive struct {
	ID        string        `json:"id" yaml:"id" jsonschema:"required"`
	Name      string        `json:"name" yaml:"name"`
	Animation string        `json:"animation,omitempty" yaml:"animation,omitempty"`
	Cost      Cost          `json:"cost" yaml:"cost"`
	Chance    ChanceFormula `json:"chance" yaml:"chance"`
	OnSuccess Outcome       `json:"onSuccess" yaml:"onSuccess"`
	OnFailure Outcome       `json:"onFailure" yaml:"onFailure"`
}

// Kind implements the ability union.
func (r *Reactive) Kind() Kind { return KindReactive }

// Validate checks structural constraints on the reaction.
func (r *Reactive) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil reactive", ErrInvalidAbility)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: reactive id required", ErrInvalidAbility)
	}
	if r.Cost.Posture < 0 || r.Cost.Mana < 0 {
		return fmt.Errorf("%w: %s negative cost", ErrInvalidAbility, r.ID)
	}
	if r.Chance.Reality != "" {
		if _, ok := stats.ParseReality(r.Chance.Reality); !ok {
			return fmt.Errorf("%w: %s chance reality %q", ErrInvalidAbility, r.ID, r.Chance.Reality)
		}
	}
	for _, factor := range []*float64{r.OnSuccess.DamageFactor, r.OnFailure.DamageFactor} {
		if factor != nil && (*factor < 0 || math.IsNaN(*factor)) {
			return fmt.Errorf("%w: %s damage factor must be >= 0", ErrInvalidAbility, r.ID)
		}
	}
	return nil
}

// SuccessChance evaluates the reaction's success percentage.
func (r *Reactive) SuccessChance(attacker, defender stats.DerivedSet) float64 {
	if r == nil {
		return 0
	}
	return r.Chance.Evaluate(attacker, defender)
}

// Ability is the tagged union of Active and Reactive.
type Ability interface {
	Kind() Kind
	Validate() error
}

func sortedPotencies(weights map[equipment.Potency]float64) []equipment.Potency {
	keys := make([]equipment.Potency, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
