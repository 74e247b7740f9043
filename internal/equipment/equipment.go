// Package equipment models the weapon and armour profiles that feed the
// clash math. Equipment is read-only while a clash is being resolved.
package equipment

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"hexclash/server/stats"
)

// Potency names a damage source an ability can draw on.
type Potency string

const (
	PotencySlash    Potency = "slash"
	PotencyPierce   Potency = "pierce"
	PotencyBlunt    Potency = "blunt"
	PotencyArcane   Potency = "arcane"
	PotencyHoly     Potency = "holy"
	PotencySpirit   Potency = "spirit"
	PotencyPhysical Potency = "physical"
)

// DamageType names a damage channel armour can resist.
type DamageType string

const (
	DamageSlash  DamageType = "slash"
	DamagePierce DamageType = "pierce"
	DamageBlunt  DamageType = "blunt"
	DamageFire   DamageType = "fire"
	DamageIce    DamageType = "ice"
	DamageArcane DamageType = "arcane"
	DamageHoly   DamageType = "holy"
	DamageTrue   DamageType = "true"

	// DamageUntyped carries damage from abilities with no type weights.
	DamageUntyped DamageType = "untyped"
)

// MaxResistance bounds a single resistance so no channel becomes immune.
const MaxResistance = 0.9

// Translation maps a reality value into potency damage: the damage array
// entry i is Base[i] + Scale[i]*reality.
type Translation struct {
	Reality stats.DerivedID `json:"-" yaml:"-"`
	// RealityName is the wire form of Reality ("force", "mana", ...).
	RealityName string    `json:"reality" yaml:"reality" jsonschema:"required"`
	Base        []float64 `json:"base" yaml:"base"`
	Scale       []float64 `json:"scale" yaml:"scale"`
}

// Resolve binds RealityName to its enum value.
func (t *Translation) Resolve() error {
	if t == nil {
		return nil
	}
	id, ok := stats.ParseReality(t.RealityName)
	if !ok {
		return fmt.Errorf("equipment: unknown reality %q", t.RealityName)
	}
	t.Reality = id
	return nil
}

// Damage evaluates the translation against a set of derived values.
func (t Translation) Damage(derived stats.DerivedSet) []float64 {
	n := len(t.Base)
	if len(t.Scale) > n {
		n = len(t.Scale)
	}
	if n == 0 {
		return nil
	}
	reality := 0.0
	if t.Reality < stats.DerivedCount {
		reality = derived[t.Reality]
	}
	out := make([]float64, n)
	for i := range out {
		base := 0.0
		if i < len(t.Base) {
			base = t.Base[i]
		}
		scale := 0.0
		if i < len(t.Scale) {
			scale = t.Scale[i]
		}
		v := base + scale*reality
		if v < 0 {
			v = 0
		}
		out[i] = v
	}
	return out
}

// Weapon carries the hit and penetration bonuses plus the potency table.
type Weapon struct {
	ID               string                  `json:"id" yaml:"id" jsonschema:"required"`
	Name             string                  `json:"name" yaml:"name"`
	HitBonus         float64                 `json:"hitBonus" yaml:"hitBonus"`
	PenetrationBonus float64                 `json:"penetrationBonus" yaml:"penetrationBonus"`
	Potencies        map[Potency]Translation `json:"potencies" yaml:"potencies"`
}

// Validate resolves every translation and checks identifiers.
func (w *Weapon) Validate() error {
	if w == nil {
		return fmt.Errorf("equipment: nil weapon")
	}
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("equipment: weapon id required")
	}
	for potency, translation := range w.Potencies {
		if err := translation.Resolve(); err != nil {
			return fmt.Errorf("weapon %s potency %s: %w", w.ID, potency, err)
		}
		w.Potencies[potency] = translation
	}
	return nil
}

// PotencyDamage returns the damage array for potency, or nil when the weapon
// does not translate it.
func (w *Weapon) PotencyDamage(potency Potency, derived stats.DerivedSet) []float64 {
	if w == nil || len(w.Potencies) == 0 {
		return nil
	}
	translation, ok := w.Potencies[potency]
	if !ok {
		return nil
	}
	return translation.Damage(derived)
}

// Armour carries the two clash thresholds and per-type resistances.
type Armour struct {
	ID          string                 `json:"id" yaml:"id" jsonschema:"required"`
	Name        string                 `json:"name" yaml:"name"`
	DV          float64                `json:"dv" yaml:"dv"`
	PV          float64                `json:"pv" yaml:"pv"`
	Resistances map[DamageType]float64 `json:"resistances" yaml:"resistances"`
}

// Validate clamps resistances to their domain.
func (a *Armour) Validate() error {
	if a == nil {
		return fmt.Errorf("equipment: nil armour")
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("equipment: armour id required")
	}
	for kind, value := range a.Resistances {
		a.Resistances[kind] = ClampResistance(value)
	}
	return nil
}

// Resistance returns the resistance against kind. Nil armour resists nothing.
func (a *Armour) Resistance(kind DamageType) float64 {
	if a == nil || kind == DamageTrue {
		return 0
	}
	return ClampResistance(a.Resistances[kind])
}

// Reduce applies resistance multiplicatively to each damage component and
// returns the resisted components.
func (a *Armour) Reduce(components map[DamageType]float64) map[DamageType]float64 {
	if len(components) == 0 {
		return nil
	}
	out := make(map[DamageType]float64, len(components))
	for kind, value := range components {
		if value <= 0 {
			continue
		}
		out[kind] = value * (1 - a.Resistance(kind))
	}
	return out
}

// ClampResistance keeps a resistance inside [-1, MaxResistance]. Negative
// values are vulnerabilities.
func ClampResistance(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	if value > MaxResistance {
		return MaxResistance
	}
	if value < -1 {
		return -1
	}
	return value
}

// Sum totals damage components in a stable order.
func Sum(components map[DamageType]float64) float64 {
	if len(components) == 0 {
		return 0
	}
	kinds := make([]string, 0, len(components))
	for kind := range components {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	total := 0.0
	for _, kind := range kinds {
		total += components[DamageType(kind)]
	}
	return total
}

// Loadout is what a combatant carries into a clash.
type Loadout struct {
	Weapon *Weapon
	Armour *Armour
}

// HitBonus returns the weapon hit bonus, zero when unarmed.
func (l Loadout) HitBonus() float64 {
	if l.Weapon == nil {
		return 0
	}
	return l.Weapon.HitBonus
}

// PenetrationBonus returns the weapon penetration bonus, zero when unarmed.
func (l Loadout) PenetrationBonus() float64 {
	if l.Weapon == nil {
		return 0
	}
	return l.Weapon.PenetrationBonus
}

// DV returns the armour defense value, zero when unarmoured.
func (l Loadout) DV() float64 {
	if l.Armour == nil {
		return 0
	}
	return l.Armour.DV
}

// PV returns the armour penetration threshold, zero when unarmoured.
func (l Loadout) PV() float64 {
	if l.Armour == nil {
		return 0
	}
	return l.Armour.PV
}
