package stats

import (
	"cmp"
	"maps"
	"math"
	"slices"
)

// StatID enumerates the twelve base attributes of a combatant.
type StatID uint8

const (
	StatStrength StatID = iota
	StatDexterity
	StatAcrobatics
	StatSpeed
	StatSize
	StatIntelligence
	StatSpirit
	StatFaith
	StatCharisma
	StatBeauty
	StatWillpower
	StatEndurance

	StatCount
)

// DerivedID enumerates the Reality values computed from attribute totals.
type DerivedID uint8

const (
	RealityHealth DerivedID = iota
	RealityForce
	RealityMana
	RealitySpirituality
	RealityDivinity
	RealityPrecision
	RealityManeuver
	RealityConvince
	RealityBravery

	DerivedCount
)

// Layer orders modifier application. Base attributes come from the
// template; the status layer carries the aggregate of active effects.
type Layer uint8

const (
	LayerBase Layer = iota
	LayerStatus

	LayerCount
)

// SourceKind identifies the origin of a stat modifier for deterministic ordering.
type SourceKind uint8

const (
	SourceKindUnknown SourceKind = iota
	SourceKindTemplate
	SourceKindStatusEffect
)

// SourceKey uniquely identifies the origin of a modifier inside a layer.
type SourceKey struct {
	Kind SourceKind
	ID   string
}

func compareSourceKeys(a, b SourceKey) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// ValueSet stores a fixed vector of attribute values.
type ValueSet [StatCount]float64

// DerivedSet stores reality values.
type DerivedSet [DerivedCount]float64

// StatDelta is one source's contribution: Add is summed into the running
// total, then the total is scaled by Mul.
type StatDelta struct {
	Add ValueSet
	Mul ValueSet
}

// NewStatDelta creates a delta with neutral multipliers.
func NewStatDelta() StatDelta {
	return StatDelta{Mul: unitValueSet()}
}

func (d StatDelta) equal(other StatDelta) bool {
	for i := range d.Add {
		if math.Abs(d.Add[i]-other.Add[i]) > epsilon || math.Abs(d.Mul[i]-other.Mul[i]) > epsilon {
			return false
		}
	}
	return true
}

// CommandStatChange is one atomic mutation. A positive ExpiresAfterTurn
// drops the source once Resolve sees a later turn.
type CommandStatChange struct {
	Layer            Layer
	Source           SourceKey
	Delta            StatDelta
	ExpiresAfterTurn uint64
	Remove           bool
}

const epsilon = 1e-9

type modifier struct {
	delta            StatDelta
	expiresAfterTurn uint64
}

// Component owns an actor's layered attributes and caches the totals and
// realities computed from them.
type Component struct {
	sources      [LayerCount]map[SourceKey]modifier
	totals       ValueSet
	derived      DerivedSet
	dirty        bool
	version      uint64
	resolvedTurn uint64
}

// NewComponent constructs a component seeded with the provided base values.
func NewComponent(base ValueSet) Component {
	var c Component
	c.setBase(base)
	return c
}

func (c *Component) setBase(base ValueSet) {
	delta := NewStatDelta()
	delta.Add = base
	c.put(LayerBase, SourceKey{Kind: SourceKindTemplate, ID: "base"}, modifier{delta: delta})
}

// Apply mutates the component according to the provided command.
func (c *Component) Apply(change CommandStatChange) {
	if c == nil || change.Layer >= LayerCount {
		return
	}
	if change.Remove {
		if _, ok := c.sources[change.Layer][change.Source]; ok {
			delete(c.sources[change.Layer], change.Source)
			c.dirty = true
		}
		return
	}
	c.put(change.Layer, change.Source, modifier{delta: change.Delta, expiresAfterTurn: change.ExpiresAfterTurn})
}

func (c *Component) put(layer Layer, key SourceKey, next modifier) {
	if c.sources[layer] == nil {
		c.sources[layer] = make(map[SourceKey]modifier)
	}
	if current, ok := c.sources[layer][key]; ok && current.expiresAfterTurn == next.expiresAfterTurn && current.delta.equal(next.delta) {
		return
	}
	c.sources[layer][key] = next
	c.dirty = true
}

// Resolve drops expired sources and, when anything changed, folds the
// layers in order and recomputes the realities. Sources inside a layer
// apply in SourceKey order so equal inputs give equal totals.
func (c *Component) Resolve(turn uint64) {
	if c == nil {
		return
	}
	for layer := range c.sources {
		for key, mod := range c.sources[layer] {
			if mod.expiresAfterTurn > 0 && turn > mod.expiresAfterTurn {
				delete(c.sources[layer], key)
				c.dirty = true
			}
		}
	}
	if !c.dirty && c.resolvedTurn == turn {
		return
	}

	var total ValueSet
	for layer := range c.sources {
		entries := c.sources[layer]
		for _, key := range slices.SortedFunc(maps.Keys(entries), compareSourceKeys) {
			delta := entries[key].delta
			for i := range total {
				total[i] = (total[i] + delta.Add[i]) * delta.Mul[i]
			}
		}
	}

	c.totals = total
	c.derived = computeDerived(total)
	c.version++
	c.resolvedTurn = turn
	c.dirty = false
}

// Base returns the attribute values seeded at construction.
func (c *Component) Base() ValueSet {
	if c == nil {
		return ValueSet{}
	}
	return c.sources[LayerBase][SourceKey{Kind: SourceKindTemplate, ID: "base"}].delta.Add
}

// Totals returns the cached attribute totals.
func (c *Component) Totals() ValueSet {
	return c.totals
}

// GetTotal returns the cached total for a specific attribute.
func (c *Component) GetTotal(id StatID) float64 {
	if id >= StatCount {
		return 0
	}
	return c.totals[id]
}

// GetDerived returns the cached reality value.
func (c *Component) GetDerived(id DerivedID) float64 {
	if id >= DerivedCount {
		return 0
	}
	return c.derived[id]
}

// DerivedValues returns a copy of the derived set.
func (c *Component) DerivedValues() DerivedSet {
	return c.derived
}

// Version increments on each resolve that recomputed totals.
func (c *Component) Version() uint64 {
	return c.version
}

func unitValueSet() ValueSet {
	var vs ValueSet
	for i := range vs {
		vs[i] = 1
	}
	return vs
}
