// Package pools holds the mutable resource pools of a combatant behind an
// enum-keyed getter/setter dispatch.
package pools

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Resource names a mutable pool.
type Resource uint8

const (
	Health Resource = iota
	Stamina
	Organization
	Posture
	Mana

	ResourceCount
)

var resourceNames = [ResourceCount]string{
	Health:       "hp",
	Stamina:      "stamina",
	Organization: "org",
	Posture:      "posture",
	Mana:         "mana",
}

func (r Resource) String() string {
	if r >= ResourceCount {
		return fmt.Sprintf("resource(%d)", r)
	}
	return resourceNames[r]
}

// Valid reports whether r names a known pool.
func (r Resource) Valid() bool {
	return r < ResourceCount
}

// Parse resolves a wire name ("hp", "posture", ...) to a Resource.
func Parse(name string) (Resource, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "health":
		return Health, true
	case "organization", "morale":
		return Organization, true
	case "readiness":
		return Posture, true
	}
	for i, candidate := range resourceNames {
		if candidate == name {
			return Resource(i), true
		}
	}
	return 0, false
}

// MarshalText renders the wire name.
func (r Resource) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("pools: invalid resource %d", r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText parses a wire name.
func (r *Resource) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("pools: unknown resource %q", string(text))
	}
	*r = parsed
	return nil
}

// Pools stores the current value of each resource. Health is additionally
// capped by MaxHealth; every pool floors at zero.
type Pools struct {
	values    [ResourceCount]float64
	maxHealth float64
}

// New seeds pools at full health.
func New(maxHealth float64) Pools {
	p := Pools{}
	p.SetMaxHealth(maxHealth)
	p.values[Health] = p.maxHealth
	return p
}

// MaxHealth returns the derived health cap.
func (p *Pools) MaxHealth() float64 {
	return p.maxHealth
}

// SetMaxHealth updates the health cap and re-clamps current health.
func (p *Pools) SetMaxHealth(max float64) {
	if math.IsNaN(max) || math.IsInf(max, 0) || max < 0 {
		max = 0
	}
	p.maxHealth = max
	p.values[Health] = p.clamp(Health, p.values[Health])
}

// Get returns the value of a pool; unknown resources read as zero.
func (p *Pools) Get(r Resource) float64 {
	if !r.Valid() {
		return 0
	}
	return p.values[r]
}

// Set writes a clamped value and reports the value actually stored.
func (p *Pools) Set(r Resource, value float64) (float64, bool) {
	if !r.Valid() || math.IsNaN(value) || math.IsInf(value, 0) {
		return p.Get(r), false
	}
	p.values[r] = p.clamp(r, value)
	return p.values[r], true
}

// Add shifts a pool by delta with clamping.
func (p *Pools) Add(r Resource, delta float64) float64 {
	stored, _ := p.Set(r, p.Get(r)+delta)
	return stored
}

// Apply adds every entry of d and returns the deltas actually applied after
// clamping.
func (p *Pools) Apply(d Delta) Delta {
	if len(d) == 0 {
		return nil
	}
	applied := make(Delta, len(d))
	for _, r := range d.Keys() {
		before := p.Get(r)
		after := p.Add(r, d[r])
		if after != before {
			applied[r] = after - before
		}
	}
	return applied
}

// Values returns a copy of every pool.
func (p *Pools) Values() [ResourceCount]float64 {
	return p.values
}

func (p *Pools) clamp(r Resource, value float64) float64 {
	if value < 0 {
		value = 0
	}
	if r == Health && value > p.maxHealth {
		value = p.maxHealth
	}
	return value
}

// Delta is a partial resource update keyed by pool.
type Delta map[Resource]float64

// Keys returns the resources in enum order.
func (d Delta) Keys() []Resource {
	keys := make([]Resource, 0, len(d))
	for r := range d {
		if r.Valid() {
			keys = append(keys, r)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Merge adds other into a copy of d.
func (d Delta) Merge(other Delta) Delta {
	if len(d) == 0 && len(other) == 0 {
		return nil
	}
	out := make(Delta, len(d)+len(other))
	for r, v := range d {
		out[r] += v
	}
	for r, v := range other {
		out[r] += v
	}
	return out
}

// Scale multiplies every entry by factor.
func (d Delta) Scale(factor float64) Delta {
	if len(d) == 0 {
		return nil
	}
	out := make(Delta, len(d))
	for r, v := range d {
		out[r] = v * factor
	}
	return out
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}
