package combat

import (
	"hexclash/server/internal/abilities"
	"hexclash/server/internal/equipment"
	"hexclash/server/internal/pools"
	"hexclash/server/internal/status"
	"hexclash/server/stats"
)

// Participant is the read-only view of a combatant the resolver needs.
type Participant struct {
	ID      int64
	Derived stats.DerivedSet
	Loadout equipment.Loadout
	Mods    status.Modifications
	Pools   *pools.Pools
	Style   *abilities.Style
	Usage   *abilities.Usage
}

func (p *Participant) hitBonus() float64 {
	return p.Loadout.HitBonus() +
		0.5*p.Derived[stats.RealityManeuver] +
		0.5*p.Derived[stats.RealityPrecision] +
		p.Mods.PassiveValue(status.PassiveHit)
}

func (p *Participant) penetrationBonus() float64 {
	return p.Loadout.PenetrationBonus() +
		0.67*p.Derived[stats.RealityForce] +
		0.33*p.Derived[stats.RealityPrecision] +
		p.Mods.PassiveValue(status.PassivePenetration)
}

func (p *Participant) dv() float64 {
	return p.Loadout.DV() + p.Mods.PassiveValue(status.PassiveDV)
}

func (p *Participant) pv() float64 {
	return p.Loadout.PV() + p.Mods.PassiveValue(status.PassivePV)
}
