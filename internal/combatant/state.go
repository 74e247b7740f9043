package combatant

import (
	"hexclash/server/internal/abilities"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/pools"
	"hexclash/server/stats"
)

// State is the replicated view of a combatant.
type State struct {
	ID            int64
	Name          string
	Team          string
	Template      string
	Bot           bool
	Attributes    stats.ValueSet
	Position      hex.Coord
	Placed        bool
	Pools         [pools.ResourceCount]float64
	MaxHealth     float64
	Stance        abilities.Stance
	StyleIndex    int
	UsedActives   []string
	UsedReactives []string
	Version       uint64
}

// State captures the combatant for replication.
func (c *Combatant) State() State {
	if c == nil {
		return State{}
	}
	usedActive, usedReactive := c.usage.Snapshot()
	return State{
		ID:            c.id,
		Name:          c.name,
		Team:          c.team,
		Template:      c.template,
		Bot:           c.bot,
		Attributes:    c.stats.Base(),
		Position:      c.position,
		Placed:        c.placed,
		Pools:         c.pools.Values(),
		MaxHealth:     c.pools.MaxHealth(),
		Stance:        c.stance,
		StyleIndex:    c.styleIndex,
		UsedActives:   usedActive,
		UsedReactives: usedReactive,
		Version:       c.version,
	}
}

// Restore overwrites the mutable parts of the combatant with s. Identity
// fields are left alone; the caller is responsible for grid occupancy.
func (c *Combatant) Restore(s State) {
	if c == nil || s.ID != c.id {
		return
	}
	if s.StyleIndex >= 0 && s.StyleIndex < len(c.styles) {
		c.styleIndex = s.StyleIndex
	}
	c.pools.SetMaxHealth(s.MaxHealth)
	for r := pools.Resource(0); r < pools.ResourceCount; r++ {
		c.pools.Set(r, s.Pools[r])
	}
	c.stance = s.Stance
	c.position = s.Position
	c.placed = s.Placed
	c.usage.Restore(s.UsedActives, s.UsedReactives)
	c.version = s.Version
}
