// Package combatant holds the per-entity state of a match participant:
// attributes, resource pools, stance, fighting styles, loadout and position.
package combatant

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"hexclash/server/internal/abilities"
	"hexclash/server/internal/equipment"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/pools"
	"hexclash/server/stats"
)

// MinSpeed keeps every combatant in the readiness race.
const MinSpeed = 1.0

var (
	// ErrInvalidID reports a non-positive combatant id.
	ErrInvalidID = errors.New("combatant: id must be positive")
	// ErrNoStyle reports a combatant built without any fighting style.
	ErrNoStyle = errors.New("combatant: at least one fighting style required")
	// ErrStyleIndex reports a style switch to an index that does not exist.
	ErrStyleIndex = errors.New("combatant: style index out of range")
	// ErrNotPlaced reports a grid operation on a combatant with no cell.
	ErrNotPlaced = errors.New("combatant: not placed on the grid")
	// ErrSourceMismatch reports a move whose source cell is not occupied by
	// the moving combatant.
	ErrSourceMismatch = errors.New("combatant: source cell occupant mismatch")
)

// Config describes a fully resolved combatant. Construction fails rather than
// producing a half-built value when a required piece is missing.
type Config struct {
	ID         int64
	Name       string
	Team       string
	Template   string
	Bot        bool
	Attributes stats.ValueSet
	Weapon     *equipment.Weapon
	Armour     *equipment.Armour
	Styles     []*abilities.Style
	StyleIndex int
	Stance     abilities.Stance
}

// Combatant is a match participant. Cells refer to it by ID only.
type Combatant struct {
	id       int64
	name     string
	team     string
	template string
	bot      bool

	stats   stats.Component
	pools   pools.Pools
	stance  abilities.Stance
	loadout equipment.Loadout

	styles     []*abilities.Style
	styleIndex int
	usage      *abilities.Usage

	position hex.Coord
	placed   bool
	version  uint64
}

// New builds a combatant at full health and zero readiness.
func New(cfg Config) (*Combatant, error) {
	if cfg.ID <= 0 {
		return nil, ErrInvalidID
	}
	styles := make([]*abilities.Style, 0, len(cfg.Styles))
	for _, style := range cfg.Styles {
		if style == nil {
			continue
		}
		styles = append(styles, style)
	}
	if len(styles) == 0 {
		return nil, ErrNoStyle
	}
	if cfg.StyleIndex < 0 || cfg.StyleIndex >= len(styles) {
		return nil, fmt.Errorf("%w: %d", ErrStyleIndex, cfg.StyleIndex)
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = fmt.Sprintf("combatant-%d", cfg.ID)
	}

	c := &Combatant{
		id:         cfg.ID,
		name:       name,
		team:       cfg.Team,
		template:   cfg.Template,
		bot:        cfg.Bot,
		stats:      stats.NewComponent(cfg.Attributes),
		stance:     cfg.Stance,
		loadout:    equipment.Loadout{Weapon: cfg.Weapon, Armour: cfg.Armour},
		styles:     styles,
		styleIndex: cfg.StyleIndex,
		usage:      abilities.NewUsage(),
	}
	c.stats.Resolve(0)
	c.pools = pools.New(c.stats.GetDerived(stats.RealityHealth))
	c.pools.Set(pools.Mana, c.stats.GetDerived(stats.RealityMana))
	return c, nil
}

func (c *Combatant) ID() int64        { return c.id }
func (c *Combatant) Name() string     { return c.name }
func (c *Combatant) Team() string     { return c.team }
func (c *Combatant) Template() string { return c.template }
func (c *Combatant) IsBot() bool      { return c.bot }

// Version increments on every observable mutation.
func (c *Combatant) Version() uint64 {
	if c == nil {
		return 0
	}
	return c.version
}

func (c *Combatant) touch() {
	c.version++
}

// Stats exposes the layered stats component.
func (c *Combatant) Stats() *stats.Component {
	return &c.stats
}

// Derived returns the current reality values.
func (c *Combatant) Derived() stats.DerivedSet {
	return c.stats.DerivedValues()
}

// Attributes returns the base attribute values.
func (c *Combatant) Attributes() stats.ValueSet {
	return c.stats.Base()
}

// Speed returns the total speed attribute floored at MinSpeed.
func (c *Combatant) Speed() float64 {
	speed := c.stats.GetTotal(stats.StatSpeed)
	if math.IsNaN(speed) || speed < MinSpeed {
		return MinSpeed
	}
	return speed
}

// Refresh resolves stat layers for turn and re-caps health.
func (c *Combatant) Refresh(turn uint64) {
	if c == nil {
		return
	}
	before := c.stats.Version()
	c.stats.Resolve(turn)
	if c.stats.Version() != before {
		c.pools.SetMaxHealth(c.stats.GetDerived(stats.RealityHealth))
		c.touch()
	}
}

// SetStatusModifiers replaces the status layer contribution to attributes.
func (c *Combatant) SetStatusModifiers(turn uint64, add stats.ValueSet) {
	if c == nil {
		return
	}
	delta := stats.NewStatDelta()
	delta.Add = add
	c.stats.Apply(stats.CommandStatChange{
		Layer:  stats.LayerStatus,
		Source: stats.SourceKey{Kind: stats.SourceKindStatusEffect, ID: "status"},
		Delta:  delta,
	})
	c.Refresh(turn)
}

// Get reads a resource pool.
func (c *Combatant) Get(r pools.Resource) float64 {
	if c == nil {
		return 0
	}
	return c.pools.Get(r)
}

// Set writes a resource pool through the clamped dispatch.
func (c *Combatant) Set(r pools.Resource, value float64) float64 {
	if c == nil {
		return 0
	}
	before := c.pools.Get(r)
	stored, _ := c.pools.Set(r, value)
	if stored != before {
		c.touch()
	}
	return stored
}

// Apply adds a partial update and returns what was actually applied.
func (c *Combatant) Apply(delta pools.Delta) pools.Delta {
	if c == nil {
		return nil
	}
	applied := c.pools.Apply(delta)
	if !applied.Empty() {
		c.touch()
	}
	return applied
}

// MaxHealth returns the derived health cap.
func (c *Combatant) MaxHealth() float64 {
	return c.pools.MaxHealth()
}

// Pools returns a copy of every pool value.
func (c *Combatant) Pools() [pools.ResourceCount]float64 {
	return c.pools.Values()
}

// PoolsRef exposes the pools for affordability checks.
func (c *Combatant) PoolsRef() *pools.Pools {
	return &c.pools
}

// Damage subtracts amount from health and returns the amount removed.
// Negative input is ignored.
func (c *Combatant) Damage(amount float64) float64 {
	if c == nil || !(amount > 0) {
		return 0
	}
	applied := c.Apply(pools.Delta{pools.Health: -amount})
	return -applied[pools.Health]
}

// Heal adds amount to health up to the cap and returns the amount restored.
// Negative input is ignored.
func (c *Combatant) Heal(amount float64) float64 {
	if c == nil || !(amount > 0) {
		return 0
	}
	applied := c.Apply(pools.Delta{pools.Health: amount})
	return applied[pools.Health]
}

// Alive reports whether the combatant has health left.
func (c *Combatant) Alive() bool {
	return c != nil && c.pools.Get(pools.Health) > 0
}

// Stance returns the current guard.
func (c *Combatant) Stance() abilities.Stance {
	return c.stance
}

// SetStance changes the guard.
func (c *Combatant) SetStance(s abilities.Stance) {
	if c == nil || c.stance == s {
		return
	}
	c.stance = s
	c.touch()
}

// Loadout returns the equipped weapon and armour.
func (c *Combatant) Loadout() equipment.Loadout {
	if c == nil {
		return equipment.Loadout{}
	}
	return c.loadout
}

// Styles returns the owned fighting styles.
func (c *Combatant) Styles() []*abilities.Style {
	return c.styles
}

// StyleIndex returns the equipped style index.
func (c *Combatant) StyleIndex() int {
	return c.styleIndex
}

// Style returns the equipped fighting style.
func (c *Combatant) Style() *abilities.Style {
	if c == nil || len(c.styles) == 0 {
		return nil
	}
	return c.styles[c.styleIndex]
}

// Usage returns the used/available partition of the equipped style.
func (c *Combatant) Usage() *abilities.Usage {
	return c.usage
}

// SwitchStyle equips another owned style and resets usage.
func (c *Combatant) SwitchStyle(index int) error {
	if c == nil {
		return ErrStyleIndex
	}
	if index < 0 || index >= len(c.styles) {
		return fmt.Errorf("%w: %d", ErrStyleIndex, index)
	}
	if index == c.styleIndex {
		return nil
	}
	c.styleIndex = index
	c.usage.Reset()
	c.touch()
	return nil
}

// Position returns the recorded cell and whether the combatant is placed.
func (c *Combatant) Position() (hex.Coord, bool) {
	if c == nil {
		return hex.Coord{}, false
	}
	return c.position, c.placed
}

// Place puts the combatant on a vacant cell.
func (c *Combatant) Place(grid *hex.Grid, at hex.Coord) error {
	if c == nil || grid == nil {
		return ErrNotPlaced
	}
	if c.placed {
		return c.Move(grid, at)
	}
	if err := grid.Occupy(at, c.id); err != nil {
		return err
	}
	c.position = at
	c.placed = true
	c.touch()
	return nil
}

// Move relocates the combatant. It fails when the destination is occupied
// and with ErrSourceMismatch when the recorded cell does not hold it.
func (c *Combatant) Move(grid *hex.Grid, to hex.Coord) error {
	if c == nil || grid == nil || !c.placed {
		return ErrNotPlaced
	}
	if grid.Occupant(c.position) != c.id {
		return fmt.Errorf("%w: %s holds %d", ErrSourceMismatch, c.position, grid.Occupant(c.position))
	}
	if to == c.position {
		return nil
	}
	if err := grid.Relocate(c.position, to, c.id); err != nil {
		return err
	}
	c.position = to
	c.touch()
	return nil
}

// Remove vacates the combatant's cell.
func (c *Combatant) Remove(grid *hex.Grid) {
	if c == nil || !c.placed {
		return
	}
	if grid != nil {
		_ = grid.Vacate(c.position, c.id)
	}
	c.placed = false
	c.touch()
}
