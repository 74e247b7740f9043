// Package catalog stores the designer-authored configuration a match is
// built from: combatant templates, fighting styles, equipment and status
// effect definitions.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"hexclash/server/internal/abilities"
	"hexclash/server/internal/combatant"
	"hexclash/server/internal/equipment"
	"hexclash/server/internal/status"
	"hexclash/server/stats"
)

var (
	// ErrUnknownTemplate reports a template id missing from the catalog.
	ErrUnknownTemplate = errors.New("catalog: unknown template")
	// ErrUnknownReference reports a template pointing at missing gear or styles.
	ErrUnknownReference = errors.New("catalog: unknown reference")
)

// Template is the stat block and loadout a combatant is created from.
type Template struct {
	ID         string           `json:"id" yaml:"id" jsonschema:"title=Template ID,pattern=^[a-z0-9_-]+$,minLength=1,required"`
	Name       string           `json:"name" yaml:"name"`
	Attributes stats.Block      `json:"attributes" yaml:"attributes" jsonschema:"description=Base attributes keyed by short name (str dex acr spd siz int spr fai cha beu wil end)"`
	Weapon     string           `json:"weapon,omitempty" yaml:"weapon,omitempty"`
	Armour     string           `json:"armour,omitempty" yaml:"armour,omitempty"`
	Styles     []string         `json:"styles" yaml:"styles" jsonschema:"minItems=1,required"`
	Stance     abilities.Stance `json:"stance,omitempty" yaml:"stance,omitempty"`
}

// Document is one catalog file. Every section is optional so overlays can
// touch a single entry.
type Document struct {
	Templates []Template          `json:"templates,omitempty" yaml:"templates,omitempty"`
	Styles    []abilities.Style   `json:"styles,omitempty" yaml:"styles,omitempty"`
	Weapons   []equipment.Weapon  `json:"weapons,omitempty" yaml:"weapons,omitempty"`
	Armour    []equipment.Armour  `json:"armour,omitempty" yaml:"armour,omitempty"`
	Statuses  []status.Definition `json:"statuses,omitempty" yaml:"statuses,omitempty"`
}

// Catalog is the merged, validated lookup table.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]Template
	styles    map[string]*abilities.Style
	weapons   map[string]*equipment.Weapon
	armour    map[string]*equipment.Armour
	statuses  *status.Registry
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		templates: make(map[string]Template),
		styles:    make(map[string]*abilities.Style),
		weapons:   make(map[string]*equipment.Weapon),
		armour:    make(map[string]*equipment.Armour),
		statuses:  status.NewRegistry(),
	}
}

// Default returns a catalog seeded with the built-in content.
func Default() (*Catalog, error) {
	c := New()
	if err := c.Merge(DefaultDocument()); err != nil {
		return nil, fmt.Errorf("catalog: built-in content: %w", err)
	}
	return c, nil
}

// Merge validates doc and overlays it on the catalog. Entries replace earlier
// entries with the same id. Nothing is stored when any entry is invalid.
func (c *Catalog) Merge(doc Document) error {
	if c == nil {
		return errors.New("catalog: nil catalog")
	}
	for i := range doc.Weapons {
		if err := doc.Weapons[i].Validate(); err != nil {
			return err
		}
	}
	for i := range doc.Armour {
		if err := doc.Armour[i].Validate(); err != nil {
			return err
		}
	}
	for i := range doc.Styles {
		if err := doc.Styles[i].Validate(); err != nil {
			return err
		}
	}
	for i := range doc.Statuses {
		if err := doc.Statuses[i].Validate(); err != nil {
			return err
		}
	}
	for i := range doc.Templates {
		if strings.TrimSpace(doc.Templates[i].ID) == "" {
			return fmt.Errorf("catalog: template id required")
		}
		if len(doc.Templates[i].Styles) == 0 {
			return fmt.Errorf("catalog: template %s has no styles", doc.Templates[i].ID)
		}
		if _, err := doc.Templates[i].Attributes.ValueSet(); err != nil {
			return fmt.Errorf("catalog: template %s: %w", doc.Templates[i].ID, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range doc.Weapons {
		weapon := doc.Weapons[i]
		c.weapons[weapon.ID] = &weapon
	}
	for i := range doc.Armour {
		armour := doc.Armour[i]
		c.armour[armour.ID] = &armour
	}
	for i := range doc.Styles {
		style := doc.Styles[i]
		c.styles[style.ID] = &style
	}
	for _, def := range doc.Statuses {
		if err := c.statuses.Register(def); err != nil {
			return err
		}
	}
	for _, tpl := range doc.Templates {
		c.templates[tpl.ID] = tpl
	}
	return nil
}

// Statuses exposes the status definition registry.
func (c *Catalog) Statuses() *status.Registry {
	if c == nil {
		return nil
	}
	return c.statuses
}

// Template resolves a template by id.
func (c *Catalog) Template(id string) (Template, bool) {
	if c == nil {
		return Template{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	tpl, ok := c.templates[id]
	return tpl, ok
}

// Style resolves a fighting style by id.
func (c *Catalog) Style(id string) (*abilities.Style, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	style, ok := c.styles[id]
	return style, ok
}

// Weapon resolves a weapon by id.
func (c *Catalog) Weapon(id string) (*equipment.Weapon, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	weapon, ok := c.weapons[id]
	return weapon, ok
}

// Armour resolves an armour piece by id.
func (c *Catalog) Armour(id string) (*equipment.Armour, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	armour, ok := c.armour[id]
	return armour, ok
}

// TemplateIDs lists templates in lexical order.
func (c *Catalog) TemplateIDs() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.templates))
	for id := range c.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Spec names the per-combatant fields a template does not carry.
type Spec struct {
	ID       int64
	Name     string
	Team     string
	Template string
	Bot      bool
}

// Build resolves a template into a complete combatant config. A missing
// template or a dangling reference fails the whole build.
func (c *Catalog) Build(spec Spec) (combatant.Config, error) {
	tpl, ok := c.Template(spec.Template)
	if !ok {
		return combatant.Config{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, spec.Template)
	}
	attrs, err := tpl.Attributes.ValueSet()
	if err != nil {
		return combatant.Config{}, fmt.Errorf("catalog: template %s: %w", tpl.ID, err)
	}
	cfg := combatant.Config{
		ID:         spec.ID,
		Name:       spec.Name,
		Team:       spec.Team,
		Template:   tpl.ID,
		Bot:        spec.Bot,
		Attributes: attrs,
		Stance:     tpl.Stance,
	}
	if cfg.Name == "" {
		cfg.Name = tpl.Name
	}
	if tpl.Weapon != "" {
		weapon, ok := c.Weapon(tpl.Weapon)
		if !ok {
			return combatant.Config{}, fmt.Errorf("%w: template %s weapon %q", ErrUnknownReference, tpl.ID, tpl.Weapon)
		}
		cfg.Weapon = weapon
	}
	if tpl.Armour != "" {
		armour, ok := c.Armour(tpl.Armour)
		if !ok {
			return combatant.Config{}, fmt.Errorf("%w: template %s armour %q", ErrUnknownReference, tpl.ID, tpl.Armour)
		}
		cfg.Armour = armour
	}
	for _, id := range tpl.Styles {
		style, ok := c.Style(id)
		if !ok {
			return combatant.Config{}, fmt.Errorf("%w: template %s style %q", ErrUnknownReference, tpl.ID, id)
		}
		for _, passive := range style.Passives {
			if _, ok := c.statuses.Get(passive.Status); !ok {
				return combatant.Config{}, fmt.Errorf("%w: style %s passive %q", ErrUnknownReference, style.ID, passive.Status)
			}
		}
		cfg.Styles = append(cfg.Styles, style)
	}
	return cfg, nil
}
