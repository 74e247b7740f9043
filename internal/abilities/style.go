package abilities

import (
	"fmt"
	"sort"
	"strings"

	"hexclash/server/internal/pools"
)

// Passive is a permanent status granted while a style is equipped.
type Passive struct {
	Status string `json:"status" yaml:"status" jsonschema:"required"`
	Stacks int    `json:"stacks,omitempty" yaml:"stacks,omitempty"`
}

// Style is a fixed catalog of actives, reactives, and passives.
type Style struct {
	ID        string     `json:"id" yaml:"id" jsonschema:"required"`
	Name      string     `json:"name" yaml:"name"`
	Actives   []Active   `json:"actives" yaml:"actives"`
	Reactives []Reactive `json:"reactives,omitempty" yaml:"reactives,omitempty"`
	Passives  []Passive  `json:"passives,omitempty" yaml:"passives,omitempty"`
}

// Validate checks every ability and rejects duplicate ids.
func (s *Style) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil style", ErrInvalidAbility)
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: style id required", ErrInvalidAbility)
	}
	seen := make(map[string]struct{}, len(s.Actives)+len(s.Reactives))
	for i := range s.Actives {
		if err := s.Actives[i].Validate(); err != nil {
			return fmt.Errorf("style %s: %w", s.ID, err)
		}
		if _, dup := seen[s.Actives[i].ID]; dup {
			return fmt.Errorf("%w: style %s duplicate ability %s", ErrInvalidAbility, s.ID, s.Actives[i].ID)
		}
		seen[s.Actives[i].ID] = struct{}{}
	}
	for i := range s.Reactives {
		if err := s.Reactives[i].Validate(); err != nil {
			return fmt.Errorf("style %s: %w", s.ID, err)
		}
		if _, dup := seen[s.Reactives[i].ID]; dup {
			return fmt.Errorf("%w: style %s duplicate ability %s", ErrInvalidAbility, s.ID, s.Reactives[i].ID)
		}
		seen[s.Reactives[i].ID] = struct{}{}
	}
	for _, passive := range s.Passives {
		if strings.TrimSpace(passive.Status) == "" {
			return fmt.Errorf("%w: style %s passive without status", ErrInvalidAbility, s.ID)
		}
	}
	return nil
}

// Active looks up an active ability by id.
func (s *Style) Active(id string) (*Active, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Actives {
		if s.Actives[i].ID == id {
			return &s.Actives[i], true
		}
	}
	return nil, false
}

// Reactive looks up a reactive ability by id.
func (s *Style) Reactive(id string) (*Reactive, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Reactives {
		if s.Reactives[i].ID == id {
			return &s.Reactives[i], true
		}
	}
	return nil, false
}

// Usage tracks which abilities of a style have been used. Once every
// ability of a kind has been used the partition for that kind resets.
type Usage struct {
	active   map[string]struct{}
	reactive map[string]struct{}
}

// NewUsage returns an empty partition.
func NewUsage() *Usage {
	return &Usage{
		active:   make(map[string]struct{}),
		reactive: make(map[string]struct{}),
	}
}

// Reset clears both partitions.
func (u *Usage) Reset() {
	if u == nil {
		return
	}
	u.active = make(map[string]struct{})
	u.reactive = make(map[string]struct{})
}

// ActiveUsed reports whether id sits in the used partition.
func (u *Usage) ActiveUsed(id string) bool {
	if u == nil {
		return false
	}
	_, used := u.active[id]
	return used
}

// ReactiveUsed reports whether id sits in the used partition.
func (u *Usage) ReactiveUsed(id string) bool {
	if u == nil {
		return false
	}
	_, used := u.reactive[id]
	return used
}

// MarkActive moves an active ability to the used partition.
func (u *Usage) MarkActive(style *Style, id string) {
	if u == nil || style == nil {
		return
	}
	if _, ok := style.Active(id); !ok {
		return
	}
	u.active[id] = struct{}{}
	if len(u.active) >= len(style.Actives) {
		u.active = make(map[string]struct{})
	}
}

// MarkReactive moves a reactive ability to the used partition.
func (u *Usage) MarkReactive(style *Style, id string) {
	if u == nil || style == nil {
		return
	}
	if _, ok := style.Reactive(id); !ok {
		return
	}
	u.reactive[id] = struct{}{}
	if len(u.reactive) >= len(style.Reactives) {
		u.reactive = make(map[string]struct{})
	}
}

// AvailableActives lists actives not yet used, in catalog order.
func (u *Usage) AvailableActives(style *Style) []*Active {
	if style == nil {
		return nil
	}
	out := make([]*Active, 0, len(style.Actives))
	for i := range style.Actives {
		if !u.ActiveUsed(style.Actives[i].ID) {
			out = append(out, &style.Actives[i])
		}
	}
	return out
}

// AvailableReactives lists reactives not yet used, in catalog order.
func (u *Usage) AvailableReactives(style *Style) []*Reactive {
	if style == nil {
		return nil
	}
	out := make([]*Reactive, 0, len(style.Reactives))
	for i := range style.Reactives {
		if !u.ReactiveUsed(style.Reactives[i].ID) {
			out = append(out, &style.Reactives[i])
		}
	}
	return out
}

// SelectReaction picks the first available reaction the defender can
// afford. A nil result means no reaction.
func (u *Usage) SelectReaction(style *Style, p *pools.Pools) *Reactive {
	for _, reactive := range u.AvailableReactives(style) {
		if reactive.Cost.Affordable(p) {
			return reactive
		}
	}
	return nil
}

// Snapshot returns the used ids for replication.
func (u *Usage) Snapshot() (active []string, reactive []string) {
	if u == nil {
		return nil, nil
	}
	for id := range u.active {
		active = append(active, id)
	}
	for id := range u.reactive {
		reactive = append(reactive, id)
	}
	sort.Strings(active)
	sort.Strings(reactive)
	return active, reactive
}

// Restore replaces the partition with the given used ids.
func (u *Usage) Restore(active, reactive []string) {
	if u == nil {
		return
	}
	u.Reset()
	for _, id := range active {
		u.active[id] = struct{}{}
	}
	for _, id := range reactive {
		u.reactive[id] = struct{}{}
	}
}
