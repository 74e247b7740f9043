// Package status implements per-entity status effects: stacking, turn-based
// expiry, priority-ordered modifier aggregation and trigger dispatch.
// Managers never mutate combatants; they return deltas for the caller to
// commit.
package status

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"hexclash/server/internal/equipment"
	"hexclash/server/internal/pools"
	"hexclash/server/stats"
)

// StackingRule governs how a repeated application combines with an
// existing instance.
type StackingRule string

const (
	StackNone    StackingRule = "none"
	StackReplace StackingRule = "replace"
	StackStack   StackingRule = "stack"
	StackRefresh StackingRule = "refresh"
	StackUnique  StackingRule = "unique"
)

// ModifierTarget selects which aggregated map a modifier feeds.
type ModifierTarget string

const (
	TargetStat    ModifierTarget = "stat"
	TargetDamage  ModifierTarget = "damage"
	TargetPotency ModifierTarget = "potency"
	TargetPassive ModifierTarget = "passive"
	TargetCustom  ModifierTarget = "custom"
)

// Passive keys read by the clash math.
const (
	PassiveDamageDealt    = "damage_dealt"
	PassiveDamageReceived = "damage_received"
	PassiveDV             = "dv"
	PassivePV             = "pv"
	PassiveHit            = "hit"
	PassivePenetration    = "penetration"
)

// Event names a combat event an effect may react to.
type Event string

const (
	OnTurnStart  Event = "turn_start"
	OnTurnEnd    Event = "turn_end"
	OnDealDamage Event = "deal_damage"
	OnTakeDamage Event = "take_damage"
	OnMove       Event = "move"
)

// Recipient names who receives a trigger delta.
type Recipient string

const (
	RecipientSelf   Recipient = "self"
	RecipientCaster Recipient = "caster"
	RecipientOther  Recipient = "other"
)

var (
	ErrUnknownEffect     = errors.New("status: unknown effect")
	ErrInvalidDefinition = errors.New("status: invalid definition")
)

// Modifier is one additive contribution per stack.
type Modifier struct {
	Target ModifierTarget `json:"target" yaml:"target" jsonschema:"required"`
	Key    string         `json:"key" yaml:"key" jsonschema:"required"`
	Value  float64        `json:"value" yaml:"value"`
}

// Trigger reacts to a combat event with a resource delta per stack.
type Trigger struct {
	On        Event       `json:"on" yaml:"on" jsonschema:"required"`
	Recipient Recipient   `json:"recipient,omitempty" yaml:"recipient,omitempty"`
	Delta     pools.Delta `json:"delta,omitempty" yaml:"delta,omitempty"`
	// Consume removes the instance after the trigger fires.
	Consume bool `json:"consume,omitempty" yaml:"consume,omitempty"`
}

// Condition is a removal predicate on the affected entity's pools.
type Condition struct {
	Resource pools.Resource `json:"resource" yaml:"resource"`
	Below    *float64       `json:"below,omitempty" yaml:"below,omitempty"`
	Above    *float64       `json:"above,omitempty" yaml:"above,omitempty"`
}

// Holds reports whether the predicate fires for the reader.
func (c Condition) Holds(r Reader) bool {
	if r == nil {
		return false
	}
	v := r.Get(c.Resource)
	if c.Below != nil && v < *c.Below {
		return true
	}
	if c.Above != nil && v > *c.Above {
		return true
	}
	return false
}

// Reader exposes the pools a removal predicate inspects.
type Reader interface {
	Get(pools.Resource) float64
}

// Definition is the immutable configuration of a status effect.
type Definition struct {
	ID        string       `json:"id" yaml:"id" jsonschema:"required"`
	Name      string       `json:"name,omitempty" yaml:"name,omitempty"`
	Stacking  StackingRule `json:"stacking" yaml:"stacking"`
	MaxStacks int          `json:"maxStacks,omitempty" yaml:"maxStacks,omitempty"`
	// Duration is measured in the affected entity's turns.
	Duration  int        `json:"duration,omitempty" yaml:"duration,omitempty"`
	Permanent bool       `json:"permanent,omitempty" yaml:"permanent,omitempty"`
	Priority  int        `json:"priority,omitempty" yaml:"priority,omitempty"`
	Modifiers []Modifier `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	// OnApply, OnTurn and OnRemove are resource deltas per stack.
	OnApply    pools.Delta `json:"onApply,omitempty" yaml:"onApply,omitempty"`
	OnTurn     pools.Delta `json:"onTurn,omitempty" yaml:"onTurn,omitempty"`
	OnRemove   pools.Delta `json:"onRemove,omitempty" yaml:"onRemove,omitempty"`
	Stun       bool        `json:"stun,omitempty" yaml:"stun,omitempty"`
	Triggers   []Trigger   `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	RemoveWhen []Condition `json:"removeWhen,omitempty" yaml:"removeWhen,omitempty"`
}

// Validate normalises defaults and rejects unusable definitions.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil", ErrInvalidDefinition)
	}
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return fmt.Errorf("%w: id required", ErrInvalidDefinition)
	}
	switch d.Stacking {
	case "":
		d.Stacking = StackRefresh
	case StackNone, StackReplace, StackStack, StackRefresh, StackUnique:
	default:
		return fmt.Errorf("%w: %s stacking %q", ErrInvalidDefinition, d.ID, d.Stacking)
	}
	if d.MaxStacks <= 0 {
		d.MaxStacks = 1
	}
	if !d.Permanent && d.Duration <= 0 {
		return fmt.Errorf("%w: %s needs a positive duration or permanent", ErrInvalidDefinition, d.ID)
	}
	for _, mod := range d.Modifiers {
		if err := validateModifier(mod); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, d.ID, err)
		}
	}
	for i, trigger := range d.Triggers {
		switch trigger.On {
		case OnTurnStart, OnTurnEnd, OnDealDamage, OnTakeDamage, OnMove:
		default:
			return fmt.Errorf("%w: %s trigger event %q", ErrInvalidDefinition, d.ID, trigger.On)
		}
		if trigger.Recipient == "" {
			d.Triggers[i].Recipient = RecipientSelf
		}
	}
	return nil
}

func validateModifier(mod Modifier) error {
	switch mod.Target {
	case TargetStat:
		if _, ok := stats.ParseStat(mod.Key); !ok {
			return fmt.Errorf("unknown stat %q", mod.Key)
		}
	case TargetPotency, TargetDamage, TargetCustom:
		if mod.Key == "" {
			return fmt.Errorf("%s modifier key required", mod.Target)
		}
	case TargetPassive:
		switch mod.Key {
		case PassiveDamageDealt, PassiveDamageReceived, PassiveDV, PassivePV, PassiveHit, PassivePenetration:
		default:
			return fmt.Errorf("unknown passive %q", mod.Key)
		}
	default:
		return fmt.Errorf("unknown modifier target %q", mod.Target)
	}
	return nil
}

// Registry is the shared, concurrency-safe store of definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register validates and stores a definition, replacing any previous one.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return fmt.Errorf("%w: nil registry", ErrInvalidDefinition)
	}
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := def
	r.defs[def.ID] = &stored
	return nil
}

// Get resolves a definition by id.
func (r *Registry) Get(id string) (*Definition, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// IDs lists registered definitions in lexical order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Modifications is the merged view of every active modifier.
type Modifications struct {
	Stats   stats.ValueSet
	Damage  map[equipment.DamageType]float64
	Potency map[equipment.Potency]float64
	Passive map[string]float64
	Custom  map[string]float64
}

// PassiveValue reads a passive key, zero when absent.
func (m Modifications) PassiveValue(key string) float64 {
	if m.Passive == nil {
		return 0
	}
	return m.Passive[key]
}

func (m *Modifications) add(mod Modifier, stacks int) {
	value := mod.Value * float64(stacks)
	switch mod.Target {
	case TargetStat:
		if id, ok := stats.ParseStat(mod.Key); ok {
			m.Stats[id] += value
		}
	case TargetDamage:
		if m.Damage == nil {
			m.Damage = make(map[equipment.DamageType]float64)
		}
		m.Damage[equipment.DamageType(mod.Key)] += value
	case TargetPotency:
		if m.Potency == nil {
			m.Potency = make(map[equipment.Potency]float64)
		}
		m.Potency[equipment.Potency(mod.Key)] += value
	case TargetPassive:
		if m.Passive == nil {
			m.Passive = make(map[string]float64)
		}
		m.Passive[mod.Key] += value
	case TargetCustom:
		if m.Custom == nil {
			m.Custom = make(map[string]float64)
		}
		m.Custom[mod.Key] += value
	}
}
