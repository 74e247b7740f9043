package status

import (
	"sort"

	"hexclash/server/internal/pools"
)

// DefaultMaxEffects bounds the number of instances on one entity.
const DefaultMaxEffects = 16

// Outcome classifies an Apply call.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeStacked   Outcome = "stacked"
	OutcomeReplaced  Outcome = "replaced"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
)

// Instance is an active effect on an entity.
type Instance struct {
	EffectID  string             `json:"effectId"`
	Target    int64              `json:"target"`
	Caster    int64              `json:"caster,omitempty"`
	Source    string             `json:"source,omitempty"`
	Stacks    int                `json:"stacks"`
	Remaining int                `json:"remaining"`
	Permanent bool               `json:"permanent,omitempty"`
	Priority  int                `json:"priority"`
	Metadata  map[string]float64 `json:"metadata,omitempty"`
	Seq       uint64             `json:"seq"`
}

func (i *Instance) clone() Instance {
	out := *i
	if len(i.Metadata) > 0 {
		out.Metadata = make(map[string]float64, len(i.Metadata))
		for k, v := range i.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ApplyContext carries the per-application parameters.
type ApplyContext struct {
	Caster int64
	// Source tags instances so they can be removed together, for example
	// every passive granted by a fighting style.
	Source string
	// Stacks defaults to 1.
	Stacks int
	// Duration overrides the definition duration when positive.
	Duration int
	Metadata map[string]float64
}

// ApplyResult reports what Apply did.
type ApplyResult struct {
	Outcome  Outcome
	Instance Instance
	// Delta is the OnApply resource update for the target.
	Delta pools.Delta
}

// Removal records an instance purged from the manager.
type Removal struct {
	Instance Instance
	Delta    pools.Delta
	Reason   string
}

// TurnResult collects the effect of a turn tick.
type TurnResult struct {
	Delta   pools.Delta
	Removed []Removal
	Stunned bool
}

// Manager owns the effect instances of one entity.
type Manager struct {
	owner     int64
	registry  *Registry
	max       int
	instances []*Instance
	seq       uint64
}

// NewManager builds a manager for owner. max <= 0 uses DefaultMaxEffects.
func NewManager(owner int64, registry *Registry, max int) *Manager {
	if max <= 0 {
		max = DefaultMaxEffects
	}
	return &Manager{owner: owner, registry: registry, max: max}
}

// Owner returns the entity the manager belongs to.
func (m *Manager) Owner() int64 {
	if m == nil {
		return 0
	}
	return m.owner
}

// Len returns the number of active instances.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	return len(m.instances)
}

// Apply runs the stacking rule for effect id.
func (m *Manager) Apply(id string, ctx ApplyContext) (ApplyResult, error) {
	if m == nil {
		return ApplyResult{Outcome: OutcomeRejected}, ErrUnknownEffect
	}
	def, ok := m.registry.Get(id)
	if !ok {
		return ApplyResult{Outcome: OutcomeRejected}, ErrUnknownEffect
	}
	if len(m.instances) >= m.max {
		return ApplyResult{Outcome: OutcomeRejected}, nil
	}
	stacks := ctx.Stacks
	if stacks <= 0 {
		stacks = 1
	}
	duration := def.Duration
	if ctx.Duration > 0 {
		duration = ctx.Duration
	}

	if existing := m.find(def, ctx.Caster); existing != nil {
		result := ApplyResult{}
		switch def.Stacking {
		case StackNone:
			result.Outcome = OutcomeIgnored
		case StackReplace:
			existing.Stacks = 1
			existing.Remaining = duration
			existing.Caster = ctx.Caster
			result.Outcome = OutcomeReplaced
			result.Delta = def.OnApply.Scale(1)
		case StackStack:
			before := existing.Stacks
			existing.Stacks = minInt(existing.Stacks+stacks, def.MaxStacks)
			existing.Remaining = duration
			result.Outcome = OutcomeStacked
			if added := existing.Stacks - before; added > 0 {
				result.Delta = def.OnApply.Scale(float64(added))
			} else {
				result.Outcome = OutcomeRefreshed
			}
		case StackRefresh:
			existing.Remaining = duration
			result.Outcome = OutcomeRefreshed
		case StackUnique:
			if existing.Caster == ctx.Caster {
				existing.Remaining = duration
				result.Outcome = OutcomeRefreshed
			} else {
				result.Outcome = OutcomeIgnored
			}
		}
		result.Instance = existing.clone()
		return result, nil
	}

	m.seq++
	inst := &Instance{
		EffectID:  def.ID,
		Target:    m.owner,
		Caster:    ctx.Caster,
		Source:    ctx.Source,
		Stacks:    minInt(stacks, def.MaxStacks),
		Remaining: duration,
		Permanent: def.Permanent,
		Priority:  def.Priority,
		Seq:       m.seq,
	}
	if len(ctx.Metadata) > 0 {
		inst.Metadata = make(map[string]float64, len(ctx.Metadata))
		for k, v := range ctx.Metadata {
			inst.Metadata[k] = v
		}
	}
	m.instances = append(m.instances, inst)
	return ApplyResult{
		Outcome:  OutcomeApplied,
		Instance: inst.clone(),
		Delta:    def.OnApply.Scale(float64(inst.Stacks)),
	}, nil
}

// find returns the instance matching the effect/caster pair. Unique effects
// match on effect id alone so a second caster cannot add a parallel copy.
func (m *Manager) find(def *Definition, caster int64) *Instance {
	for _, inst := range m.instances {
		if inst.EffectID != def.ID {
			continue
		}
		if def.Stacking == StackUnique || inst.Caster == caster {
			return inst
		}
	}
	return nil
}

// TurnStart ticks every instance at the start of the owner's turn:
// durations decrement, per-turn deltas accumulate, then expired instances
// and those whose removal predicate holds are purged.
func (m *Manager) TurnStart(reader Reader) TurnResult {
	result := TurnResult{}
	if m == nil {
		return result
	}
	var delta pools.Delta
	for _, inst := range m.ordered() {
		def, ok := m.registry.Get(inst.EffectID)
		if !ok {
			continue
		}
		if !inst.Permanent {
			inst.Remaining--
		}
		if len(def.OnTurn) > 0 {
			delta = delta.Merge(def.OnTurn.Scale(float64(inst.Stacks)))
		}
		if def.Stun {
			result.Stunned = true
		}
	}
	result.Delta = delta
	result.Removed = m.purge(reader)
	return result
}

func (m *Manager) purge(reader Reader) []Removal {
	var removed []Removal
	kept := m.instances[:0]
	for _, inst := range m.instances {
		def, ok := m.registry.Get(inst.EffectID)
		reason := ""
		switch {
		case !ok:
			reason = "unknown"
		case !inst.Permanent && inst.Remaining <= 0:
			reason = "expired"
		default:
			for _, cond := range def.RemoveWhen {
				if cond.Holds(reader) {
					reason = "condition"
					break
				}
			}
		}
		if reason == "" {
			kept = append(kept, inst)
			continue
		}
		removal := Removal{Instance: inst.clone(), Reason: reason}
		if ok {
			removal.Delta = def.OnRemove.Scale(float64(inst.Stacks))
		}
		removed = append(removed, removal)
	}
	for i := len(kept); i < len(m.instances); i++ {
		m.instances[i] = nil
	}
	m.instances = kept
	return removed
}

// Remove purges every instance of effect id and returns the removals.
func (m *Manager) Remove(id string) []Removal {
	return m.removeWhere(func(inst *Instance) bool { return inst.EffectID == id }, "removed")
}

// RemoveSource purges every instance tagged with source.
func (m *Manager) RemoveSource(source string) []Removal {
	if source == "" {
		return nil
	}
	return m.removeWhere(func(inst *Instance) bool { return inst.Source == source }, "removed")
}

func (m *Manager) removeWhere(match func(*Instance) bool, reason string) []Removal {
	if m == nil {
		return nil
	}
	var removed []Removal
	kept := m.instances[:0]
	for _, inst := range m.instances {
		if !match(inst) {
			kept = append(kept, inst)
			continue
		}
		removal := Removal{Instance: inst.clone(), Reason: reason}
		if def, ok := m.registry.Get(inst.EffectID); ok {
			removal.Delta = def.OnRemove.Scale(float64(inst.Stacks))
		}
		removed = append(removed, removal)
	}
	for i := len(kept); i < len(m.instances); i++ {
		m.instances[i] = nil
	}
	m.instances = kept
	return removed
}

// Stunned reports whether any active effect stuns the owner.
func (m *Manager) Stunned() bool {
	if m == nil {
		return false
	}
	for _, inst := range m.instances {
		if def, ok := m.registry.Get(inst.EffectID); ok && def.Stun {
			return true
		}
	}
	return false
}

// Computed merges modifiers of every instance in ascending priority order,
// weighted by stack count.
func (m *Manager) Computed() Modifications {
	var mods Modifications
	if m == nil {
		return mods
	}
	for _, inst := range m.ordered() {
		def, ok := m.registry.Get(inst.EffectID)
		if !ok {
			continue
		}
		for _, mod := range def.Modifiers {
			mods.add(mod, inst.Stacks)
		}
	}
	return mods
}

// Fired is a trigger outcome for the caller to commit.
type Fired struct {
	EffectID  string
	Recipient Recipient
	// RecipientID is resolved from the recipient: the owner, the caster, or
	// the other party of the event.
	RecipientID int64
	Delta       pools.Delta
}

// Dispatch runs every trigger listening for event. other is the opposing
// entity of the event (the attacker for OnTakeDamage, the defender for
// OnDealDamage), zero when there is none. Consumed instances are removed.
func (m *Manager) Dispatch(event Event, other int64) []Fired {
	if m == nil {
		return nil
	}
	var fired []Fired
	consumed := make(map[*Instance]struct{})
	for _, inst := range m.ordered() {
		def, ok := m.registry.Get(inst.EffectID)
		if !ok {
			continue
		}
		for _, trigger := range def.Triggers {
			if trigger.On != event {
				continue
			}
			recipient := m.owner
			switch trigger.Recipient {
			case RecipientCaster:
				recipient = inst.Caster
			case RecipientOther:
				recipient = other
			}
			if recipient != 0 && len(trigger.Delta) > 0 {
				fired = append(fired, Fired{
					EffectID:    inst.EffectID,
					Recipient:   trigger.Recipient,
					RecipientID: recipient,
					Delta:       trigger.Delta.Scale(float64(inst.Stacks)),
				})
			}
			if trigger.Consume {
				consumed[inst] = struct{}{}
			}
		}
	}
	if len(consumed) > 0 {
		m.removeWhere(func(inst *Instance) bool {
			_, ok := consumed[inst]
			return ok
		}, "consumed")
	}
	return fired
}

// Instances returns copies of the active instances in aggregation order.
func (m *Manager) Instances() []Instance {
	if m == nil {
		return nil
	}
	ordered := m.ordered()
	out := make([]Instance, 0, len(ordered))
	for _, inst := range ordered {
		out = append(out, inst.clone())
	}
	return out
}

// Restore replaces the active instances, used by non-authoritative mirrors.
func (m *Manager) Restore(instances []Instance) {
	if m == nil {
		return
	}
	m.instances = m.instances[:0]
	for i := range instances {
		inst := instances[i].clone()
		inst.Target = m.owner
		if inst.Seq > m.seq {
			m.seq = inst.Seq
		}
		m.instances = append(m.instances, &inst)
	}
}

func (m *Manager) ordered() []*Instance {
	out := append([]*Instance(nil), m.instances...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
