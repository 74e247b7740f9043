package combat

import (
	"context"
	"fmt"
	"math/rand"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hexclash/server/internal/abilities"
	"hexclash/server/internal/rng"
)

// Config tunes the resolver.
type Config struct {
	Mode Mode
}

func (c Config) normalized() Config {
	if mode, ok := ParseMode(string(c.Mode)); ok {
		c.Mode = mode
	} else {
		c.Mode = ModeStrike
	}
	return c
}

// Resolver runs clashes with its own random source.
type Resolver struct {
	cfg    Config
	rng    *rand.Rand
	tracer trace.Tracer
}

// NewResolver builds a resolver. A nil source falls back to the default seed.
func NewResolver(cfg Config, source *rand.Rand) *Resolver {
	if source == nil {
		source = rng.New(rng.DefaultSeed, "combat")
	}
	return &Resolver{
		cfg:    cfg.normalized(),
		rng:    source,
		tracer: otel.Tracer("hexclash/server/internal/combat"),
	}
}

// Mode returns the configured resolution mode.
func (r *Resolver) Mode() Mode {
	if r == nil {
		return ModeStrike
	}
	return r.cfg.Mode
}

// Resolve runs one attack. It fails with ErrUnresolvedCombatant when either
// side is missing and never returns a partial result.
func (r *Resolver) Resolve(ctx context.Context, attacker, defender *Participant, ability *abilities.Active) (ClashResult, error) {
	if r == nil {
		return ClashResult{}, fmt.Errorf("combat: nil resolver")
	}
	if attacker == nil || defender == nil || attacker.ID == 0 || defender.ID == 0 {
		return ClashResult{}, ErrUnresolvedCombatant
	}
	if ability == nil || len(ability.Dice) == 0 {
		return ClashResult{}, ErrInvalidAbility
	}

	_, span := r.tracer.Start(ctx, "combat.resolve", trace.WithAttributes(
		attribute.Int64("clash.attacker", attacker.ID),
		attribute.Int64("clash.defender", defender.ID),
		attribute.String("clash.ability", ability.ID),
		attribute.String("clash.mode", string(r.cfg.Mode)),
	))
	defer span.End()

	result := ClashResult{
		Mode: r.cfg.Mode,
		Sequence: StrikeSequence{
			Attacker: attacker.ID,
			Defender: defender.ID,
			Ability:  ability.ID,
		},
		Outcome: TagMiss,
		Cost:    ability.Cost.Delta(),
	}

	result.Triggers = append(result.Triggers, r.fire(abilities.HookBeforeAttack, -1, false, attacker, defender, ability)...)
	switch r.cfg.Mode {
	case ModeSingle:
		r.resolveSingle(&result, attacker, defender, ability)
	default:
		r.resolveStrikes(&result, attacker, defender, ability)
	}
	result.Triggers = append(result.Triggers, r.fire(abilities.HookAfterAttack, -1, result.Outcome.rank() >= TagHit.rank(), attacker, defender, ability)...)

	if result.Outcome.rank() >= TagHit.rank() {
		result.Reaction = r.react(attacker, defender, result.Damage)
	}
	result.Damage = ClampDamage(result.Damage)

	span.SetAttributes(
		attribute.String("clash.outcome", string(result.Outcome)),
		attribute.Float64("clash.damage", result.FinalDamage()),
	)
	return result, nil
}

// resolveStrikes runs the DV then PV check for every die in order.
func (r *Resolver) resolveStrikes(result *ClashResult, attacker, defender *Participant, ability *abilities.Active) {
	hitBonus := attacker.hitBonus()
	penBonus := attacker.penetrationBonus()
	dv := defender.dv()
	pv := defender.pv()
	total := 0.0

	for i, faces := range ability.Dice {
		result.Triggers = append(result.Triggers, r.fire(abilities.HookBeforeStrike, i, false, attacker, defender, ability)...)

		roll := rng.Roll(r.rng, faces)
		dvStrike := Strike{Die: i, Faces: faces, Check: CheckDV, Target: dv, Roll: roll, Bonus: hitBonus, Outcome: TagMiss}
		if float64(roll)+hitBonus >= dv {
			dvStrike.Outcome = TagHit
		}
		result.Sequence.Strikes = append(result.Sequence.Strikes, dvStrike)

		dealt := false
		if dvStrike.Outcome == TagHit {
			roll = rng.Roll(r.rng, faces)
			pvStrike := Strike{Die: i, Faces: faces, Check: CheckPV, Target: pv, Roll: roll, Bonus: penBonus, Outcome: TagCling}
			if float64(roll)+penBonus >= pv {
				pvStrike.Outcome = TagHit
				pvStrike.Damage = HitDamage(attacker, defender, ability)
				if roll == faces {
					pvStrike.Outcome = TagCrit
					pvStrike.Damage *= CritMultiplier
				}
				total += pvStrike.Damage
				dealt = true
			}
			result.Sequence.Strikes = append(result.Sequence.Strikes, pvStrike)
			if pvStrike.Outcome.rank() > result.Outcome.rank() {
				result.Outcome = pvStrike.Outcome
			}
		}

		result.Triggers = append(result.Triggers, r.fire(abilities.HookAfterStrike, i, dealt, attacker, defender, ability)...)
	}
	result.Damage = total
}

// react rolls the defender's first affordable unused reaction. Missing data
// yields no reaction.
func (r *Resolver) react(attacker, defender *Participant, damage float64) *ReactionUpdate {
	if defender.Style == nil || defender.Usage == nil || defender.Pools == nil {
		return nil
	}
	reactive := defender.Usage.SelectReaction(defender.Style, defender.Pools)
	if reactive == nil {
		return nil
	}
	chance := reactive.SuccessChance(attacker.Derived, defender.Derived)
	roll := rng.Percent(r.rng)
	update := &ReactionUpdate{
		Ability: reactive.ID,
		Chance:  chance,
		Roll:    roll,
		Success: float64(roll) <= chance,
	}
	outcome := reactive.OnFailure
	if update.Success {
		outcome = reactive.OnSuccess
	}
	update.Attacker = outcome.Attacker.Merge(nil)
	update.Defender = reactive.Cost.Delta().Merge(outcome.Defender)
	update.Status = outcome.Status
	if outcome.DamageFactor != nil {
		overridden := ClampDamage(damage * *outcome.DamageFactor)
		update.Damage = &overridden
	}
	return update
}

// fire interprets the ability's triggers at hook into TriggerModify records.
// Strike-level triggers flagged OnlyOnHit fire only when the strike dealt
// damage.
func (r *Resolver) fire(hook abilities.Hook, die int, hit bool, attacker, defender *Participant, ability *abilities.Active) []TriggerModify {
	triggers := ability.TriggersFor(hook)
	if len(triggers) == 0 {
		return nil
	}
	var out []TriggerModify
	for _, trigger := range triggers {
		if trigger.OnlyOnHit && !hit {
			continue
		}
		target := defender.ID
		if trigger.Target == abilities.SideAttacker {
			target = attacker.ID
		}
		record := TriggerModify{Hook: hook, Die: die, Target: target}
		switch trigger.Kind {
		case abilities.TriggerResourceDelta:
			record.Delta = trigger.Evaluate(attacker.Derived, defender.Derived)
			if len(record.Delta) == 0 {
				continue
			}
		case abilities.TriggerApplyStatus:
			record.Status = trigger.Status
			record.Stacks = trigger.Stacks
		default:
			continue
		}
		out = append(out, record)
	}
	return out
}
