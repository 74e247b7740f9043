package combat

import (
	"hexclash/server/internal/abilities"
	"hexclash/server/internal/equipment"
	"hexclash/server/internal/status"
)

// HitDamage computes the damage of one strike that passed both checks:
// the ability's typed damage is reduced by the defender's resistances,
// summed, shifted by the damage-dealt and damage-received passives and
// floored at MinHitDamage.
func HitDamage(attacker, defender *Participant, ability *abilities.Active) float64 {
	if attacker == nil || defender == nil || ability == nil {
		return 0
	}
	byType := boostedAbility(ability, attacker.Mods).TotalDamageByType(attacker.Loadout.Weapon, attacker.Derived)
	for kind, bonus := range attacker.Mods.Damage {
		if bonus == 0 {
			continue
		}
		if byType == nil {
			byType = make(map[equipment.DamageType]float64)
		}
		byType[kind] += bonus
	}
	raw := equipment.Sum(defender.Loadout.Armour.Reduce(byType))
	raw += attacker.Mods.PassiveValue(status.PassiveDamageDealt)
	raw -= defender.Mods.PassiveValue(status.PassiveDamageReceived)
	if raw < MinHitDamage {
		raw = MinHitDamage
	}
	return raw
}

// boostedAbility returns ability with potency modifiers added to its
// potency weights. The original is returned untouched when nothing applies.
func boostedAbility(ability *abilities.Active, mods status.Modifications) *abilities.Active {
	if len(mods.Potency) == 0 {
		return ability
	}
	boosted := *ability
	boosted.Potencies = make(map[equipment.Potency]float64, len(ability.Potencies)+len(mods.Potency))
	for k, v := range ability.Potencies {
		boosted.Potencies[k] = v
	}
	for k, v := range mods.Potency {
		boosted.Potencies[k] += v
	}
	return &boosted
}
