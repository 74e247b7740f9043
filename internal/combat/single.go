package combat

import (
	"hexclash/server/internal/abilities"
	"hexclash/server/internal/rng"
)

// DefaultHitChance applies when an ability has no hit chance configured.
const DefaultHitChance = 75.0

// CritThreshold is the highest roll that counts as a critical hit.
func CritThreshold(hitChance, critChance float64) float64 {
	return hitChance*0.1 + critChance
}

// ClassifyRoll tags a 1..100 roll: Miss above hitChance, CRIT when the roll
// is within both hitChance and the crit threshold, Hit otherwise.
func ClassifyRoll(roll int, hitChance, critChance float64) Tag {
	v := float64(roll)
	if v > hitChance {
		return TagMiss
	}
	if v <= CritThreshold(hitChance, critChance) {
		return TagCrit
	}
	return TagHit
}

// resolveSingle runs the one-roll mode: Hit damage is uniform in
// [0.5·damage, damage], CRIT damage is uniform in [avg(min,max), max] x2.
func (r *Resolver) resolveSingle(result *ClashResult, attacker, defender *Participant, ability *abilities.Active) {
	hitChance := ability.HitChance
	if hitChance <= 0 {
		hitChance = DefaultHitChance
	}
	roll := rng.Percent(r.rng)
	tag := ClassifyRoll(roll, hitChance, ability.CritChance)
	strike := Strike{
		Die:     0,
		Faces:   100,
		Check:   CheckDV,
		Target:  hitChance,
		Roll:    roll,
		Outcome: tag,
	}

	base := HitDamage(attacker, defender, ability)
	max := base
	min := 0.5 * base
	switch tag {
	case TagHit:
		strike.Damage = rng.Between(r.rng, min, max)
	case TagCrit:
		strike.Damage = rng.Between(r.rng, (min+max)/2, max) * CritMultiplier
	}
	strike.Damage = ClampDamage(strike.Damage)
	result.Sequence.Strikes = append(result.Sequence.Strikes, strike)
	result.Outcome = tag
	result.Damage = strike.Damage
}
