package catalog

import (
	"hexclash/server/internal/abilities"
	"hexclash/server/internal/equipment"
	"hexclash/server/internal/pools"
	"hexclash/server/internal/status"
	"hexclash/server/stats"
)

// Built-in status effect ids referenced by the default styles.
const (
	StatusBleed   = "bleed"
	StatusStun    = "stun"
	StatusGuarded = "guarded"
	StatusPoise   = "poise"
	StatusWard    = "ward"
	StatusFocus   = "focus"
)

func factor(v float64) *float64 { return &v }

// DefaultDocument returns the built-in catalog content.
func DefaultDocument() Document {
	return Document{
		Statuses: []status.Definition{
			{
				ID: StatusBleed, Name: "Bleeding", Stacking: status.StackStack, MaxStacks: 5, Duration: 3, Priority: 10,
				OnTurn: pools.Delta{pools.Health: -3},
			},
			{
				ID: StatusStun, Name: "Stunned", Stacking: status.StackReplace, Duration: 1, Priority: 0, Stun: true,
			},
			{
				ID: StatusGuarded, Name: "Guarded", Stacking: status.StackRefresh, Duration: 2, Priority: 5,
				Modifiers: []status.Modifier{{Target: status.TargetPassive, Key: status.PassiveDV, Value: 3}},
				Triggers:  []status.Trigger{{On: status.OnTakeDamage, Recipient: status.RecipientSelf, Delta: pools.Delta{pools.Posture: 5}, Consume: true}},
			},
			{
				ID: StatusPoise, Name: "Poise", Stacking: status.StackNone, Permanent: true, Priority: 1,
				Modifiers: []status.Modifier{
					{Target: status.TargetPassive, Key: status.PassiveHit, Value: 1},
					{Target: status.TargetStat, Key: "spd", Value: 1},
				},
			},
			{
				ID: StatusWard, Name: "Arcane Ward", Stacking: status.StackNone, Permanent: true, Priority: 1,
				Modifiers: []status.Modifier{
					{Target: status.TargetPassive, Key: status.PassiveDamageReceived, Value: 1},
					{Target: status.TargetDamage, Key: string(equipment.DamageArcane), Value: 2},
				},
			},
			{
				ID: StatusFocus, Name: "Focus", Stacking: status.StackUnique, Duration: 2, Priority: 3,
				Modifiers: []status.Modifier{{Target: status.TargetPassive, Key: status.PassivePenetration, Value: 2}},
				RemoveWhen: []status.Condition{{Resource: pools.Health, Below: factor(10)}},
			},
		},
		Weapons: []equipment.Weapon{
			{
				ID: "longsword", Name: "Longsword", HitBonus: 2, PenetrationBonus: 1,
				Potencies: map[equipment.Potency]equipment.Translation{
					equipment.PotencySlash:  {RealityName: "force", Base: []float64{3, 2}, Scale: []float64{0.2, 0.1}},
					equipment.PotencyPierce: {RealityName: "precision", Base: []float64{2}, Scale: []float64{0.3}},
				},
			},
			{
				ID: "staff", Name: "Oak Staff", HitBonus: 1,
				Potencies: map[equipment.Potency]equipment.Translation{
					equipment.PotencyBlunt:  {RealityName: "force", Base: []float64{2}, Scale: []float64{0.1}},
					equipment.PotencyArcane: {RealityName: "mana", Base: []float64{4, 2}, Scale: []float64{0.3, 0.2}},
				},
			},
			{
				ID: "knuckles", Name: "Iron Knuckles", HitBonus: 3,
				Potencies: map[equipment.Potency]equipment.Translation{
					equipment.PotencyBlunt: {RealityName: "force", Base: []float64{3}, Scale: []float64{0.4}},
				},
			},
		},
		Armour: []equipment.Armour{
			{ID: "plate", Name: "Plate Harness", DV: 6, PV: 12, Resistances: map[equipment.DamageType]float64{
				equipment.DamageSlash: 0.4, equipment.DamagePierce: 0.2, equipment.DamageArcane: -0.1,
			}},
			{ID: "leather", Name: "Leather Jerkin", DV: 9, PV: 7, Resistances: map[equipment.DamageType]float64{
				equipment.DamageSlash: 0.1, equipment.DamageBlunt: 0.1,
			}},
			{ID: "robes", Name: "Warded Robes", DV: 8, PV: 5, Resistances: map[equipment.DamageType]float64{
				equipment.DamageArcane: 0.5, equipment.DamageFire: 0.2,
			}},
		},
		Styles: []abilities.Style{
			{
				ID: "blade", Name: "Way of the Blade",
				Actives: []abilities.Active{
					{
						ID: "cut", Name: "Cut", Animation: "slash_h", Cost: abilities.Cost{Posture: 20},
						Range: abilities.Range{Min: 1, Max: 1}, Dice: []int{6, 6, 4},
						Potencies:   map[equipment.Potency]float64{equipment.PotencySlash: 100},
						DamageTypes: map[equipment.DamageType]float64{equipment.DamageSlash: 100},
						HitChance:   80, CritChance: 5,
					},
					{
						ID: "thrust", Name: "Thrust", Animation: "thrust", Cost: abilities.Cost{Posture: 25},
						Range: abilities.Range{Min: 1, Max: 2}, Dice: []int{8, 8},
						Potencies:   map[equipment.Potency]float64{equipment.PotencyPierce: 80, equipment.PotencySlash: 20},
						DamageTypes: map[equipment.DamageType]float64{equipment.DamagePierce: 100},
						Triggers: map[abilities.Hook][]abilities.Trigger{
							abilities.HookAfterStrike: {{Kind: abilities.TriggerApplyStatus, Target: abilities.SideDefender, Status: StatusBleed, Stacks: 1, OnlyOnHit: true}},
						},
						HitChance: 70, CritChance: 10,
					},
				},
				Reactives: []abilities.Reactive{
					{
						ID: "parry", Name: "Parry", Animation: "parry", Cost: abilities.Cost{Posture: 10},
						Chance:    abilities.ChanceFormula{Base: 25, Reality: "maneuver", DefenderScale: 1, AttackerScale: 1},
						OnSuccess: abilities.Outcome{DamageFactor: factor(0), Attacker: pools.Delta{pools.Posture: -10}},
						OnFailure: abilities.Outcome{Defender: pools.Delta{pools.Posture: -5}},
					},
				},
				Passives: []abilities.Passive{{Status: StatusPoise}},
			},
			{
				ID: "arcane", Name: "Arcane Lance",
				Actives: []abilities.Active{
					{
						ID: "bolt", Name: "Arcane Bolt", Animation: "cast", Cost: abilities.Cost{Posture: 25, Mana: 3},
						Range: abilities.Range{Min: 1, Max: 4}, Dice: []int{10},
						Potencies:   map[equipment.Potency]float64{equipment.PotencyArcane: 100},
						DamageTypes: map[equipment.DamageType]float64{equipment.DamageArcane: 70, equipment.DamageFire: 30},
						HitChance:   75, CritChance: 5,
					},
					{
						ID: "jolt", Name: "Jolt", Animation: "cast_short", Cost: abilities.Cost{Posture: 30, Mana: 5},
						Range: abilities.Range{Min: 1, Max: 3}, Dice: []int{6},
						Potencies:   map[equipment.Potency]float64{equipment.PotencyArcane: 50},
						DamageTypes: map[equipment.DamageType]float64{equipment.DamageArcane: 100},
						Triggers: map[abilities.Hook][]abilities.Trigger{
							abilities.HookAfterAttack: {{Kind: abilities.TriggerApplyStatus, Target: abilities.SideDefender, Status: StatusStun, Stacks: 1}},
						},
						HitChance: 60,
					},
				},
				Reactives: []abilities.Reactive{
					{
						ID: "blink", Name: "Blink", Animation: "blink", Cost: abilities.Cost{Mana: 2},
						Chance:    abilities.ChanceFormula{Base: 20, Reality: "mana", DefenderScale: 1, AttackerScale: 0.5},
						OnSuccess: abilities.Outcome{DamageFactor: factor(0.5)},
					},
				},
				Passives: []abilities.Passive{{Status: StatusWard}},
			},
			{
				ID: "brawl", Name: "Brawling",
				Actives: []abilities.Active{
					{
						ID: "jab", Name: "Jab", Animation: "jab", Cost: abilities.Cost{Posture: 15},
						Range: abilities.Range{Min: 1, Max: 1}, Dice: []int{4, 4, 4},
						Potencies:   map[equipment.Potency]float64{equipment.PotencyBlunt: 60},
						DamageTypes: map[equipment.DamageType]float64{equipment.DamageBlunt: 100},
						HitChance:   85, CritChance: 5,
					},
					{
						ID: "haymaker", Name: "Haymaker", Animation: "hook", Cost: abilities.Cost{Posture: 35},
						Range: abilities.Range{Min: 1, Max: 1}, Dice: []int{12},
						Potencies:   map[equipment.Potency]float64{equipment.PotencyBlunt: 150},
						DamageTypes: map[equipment.DamageType]float64{equipment.DamageBlunt: 100},
						Triggers: map[abilities.Hook][]abilities.Trigger{
							abilities.HookBeforeAttack: {{Kind: abilities.TriggerResourceDelta, Target: abilities.SideAttacker, Resource: pools.Stamina, Amount: -5}},
						},
						HitChance: 60, CritChance: 15,
					},
				},
				Reactives: []abilities.Reactive{
					{
						ID: "brace", Name: "Brace", Animation: "brace",
						Chance:    abilities.ChanceFormula{Base: 30, Reality: "bravery", DefenderScale: 1, AttackerScale: 1},
						OnSuccess: abilities.Outcome{DamageFactor: factor(0.5), Status: StatusGuarded},
					},
				},
			},
		},
		Templates: []Template{
			{
				ID: "knight", Name: "Knight", Weapon: "longsword", Armour: "plate", Styles: []string{"blade", "brawl"},
				Attributes: attributes(14, 10, 8, 9, 12, 8, 8, 10, 9, 8, 12, 14),
			},
			{
				ID: "duelist", Name: "Duelist", Weapon: "longsword", Armour: "leather", Styles: []string{"blade"},
				Attributes: attributes(10, 14, 13, 12, 9, 10, 8, 8, 10, 10, 10, 10),
			},
			{
				ID: "mage", Name: "Battle Mage", Weapon: "staff", Armour: "robes", Styles: []string{"arcane", "brawl"},
				Attributes: attributes(7, 10, 9, 10, 8, 16, 14, 10, 10, 9, 12, 9),
				Stance:     abilities.StanceHigh,
			},
			{
				ID: "brute", Name: "Brute", Weapon: "knuckles", Armour: "leather", Styles: []string{"brawl"},
				Attributes: attributes(16, 8, 9, 8, 14, 6, 6, 6, 6, 6, 10, 15),
				Stance:     abilities.StanceLow,
			},
		},
	}
}

// attributes lists values in declaration order: str dex acr spd siz int spr
// fai cha beu wil end.
func attributes(values ...float64) stats.Block {
	var set stats.ValueSet
	copy(set[:], values)
	return stats.BlockFrom(set)
}
