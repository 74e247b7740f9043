package stats

// realityWeights holds the fixed linear formulas bridging attributes and
// combat math. Each Reality is the weighted sum of attribute totals.
var realityWeights = [DerivedCount]ValueSet{
	RealityHealth: {
		StatEndurance: 4,
		StatSize:      3,
		StatStrength:  1,
	},
	RealityForce: {
		StatStrength: 0.7,
		StatSize:     0.3,
	},
	RealityMana: {
		StatIntelligence: 0.6,
		StatSpirit:       0.4,
	},
	RealitySpirituality: {
		StatSpirit:    0.7,
		StatWillpower: 0.3,
	},
	RealityDivinity: {
		StatFaith:    0.8,
		StatCharisma: 0.2,
	},
	RealityPrecision: {
		StatDexterity:    0.7,
		StatIntelligence: 0.3,
	},
	RealityManeuver: {
		StatAcrobatics: 0.6,
		StatDexterity:  0.2,
		StatSpeed:      0.2,
	},
	RealityConvince: {
		StatCharisma: 0.6,
		StatBeauty:   0.4,
	},
	RealityBravery: {
		StatWillpower: 0.6,
		StatEndurance: 0.4,
	},
}

const maxAttribute = 1e6

func computeDerived(total ValueSet) DerivedSet {
	var clamped ValueSet
	for i, v := range total {
		clamped[i] = clamp(v, 0, maxAttribute)
	}

	var derived DerivedSet
	for id := DerivedID(0); id < DerivedCount; id++ {
		weights := realityWeights[id]
		sum := 0.0
		for stat, weight := range weights {
			sum += clamped[stat] * weight
		}
		derived[id] = sum
	}
	return derived
}

// Derive computes Reality values directly from an attribute block without
// going through a Component.
func Derive(total ValueSet) DerivedSet {
	return computeDerived(total)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
