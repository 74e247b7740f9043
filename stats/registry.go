package stats

import (
	"fmt"
	"sort"
	"strings"
)

var statNames = [StatCount]string{
	StatStrength:     "str",
	StatDexterity:    "dex",
	StatAcrobatics:   "acr",
	StatSpeed:        "spd",
	StatSize:         "siz",
	StatIntelligence: "int",
	StatSpirit:       "spr",
	StatFaith:        "fai",
	StatCharisma:     "cha",
	StatBeauty:       "beu",
	StatWillpower:    "wil",
	StatEndurance:    "end",
}

var realityNames = [DerivedCount]string{
	RealityHealth:       "hp",
	RealityForce:        "force",
	RealityMana:         "mana",
	RealitySpirituality: "spirituality",
	RealityDivinity:     "divinity",
	RealityPrecision:    "precision",
	RealityManeuver:     "maneuver",
	RealityConvince:     "convince",
	RealityBravery:      "bravery",
}

func (id StatID) String() string {
	if id >= StatCount {
		return fmt.Sprintf("stat(%d)", id)
	}
	return statNames[id]
}

func (id DerivedID) String() string {
	if id >= DerivedCount {
		return fmt.Sprintf("reality(%d)", id)
	}
	return realityNames[id]
}

// ParseStat resolves a short attribute name such as "str".
func ParseStat(name string) (StatID, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, candidate := range statNames {
		if candidate == name {
			return StatID(id), true
		}
	}
	return 0, false
}

// ParseReality resolves a Reality name such as "precision".
func ParseReality(name string) (DerivedID, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, candidate := range realityNames {
		if candidate == name {
			return DerivedID(id), true
		}
	}
	return 0, false
}

// Block is the designer-facing attribute map keyed by short names.
type Block map[string]float64

// ValueSet converts the block, failing on unknown attribute names.
func (b Block) ValueSet() (ValueSet, error) {
	var out ValueSet
	keys := make([]string, 0, len(b))
	for key := range b {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		id, ok := ParseStat(key)
		if !ok {
			return ValueSet{}, fmt.Errorf("stats: unknown attribute %q", key)
		}
		out[id] = b[key]
	}
	return out, nil
}

// BlockFrom renders a ValueSet back into its map form.
func BlockFrom(values ValueSet) Block {
	out := make(Block, StatCount)
	for id, v := range values {
		out[statNames[id]] = v
	}
	return out
}
