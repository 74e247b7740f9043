package abilities

import (
	"fmt"
	"strings"
)

// Stance is the guard a combatant holds between actions.
type Stance uint8

const (
	StanceMid Stance = iota
	StanceHigh
	StanceLow
	StanceProne
)

var stanceNames = [...]string{
	StanceMid:   "mid",
	StanceHigh:  "high",
	StanceLow:   "low",
	StanceProne: "prone",
}

func (s Stance) String() string {
	if int(s) >= len(stanceNames) {
		return fmt.Sprintf("stance(%d)", s)
	}
	return stanceNames[s]
}

// ParseStance resolves a stance name; the empty string means mid.
func ParseStance(name string) (Stance, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return StanceMid, true
	}
	for i, candidate := range stanceNames {
		if candidate == name {
			return Stance(i), true
		}
	}
	return 0, false
}

func (s Stance) MarshalText() ([]byte, error) {
	if int(s) >= len(stanceNames) {
		return nil, fmt.Errorf("abilities: invalid stance %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Stance) UnmarshalText(text []byte) error {
	parsed, ok := ParseStance(string(text))
	if !ok {
		return fmt.Errorf("abilities: unknown stance %q", string(text))
	}
	*s = parsed
	return nil
}

// Direction constrains where an active ability may be aimed.
type Direction string

const (
	DirectionAny     Direction = "any"
	DirectionForward Direction = "forward"
	DirectionSelf    Direction = "self"
)
