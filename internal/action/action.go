// Package action defines the declared actions a combatant may commit.
package action

import (
	"fmt"

	"hexclash/server/internal/combat"
	"hexclash/server/internal/hex"
)

// Kind tags the action union.
type Kind string

const (
	KindMove           Kind = "move"
	KindAttack         Kind = "attack"
	KindResolveAttacks Kind = "resolve_attacks"
	KindStyleSwitch    Kind = "style_switch"
)

// Move walks the actor from one cell to another.
type Move struct {
	From hex.Coord `json:"from"`
	To   hex.Coord `json:"to"`
}

// Attack declares an active ability against the combatant on Target.
type Attack struct {
	Ability string    `json:"ability"`
	Target  hex.Coord `json:"target"`
}

// ResolveAttacks carries authority-resolved clashes for mirrors to replay.
type ResolveAttacks struct {
	Results []combat.ClashResult `json:"results"`
}

// StyleSwitch equips another owned fighting style.
type StyleSwitch struct {
	Index int `json:"styleIndex"`
}

// Action is the tagged union. Exactly one payload matches Kind.
type Action struct {
	Kind           Kind            `json:"kind"`
	Move           *Move           `json:"move,omitempty"`
	Attack         *Attack         `json:"attack,omitempty"`
	ResolveAttacks *ResolveAttacks `json:"resolveAttacks,omitempty"`
	StyleSwitch    *StyleSwitch    `json:"styleSwitch,omitempty"`
}

// WellFormed checks that the payload matches the kind.
func (a Action) WellFormed() error {
	payloads := 0
	for _, present := range []bool{a.Move != nil, a.Attack != nil, a.ResolveAttacks != nil, a.StyleSwitch != nil} {
		if present {
			payloads++
		}
	}
	if payloads != 1 {
		return fmt.Errorf("action %q carries %d payloads", a.Kind, payloads)
	}
	switch a.Kind {
	case KindMove:
		if a.Move == nil {
			return fmt.Errorf("move action without move payload")
		}
	case KindAttack:
		if a.Attack == nil || a.Attack.Ability == "" {
			return fmt.Errorf("attack action without ability")
		}
	case KindResolveAttacks:
		if a.ResolveAttacks == nil || len(a.ResolveAttacks.Results) == 0 {
			return fmt.Errorf("resolve action without results")
		}
	case KindStyleSwitch:
		if a.StyleSwitch == nil {
			return fmt.Errorf("style switch without payload")
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

// NewMove builds a move action.
func NewMove(from, to hex.Coord) Action {
	return Action{Kind: KindMove, Move: &Move{From: from, To: to}}
}

// NewAttack builds an attack action.
func NewAttack(ability string, target hex.Coord) Action {
	return Action{Kind: KindAttack, Attack: &Attack{Ability: ability, Target: target}}
}

// NewStyleSwitch builds a style switch action.
func NewStyleSwitch(index int) Action {
	return Action{Kind: KindStyleSwitch, StyleSwitch: &StyleSwitch{Index: index}}
}

// NewResolveAttacks builds the authority replay action.
func NewResolveAttacks(results ...combat.ClashResult) Action {
	return Action{Kind: KindResolveAttacks, ResolveAttacks: &ResolveAttacks{Results: results}}
}
