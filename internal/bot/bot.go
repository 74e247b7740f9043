// Package bot drives non-human combatants. A bot sees the same validated
// view a client would and answers with the action it wants to submit; the
// hub feeds that action through the ordinary token protocol.
package bot

import (
	"sort"

	"hexclash/server/internal/abilities"
	"hexclash/server/internal/action"
	"hexclash/server/internal/combatant"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/pools"
	"hexclash/server/internal/validate"
)

// MaxActionsPerTurn bounds how many actions a bot submits before it yields.
const MaxActionsPerTurn = 8

type enemy struct {
	id       int64
	at       hex.Coord
	distance int
}

// Decide picks the next action for actorID. It prefers an attack with an
// unused ability that reaches an enemy, then a switch to a style that has
// one, then a move toward the nearest enemy. ok is false when nothing useful
// is left and the bot should end its turn.
func Decide(view validate.View, rules validate.Rules, actorID int64) (action.Action, bool) {
	self, ok := view.Combatant(actorID)
	if !ok || self == nil || !self.Alive() {
		return action.Action{}, false
	}
	pos, placed := self.Position()
	if !placed {
		return action.Action{}, false
	}
	enemies := enemiesOf(view, self, pos)
	if len(enemies) == 0 {
		return action.Action{}, false
	}

	if act, ok := chooseAttack(view, rules, self, self.Style(), enemies); ok {
		return act, true
	}
	if act, ok := chooseSwitch(view, rules, self, enemies); ok {
		return act, true
	}
	return chooseMove(view, rules, self, pos, enemies)
}

// enemiesOf lists live opponents ordered by distance, then id.
func enemiesOf(view validate.View, self *combatant.Combatant, pos hex.Coord) []enemy {
	var out []enemy
	for _, cell := range view.Grid().Cells() {
		if !cell.Occupied() || cell.Occupant == self.ID() {
			continue
		}
		other, ok := view.Combatant(cell.Occupant)
		if !ok || other == nil || !other.Alive() {
			continue
		}
		if self.Team() != "" && other.Team() == self.Team() {
			continue
		}
		out = append(out, enemy{id: other.ID(), at: cell.Coord, distance: hex.Distance(pos, cell.Coord)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].distance != out[j].distance {
			return out[i].distance < out[j].distance
		}
		return out[i].id < out[j].id
	})
	return out
}

func chooseAttack(view validate.View, rules validate.Rules, self *combatant.Combatant, style *abilities.Style, enemies []enemy) (action.Action, bool) {
	if style == nil {
		return action.Action{}, false
	}
	for _, ability := range self.Usage().AvailableActives(style) {
		if !ability.Cost.Affordable(self.PoolsRef()) {
			continue
		}
		for _, target := range enemies {
			if !ability.InRange(target.distance) {
				continue
			}
			act := action.NewAttack(ability.ID, target.at)
			if rules.Check(view, self.ID(), act) == nil {
				return act, true
			}
		}
	}
	return action.Action{}, false
}

// chooseSwitch equips another owned style when the current one has nothing
// that reaches an enemy and the other does.
func chooseSwitch(view validate.View, rules validate.Rules, self *combatant.Combatant, enemies []enemy) (action.Action, bool) {
	for i, style := range self.Styles() {
		if i == self.StyleIndex() || !reaches(self, style, enemies) {
			continue
		}
		act := action.NewStyleSwitch(i)
		if rules.Check(view, self.ID(), act) == nil {
			return act, true
		}
	}
	return action.Action{}, false
}

func reaches(self *combatant.Combatant, style *abilities.Style, enemies []enemy) bool {
	for _, ability := range self.Usage().AvailableActives(style) {
		if !ability.Cost.Affordable(self.PoolsRef()) {
			continue
		}
		for _, target := range enemies {
			if ability.InRange(target.distance) {
				return true
			}
		}
	}
	return false
}

// chooseMove walks toward the nearest enemy it can approach, stopping next
// to it and never spending more posture than the budget allows.
func chooseMove(view validate.View, rules validate.Rules, self *combatant.Combatant, pos hex.Coord, enemies []enemy) (action.Action, bool) {
	budget := rules.StepBudget(self.Get(pools.Posture))
	if budget <= 0 {
		return action.Action{}, false
	}
	grid := view.Grid()
	for _, target := range enemies {
		if target.distance <= 1 {
			continue
		}
		result := hex.FindPath(grid, pos, target.at, hex.PathOptions{Limit: -1, Heuristic: rules.Heuristic})
		route := result.Path
		if result.Complete && len(route) > 0 {
			route = route[:len(route)-1]
		}
		route = hex.Truncate(route, budget)
		if len(route) < 2 {
			continue
		}
		act := action.NewMove(pos, route[len(route)-1])
		if rules.Check(view, self.ID(), act) == nil {
			return act, true
		}
	}
	return action.Action{}, false
}
