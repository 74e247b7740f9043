package validate

import (
	"math"

	"hexclash/server/internal/abilities"
	"hexclash/server/internal/action"
	"hexclash/server/internal/combatant"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/pools"
)

// MovementCost is the posture spent per hex step.
const MovementCost = 10.0

// View is the read-only slice of match state the checks need. The authority
// and client mirrors both satisfy it.
type View interface {
	Grid() *hex.Grid
	Combatant(id int64) (*combatant.Combatant, bool)
	CurrentActor() (int64, bool)
	Over() bool
}

// Rules holds the movement tuning shared by both sides.
type Rules struct {
	MovementCost float64
	Heuristic    hex.Heuristic
}

func (r Rules) normalized() Rules {
	if r.MovementCost <= 0 {
		r.MovementCost = MovementCost
	}
	if r.Heuristic == nil {
		r.Heuristic = hex.HexHeuristic
	}
	return r
}

// MovePlan is the validated route for a move.
type MovePlan struct {
	Path []hex.Coord
	Cost float64
}

// Steps is the number of cells walked.
func (p MovePlan) Steps() int {
	if len(p.Path) == 0 {
		return 0
	}
	return len(p.Path) - 1
}

// AttackPlan is the validated shape of an attack.
type AttackPlan struct {
	Ability  *abilities.Active
	Target   *combatant.Combatant
	Distance int
}

// StepBudget is how many hexes the given posture pays for.
func (r Rules) StepBudget(posture float64) int {
	r = r.normalized()
	if posture <= 0 {
		return 0
	}
	return int(math.Floor(posture / r.MovementCost))
}

// CheckParticipant rejects users that are not live match combatants.
func CheckParticipant(view View, userID int64) (*combatant.Combatant, error) {
	if view == nil {
		return nil, reject(RejectNotParticipant, "no match")
	}
	if view.Over() {
		return nil, reject(RejectMatchOver, "match finished")
	}
	c, ok := view.Combatant(userID)
	if !ok || c == nil || !c.Alive() {
		return nil, reject(RejectNotParticipant, "user %d", userID)
	}
	return c, nil
}

// CheckTurn rejects users that are not the elected actor.
func CheckTurn(view View, userID int64) (*combatant.Combatant, error) {
	c, err := CheckParticipant(view, userID)
	if err != nil {
		return nil, err
	}
	current, ok := view.CurrentActor()
	if !ok || current != userID {
		return nil, reject(RejectNotYourTurn, "user %d, actor %d", userID, current)
	}
	return c, nil
}

// Check runs the kind-specific rules for an action declared by actorID.
// ResolveAttacks is never accepted from a client.
func (r Rules) Check(view View, actorID int64, act action.Action) error {
	if err := act.WellFormed(); err != nil {
		return reject(RejectMalformed, "%v", err)
	}
	switch act.Kind {
	case action.KindMove:
		_, err := r.CheckMove(view, actorID, *act.Move)
		return err
	case action.KindAttack:
		_, err := r.CheckAttack(view, actorID, *act.Attack)
		return err
	case action.KindStyleSwitch:
		return r.CheckStyleSwitch(view, actorID, *act.StyleSwitch)
	case action.KindResolveAttacks:
		return reject(RejectAuthorityOnly, "resolve_attacks is produced by the authority")
	}
	return reject(RejectMalformed, "unknown kind %q", act.Kind)
}

// CheckMove verifies source ownership, destination vacancy and that a complete
// path exists within the actor's posture budget.
func (r Rules) CheckMove(view View, actorID int64, move action.Move) (MovePlan, error) {
	r = r.normalized()
	actor, err := CheckParticipant(view, actorID)
	if err != nil {
		return MovePlan{}, err
	}
	grid := view.Grid()
	if !grid.Contains(move.From) || !grid.Contains(move.To) {
		return MovePlan{}, reject(RejectOutOfBounds, "%s -> %s", move.From, move.To)
	}
	pos, placed := actor.Position()
	if !placed || pos != move.From || grid.Occupant(move.From) != actorID {
		return MovePlan{}, reject(RejectSourceMismatch, "cell %s holds %d", move.From, grid.Occupant(move.From))
	}
	if move.To == move.From {
		return MovePlan{}, reject(RejectMalformed, "move to own cell")
	}
	if !grid.IsVacant(move.To) {
		return MovePlan{}, reject(RejectDestinationOccupied, "cell %s holds %d", move.To, grid.Occupant(move.To))
	}

	budget := r.StepBudget(actor.Get(pools.Posture))
	result := hex.FindPath(grid, move.From, move.To, hex.PathOptions{Limit: budget, Heuristic: r.Heuristic})
	if !result.Complete {
		return MovePlan{}, reject(RejectUnreachable, "no route to %s", move.To)
	}
	if result.Steps() > budget {
		return MovePlan{}, reject(RejectInsufficient, "%d steps, budget %d", result.Steps(), budget)
	}
	return MovePlan{Path: result.Path, Cost: float64(result.Steps()) * r.MovementCost}, nil
}

// CheckAttack verifies the ability is equipped, unused and affordable, and
// that an enemy stands within range on the target cell.
func (r Rules) CheckAttack(view View, actorID int64, attack action.Attack) (AttackPlan, error) {
	actor, err := CheckParticipant(view, actorID)
	if err != nil {
		return AttackPlan{}, err
	}
	style := actor.Style()
	ability, ok := style.Active(attack.Ability)
	if !ok {
		return AttackPlan{}, reject(RejectUnknownAbility, "%q", attack.Ability)
	}
	if actor.Usage().ActiveUsed(ability.ID) {
		return AttackPlan{}, reject(RejectAbilityUsed, "%q", ability.ID)
	}
	if !ability.Cost.Affordable(actor.PoolsRef()) {
		return AttackPlan{}, reject(RejectInsufficient, "%q", ability.ID)
	}

	grid := view.Grid()
	if !grid.Contains(attack.Target) {
		return AttackPlan{}, reject(RejectOutOfBounds, "%s", attack.Target)
	}
	targetID := grid.Occupant(attack.Target)
	if targetID == hex.Vacant || targetID == actorID {
		return AttackPlan{}, reject(RejectNoTarget, "cell %s", attack.Target)
	}
	target, ok := view.Combatant(targetID)
	if !ok || target == nil || !target.Alive() {
		return AttackPlan{}, reject(RejectNoTarget, "occupant %d", targetID)
	}
	if target.Team() != "" && target.Team() == actor.Team() {
		return AttackPlan{}, reject(RejectFriendlyTarget, "occupant %d", targetID)
	}
	pos, _ := actor.Position()
	distance := hex.Distance(pos, attack.Target)
	if !ability.InRange(distance) {
		return AttackPlan{}, reject(RejectOutOfRange, "distance %d", distance)
	}
	return AttackPlan{Ability: ability, Target: target, Distance: distance}, nil
}

// CheckStyleSwitch verifies the index names another owned style.
func (r Rules) CheckStyleSwitch(view View, actorID int64, sw action.StyleSwitch) error {
	actor, err := CheckParticipant(view, actorID)
	if err != nil {
		return err
	}
	if sw.Index < 0 || sw.Index >= len(actor.Styles()) {
		return reject(RejectInvalidStyle, "index %d of %d", sw.Index, len(actor.Styles()))
	}
	if sw.Index == actor.StyleIndex() {
		return reject(RejectInvalidStyle, "style %d already equipped", sw.Index)
	}
	return nil
}
