package match

import (
	"context"
	"fmt"
	"math"

	"hexclash/server/internal/abilities"
	"hexclash/server/internal/catalog"
	"hexclash/server/internal/combatant"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/journal"
	"hexclash/server/internal/pools"
	"hexclash/server/internal/status"
	"hexclash/server/stats"
)

// Snapshot is the replicated match state.
type Snapshot struct {
	MatchID        string         `json:"matchId"`
	Turn           uint64         `json:"turn"`
	Phase          string         `json:"phase"`
	Version        uint64         `json:"version"`
	Sequence       uint64         `json:"sequence"`
	CurrentActorID *int64         `json:"currentActorId,omitempty"`
	Over           bool           `json:"over,omitempty"`
	Winner         string         `json:"winner,omitempty"`
	Partial        bool           `json:"partial,omitempty"`
	Grid           GridSnapshot   `json:"grid"`
	Teams          []TeamSnapshot `json:"teams"`
}

// GridSnapshot describes the board.
type GridSnapshot struct {
	Center hex.Point      `json:"center"`
	Radius int            `json:"radius"`
	Size   float64        `json:"size"`
	Cells  []CellSnapshot `json:"cells"`
}

// CellSnapshot is one cell. OccupantID is absent for a vacant cell.
type CellSnapshot struct {
	Q          int         `json:"q"`
	R          int         `json:"r"`
	Terrain    hex.Terrain `json:"terrain"`
	Height     int         `json:"height"`
	OccupantID *int64      `json:"occupantId,omitempty"`
}

// TeamSnapshot groups combatants by team.
type TeamSnapshot struct {
	Name    string           `json:"name"`
	Members []EntitySnapshot `json:"members"`
}

// EntitySnapshot is one combatant.
type EntitySnapshot struct {
	PlayerID      int64             `json:"playerId"`
	Name          string            `json:"name"`
	Template      string            `json:"template"`
	Bot           bool              `json:"bot,omitempty"`
	Stats         stats.Block       `json:"stats"`
	Q             int               `json:"q"`
	R             int               `json:"r"`
	Placed        bool              `json:"placed"`
	HP            float64           `json:"hp"`
	MaxHP         float64           `json:"maxHp"`
	Stamina       float64           `json:"stamina"`
	Org           float64           `json:"org"`
	Posture       float64           `json:"posture"`
	Mana          float64           `json:"mana"`
	Stance        abilities.Stance  `json:"stance"`
	Team          string            `json:"team"`
	StyleIndex    int               `json:"styleIndex"`
	UsedActives   []string          `json:"usedActives,omitempty"`
	UsedReactives []string          `json:"usedReactives,omitempty"`
	Statuses      []status.Instance `json:"statuses,omitempty"`
	Version       uint64            `json:"version"`
}

// Entity finds a member across teams.
func (s Snapshot) Entity(id int64) (EntitySnapshot, bool) {
	for _, team := range s.Teams {
		for _, member := range team.Members {
			if member.PlayerID == id {
				return member, true
			}
		}
	}
	return EntitySnapshot{}, false
}

// Cell finds a cell by coordinate.
func (s Snapshot) Cell(q, r int) (CellSnapshot, bool) {
	for _, cell := range s.Grid.Cells {
		if cell.Q == q && cell.R == r {
			return cell, true
		}
	}
	return CellSnapshot{}, false
}

func (m *Match) snapshotLocked() Snapshot {
	snap := Snapshot{
		MatchID:  m.cfg.ID,
		Turn:     m.turn,
		Phase:    m.phase.Current(),
		Version:  m.version,
		Sequence: m.journal.Sequence(),
		Over:     m.over,
		Winner:   m.winner,
		Grid: GridSnapshot{
			Center: m.grid.Layout().Center,
			Radius: m.grid.Radius(),
			Size:   m.grid.Layout().Scale,
		},
	}
	if m.actor != 0 {
		actor := m.actor
		snap.CurrentActorID = &actor
	}
	for _, cell := range m.grid.Cells() {
		cs := CellSnapshot{Q: cell.Coord.Q, R: cell.Coord.R, Terrain: cell.Terrain, Height: cell.Height}
		if cell.Occupied() {
			occupant := cell.Occupant
			cs.OccupantID = &occupant
		}
		snap.Grid.Cells = append(snap.Grid.Cells, cs)
	}

	byTeam := make(map[string]int)
	for _, id := range m.order {
		c := m.arena[id]
		idx, ok := byTeam[c.Team()]
		if !ok {
			idx = len(snap.Teams)
			byTeam[c.Team()] = idx
			snap.Teams = append(snap.Teams, TeamSnapshot{Name: c.Team()})
		}
		snap.Teams[idx].Members = append(snap.Teams[idx].Members, m.entitySnapshot(c))
	}
	return snap
}

func (m *Match) entitySnapshot(c *combatant.Combatant) EntitySnapshot {
	state := c.State()
	return EntitySnapshot{
		PlayerID:      state.ID,
		Name:          state.Name,
		Template:      state.Template,
		Bot:           state.Bot,
		Stats:         stats.BlockFrom(c.Stats().Totals()),
		Q:             state.Position.Q,
		R:             state.Position.R,
		Placed:        state.Placed,
		HP:            state.Pools[pools.Health],
		MaxHP:         state.MaxHealth,
		Stamina:       state.Pools[pools.Stamina],
		Org:           state.Pools[pools.Organization],
		Posture:       state.Pools[pools.Posture],
		Mana:          state.Pools[pools.Mana],
		Stance:        state.Stance,
		Team:          state.Team,
		StyleIndex:    state.StyleIndex,
		UsedActives:   state.UsedActives,
		UsedReactives: state.UsedReactives,
		Statuses:      m.statuses[c.ID()].Instances(),
		Version:       state.Version,
	}
}

func (e EntitySnapshot) state() combatant.State {
	s := combatant.State{
		ID:            e.PlayerID,
		Name:          e.Name,
		Team:          e.Team,
		Template:      e.Template,
		Bot:           e.Bot,
		Position:      hex.NewCoord(e.Q, e.R),
		Placed:        e.Placed,
		MaxHealth:     e.MaxHP,
		Stance:        e.Stance,
		StyleIndex:    e.StyleIndex,
		UsedActives:   e.UsedActives,
		UsedReactives: e.UsedReactives,
		Version:       e.Version,
	}
	s.Pools[pools.Health] = e.HP
	s.Pools[pools.Stamina] = e.Stamina
	s.Pools[pools.Organization] = e.Org
	s.Pools[pools.Posture] = e.Posture
	s.Pools[pools.Mana] = e.Mana
	return s
}

// divergenceEpsilon is the pool difference a mirror tolerates before it
// counts its prediction as wrong.
const divergenceEpsilon = 1e-6

// Sync merges a snapshot from the authority into a mirror. Entities in the
// snapshot overwrite local predictions; unless the snapshot is partial,
// local entities missing from it are removed.
func (m *Match) Sync(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	err := m.syncLocked(ctx, snap)
	pending := m.takePending()
	m.mu.Unlock()
	m.flush(pending)
	return err
}

func (m *Match) syncLocked(ctx context.Context, snap Snapshot) error {
	if m.cfg.Authority {
		return ErrAuthority
	}
	if snap.Grid.Radius != 0 && snap.Grid.Radius != m.grid.Radius() {
		return fmt.Errorf("%w: radius %d, local %d", ErrGridMismatch, snap.Grid.Radius, m.grid.Radius())
	}

	seen := make(map[int64]struct{})
	incoming := make([]EntitySnapshot, 0)
	for _, team := range snap.Teams {
		for _, member := range team.Members {
			seen[member.PlayerID] = struct{}{}
			incoming = append(incoming, member)
		}
	}
	if !snap.Partial {
		for _, id := range append([]int64(nil), m.order...) {
			if _, ok := seen[id]; !ok {
				m.policy.NoteDivergence("removed", id)
				if err := m.removeLocked(ctx, id, "sync"); err != nil {
					m.cfg.Logger.Printf("match %s: sync remove %d: %v", m.cfg.ID, id, err)
				}
			}
		}
	}

	// Vacate every moved combatant first so relocations that swap or chain
	// through each other's cells never see an occupied destination.
	for _, es := range incoming {
		c, ok := m.arena[es.PlayerID]
		if !ok {
			continue
		}
		pos, placed := c.Position()
		if placed && (!es.Placed || pos != hex.NewCoord(es.Q, es.R)) {
			m.policy.NoteDivergence("position", es.PlayerID)
			_ = m.grid.Vacate(pos, c.ID())
		}
	}
	for _, es := range incoming {
		m.policy.NoteEvent()
		c, known := m.arena[es.PlayerID]
		if !known {
			if es.Placed {
				m.evictLocked(hex.NewCoord(es.Q, es.R), es.PlayerID, seen)
			}
			var err error
			c, err = m.adoptLocked(ctx, es)
			if err != nil {
				m.policy.NoteDivergence("join", es.PlayerID)
				m.cfg.Logger.Printf("match %s: sync adopt %d: %v", m.cfg.ID, es.PlayerID, err)
				continue
			}
		}
		if known && poolsDiverge(c, es) {
			m.policy.NoteDivergence("pools", es.PlayerID)
		}
		state := es.state()
		if es.Placed {
			at := hex.NewCoord(es.Q, es.R)
			if m.grid.Occupant(at) != c.ID() {
				m.evictLocked(at, c.ID(), seen)
				if err := m.grid.Occupy(at, c.ID()); err != nil {
					// The combatant stays off the board until a later sync
					// names a cell it can hold.
					m.policy.NoteDivergence("position", es.PlayerID)
					m.cfg.Logger.Printf("match %s: sync place %d at %s: %v", m.cfg.ID, c.ID(), at, err)
					state.Placed = false
				}
			}
		}
		c.Restore(state)
		m.statuses[c.ID()].Restore(es.Statuses)
		m.refreshModifiers(c)
	}

	for _, cell := range snap.Grid.Cells {
		coord := hex.NewCoord(cell.Q, cell.R)
		if cell.Terrain != "" {
			_ = m.grid.SetTerrain(coord, cell.Terrain, cell.Height)
		}
	}

	m.turn = snap.Turn
	m.actor = 0
	if snap.CurrentActorID != nil {
		m.actor = *snap.CurrentActorID
	}
	if validPhase(snap.Phase) {
		m.phase.SetState(snap.Phase)
	}
	m.over = snap.Over
	m.winner = snap.Winner
	m.started = m.started || snap.Turn > 0
	m.touch()
	return nil
}

// evictLocked clears at for id. A snapshot is authoritative for the cells it
// names, so a local occupant the snapshot does not mention is lifted off the
// board. An occupant the snapshot also lists is left in place.
func (m *Match) evictLocked(at hex.Coord, id int64, seen map[int64]struct{}) {
	holder := m.grid.Occupant(at)
	if holder == hex.Vacant || holder == id {
		return
	}
	if _, listed := seen[holder]; listed {
		return
	}
	m.policy.NoteDivergence("evicted", holder)
	if other, ok := m.arena[holder]; ok {
		other.Remove(m.grid)
	}
	_ = m.grid.Vacate(at, holder)
}

// adoptLocked builds a combatant first seen in a snapshot.
func (m *Match) adoptLocked(ctx context.Context, es EntitySnapshot) (*combatant.Combatant, error) {
	spec := catalog.Spec{ID: es.PlayerID, Name: es.Name, Team: es.Team, Template: es.Template, Bot: es.Bot}
	var at *hex.Coord
	if es.Placed {
		coord := hex.NewCoord(es.Q, es.R)
		if m.grid.IsVacant(coord) {
			at = &coord
		}
	}
	if at == nil {
		return nil, fmt.Errorf("%w: no cell for %d", ErrNoSpawn, es.PlayerID)
	}
	if _, err := m.joinLocked(ctx, spec, at); err != nil {
		return nil, err
	}
	return m.arena[es.PlayerID], nil
}

func poolsDiverge(c *combatant.Combatant, es EntitySnapshot) bool {
	want := es.state().Pools
	have := c.Pools()
	for r := pools.Resource(0); r < pools.ResourceCount; r++ {
		if math.Abs(want[r]-have[r]) > divergenceEpsilon {
			return true
		}
	}
	return false
}

// ResyncRequested reports whether a mirror's predictions drifted enough to
// ask the authority for a full snapshot.
func (m *Match) ResyncRequested() (journal.ResyncSignal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy.Consume()
}

func (m *Match) patchActor() {
	m.journal.AppendPatch(journal.Patch{Turn: m.turn, Kind: journal.PatchActor, EntityID: m.actor})
}

func (m *Match) patchPosition(id int64, from, to hex.Coord) {
	m.journal.AppendPatch(journal.Patch{
		Turn:     m.turn,
		Kind:     journal.PatchPosition,
		EntityID: id,
		Payload:  journal.PositionPayload{FromQ: from.Q, FromR: from.R, Q: to.Q, R: to.R},
	})
}

func (m *Match) patchPools(c *combatant.Combatant) {
	if c == nil {
		return
	}
	values := c.Pools()
	m.journal.AppendPatch(journal.Patch{
		Turn:     m.turn,
		Kind:     journal.PatchPools,
		EntityID: c.ID(),
		Payload: journal.PoolsPayload{
			Health:       values[pools.Health],
			MaxHealth:    c.MaxHealth(),
			Stamina:      values[pools.Stamina],
			Organization: values[pools.Organization],
			Posture:      values[pools.Posture],
			Mana:         values[pools.Mana],
		},
	})
}

func (m *Match) patchStatus(id int64) {
	m.journal.AppendPatch(journal.Patch{
		Turn:     m.turn,
		Kind:     journal.PatchStatus,
		EntityID: id,
		Payload:  m.statuses[id].Instances(),
	})
}

func newStylePatch(turn uint64, id int64, index int) journal.Patch {
	return journal.Patch{Turn: turn, Kind: journal.PatchStyle, EntityID: id, Payload: index}
}
