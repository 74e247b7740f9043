// Package match is the authoritative state of one combat: the combatant
// arena, the grid, the turn cycle and the access-token protocol. The same
// type runs as a non-authoritative mirror that merges remote snapshots.
package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"hexclash/server/internal/catalog"
	"hexclash/server/internal/combat"
	"hexclash/server/internal/combatant"
	"hexclash/server/internal/events"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/journal"
	"hexclash/server/internal/rng"
	"hexclash/server/internal/status"
	"hexclash/server/internal/telemetry"
	"hexclash/server/internal/validate"
	"hexclash/server/logging"
	logginglifecycle "hexclash/server/logging/lifecycle"
)

const (
	// DefaultRadius is the grid radius used when none is configured.
	DefaultRadius = 5
	// DefaultKeyframeCapacity bounds the snapshot history kept for resync.
	DefaultKeyframeCapacity = 16
	// DefaultKeyframeMaxAge drops keyframes older than this.
	DefaultKeyframeMaxAge = 10 * time.Minute
	// maxSkippedElections bounds how many stunned actors Advance walks past
	// before yielding.
	maxSkippedElections = 64
)

var (
	// ErrDuplicateCombatant reports a join with an id already in the arena.
	ErrDuplicateCombatant = errors.New("match: combatant already joined")
	// ErrUnknownCombatant reports an operation on an id not in the arena.
	ErrUnknownCombatant = errors.New("match: unknown combatant")
	// ErrNoSpawn reports a full grid.
	ErrNoSpawn = errors.New("match: no vacant spawn cell")
	// ErrFinished reports an operation on a finished match.
	ErrFinished = errors.New("match: finished")
	// ErrAuthority reports a mirror-only operation called on the authority.
	ErrAuthority = errors.New("match: operation not available on the authority")
	// ErrMirror reports an authority-only operation called on a mirror.
	ErrMirror = errors.New("match: operation not available on a mirror")
	// ErrGridMismatch reports a snapshot for a differently sized grid.
	ErrGridMismatch = errors.New("match: snapshot grid does not match")
)

// Config configures a match.
type Config struct {
	ID        string
	Radius    int
	Layout    hex.Layout
	Seed      string
	Mode      combat.Mode
	Heuristic hex.Heuristic
	// MovementCost is the posture spent per hex step.
	MovementCost float64
	// MaxEffects caps status instances per combatant.
	MaxEffects int
	// Authority selects the trusted timeline. Mirrors never roll dice or
	// elect actors; they replay what the authority broadcasts.
	Authority bool
	Token     validate.TokenConfig
	Catalog   *catalog.Catalog

	KeyframeCapacity int
	KeyframeMaxAge   time.Duration

	Publisher logging.Publisher
	Logger    telemetry.Logger
}

func (c Config) normalized() Config {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Radius <= 0 {
		c.Radius = DefaultRadius
	}
	if c.Layout.Scale <= 0 {
		c.Layout = hex.DefaultLayout()
	}
	if c.Seed == "" {
		c.Seed = rng.DefaultSeed
	}
	if mode, ok := combat.ParseMode(string(c.Mode)); ok {
		c.Mode = mode
	} else {
		c.Mode = combat.ModeStrike
	}
	if c.Heuristic == nil {
		c.Heuristic = hex.HexHeuristic
	}
	if c.MovementCost <= 0 {
		c.MovementCost = validate.MovementCost
	}
	if c.MaxEffects <= 0 {
		c.MaxEffects = status.DefaultMaxEffects
	}
	if c.KeyframeCapacity <= 0 {
		c.KeyframeCapacity = DefaultKeyframeCapacity
	}
	if c.KeyframeMaxAge <= 0 {
		c.KeyframeMaxAge = DefaultKeyframeMaxAge
	}
	c.Publisher = logging.WithFields(c.Publisher, map[string]any{"match": c.ID})
	if c.Logger == nil {
		c.Logger = telemetry.NopLogger()
	}
	return c
}

// Match owns every mutable piece of one combat. All mutation goes through
// its exported methods, which serialise on a single lock; bus handlers run
// after the lock is released and may call back into the match.
type Match struct {
	mu sync.Mutex

	cfg     Config
	grid    *hex.Grid
	catalog *catalog.Catalog

	arena    map[int64]*combatant.Combatant
	order    []int64
	statuses map[int64]*status.Manager
	teams    []string
	nextID   int64

	turn    uint64
	actor   int64
	actions int
	phase   *fsm.FSM

	gate     *validate.Gate
	rules    validate.Rules
	resolver *combat.Resolver
	raceRNG  *rand.Rand
	recorder func(context.Context, combat.ClashResult, float64)
	tracer   trace.Tracer

	bus     *events.Bus
	pending []events.Event
	journal *journal.Journal[Snapshot]
	policy  *journal.Policy

	started bool
	over    bool
	winner  string
	version uint64
}

// New builds an empty match. The authority requires a token secret.
func New(cfg Config) (*Match, error) {
	cfg = cfg.normalized()
	cat := cfg.Catalog
	if cat == nil {
		var err error
		cat, err = catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("match: default catalog: %w", err)
		}
	}

	m := &Match{
		cfg:      cfg,
		grid:     hex.NewGrid(cfg.Radius, cfg.Layout),
		catalog:  cat,
		arena:    make(map[int64]*combatant.Combatant),
		statuses: make(map[int64]*status.Manager),
		rules:    validate.Rules{MovementCost: cfg.MovementCost, Heuristic: cfg.Heuristic},
		raceRNG:  rng.New(cfg.Seed, "race"),
		tracer:   otel.Tracer("hexclash/server/internal/match"),
		bus:      events.NewBus(),
		journal:  journal.New[Snapshot](cfg.KeyframeCapacity, cfg.KeyframeMaxAge),
		policy:   journal.NewPolicy(),
	}
	m.phase = newPhaseMachine(func() { m.version++ })

	if cfg.Authority {
		gate, err := validate.NewGate(cfg.ID, cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("match: %w", err)
		}
		m.gate = gate
		m.resolver = combat.NewResolver(combat.Config{Mode: cfg.Mode}, rng.New(cfg.Seed, "combat"))
		m.recorder = combat.NewClashRecorder(combat.TelemetryConfig{
			Publisher:    cfg.Publisher,
			LookupEntity: m.entityRef,
			CurrentTurn:  func() uint64 { return m.turn },
		})
	}
	return m, nil
}

// NewMirror builds a non-authoritative copy for local prediction.
func NewMirror(cfg Config) (*Match, error) {
	cfg.Authority = false
	return New(cfg)
}

// ID returns the match id.
func (m *Match) ID() string {
	return m.cfg.ID
}

// Authoritative reports whether the match owns the trusted timeline.
func (m *Match) Authoritative() bool {
	return m.cfg.Authority
}

// Bus exposes the event bus for observers.
func (m *Match) Bus() *events.Bus {
	return m.bus
}

// Catalog returns the catalog combatants are built from.
func (m *Match) Catalog() *catalog.Catalog {
	return m.catalog
}

// Journal exposes the patch and keyframe history.
func (m *Match) Journal() *journal.Journal[Snapshot] {
	return m.journal
}

// Version increments on every observable change.
func (m *Match) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Turn returns the number of elected turns so far.
func (m *Match) Turn() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turn
}

// CurrentActor returns the elected actor, if any.
func (m *Match) CurrentActor() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actor, m.actor != 0
}

// Phase returns the current turn phase.
func (m *Match) Phase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase.Current()
}

// Over reports whether the match has finished and the winning team, empty
// for a draw.
func (m *Match) Over() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.over, m.winner
}

// Combatant returns a state copy of the combatant.
func (m *Match) Combatant(id int64) (combatant.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.arena[id]
	if !ok {
		return combatant.State{}, false
	}
	return c.State(), true
}

// Statuses returns copies of the active status instances on id.
func (m *Match) Statuses(id int64) []status.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id].Instances()
}

// Combatants lists arena ids in join order.
func (m *Match) Combatants() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.order...)
}

// Inspect runs fn with read access to the locked state. fn must not retain
// the view or call back into the match.
func (m *Match) Inspect(fn func(view validate.View)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(matchView{m})
}

// Rules returns the validation rules the match enforces.
func (m *Match) Rules() validate.Rules {
	return m.rules
}

// matchView adapts the locked match to validate.View.
type matchView struct {
	m *Match
}

func (v matchView) Grid() *hex.Grid { return v.m.grid }

func (v matchView) Combatant(id int64) (*combatant.Combatant, bool) {
	c, ok := v.m.arena[id]
	return c, ok
}

func (v matchView) CurrentActor() (int64, bool) {
	return v.m.actor, v.m.actor != 0
}

func (v matchView) Over() bool { return v.m.over }

// Join builds a combatant from the catalog and places it on at, or on the
// first vacant spawn cell of its team's side when at is nil. A zero id is
// assigned the next free one.
func (m *Match) Join(ctx context.Context, spec catalog.Spec, at *hex.Coord) (int64, error) {
	m.mu.Lock()
	id, err := m.joinLocked(ctx, spec, at)
	pending := m.takePending()
	m.mu.Unlock()
	m.flush(pending)
	return id, err
}

func (m *Match) joinLocked(ctx context.Context, spec catalog.Spec, at *hex.Coord) (int64, error) {
	if m.over {
		return 0, ErrFinished
	}
	if spec.ID == 0 {
		spec.ID = m.allocateID()
	}
	if _, exists := m.arena[spec.ID]; exists {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateCombatant, spec.ID)
	}
	cfg, err := m.catalog.Build(spec)
	if err != nil {
		return 0, err
	}
	c, err := combatant.New(cfg)
	if err != nil {
		return 0, err
	}

	var cell hex.Coord
	if at != nil {
		cell = *at
	} else {
		spawn, ok := m.spawnCell(c.Team())
		if !ok {
			return 0, ErrNoSpawn
		}
		cell = spawn
	}
	if err := c.Place(m.grid, cell); err != nil {
		return 0, fmt.Errorf("match: place %d at %s: %w", c.ID(), cell, err)
	}
	if c.ID() > m.nextID {
		m.nextID = c.ID()
	}

	m.arena[c.ID()] = c
	m.order = append(m.order, c.ID())
	m.statuses[c.ID()] = status.NewManager(c.ID(), m.catalog.Statuses(), m.cfg.MaxEffects)
	m.noteTeam(c.Team())
	m.applyStylePassives(ctx, c)
	m.touch()

	logginglifecycle.CombatantJoined(ctx, m.cfg.Publisher, m.turn, m.entityRef(c.ID()), logginglifecycle.CombatantJoinedPayload{
		Template: c.Template(),
		Team:     c.Team(),
		Q:        cell.Q,
		R:        cell.R,
	}, nil)
	m.emit(events.Event{Kind: events.EntityJoined, Actor: c.ID(), Payload: cell})
	m.patchPosition(c.ID(), cell, cell)
	m.patchPools(c)
	return c.ID(), nil
}

func (m *Match) allocateID() int64 {
	for {
		m.nextID++
		if _, taken := m.arena[m.nextID]; !taken {
			return m.nextID
		}
	}
}

func (m *Match) noteTeam(team string) {
	for _, known := range m.teams {
		if known == team {
			return
		}
	}
	m.teams = append(m.teams, team)
}

// spawnCell scans the grid forward for even-indexed teams and backward for
// odd ones, so opposing sides start on opposite edges.
func (m *Match) spawnCell(team string) (hex.Coord, bool) {
	index := len(m.teams)
	for i, known := range m.teams {
		if known == team {
			index = i
			break
		}
	}
	cells := m.grid.Cells()
	if index%2 == 1 {
		for i := len(cells) - 1; i >= 0; i-- {
			if !cells[i].Occupied() {
				return cells[i].Coord, true
			}
		}
		return hex.Coord{}, false
	}
	for _, cell := range cells {
		if !cell.Occupied() {
			return cell.Coord, true
		}
	}
	return hex.Coord{}, false
}

// Remove takes a combatant out of the match. Removing the elected actor
// force-ends its turn, which invalidates any outstanding token.
func (m *Match) Remove(ctx context.Context, id int64, reason string) error {
	m.mu.Lock()
	err := m.removeLocked(ctx, id, reason)
	pending := m.takePending()
	m.mu.Unlock()
	m.flush(pending)
	return err
}

func (m *Match) removeLocked(ctx context.Context, id int64, reason string) error {
	c, ok := m.arena[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCombatant, id)
	}
	if reason == "" {
		reason = "removed"
	}
	if m.actor == id {
		m.endTurnLocked(ctx, reason, false)
	}
	ref := m.entityRef(id)
	c.Remove(m.grid)
	delete(m.arena, id)
	delete(m.statuses, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	m.touch()
	m.journal.PurgeEntity(id)
	m.journal.AppendPatch(journal.Patch{Turn: m.turn, Kind: journal.PatchRemoved, EntityID: id})

	logginglifecycle.CombatantRemoved(ctx, m.cfg.Publisher, m.turn, ref, logginglifecycle.CombatantRemovedPayload{Reason: reason}, nil)
	m.emit(events.Event{Kind: events.EntityRemoved, Actor: id, Payload: reason})
	m.checkWinner(ctx)
	return nil
}

func (m *Match) touch() {
	m.version++
}

func (m *Match) emit(event events.Event) {
	if event.Turn == 0 {
		event.Turn = m.turn
	}
	m.pending = append(m.pending, event)
}

func (m *Match) takePending() []events.Event {
	if len(m.pending) == 0 {
		return nil
	}
	out := m.pending
	m.pending = nil
	return out
}

func (m *Match) flush(pending []events.Event) {
	for _, event := range pending {
		m.bus.Publish(event)
	}
}

func (m *Match) entityRef(id int64) logging.EntityRef {
	if id == 0 {
		return logging.EntityRef{}
	}
	ref := logging.EntityRef{ID: strconv.FormatInt(id, 10), Kind: logging.EntityKindCombatant}
	if c, ok := m.arena[id]; ok && c.IsBot() {
		ref.Kind = logging.EntityKindBot
	}
	return ref
}

// Contested reports whether at least two teams have live members, the
// precondition for starting the turn cycle.
func (m *Match) Contested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.liveTeams()) > 1
}

// liveTeams lists teams with at least one live member, sorted by name.
func (m *Match) liveTeams() []string {
	live := make(map[string]struct{})
	for _, id := range m.order {
		if c := m.arena[id]; c.Alive() {
			live[teamKey(c)] = struct{}{}
		}
	}
	out := make([]string, 0, len(live))
	for team := range live {
		out = append(out, team)
	}
	sort.Strings(out)
	return out
}

// teamKey treats a combatant without a team as a team of one.
func teamKey(c *combatant.Combatant) string {
	if c.Team() != "" {
		return c.Team()
	}
	return "solo-" + strconv.FormatInt(c.ID(), 10)
}
