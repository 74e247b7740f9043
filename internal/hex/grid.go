package hex

import (
	"errors"
	"sort"
)

// Vacant is the occupant value of an empty cell.
const Vacant int64 = 0

// Terrain tags the ground type of a cell.
type Terrain string

const (
	TerrainPlain  Terrain = "plain"
	TerrainForest Terrain = "forest"
	TerrainRough  Terrain = "rough"
	TerrainWater  Terrain = "water"
)

var (
	// ErrOutOfBounds reports a coordinate that is not part of the grid.
	ErrOutOfBounds = errors.New("hex: coordinate outside grid")
	// ErrOccupied reports an attempt to place an entity on a taken cell.
	ErrOccupied = errors.New("hex: cell occupied")
	// ErrOccupantMismatch reports that a cell does not hold the expected entity.
	ErrOccupantMismatch = errors.New("hex: occupant mismatch")
	// ErrInvalidOccupant reports a non-positive occupant id.
	ErrInvalidOccupant = errors.New("hex: invalid occupant id")
)

// Cell is a single grid location. Occupant references a combatant by ID and
// is Vacant when nothing stands on the cell.
type Cell struct {
	Coord    Coord   `json:"coord"`
	Terrain  Terrain `json:"terrain"`
	Height   int     `json:"height"`
	Occupant int64   `json:"occupant,omitempty"`
}

// Occupied reports whether the cell holds a combatant.
func (c Cell) Occupied() bool {
	return c.Occupant != Vacant
}

// Grid is a hexagon-shaped map of the given radius. Cells are created once and
// only mutated afterwards.
type Grid struct {
	radius int
	layout Layout
	cells  map[Coord]*Cell
	order  []Coord
}

// NewGrid builds every cell within radius of the origin.
func NewGrid(radius int, layout Layout) *Grid {
	if radius < 0 {
		radius = 0
	}
	g := &Grid{
		radius: radius,
		layout: layout,
		cells:  make(map[Coord]*Cell, 3*radius*(radius+1)+1),
	}
	for _, coord := range Spiral(Coord{}, radius) {
		g.cells[coord] = &Cell{Coord: coord, Terrain: TerrainPlain}
		g.order = append(g.order, coord)
	}
	sortCoords(g.order)
	return g
}

// Radius returns the grid radius.
func (g *Grid) Radius() int {
	if g == nil {
		return 0
	}
	return g.radius
}

// Layout returns the world-space transform.
func (g *Grid) Layout() Layout {
	if g == nil {
		return DefaultLayout()
	}
	return g.layout
}

// Size reports the number of cells.
func (g *Grid) Size() int {
	if g == nil {
		return 0
	}
	return len(g.cells)
}

// Contains reports whether coord is part of the grid.
func (g *Grid) Contains(coord Coord) bool {
	if g == nil {
		return false
	}
	_, ok := g.cells[coord]
	return ok
}

// Cell returns a copy of the cell at coord.
func (g *Grid) Cell(coord Coord) (Cell, bool) {
	if g == nil {
		return Cell{}, false
	}
	cell, ok := g.cells[coord]
	if !ok {
		return Cell{}, false
	}
	return *cell, true
}

// Cells returns copies of every cell in deterministic (r, q) order.
func (g *Grid) Cells() []Cell {
	if g == nil {
		return nil
	}
	out := make([]Cell, 0, len(g.order))
	for _, coord := range g.order {
		out = append(out, *g.cells[coord])
	}
	return out
}

// IsVacant reports whether coord exists and has no occupant.
func (g *Grid) IsVacant(coord Coord) bool {
	cell, ok := g.Cell(coord)
	return ok && !cell.Occupied()
}

// Occupant returns the occupant id at coord, or Vacant.
func (g *Grid) Occupant(coord Coord) int64 {
	cell, ok := g.Cell(coord)
	if !ok {
		return Vacant
	}
	return cell.Occupant
}

// Neighbors returns the in-grid neighbours of coord.
func (g *Grid) Neighbors(coord Coord) []Coord {
	if g == nil {
		return nil
	}
	out := make([]Coord, 0, len(Directions))
	for _, n := range coord.Neighbors() {
		if _, ok := g.cells[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// CellsWithinDistance returns the in-grid coordinates at most maxDist from
// origin, origin included.
func (g *Grid) CellsWithinDistance(origin Coord, maxDist int) []Coord {
	if g == nil || maxDist < 0 {
		return nil
	}
	out := make([]Coord, 0)
	for _, coord := range Spiral(origin, maxDist) {
		if _, ok := g.cells[coord]; ok {
			out = append(out, coord)
		}
	}
	sortCoords(out)
	return out
}

// Distance is the hex distance between two coordinates.
func (g *Grid) Distance(a, b Coord) int {
	return Distance(a, b)
}

// SetTerrain updates the terrain and height of an existing cell.
func (g *Grid) SetTerrain(coord Coord, terrain Terrain, height int) error {
	if g == nil {
		return ErrOutOfBounds
	}
	cell, ok := g.cells[coord]
	if !ok {
		return ErrOutOfBounds
	}
	cell.Terrain = terrain
	cell.Height = height
	return nil
}

// Occupy places id on a vacant cell.
func (g *Grid) Occupy(coord Coord, id int64) error {
	if id <= Vacant {
		return ErrInvalidOccupant
	}
	if g == nil {
		return ErrOutOfBounds
	}
	cell, ok := g.cells[coord]
	if !ok {
		return ErrOutOfBounds
	}
	if cell.Occupied() {
		return ErrOccupied
	}
	cell.Occupant = id
	return nil
}

// Vacate clears coord when it is held by id.
func (g *Grid) Vacate(coord Coord, id int64) error {
	if g == nil {
		return ErrOutOfBounds
	}
	cell, ok := g.cells[coord]
	if !ok {
		return ErrOutOfBounds
	}
	if cell.Occupant != id {
		return ErrOccupantMismatch
	}
	cell.Occupant = Vacant
	return nil
}

// Relocate moves id from one cell to another in a single step so no two cells
// ever reference the same occupant.
func (g *Grid) Relocate(from, to Coord, id int64) error {
	if g == nil {
		return ErrOutOfBounds
	}
	src, ok := g.cells[from]
	if !ok {
		return ErrOutOfBounds
	}
	dst, ok := g.cells[to]
	if !ok {
		return ErrOutOfBounds
	}
	if src.Occupant != id {
		return ErrOccupantMismatch
	}
	if from == to {
		return nil
	}
	if dst.Occupied() {
		return ErrOccupied
	}
	src.Occupant = Vacant
	dst.Occupant = id
	return nil
}

// Restore overwrites a cell wholesale. Used when merging a remote snapshot.
func (g *Grid) Restore(cell Cell) error {
	if g == nil {
		return ErrOutOfBounds
	}
	existing, ok := g.cells[cell.Coord]
	if !ok {
		return ErrOutOfBounds
	}
	*existing = cell
	return nil
}

// Ring returns the coordinates exactly radius steps from center.
func Ring(center Coord, radius int) []Coord {
	if radius <= 0 {
		return []Coord{center}
	}
	out := make([]Coord, 0, 6*radius)
	cursor := center.Add(Coord{Q: Directions[4].Q * radius, R: Directions[4].R * radius})
	for side := 0; side < 6; side++ {
		for step := 0; step < radius; step++ {
			out = append(out, cursor)
			cursor = cursor.Neighbor(side)
		}
	}
	return out
}

// Spiral returns center followed by each ring out to radius.
func Spiral(center Coord, radius int) []Coord {
	out := []Coord{center}
	for k := 1; k <= radius; k++ {
		out = append(out, Ring(center, k)...)
	}
	return out
}

func sortCoords(coords []Coord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].R != coords[j].R {
			return coords[i].R < coords[j].R
		}
		return coords[i].Q < coords[j].Q
	})
}
