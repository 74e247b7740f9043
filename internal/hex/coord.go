package hex

import (
	"fmt"
	"math"
)

// Coord is a hex cell address stored in axial form. The third cube component
// is derived so q+r+s=0 holds for every value of the type.
type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// Cube is the explicit three-component form of a Coord.
type Cube struct {
	Q int
	R int
	S int
}

// Directions lists the six neighbour offsets in a fixed clockwise order
// starting from east.
var Directions = [6]Coord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// NewCoord builds an axial coordinate.
func NewCoord(q, r int) Coord {
	return Coord{Q: q, R: r}
}

// FromCube converts a cube triple, rejecting triples that break q+r+s=0.
func FromCube(q, r, s int) (Coord, bool) {
	if q+r+s != 0 {
		return Coord{}, false
	}
	return Coord{Q: q, R: r}, true
}

// S returns the implicit third cube coordinate.
func (c Coord) S() int {
	return -c.Q - c.R
}

// Cube returns the cube form.
func (c Coord) Cube() Cube {
	return Cube{Q: c.Q, R: c.R, S: c.S()}
}

// Add offsets c by d.
func (c Coord) Add(d Coord) Coord {
	return Coord{Q: c.Q + d.Q, R: c.R + d.R}
}

// Sub returns c-d.
func (c Coord) Sub(d Coord) Coord {
	return Coord{Q: c.Q - d.Q, R: c.R - d.R}
}

// Neighbor returns the adjacent coordinate in direction dir (0-5).
func (c Coord) Neighbor(dir int) Coord {
	dir %= len(Directions)
	if dir < 0 {
		dir += len(Directions)
	}
	return c.Add(Directions[dir])
}

// Neighbors returns all six adjacent coordinates, including ones that fall
// outside any particular grid.
func (c Coord) Neighbors() [6]Coord {
	var out [6]Coord
	for i, d := range Directions {
		out[i] = c.Add(d)
	}
	return out
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Q, c.R)
}

// Distance is the hex (cube) distance: the max of the absolute component
// differences.
func Distance(a, b Coord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	if dr > dq {
		dq = dr
	}
	if ds > dq {
		dq = ds
	}
	return dq
}

// EuclideanDistance measures straight-line distance between cube
// coordinates. It is not admissible on a hex grid as a path heuristic in all
// cases and is only offered for behaviour compatibility.
func EuclideanDistance(a, b Coord) float64 {
	dq := float64(a.Q - b.Q)
	dr := float64(a.R - b.R)
	ds := float64(a.S() - b.S())
	return math.Sqrt(dq*dq + dr*dr + ds*ds)
}

// Round snaps fractional cube coordinates to the nearest cell.
func Round(q, r, s float64) Coord {
	rq := math.Round(q)
	rr := math.Round(r)
	rs := math.Round(s)

	dq := math.Abs(rq - q)
	dr := math.Abs(rr - r)
	ds := math.Abs(rs - s)

	switch {
	case dq > dr && dq > ds:
		rq = -rr - rs
	case dr > ds:
		rr = -rq - rs
	}
	return Coord{Q: int(rq), R: int(rr)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
