package hex

import "math"

// Point is a world-space position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout maps hex coordinates to world space using pointy-top orientation.
type Layout struct {
	Center Point   `json:"center"`
	Scale  float64 `json:"scale"`
}

const sqrt3 = 1.7320508075688772

// DefaultLayout centres the grid on the origin with unit scale.
func DefaultLayout() Layout {
	return Layout{Scale: 1}
}

func (l Layout) scale() float64 {
	if l.Scale <= 0 || math.IsNaN(l.Scale) || math.IsInf(l.Scale, 0) {
		return 1
	}
	return l.Scale
}

// ToWorld returns the world-space centre of a cell.
func (l Layout) ToWorld(c Coord) Point {
	size := l.scale()
	x := size * (sqrt3*float64(c.Q) + sqrt3/2*float64(c.R))
	y := size * (1.5 * float64(c.R))
	return Point{X: l.Center.X + x, Y: l.Center.Y + y}
}

// FromWorld returns the cell containing a world-space point.
func (l Layout) FromWorld(p Point) Coord {
	size := l.scale()
	px := (p.X - l.Center.X) / size
	py := (p.Y - l.Center.Y) / size
	q := sqrt3/3*px - 1.0/3*py
	r := 2.0 / 3 * py
	return Round(q, r, -q-r)
}
