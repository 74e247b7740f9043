package hex

import "container/heap"

// MaxPathIterations bounds the number of frontier pops in a single search.
const MaxPathIterations = 1000

// Heuristic estimates the remaining cost between two coordinates.
type Heuristic func(a, b Coord) float64

// HexHeuristic is the admissible hex-distance estimate.
func HexHeuristic(a, b Coord) float64 {
	return float64(Distance(a, b))
}

// EuclideanHeuristic reproduces the straight-line estimate over cube
// coordinates. It can overestimate and is kept for compatibility only.
func EuclideanHeuristic(a, b Coord) float64 {
	return EuclideanDistance(a, b)
}

// PathOptions tunes a single search.
type PathOptions struct {
	// Limit caps the travelled distance of expanded nodes. Negative means
	// unlimited.
	Limit int
	// Heuristic defaults to HexHeuristic.
	Heuristic Heuristic
	// Passable optionally excludes cells by terrain. The destination is
	// exempt, matching the vacancy rule.
	Passable func(Cell) bool
}

// PathResult describes the outcome of FindPath.
type PathResult struct {
	Path       []Coord
	Complete   bool
	Iterations int
}

// Steps returns the number of moves in the path.
func (p PathResult) Steps() int {
	if len(p.Path) == 0 {
		return 0
	}
	return len(p.Path) - 1
}

type searchNode struct {
	coord     Coord
	travelled int
	priority  float64
	estimate  float64
	seq       int
	index     int
	parent    *searchNode
}

type frontier []*searchNode

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].priority != f[j].priority {
		return f[i].priority < f[j].priority
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}

func (f *frontier) Push(x any) {
	n := len(*f)
	item := x.(*searchNode)
	item.index = n
	*f = append(*f, item)
}

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*f = old[:n-1]
	return item
}

// FindPath runs a cost-limited best-first search from start to goal. Only
// vacant, unexplored cells within the limit are expanded, except that the goal
// is always enqueued. When the goal cannot be reached the path to the explored
// node closest to the goal is returned with Complete set to false.
func FindPath(g *Grid, start, goal Coord, opts PathOptions) PathResult {
	if g == nil || !g.Contains(start) {
		return PathResult{}
	}
	h := opts.Heuristic
	if h == nil {
		h = HexHeuristic
	}

	seq := 0
	open := &frontier{}
	heap.Init(open)
	startEstimate := h(start, goal)
	heap.Push(open, &searchNode{coord: start, priority: startEstimate, estimate: startEstimate, seq: seq})
	best := map[Coord]int{start: 0}
	explored := make(map[Coord]*searchNode)
	var closest *searchNode

	iterations := 0
	for open.Len() > 0 && iterations < MaxPathIterations {
		iterations++
		current := heap.Pop(open).(*searchNode)
		if _, seen := explored[current.coord]; seen {
			continue
		}
		explored[current.coord] = current
		if closest == nil || closerToGoal(current, closest) {
			closest = current
		}
		if current.coord == goal {
			return PathResult{Path: backtrack(current), Complete: true, Iterations: iterations}
		}

		for _, next := range g.Neighbors(current.coord) {
			if _, seen := explored[next]; seen {
				continue
			}
			travelled := current.travelled + 1
			if next != goal {
				if opts.Limit >= 0 && travelled > opts.Limit {
					continue
				}
				cell, _ := g.Cell(next)
				if cell.Occupied() {
					continue
				}
				if opts.Passable != nil && !opts.Passable(cell) {
					continue
				}
			}
			if prev, ok := best[next]; ok && travelled >= prev {
				continue
			}
			best[next] = travelled
			seq++
			estimate := h(next, goal)
			heap.Push(open, &searchNode{
				coord:     next,
				travelled: travelled,
				priority:  float64(travelled) + estimate,
				estimate:  estimate,
				seq:       seq,
				parent:    current,
			})
		}
	}

	if closest == nil {
		return PathResult{Iterations: iterations}
	}
	return PathResult{Path: backtrack(closest), Iterations: iterations}
}

// Truncate shortens a path to at most steps moves.
func Truncate(path []Coord, steps int) []Coord {
	if steps < 0 || len(path) == 0 {
		return nil
	}
	if len(path) > steps+1 {
		path = path[:steps+1]
	}
	return append([]Coord(nil), path...)
}

func closerToGoal(a, b *searchNode) bool {
	if a.estimate != b.estimate {
		return a.estimate < b.estimate
	}
	if a.travelled != b.travelled {
		return a.travelled < b.travelled
	}
	return a.seq < b.seq
}

func backtrack(end *searchNode) []Coord {
	path := make([]Coord, 0, end.travelled+1)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.coord)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}
