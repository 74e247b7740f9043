// Package scheduler elects the next actor through a readiness race and
// decides whether the actor keeps the turn after each action.
package scheduler

import (
	"math/rand"

	"hexclash/server/internal/pools"
	"hexclash/server/internal/rng"
)

const (
	// ReadyThreshold is the readiness a contender must reach to act.
	ReadyThreshold = 100.0
	// ContinuationThreshold is the readiness below which a turn ends.
	ContinuationThreshold = 75.0
	// Jitter is the relative spread applied to each readiness gain.
	Jitter = 0.1
	// MaxRaceIterations bounds the race. Speed never drops below one so a
	// normal race finishes in about a hundred iterations.
	MaxRaceIterations = 10000
)

// Contender is a combatant taking part in the race.
type Contender interface {
	ID() int64
	Speed() float64
	Get(pools.Resource) float64
	Set(pools.Resource, float64) float64
}

// Result reports the outcome of a race.
type Result struct {
	Winner     int64
	Readiness  float64
	Iterations int
	Found      bool
}

// Race raises every contender's readiness by speed ± Jitter·speed per
// iteration until at least one reaches ReadyThreshold, then elects the one
// with the highest readiness. Ties go to the earlier contender.
func Race(contenders []Contender, r *rand.Rand) Result {
	if len(contenders) == 0 {
		return Result{}
	}
	if r == nil {
		r = rng.New(rng.DefaultSeed, "scheduler")
	}
	iterations := 0
	for !anyReady(contenders) {
		if iterations >= MaxRaceIterations {
			break
		}
		iterations++
		for _, c := range contenders {
			speed := c.Speed()
			if speed < 1 {
				speed = 1
			}
			gain := speed + (r.Float64()*2-1)*Jitter*speed
			c.Set(pools.Posture, c.Get(pools.Posture)+gain)
		}
	}

	best := -1
	bestValue := 0.0
	for i, c := range contenders {
		v := c.Get(pools.Posture)
		if best == -1 || v > bestValue {
			best = i
			bestValue = v
		}
	}
	if bestValue < ReadyThreshold {
		return Result{Iterations: iterations}
	}
	return Result{
		Winner:     contenders[best].ID(),
		Readiness:  bestValue,
		Iterations: iterations,
		Found:      true,
	}
}

func anyReady(contenders []Contender) bool {
	for _, c := range contenders {
		if c.Get(pools.Posture) >= ReadyThreshold {
			return true
		}
	}
	return false
}

// Continues reports whether an actor with the given readiness keeps the
// turn after committing an action.
func Continues(readiness float64) bool {
	return readiness >= ContinuationThreshold
}
