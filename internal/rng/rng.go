// Package rng derives reproducible random sources from a match seed.
package rng

import (
	"hash/fnv"
	"math/rand"
)

// DefaultSeed is used when a match is created without a seed.
const DefaultSeed = "hexclash"

// SeedValue hashes rootSeed and label into a non-zero source seed.
func SeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// New returns a source dedicated to label, so adding randomness to one
// system does not shift the sequence of another.
func New(rootSeed, label string) *rand.Rand {
	if rootSeed == "" {
		rootSeed = DefaultSeed
	}
	return rand.New(rand.NewSource(SeedValue(rootSeed, label)))
}

// Float returns a value in [0,1), falling back to a fixed source for nil.
func Float(r *rand.Rand) float64 {
	if r == nil {
		r = New(DefaultSeed, "fallback")
	}
	return r.Float64()
}

// Between returns a uniform value in [min,max].
func Between(r *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + Float(r)*(max-min)
}

// Roll returns a die result in 1..faces.
func Roll(r *rand.Rand, faces int) int {
	if faces <= 1 {
		return 1
	}
	if r == nil {
		r = New(DefaultSeed, "fallback")
	}
	return r.Intn(faces) + 1
}

// Percent returns a roll in 1..100.
func Percent(r *rand.Rand) int {
	return Roll(r, 100)
}
