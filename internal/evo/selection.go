package evo

import "math/rand"

// KillIndex picks the individual to remove from a population of size n ranked
// best first. The walk starts at the worst rank and moves one step toward
// the best on every won coin flip; running past the best rank falls back to
// the worst.
func KillIndex(rng *rand.Rand, n int) int {
	index := n - 1
	for index >= 0 && rng.Float64() < 0.5 {
		index--
	}
	if index < 0 {
		index = n - 1
	}
	return index
}

// ParentIndex picks a parent from a population of size n ranked best first.
// The walk starts at the best rank and moves toward the worst on every won
// coin flip; running past the worst rank falls back to the best.
func ParentIndex(rng *rand.Rand, n int) int {
	index := 0
	for index < n && rng.Float64() < 0.5 {
		index++
	}
	if index >= n {
		index = 0
	}
	return index
}
