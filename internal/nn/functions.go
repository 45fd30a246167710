package nn

import (
	"math"
	"math/rand"
)

// ReLU is the rectified linear activation max(0, x).
func ReLU(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// heScale returns the He initialisation standard deviation for a layer fed
// by fanIn neurons.
func heScale(fanIn int) float64 {
	return math.Sqrt(2.0 / float64(fanIn))
}

// uniform returns a value drawn uniformly from [min, max).
func uniform(rng *rand.Rand, min, max float64) float64 {
	return min + rng.Float64()*(max-min)
}
