package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// MaxMutateAttempts bounds how often Mutate redraws a genome that came out
// identical to its parent.
const MaxMutateAttempts = 1000

var ErrMutationExhausted = errors.New("mutation produced no change")

// Mutate returns a new network with the same topology whose weights are
// derived from n. Each weight is perturbed independently with probability
// chance; chances above 1 mutate every weight. n itself is never modified.
func (n *Network) Mutate(rng *rand.Rand, chance float64) (*Network, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidArgument)
	}
	if math.IsNaN(chance) || chance <= 0 {
		return nil, fmt.Errorf("%w: mutation chance must be > 0, got %v", ErrInvalidArgument, chance)
	}

	parent := n.FlatWeights()
	for attempt := 0; attempt < MaxMutateAttempts; attempt++ {
		genome := append([]float64(nil), parent...)
		for i := range genome {
			if rng.Float64() < chance {
				genome[i] = perturb(rng, genome[i])
			}
		}
		if sameGenome(parent, genome) {
			continue
		}
		return FromWeights(n.layerSizes, genome)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrMutationExhausted, MaxMutateAttempts)
}

// perturb applies one of four equally likely weight perturbations.
func perturb(rng *rand.Rand, w float64) float64 {
	if rng.Float64() < 0.5 {
		if rng.Float64() < 0.5 {
			return uniform(rng, -1, 1)
		}
		return -w
	}
	if rng.Float64() < 0.5 {
		return w * uniform(rng, -1, 1)
	}
	return w + uniform(rng, -0.5, 0.5)
}
