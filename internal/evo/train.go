package evo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"dnnevo/internal/nn"
)

// Params configures a training run.
type Params struct {
	PopulationSize int
	// KillRate is the share of the population culled each epoch. It must be
	// in [0, 1): a rate of 1 would cull every individual and leave no parent
	// to refill from, so 1 is rejected rather than accepted as a closed bound.
	KillRate    float64
	TargetError float64
	MaxEpochs   int
	// Workers bounds concurrent fitness evaluation; values <= 1 evaluate
	// sequentially.
	Workers int
}

// Result summarises a training run.
type Result struct {
	Best      *nn.Network
	Error     float64
	Epochs    int
	Converged bool
	// History holds the leader error observed at the start of every epoch.
	History []float64
}

func (p Params) validate() error {
	if p.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0", nn.ErrInvalidArgument)
	}
	if math.IsNaN(p.KillRate) || p.KillRate < 0 || p.KillRate >= 1 {
		return fmt.Errorf("%w: kill rate must be in [0, 1), got %v", nn.ErrInvalidArgument, p.KillRate)
	}
	if p.MaxEpochs < 0 {
		return fmt.Errorf("%w: max epochs must be >= 0", nn.ErrInvalidArgument)
	}
	return nil
}

// KillCount is the number of individuals culled per epoch.
func (p Params) KillCount() int {
	return int(math.Floor(p.KillRate * float64(p.PopulationSize)))
}

// Train evolves a population seeded with seed against data and returns the
// best network found. It stops early once the leader's error reaches
// params.TargetError. progress may be nil.
func Train(ctx context.Context, rng *rand.Rand, seed *nn.Network, data []Sample, params Params, progress ProgressFunc) (Result, error) {
	if rng == nil {
		return Result{}, fmt.Errorf("%w: random source is required", nn.ErrInvalidArgument)
	}
	if seed == nil {
		return Result{}, fmt.Errorf("%w: seed network is required", nn.ErrInvalidArgument)
	}
	if err := params.validate(); err != nil {
		return Result{}, err
	}

	population, err := InitPopulation(rng, seed, params.PopulationSize)
	if err != nil {
		return Result{}, err
	}

	var (
		leader  *nn.Network
		history = make([]float64, 0, params.MaxEpochs)
	)
	for epoch := 0; epoch < params.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		ranked, err := rankPopulation(ctx, population, data, params.Workers)
		if err != nil {
			return Result{}, err
		}
		history = append(history, ranked[0].error)

		if ranked[0].net != leader {
			leader = ranked[0].net
			if progress != nil {
				progress(ProgressEvent{Network: leader, Error: ranked[0].error, Epoch: epoch})
			}
			if ranked[0].error <= params.TargetError {
				return Result{
					Best:      leader,
					Error:     ranked[0].error,
					Epochs:    epoch + 1,
					Converged: true,
					History:   history,
				}, nil
			}
		}

		population = population[:0]
		for _, item := range ranked {
			population = append(population, item.net)
		}
		for i := params.KillCount(); i > 0; i-- {
			population = KillBad(rng, population)
		}
		for len(population) < params.PopulationSize {
			population, err = AddMutation(rng, population)
			if err != nil {
				return Result{}, fmt.Errorf("epoch %d: %w", epoch, err)
			}
		}
	}

	ranked, err := rankPopulation(ctx, population, data, params.Workers)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Best:      ranked[0].net,
		Error:     ranked[0].error,
		Epochs:    params.MaxEpochs,
		Converged: ranked[0].error <= params.TargetError,
		History:   history,
	}, nil
}

// InitPopulation returns seed followed by size-1 freshly initialised networks
// of the same topology.
func InitPopulation(rng *rand.Rand, seed *nn.Network, size int) ([]*nn.Network, error) {
	population := make([]*nn.Network, 0, size)
	population = append(population, seed)
	sizes := seed.LayerSizes()
	for len(population) < size {
		net, err := nn.New(rng, sizes...)
		if err != nil {
			return nil, err
		}
		population = append(population, net)
	}
	return population, nil
}

// rankPopulation scores the population and sorts it by ascending error,
// keeping the current order among equal errors. NaN errors rank last.
func rankPopulation(ctx context.Context, population []*nn.Network, data []Sample, workers int) ([]scored, error) {
	ranked, err := evaluatePopulation(ctx, population, data, workers)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return lessError(ranked[i].error, ranked[j].error)
	})
	return ranked, nil
}

func lessError(a, b float64) bool {
	if math.IsNaN(b) {
		return !math.IsNaN(a)
	}
	return a < b
}

// KillBad removes one individual, probably a bad one, from a population
// ranked best first.
func KillBad(rng *rand.Rand, population []*nn.Network) []*nn.Network {
	if len(population) == 0 {
		return population
	}
	index := KillIndex(rng, len(population))
	copy(population[index:], population[index+1:])
	population[len(population)-1] = nil
	return population[:len(population)-1]
}

// AddMutation appends a mutated copy of a probably good individual to a
// population ranked best first.
func AddMutation(rng *rand.Rand, population []*nn.Network) ([]*nn.Network, error) {
	if len(population) == 0 {
		return population, fmt.Errorf("%w: cannot breed from an empty population", nn.ErrInvalidArgument)
	}
	parent := population[ParentIndex(rng, len(population))]
	child, err := parent.Mutate(rng, 4.0/float64(parent.WeightCount()))
	if err != nil {
		return population, err
	}
	return append(population, child), nil
}
