package evo

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"

	"dnnevo/internal/nn"
)

// Sample pairs an input vector with the output the network should produce.
type Sample struct {
	Input []float64
	Ideal []float64
}

// NetError is the sum over all samples and output dimensions of the squared
// difference between ideal and predicted values.
func NetError(net *nn.Network, data []Sample) (float64, error) {
	total := 0.0
	for i, sample := range data {
		out, err := net.FeedForward(sample.Input)
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		if len(sample.Ideal) != len(out) {
			return 0, fmt.Errorf("sample %d: %w: expected %d ideal values, got %d", i, nn.ErrInvalidArgument, len(out), len(sample.Ideal))
		}
		residual := floats.SubTo(out, sample.Ideal, out)
		total += floats.Dot(residual, residual)
	}
	return total, nil
}

type scored struct {
	net   *nn.Network
	error float64
}

// evaluatePopulation scores every individual. With more than one worker the
// population is split over a bounded pool; results keep population order.
func evaluatePopulation(ctx context.Context, population []*nn.Network, data []Sample, workers int) ([]scored, error) {
	out := make([]scored, len(population))
	if workers <= 1 || len(population) <= 1 {
		for i, net := range population {
			e, err := NetError(net, data)
			if err != nil {
				return nil, err
			}
			out[i] = scored{net: net, error: e}
		}
		return out, nil
	}

	type result struct {
		idx   int
		error float64
		err   error
	}

	jobs := make(chan int)
	results := make(chan result, len(population))

	if workers > len(population) {
		workers = len(population)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				e, err := NetError(population[idx], data)
				results <- result{idx: idx, error: e, err: err}
			}
		}()
	}

	for i := range population {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		out[res.idx] = scored{net: population[res.idx], error: res.error}
	}
	return out, nil
}
