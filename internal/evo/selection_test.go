package evo

import (
	"math"
	"math/rand"
	"testing"

	"dnnevo/internal/nn"
)

func TestParentIndexHeadBiased(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const (
		n     = 10
		draws = 200000
	)
	counts := make([]int, n)
	for i := 0; i < draws; i++ {
		idx := ParentIndex(rng, n)
		if idx < 0 || idx >= n {
			t.Fatalf("index out of range: %d", idx)
		}
		counts[idx]++
	}

	// P(0) = 1/2 + overflow mass 1/2^n, P(i) = 1/2^(i+1) otherwise.
	for i := 0; i < 4; i++ {
		want := math.Pow(0.5, float64(i+1))
		if i == 0 {
			want += math.Pow(0.5, n)
		}
		got := float64(counts[i]) / draws
		if math.Abs(got-want) > 0.01 {
			t.Fatalf("rank %d: got=%f want~%f", i, got, want)
		}
	}
}

func TestKillIndexTailBiased(t *testing.T) {
	rng := rand.New(rand.NewSource(43))
	const (
		n     = 10
		draws = 200000
	)
	counts := make([]int, n)
	for i := 0; i < draws; i++ {
		counts[KillIndex(rng, n)]++
	}

	for step := 0; step < 4; step++ {
		want := math.Pow(0.5, float64(step+1))
		if step == 0 {
			want += math.Pow(0.5, n)
		}
		got := float64(counts[n-1-step]) / draws
		if math.Abs(got-want) > 0.01 {
			t.Fatalf("rank %d: got=%f want~%f", n-1-step, got, want)
		}
	}
}

func TestSelectionSingleIndividual(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if got := KillIndex(rng, 1); got != 0 {
			t.Fatalf("kill index: got=%d want=0", got)
		}
		if got := ParentIndex(rng, 1); got != 0 {
			t.Fatalf("parent index: got=%d want=0", got)
		}
	}
}

func TestCullAndRefillKeepsPopulationSize(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	seed, err := nn.New(rng, 2, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	params := Params{PopulationSize: 12, KillRate: 0.75}
	population, err := InitPopulation(rng, seed, params.PopulationSize)
	if err != nil {
		t.Fatalf("init population: %v", err)
	}
	if population[0] != seed {
		t.Fatal("seed must lead the initial population")
	}

	for epoch := 0; epoch < 20; epoch++ {
		for i := params.KillCount(); i > 0; i-- {
			population = KillBad(rng, population)
		}
		if len(population) != params.PopulationSize-params.KillCount() {
			t.Fatalf("epoch %d: unexpected culled size %d", epoch, len(population))
		}
		for len(population) < params.PopulationSize {
			population, err = AddMutation(rng, population)
			if err != nil {
				t.Fatalf("add mutation: %v", err)
			}
		}
		if len(population) != params.PopulationSize {
			t.Fatalf("epoch %d: population size %d", epoch, len(population))
		}
	}

	seen := make(map[*nn.Network]struct{}, len(population))
	for _, net := range population {
		if _, dup := seen[net]; dup {
			t.Fatal("population slots must not alias the same network")
		}
		seen[net] = struct{}{}
	}
}

func TestKillCountFloors(t *testing.T) {
	tests := []struct {
		size int
		rate float64
		want int
	}{
		{size: 10, rate: 0.5, want: 5},
		{size: 10, rate: 0.55, want: 5},
		{size: 3, rate: 0.3, want: 0},
		{size: 7, rate: 0, want: 0},
	}
	for _, tc := range tests {
		got := Params{PopulationSize: tc.size, KillRate: tc.rate}.KillCount()
		if got != tc.want {
			t.Fatalf("size=%d rate=%f: got=%d want=%d", tc.size, tc.rate, got, tc.want)
		}
	}
}
