package nn

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestNewLayerShapes(t *testing.T) {
	net, err := New(rand.New(rand.NewSource(1)), 2, 3, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	layers := net.Layers()
	wantSizes := []int{3, 4, 1}
	wantBias := []bool{true, true, false}
	if len(layers) != len(wantSizes) {
		t.Fatalf("unexpected layer count: got=%d want=%d", len(layers), len(wantSizes))
	}
	for i := range layers {
		if layers[i].Size() != wantSizes[i] {
			t.Fatalf("layer %d size: got=%d want=%d", i, layers[i].Size(), wantSizes[i])
		}
		if layers[i].HasBias() != wantBias[i] {
			t.Fatalf("layer %d bias: got=%t want=%t", i, layers[i].HasBias(), wantBias[i])
		}
	}
	if got := net.WeightCount(); got != 13 {
		t.Fatalf("unexpected weight count: got=%d want=13", got)
	}
	if net.InputSize() != 2 || net.OutputSize() != 1 {
		t.Fatalf("unexpected io sizes: in=%d out=%d", net.InputSize(), net.OutputSize())
	}

	bias := layers[1].Neuron(3)
	if !bias.IsBias() || bias.Value() != 1.0 || len(bias.Incoming()) != 0 {
		t.Fatalf("unexpected bias neuron: bias=%t value=%f incoming=%d", bias.IsBias(), bias.Value(), len(bias.Incoming()))
	}
	for i := 0; i < layers[0].Size(); i++ {
		if len(layers[0].Neuron(i).Incoming()) != 0 {
			t.Fatalf("input neuron %d has incoming connections", i)
		}
	}
}

func TestNewConnectionEndpoints(t *testing.T) {
	net, err := New(rand.New(rand.NewSource(2)), 2, 3, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	out := net.Layers()[2].Neuron(0)
	if len(out.Incoming()) != 4 {
		t.Fatalf("unexpected fan-in: got=%d want=4", len(out.Incoming()))
	}
	for k, c := range out.Incoming() {
		if c.From() != (NeuronRef{Layer: 1, Index: k}) {
			t.Fatalf("connection %d from: got=%+v", k, c.From())
		}
		if c.To() != (NeuronRef{Layer: 2, Index: 0}) {
			t.Fatalf("connection %d to: got=%+v", k, c.To())
		}
	}
}

func TestNewRejectsInvalidShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		name  string
		sizes []int
	}{
		{name: "empty", sizes: nil},
		{name: "single-layer", sizes: []int{3}},
		{name: "zero-size", sizes: []int{2, 0, 1}},
		{name: "negative-size", sizes: []int{-1, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(rng, tc.sizes...)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}

	if _, err := New(nil, 1, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for nil rng, got %v", err)
	}
}

func TestNewHeInitialisationSpread(t *testing.T) {
	net, err := New(rand.New(rand.NewSource(7)), 199, 50)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	weights := net.FlatWeights()
	mean := 0.0
	for _, w := range weights {
		mean += w
	}
	mean /= float64(len(weights))
	variance := 0.0
	for _, w := range weights {
		variance += (w - mean) * (w - mean)
	}
	std := math.Sqrt(variance / float64(len(weights)))

	want := math.Sqrt(2.0 / 200.0)
	if math.Abs(std-want) > want*0.1 {
		t.Fatalf("unexpected weight spread: got=%f want~%f", std, want)
	}
	if math.Abs(mean) > want*0.1 {
		t.Fatalf("unexpected weight mean: got=%f", mean)
	}
}

func TestFeedForwardSingleConnectionScenario(t *testing.T) {
	net, err := New(rand.New(rand.NewSource(1)), 1, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := net.PutFlatWeights([]float64{2.0, 0.5}); err != nil {
		t.Fatalf("put weights: %v", err)
	}

	tests := []struct {
		in   float64
		want float64
	}{
		{in: 3.0, want: 6.5},
		{in: -10.0, want: 0.0},
		{in: -0.25, want: 0.0},
		{in: 0.0, want: 0.5},
	}
	for _, tc := range tests {
		out, err := net.FeedForward([]float64{tc.in})
		if err != nil {
			t.Fatalf("feed forward %f: %v", tc.in, err)
		}
		if len(out) != 1 || out[0] != tc.want {
			t.Fatalf("feed forward %f: got=%v want=[%v]", tc.in, out, tc.want)
		}
	}
}

func TestFeedForwardHiddenLayer(t *testing.T) {
	// [2,2,1]: hidden h0 = relu(x0 - x1), h1 = relu(x1 - x0), out = h0 + h1.
	net, err := FromWeights([]int{2, 2, 1}, []float64{
		1, -1, 0,
		-1, 1, 0,
		1, 1, 0,
	})
	if err != nil {
		t.Fatalf("from weights: %v", err)
	}

	tests := []struct {
		in   []float64
		want float64
	}{
		{in: []float64{0, 0}, want: 0},
		{in: []float64{1, 0}, want: 1},
		{in: []float64{0, 1}, want: 1},
		{in: []float64{1, 1}, want: 0},
		{in: []float64{3, -2}, want: 5},
	}
	for _, tc := range tests {
		out, err := net.FeedForward(tc.in)
		if err != nil {
			t.Fatalf("feed forward %v: %v", tc.in, err)
		}
		if out[0] != tc.want {
			t.Fatalf("feed forward %v: got=%f want=%f", tc.in, out[0], tc.want)
		}
	}
}

func TestFeedForwardDeterministic(t *testing.T) {
	net, err := New(rand.New(rand.NewSource(3)), 3, 5, 4, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	in := []float64{0.3, -1.2, 2.5}
	first, err := net.FeedForward(in)
	if err != nil {
		t.Fatalf("feed forward: %v", err)
	}
	if _, err := net.FeedForward([]float64{9, 9, 9}); err != nil {
		t.Fatalf("feed forward: %v", err)
	}
	second, err := net.FeedForward(in)
	if err != nil {
		t.Fatalf("feed forward: %v", err)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("unexpected output length: %d %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic output at %d: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestFeedForwardInputLengthMismatch(t *testing.T) {
	net, err := New(rand.New(rand.NewSource(1)), 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, in := range [][]float64{nil, {1}, {1, 2, 3}} {
		if _, err := net.FeedForward(in); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("inputs %v: expected invalid argument, got %v", in, err)
		}
	}
}

func TestFeedForwardPropagatesNaN(t *testing.T) {
	net, err := FromWeights([]int{1, 1}, []float64{math.NaN(), 0})
	if err != nil {
		t.Fatalf("from weights: %v", err)
	}
	out, err := net.FeedForward([]float64{1})
	if err != nil {
		t.Fatalf("feed forward: %v", err)
	}
	if !math.IsNaN(out[0]) {
		t.Fatalf("expected NaN output, got %f", out[0])
	}
}

func TestReLU(t *testing.T) {
	tests := []struct {
		x, want float64
	}{
		{x: -3, want: 0},
		{x: -1e-300, want: 0},
		{x: 0, want: 0},
		{x: 1e-300, want: 1e-300},
		{x: 42, want: 42},
	}
	for _, tc := range tests {
		if got := ReLU(tc.x); got != tc.want {
			t.Fatalf("relu(%g): got=%g want=%g", tc.x, got, tc.want)
		}
	}
}

func TestFlatWeightsRoundTrip(t *testing.T) {
	net, err := New(rand.New(rand.NewSource(5)), 4, 3, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	before := net.FlatWeights()
	if err := net.PutFlatWeights(net.FlatWeights()); err != nil {
		t.Fatalf("put weights: %v", err)
	}
	after := net.FlatWeights()
	if !sameGenome(before, after) {
		t.Fatalf("round trip changed weights: before=%v after=%v", before, after)
	}
}

func TestFlatWeightsCanonicalOrder(t *testing.T) {
	net, err := New(rand.New(rand.NewSource(1)), 2, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	genome := make([]float64, net.WeightCount())
	for i := range genome {
		genome[i] = float64(i)
	}
	if err := net.PutFlatWeights(genome); err != nil {
		t.Fatalf("put weights: %v", err)
	}

	layers := net.Layers()
	want := 0.0
	for l := range layers {
		for i := 0; i < layers[l].Size(); i++ {
			for _, c := range layers[l].Neuron(i).Incoming() {
				if c.Weight() != want {
					t.Fatalf("layer %d neuron %d: got weight %f want %f", l, i, c.Weight(), want)
				}
				want++
			}
		}
	}
}

func TestPutFlatWeightsLengthMismatch(t *testing.T) {
	net, err := New(rand.New(rand.NewSource(1)), 1, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	before := net.FlatWeights()

	for _, weights := range [][]float64{nil, {1}, {1, 2, 3}} {
		if err := net.PutFlatWeights(weights); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("weights %v: expected invalid argument, got %v", weights, err)
		}
	}
	if !sameGenome(before, net.FlatWeights()) {
		t.Fatal("rejected genome must not modify weights")
	}
}

func TestConnectionSetWeight(t *testing.T) {
	net, err := FromWeights([]int{1, 1}, []float64{1, 1})
	if err != nil {
		t.Fatalf("from weights: %v", err)
	}
	incoming := net.Layers()[1].Neuron(0).Incoming()
	incoming[0].SetWeight(math.Inf(1))
	if got := net.FlatWeights()[0]; !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf weight, got %f", got)
	}
}

func TestEqual(t *testing.T) {
	a, err := FromWeights([]int{1, 2}, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("from weights: %v", err)
	}
	b, err := FromWeights([]int{1, 2}, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("from weights: %v", err)
	}
	if !Equal(a, b) {
		t.Fatal("expected identical genomes to be equal")
	}

	c, err := FromWeights([]int{1, 2}, []float64{1, 2, 3, 5})
	if err != nil {
		t.Fatalf("from weights: %v", err)
	}
	if Equal(a, c) {
		t.Fatal("expected differing genomes to be unequal")
	}

	d, err := FromWeights([]int{1, 1, 1}, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("from weights: %v", err)
	}
	if Equal(a, d) {
		t.Fatal("expected different layer counts to be unequal")
	}

	// Equality only looks at layer count and genome, so a differently shaped
	// network with a coincidentally identical genome compares equal.
	e, err := FromWeights([]int{3, 1}, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("from weights: %v", err)
	}
	if !Equal(a, e) {
		t.Fatal("expected same layer count and genome to compare equal")
	}

	pos, _ := FromWeights([]int{1, 1}, []float64{0, 1})
	neg, _ := FromWeights([]int{1, 1}, []float64{math.Copysign(0, -1), 1})
	if Equal(pos, neg) {
		t.Fatal("expected +0 and -0 weights to differ")
	}
}
