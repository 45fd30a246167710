package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrInvalidArgument is wrapped by every validation failure in this package
// and by the trainer for bad parameters.
var ErrInvalidArgument = errors.New("invalid argument")

// NeuronRef addresses a neuron by its layer index and its index inside that layer.
type NeuronRef struct {
	Layer int
	Index int
}

// Connection is a weighted edge between two neurons of the same network.
type Connection struct {
	from   NeuronRef
	to     NeuronRef
	weight float64
}

// From is the source neuron, always in the previous layer.
func (c *Connection) From() NeuronRef {
	return c.from
}

// To is the destination neuron.
func (c *Connection) To() NeuronRef {
	return c.to
}

// Weight is the current multiplier applied to the source value.
func (c *Connection) Weight() float64 {
	return c.weight
}

// SetWeight stores w as is; non-finite values are accepted.
func (c *Connection) SetWeight(w float64) {
	c.weight = w
}

// Neuron holds its last computed value and its incoming connections. Bias
// neurons always hold 1.
type Neuron struct {
	bias     bool
	value    float64
	incoming []Connection
}

func (n *Neuron) IsBias() bool {
	return n.bias
}

// Value is the output of the most recent FeedForward.
func (n *Neuron) Value() float64 {
	return n.value
}

// Incoming exposes the neuron's incoming connections in genome order.
func (n *Neuron) Incoming() []Connection {
	return n.incoming
}

// update recomputes the neuron value from the already updated previous layer.
func (n *Neuron) update(prev *Layer) {
	if n.bias {
		return
	}
	raw := 0.0
	for i := range n.incoming {
		c := &n.incoming[i]
		raw += c.weight * prev.neurons[c.from.Index].value
	}
	n.value = ReLU(raw)
}

// Layer is an ordered group of neurons. A bias neuron, when present, is the
// last neuron of the layer.
type Layer struct {
	neurons []Neuron
	bias    bool
}

func newLayer(rng *rand.Rand, index, size int, bias bool, prev *Layer) Layer {
	total := size
	if bias {
		total++
	}
	layer := Layer{neurons: make([]Neuron, total), bias: bias}
	for i := range layer.neurons {
		if bias && i == size {
			layer.neurons[i] = Neuron{bias: true, value: 1.0}
			continue
		}
		if prev == nil {
			continue
		}

		fanIn := prev.Size()
		scale := heScale(fanIn)
		incoming := make([]Connection, fanIn)
		for k := range incoming {
			weight := 0.0
			if rng != nil {
				weight = rng.NormFloat64() * scale
			}
			incoming[k] = Connection{
				from:   NeuronRef{Layer: index - 1, Index: k},
				to:     NeuronRef{Layer: index, Index: i},
				weight: weight,
			}
		}
		layer.neurons[i].incoming = incoming
	}
	return layer
}

// Size is the neuron count including the bias neuron.
func (l *Layer) Size() int {
	return len(l.neurons)
}

// HasBias reports whether the layer ends with a bias neuron. Every layer but
// the output layer has one.
func (l *Layer) HasBias() bool {
	return l.bias
}

// Neuron returns the i-th neuron. The bias neuron, if any, is at Size()-1.
func (l *Layer) Neuron(i int) *Neuron {
	return &l.neurons[i]
}

func (l *Layer) update(prev *Layer) {
	for i := range l.neurons {
		l.neurons[i].update(prev)
	}
}

// Values returns the non-bias neuron values in index order.
func (l *Layer) Values() []float64 {
	n := len(l.neurons)
	if l.bias {
		n--
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = l.neurons[i].value
	}
	return values
}

// Network is a fully connected feedforward stack of ReLU layers. Every layer
// except the output layer carries a bias neuron.
type Network struct {
	layers      []Layer
	layerSizes  []int
	weightCount int
}

// New builds a network with the given non-bias layer sizes, drawing He
// initialised weights from rng.
func New(rng *rand.Rand, layerSizes ...int) (*Network, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidArgument)
	}
	return build(rng, layerSizes)
}

// FromWeights builds a network of the given shape and restores weights into
// it without consuming any randomness.
func FromWeights(layerSizes []int, weights []float64) (*Network, error) {
	net, err := build(nil, layerSizes)
	if err != nil {
		return nil, err
	}
	if err := net.PutFlatWeights(weights); err != nil {
		return nil, err
	}
	return net, nil
}

func build(rng *rand.Rand, layerSizes []int) (*Network, error) {
	if len(layerSizes) < 2 {
		return nil, fmt.Errorf("%w: a network needs at least two layers, got %d", ErrInvalidArgument, len(layerSizes))
	}
	for i, size := range layerSizes {
		if size < 1 {
			return nil, fmt.Errorf("%w: layer %d size must be >= 1, got %d", ErrInvalidArgument, i, size)
		}
	}

	net := &Network{
		layers:     make([]Layer, len(layerSizes)),
		layerSizes: append([]int(nil), layerSizes...),
	}
	last := len(layerSizes) - 1
	for i, size := range layerSizes {
		var prev *Layer
		if i > 0 {
			prev = &net.layers[i-1]
		}
		net.layers[i] = newLayer(rng, i, size, i != last, prev)
		for n := range net.layers[i].neurons {
			net.weightCount += len(net.layers[i].neurons[n].incoming)
		}
	}
	return net, nil
}

// FeedForward propagates inputs through the network and returns the output
// layer values.
func (n *Network) FeedForward(inputs []float64) ([]float64, error) {
	if len(inputs) != n.layerSizes[0] {
		return nil, fmt.Errorf("%w: expected %d inputs, got %d", ErrInvalidArgument, n.layerSizes[0], len(inputs))
	}
	input := &n.layers[0]
	for i, v := range inputs {
		input.neurons[i].value = v
	}
	for i := 1; i < len(n.layers); i++ {
		n.layers[i].update(&n.layers[i-1])
	}
	return n.layers[len(n.layers)-1].Values(), nil
}

// FlatWeights returns the weight genome: layer ascending, neuron ascending,
// incoming connection ascending.
func (n *Network) FlatWeights() []float64 {
	weights := make([]float64, 0, n.weightCount)
	for l := range n.layers {
		for i := range n.layers[l].neurons {
			for _, c := range n.layers[l].neurons[i].incoming {
				weights = append(weights, c.weight)
			}
		}
	}
	return weights
}

// PutFlatWeights overwrites every connection weight in genome order. The
// length is checked before anything is written.
func (n *Network) PutFlatWeights(weights []float64) error {
	if len(weights) != n.weightCount {
		return fmt.Errorf("%w: expected %d weights, got %d", ErrInvalidArgument, n.weightCount, len(weights))
	}
	pos := 0
	for l := range n.layers {
		for i := range n.layers[l].neurons {
			incoming := n.layers[l].neurons[i].incoming
			for k := range incoming {
				incoming[k].weight = weights[pos]
				pos++
			}
		}
	}
	return nil
}

// LayerSizes returns a copy of the non-bias layer sizes.
func (n *Network) LayerSizes() []int {
	return append([]int(nil), n.layerSizes...)
}

// Layers exposes the layer arena for read-only consumers such as renderers.
func (n *Network) Layers() []Layer {
	return n.layers
}

// WeightCount is the genome length.
func (n *Network) WeightCount() int {
	return n.weightCount
}

// InputSize is the number of values FeedForward expects.
func (n *Network) InputSize() int {
	return n.layerSizes[0]
}

// OutputSize is the number of values FeedForward returns.
func (n *Network) OutputSize() int {
	return n.layerSizes[len(n.layerSizes)-1]
}

// Equal reports whether a and b have the same layer count and bit-identical
// genomes. Per-layer sizes are not compared.
func Equal(a, b *Network) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.layers) != len(b.layers) {
		return false
	}
	return sameGenome(a.FlatWeights(), b.FlatWeights())
}

func sameGenome(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}
