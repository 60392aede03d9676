package neural

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/dshills/gochunk/pkg/types"
)

// Activation is a layer's element-wise nonlinearity
type Activation int

const (
	Sigmoid Activation = iota
	ReLU
)

func (a Activation) String() string {
	switch a {
	case Sigmoid:
		return "sigmoid"
	case ReLU:
		return "relu"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// ParseActivation maps "sigmoid" or "relu" to an Activation
func ParseActivation(name string) (Activation, error) {
	switch strings.ToLower(name) {
	case "", "sigmoid":
		return Sigmoid, nil
	case "relu":
		return ReLU, nil
	default:
		return 0, types.InvalidArgument("ParseActivation", "activation", name)
	}
}

func (a Activation) valid() bool {
	return a == Sigmoid || a == ReLU
}

func (a Activation) apply(x float64) float64 {
	if a == ReLU {
		return max(0, x)
	}
	return 1 / (1 + math.Exp(-x))
}

// Layer is a fully connected layer: out = act(W*in + b)
type Layer struct {
	weights    [][]float64 // [out][in]
	biases     []float64
	activation Activation
}

// NewLayer creates a layer with Xavier-normal weights and biases drawn from rng
func NewLayer(inputSize, outputSize int, act Activation, rng *rand.Rand) (*Layer, error) {
	if inputSize <= 0 {
		return nil, types.InvalidConfiguration("NewLayer", "input_size", inputSize)
	}
	if outputSize <= 0 {
		return nil, types.InvalidConfiguration("NewLayer", "output_size", outputSize)
	}
	if rng == nil {
		return nil, types.InvalidArgument("NewLayer", "rng", nil)
	}

	stddev := math.Sqrt(2.0 / float64(inputSize+outputSize))
	l := &Layer{
		weights:    make([][]float64, outputSize),
		biases:     make([]float64, outputSize),
		activation: act,
	}
	for i := range l.weights {
		l.weights[i] = make([]float64, inputSize)
		for j := range l.weights[i] {
			l.weights[i][j] = rng.NormFloat64() * stddev
		}
	}
	for i := range l.biases {
		l.biases[i] = rng.NormFloat64() * stddev
	}
	return l, nil
}

// InputSize returns the number of inputs the layer accepts
func (l *Layer) InputSize() int { return len(l.weights[0]) }

// OutputSize returns the number of neurons in the layer
func (l *Layer) OutputSize() int { return len(l.weights) }

// Forward propagates input through the layer
func (l *Layer) Forward(input []float64) ([]float64, error) {
	if len(input) != l.InputSize() {
		return nil, types.InvalidArgument("Layer.Forward", "input_size", len(input))
	}

	out := make([]float64, len(l.weights))
	for i, row := range l.weights {
		sum := l.biases[i]
		for j, w := range row {
			sum += w * input[j]
		}
		out[i] = l.activation.apply(sum)
	}
	return out, nil
}

// Network is a feed-forward stack of layers ending in a single sigmoid
// neuron, so its output is a score in (0, 1)
type Network struct {
	layers []*Layer
}

// NewNetwork builds inputSize -> hidden... -> 1. Hidden layers use act; the
// output layer is always sigmoid. All weights come from a generator seeded
// with seed, so equal arguments build identical networks.
func NewNetwork(inputSize int, hidden []int, act Activation, seed uint64) (*Network, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	sizes := append([]int{inputSize}, hidden...)
	sizes = append(sizes, 1)

	n := &Network{}
	for i := 0; i+1 < len(sizes); i++ {
		layerAct := act
		if i+2 == len(sizes) {
			layerAct = Sigmoid
		}
		l, err := NewLayer(sizes[i], sizes[i+1], layerAct, rng)
		if err != nil {
			return nil, fmt.Errorf("failed to build layer %d: %w", i, err)
		}
		n.layers = append(n.layers, l)
	}
	return n, nil
}

// Layers returns the network's layers, input side first
func (n *Network) Layers() []*Layer {
	return append([]*Layer(nil), n.layers...)
}

// Score propagates input through every layer and returns the output neuron
func (n *Network) Score(input []float64) (float64, error) {
	current := input
	for i, l := range n.layers {
		out, err := l.Forward(current)
		if err != nil {
			return 0, fmt.Errorf("layer %d: %w", i, err)
		}
		current = out
	}
	return current[0], nil
}
