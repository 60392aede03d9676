package neural

import (
	"fmt"
	"math"
	"slices"

	"github.com/dshills/gochunk/pkg/types"
)

// Config parameterizes a Neural strategy
type Config struct {
	Window     int        // Elements scored per position
	Hidden     []int      // Hidden layer sizes; nil means {2*Window, Window}
	Activation Activation // Hidden layer activation
	Threshold  float64    // Boundary score, in [0, 1]
	Seed       uint64     // Weight initialization seed
}

// Neural scores every position with a feed-forward network over the
// min-max-normalized window starting there, and starts a new chunk after
// position i when the score reaches the threshold. Elements in the final
// partial window are appended to the last chunk.
type Neural[T types.Number] struct {
	cfg Config
	net *Network
}

// New creates a Neural strategy
func New[T types.Number](cfg Config) (*Neural[T], error) {
	if cfg.Window <= 0 {
		return nil, types.InvalidConfiguration("neural.New", "window", cfg.Window)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 || math.IsNaN(cfg.Threshold) {
		return nil, types.InvalidConfiguration("neural.New", "threshold", cfg.Threshold)
	}
	if !cfg.Activation.valid() {
		return nil, types.InvalidConfiguration("neural.New", "activation", int(cfg.Activation))
	}
	if cfg.Hidden == nil {
		cfg.Hidden = []int{2 * cfg.Window, cfg.Window}
	}
	cfg.Hidden = slices.Clone(cfg.Hidden)

	net, err := NewNetwork(cfg.Window, cfg.Hidden, cfg.Activation, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}
	return &Neural[T]{cfg: cfg, net: net}, nil
}

func (n *Neural[T]) Name() string { return "neural" }

func (n *Neural[T]) Params() map[string]float64 {
	return map[string]float64{
		"window":     float64(n.cfg.Window),
		"threshold":  n.cfg.Threshold,
		"seed":       float64(n.cfg.Seed),
		"activation": float64(n.cfg.Activation),
	}
}

// Scores returns the network's score for every window start position
func (n *Neural[T]) Scores(data []T) []float64 {
	if len(data) < n.cfg.Window {
		return nil
	}

	scores := make([]float64, 0, len(data)-n.cfg.Window+1)
	features := make([]float64, n.cfg.Window)
	for i := 0; i+n.cfg.Window <= len(data); i++ {
		Normalize(data[i:i+n.cfg.Window], features)
		// features always matches the input layer
		s, _ := n.net.Score(features)
		scores = append(scores, s)
	}
	return scores
}

func (n *Neural[T]) Split(data []T) []int {
	var out []int
	for i, s := range n.Scores(data) {
		if s >= n.cfg.Threshold && i+1 < len(data) {
			out = append(out, i+1)
		}
	}
	return out
}

// Normalize min-max scales window into dst. A constant window maps to zeros.
func Normalize[T types.Number](window []T, dst []float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range window {
		f := float64(v)
		lo = min(lo, f)
		hi = max(hi, f)
	}

	span := hi - lo + 1e-10
	for i, v := range window {
		dst[i] = (float64(v) - lo) / span
	}
}
