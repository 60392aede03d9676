package registry

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/dshills/gochunk/internal/advanced"
	"github.com/dshills/gochunk/internal/chunker"
	"github.com/dshills/gochunk/internal/neural"
	"github.com/dshills/gochunk/internal/strategy"
	"github.com/dshills/gochunk/pkg/types"
)

// Spec names a strategy and its parameters. Children and Combine are only
// read by the "multi" strategy.
type Spec struct {
	Name     string             `json:"name" yaml:"name"`
	Params   map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
	Children []Spec             `json:"children,omitempty" yaml:"children,omitempty"`
	Combine  string             `json:"combine,omitempty" yaml:"combine,omitempty"` // "any" (default) or "all"
}

// entry builds one strategy from a resolved parameter set
type entry[T any] struct {
	defaults map[string]float64
	build    func(p params) (strategy.Strategy[T], error)
}

var numeric = map[string]entry[float64]{
	"size": {
		defaults: map[string]float64{"size": chunker.DefaultChunkSize},
		build: func(p params) (strategy.Strategy[float64], error) {
			return strategy.NewFixed[float64](p.int("size"))
		},
	},
	"variance": {
		defaults: map[string]float64{"window": 5, "threshold": 1},
		build: func(p params) (strategy.Strategy[float64], error) {
			return strategy.NewVariance[float64](p.int("window"), p["threshold"])
		},
	},
	"entropy": {
		defaults: map[string]float64{"window": 5, "threshold": 1},
		build: func(p params) (strategy.Strategy[float64], error) {
			return strategy.NewEntropy[float64](p.int("window"), p["threshold"])
		},
	},
	"quantile": {
		defaults: map[string]float64{"window": 10, "qlow": 0.1, "qhigh": 0.9},
		build: func(p params) (strategy.Strategy[float64], error) {
			return strategy.NewQuantile[float64](p.int("window"), p["qlow"], p["qhigh"])
		},
	},
	"pattern": {
		defaults: map[string]float64{"pattern_size": 4},
		build: func(p params) (strategy.Strategy[float64], error) {
			return strategy.NewCyclePattern[float64](p.int("pattern_size"))
		},
	},
	"dynamic": {
		defaults: map[string]float64{"initial": 1, "min": 0.1, "decay": 0.9},
		build: func(p params) (strategy.Strategy[float64], error) {
			return strategy.NewDynamicThreshold[float64](p["initial"], p["min"], p["decay"])
		},
	},
	"adaptive": {
		defaults: map[string]float64{"window": 5, "threshold": 1, "alpha": 0.1},
		build: func(p params) (strategy.Strategy[float64], error) {
			return strategy.NewAdaptive[float64](p.int("window"), p["threshold"], p["alpha"], chunker.Variance[float64])
		},
	},
	"dtw": {
		defaults: map[string]float64{"window": 4, "threshold": 1},
		build: func(p params) (strategy.Strategy[float64], error) {
			return advanced.NewDTW[float64](p.int("window"), p["threshold"], advanced.AbsDiff[float64])
		},
	},
	"mutual_information": {
		defaults: map[string]float64{"context": 3, "threshold": 0.5},
		build: func(p params) (strategy.Strategy[float64], error) {
			return advanced.NewMutualInformation[float64](p.int("context"), p["threshold"])
		},
	},
	"wavelet": {
		defaults: map[string]float64{"window": 8, "threshold": 1},
		build: func(p params) (strategy.Strategy[float64], error) {
			return advanced.NewWavelet[float64](p.int("window"), p["threshold"])
		},
	},
	"neural": {
		defaults: map[string]float64{"window": 8, "threshold": 0.5, "seed": 42, "activation": float64(neural.Sigmoid)},
		build: func(p params) (strategy.Strategy[float64], error) {
			return neural.New[float64](neural.Config{
				Window:     p.int("window"),
				Threshold:  p["threshold"],
				Seed:       uint64(p.int("seed")),
				Activation: neural.Activation(p.int("activation")),
			})
		},
	},
}

var text = map[string]entry[string]{
	"size": {
		defaults: map[string]float64{"size": chunker.DefaultChunkSize},
		build: func(p params) (strategy.Strategy[string], error) {
			return strategy.NewFixed[string](p.int("size"))
		},
	},
	"text_entropy": {
		defaults: map[string]float64{"window": 5, "threshold": 2},
		build: func(p params) (strategy.Strategy[string], error) {
			return strategy.NewTextEntropy(p.int("window"), p["threshold"])
		},
	},
	"entropy": {
		defaults: map[string]float64{"window": 5, "threshold": 1},
		build: func(p params) (strategy.Strategy[string], error) {
			return strategy.NewEntropy[string](p.int("window"), p["threshold"])
		},
	},
}

var binary = map[string]entry[byte]{
	"size": {
		defaults: map[string]float64{"size": chunker.DefaultChunkSize},
		build: func(p params) (strategy.Strategy[byte], error) {
			return strategy.NewFixed[byte](p.int("size"))
		},
	},
	"rolling_hash": {
		defaults: map[string]float64{
			"average_bits": strategy.DefaultAverageBits,
			"min_size":     1 << (strategy.DefaultAverageBits - 2),
			"max_size":     1 << (strategy.DefaultAverageBits + 2),
			"seed":         0,
		},
		build: func(p params) (strategy.Strategy[byte], error) {
			return strategy.NewRollingHash(p.int("average_bits"), p.int("min_size"), p.int("max_size"), int64(p.int("seed")))
		},
	},
	"entropy": {
		defaults: map[string]float64{"window": 16, "threshold": 3},
		build: func(p params) (strategy.Strategy[byte], error) {
			return strategy.NewEntropy[byte](p.int("window"), p["threshold"])
		},
	},
}

// Numeric builds a strategy over float64 samples. Unset parameters take
// their defaults; unknown names and parameters are rejected.
func Numeric(name string, p map[string]float64) (strategy.Strategy[float64], error) {
	return NumericSpec(Spec{Name: name, Params: p})
}

// NumericSpec builds a numeric strategy from spec, including "multi", which
// combines its children's votes
func NumericSpec(spec Spec) (strategy.Strategy[float64], error) {
	if spec.Name != "multi" {
		return lookup("Numeric", numeric, spec.Name, spec.Params)
	}

	if len(spec.Children) == 0 {
		return nil, types.InvalidArgument("Numeric", "children", 0)
	}
	if len(spec.Params) > 0 {
		return nil, types.InvalidArgument("Numeric", "params", slices.Sorted(maps.Keys(spec.Params)))
	}

	combine, err := combiner(spec.Combine)
	if err != nil {
		return nil, err
	}

	children := make([]strategy.Strategy[float64], 0, len(spec.Children))
	for _, c := range spec.Children {
		s, err := NumericSpec(c)
		if err != nil {
			return nil, fmt.Errorf("multi child %q: %w", c.Name, err)
		}
		children = append(children, s)
	}
	return strategy.NewMultiCriteria(combine, children...)
}

// Text builds a strategy over string tokens
func Text(name string, p map[string]float64) (strategy.Strategy[string], error) {
	return lookup("Text", text, name, p)
}

// Bytes builds a strategy over raw bytes
func Bytes(name string, p map[string]float64) (strategy.Strategy[byte], error) {
	return lookup("Bytes", binary, name, p)
}

// NumericNames lists the names accepted by NumericSpec, sorted
func NumericNames() []string {
	names := append(slices.Collect(maps.Keys(numeric)), "multi")
	slices.Sort(names)
	return names
}

// TextNames lists the names accepted by Text, sorted
func TextNames() []string {
	return slices.Sorted(maps.Keys(text))
}

// BytesNames lists the names accepted by Bytes, sorted
func BytesNames() []string {
	return slices.Sorted(maps.Keys(binary))
}

// Defaults returns a copy of the default parameters of the numeric strategy name
func Defaults(name string) (map[string]float64, bool) {
	e, ok := numeric[name]
	if !ok {
		return nil, false
	}
	return maps.Clone(e.defaults), true
}

func lookup[T any](op string, table map[string]entry[T], name string, given map[string]float64) (strategy.Strategy[T], error) {
	e, ok := table[strings.ToLower(name)]
	if !ok {
		return nil, types.InvalidArgument(op, "name", name)
	}

	p := maps.Clone(e.defaults)
	for k, v := range given {
		if _, known := e.defaults[k]; !known {
			return nil, types.InvalidArgument(op, k, v)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, types.InvalidArgument(op, k, v)
		}
		p[k] = v
	}

	s, err := e.build(p)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s strategy: %w", name, err)
	}
	return s, nil
}

func combiner(name string) (strategy.Combiner, error) {
	switch strings.ToLower(name) {
	case "", "any":
		return strategy.AnyOf, nil
	case "all":
		return strategy.AllOf, nil
	default:
		return nil, types.InvalidArgument("Numeric", "combine", name)
	}
}

// params is a resolved parameter set
type params map[string]float64

// int truncates p[key] toward zero
func (p params) int(key string) int {
	return int(p[key])
}
