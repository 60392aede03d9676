package strategy

import (
	"math"

	"github.com/dshills/gochunk/pkg/types"
)

// Combiner turns one vote per sub-strategy into a boundary decision.
// votes[k] reports whether strategy k placed a boundary at the index.
type Combiner func(votes []bool) bool

// AnyOf splits when at least one strategy votes for a boundary
func AnyOf(votes []bool) bool {
	for _, v := range votes {
		if v {
			return true
		}
	}
	return false
}

// AllOf splits only when every strategy votes for a boundary
func AllOf(votes []bool) bool {
	for _, v := range votes {
		if !v {
			return false
		}
	}
	return len(votes) > 0
}

// WeightedVote splits when the summed weight of yes votes reaches quorum.
// A sum exactly equal to quorum splits. Votes beyond len(weights) carry no
// weight.
func WeightedVote(weights []float64, quorum float64) (Combiner, error) {
	if len(weights) == 0 {
		return nil, types.InvalidArgument("WeightedVote", "weights", weights)
	}
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return nil, types.InvalidConfiguration("WeightedVote", "weight", w)
		}
	}
	if quorum <= 0 {
		return nil, types.InvalidConfiguration("WeightedVote", "quorum", quorum)
	}

	ws := append([]float64(nil), weights...)
	return func(votes []bool) bool {
		var sum float64
		for i, v := range votes {
			if v && i < len(ws) {
				sum += ws[i]
			}
		}
		return sum >= quorum
	}, nil
}

// MultiCriteria combines the boundary sets of several strategies index by index
type MultiCriteria[T any] struct {
	combine    Combiner
	strategies []Strategy[T]
}

// NewMultiCriteria creates a strategy that asks combine at every index
func NewMultiCriteria[T any](combine Combiner, strategies ...Strategy[T]) (*MultiCriteria[T], error) {
	if combine == nil {
		return nil, types.InvalidArgument("NewMultiCriteria", "combiner", nil)
	}
	if len(strategies) == 0 {
		return nil, types.InvalidArgument("NewMultiCriteria", "strategies", 0)
	}
	for i, s := range strategies {
		if s == nil {
			return nil, types.InvalidArgument("NewMultiCriteria", "strategies", i)
		}
	}
	return &MultiCriteria[T]{combine: combine, strategies: strategies}, nil
}

func (m *MultiCriteria[T]) Name() string { return "multi" }

func (m *MultiCriteria[T]) Params() map[string]float64 {
	return map[string]float64{"strategies": float64(len(m.strategies))}
}

// Strategies returns the combined strategies in vote order
func (m *MultiCriteria[T]) Strategies() []Strategy[T] {
	return append([]Strategy[T](nil), m.strategies...)
}

func (m *MultiCriteria[T]) Split(data []T) []int {
	if len(data) < 2 {
		return nil
	}

	marks := make([][]bool, len(m.strategies))
	for k, s := range m.strategies {
		marks[k] = make([]bool, len(data))
		for _, b := range s.Split(data) {
			if b > 0 && b < len(data) {
				marks[k][b] = true
			}
		}
	}

	var out []int
	votes := make([]bool, len(m.strategies))
	for i := 1; i < len(data); i++ {
		for k := range marks {
			votes[k] = marks[k][i]
		}
		if m.combine(votes) {
			out = append(out, i)
		}
	}
	return out
}
