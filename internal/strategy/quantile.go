package strategy

import (
	"math"
	"slices"

	"github.com/dshills/gochunk/pkg/types"
)

// Quantile splits when an element falls outside the [qlow, qhigh] quantile
// band of the trailing window. The window holds the last window elements of
// the open chunk and excludes the candidate itself; no decision is made until
// the open chunk holds a full window.
type Quantile[T types.Number] struct {
	window int
	qlow   float64
	qhigh  float64
}

// NewQuantile creates a quantile-band strategy. Bounds must satisfy
// 0 <= qlow < qhigh <= 1.
func NewQuantile[T types.Number](window int, qlow, qhigh float64) (*Quantile[T], error) {
	if window <= 0 {
		return nil, types.InvalidConfiguration("NewQuantile", "window", window)
	}
	if qlow < 0 || qlow > 1 || math.IsNaN(qlow) {
		return nil, types.InvalidConfiguration("NewQuantile", "qlow", qlow)
	}
	if qhigh < 0 || qhigh > 1 || math.IsNaN(qhigh) {
		return nil, types.InvalidConfiguration("NewQuantile", "qhigh", qhigh)
	}
	if qlow >= qhigh {
		return nil, types.InvalidConfiguration("NewQuantile", "qlow", qlow)
	}
	return &Quantile[T]{window: window, qlow: qlow, qhigh: qhigh}, nil
}

func (q *Quantile[T]) Name() string { return "quantile" }

func (q *Quantile[T]) Params() map[string]float64 {
	return map[string]float64{
		"window": float64(q.window),
		"qlow":   q.qlow,
		"qhigh":  q.qhigh,
	}
}

func (q *Quantile[T]) Split(data []T) []int {
	sorted := make([]float64, 0, q.window)
	return scan(data, func(open []T, candidate T) bool {
		if len(open) < q.window {
			return false
		}
		sorted = sorted[:0]
		for _, v := range tail(open, q.window) {
			sorted = append(sorted, float64(v))
		}
		slices.Sort(sorted)

		x := float64(candidate)
		return x < QuantileOf(sorted, q.qlow) || x > QuantileOf(sorted, q.qhigh)
	})
}

// QuantileOf returns the q-quantile of sorted using linear interpolation
// between closest ranks. sorted must be non-empty and ascending.
func QuantileOf(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(sorted)-1)
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
