package strategy

import (
	"github.com/dshills/gochunk/internal/chunker"
	"github.com/dshills/gochunk/pkg/types"
)

// Variance splits when the population variance of the trailing window
// exceeds a threshold. A window of one element has zero variance, so a
// window size of 1 never splits.
type Variance[T types.Number] struct {
	window    int
	threshold float64
}

// NewVariance creates a variance strategy over windows of window elements
func NewVariance[T types.Number](window int, threshold float64) (*Variance[T], error) {
	if window <= 0 {
		return nil, types.InvalidConfiguration("NewVariance", "window", window)
	}
	if threshold <= 0 {
		return nil, types.InvalidConfiguration("NewVariance", "threshold", threshold)
	}
	return &Variance[T]{window: window, threshold: threshold}, nil
}

func (v *Variance[T]) Name() string { return "variance" }

func (v *Variance[T]) Params() map[string]float64 {
	return map[string]float64{
		"window":    float64(v.window),
		"threshold": v.threshold,
	}
}

func (v *Variance[T]) Split(data []T) []int {
	var buf []T
	return scan(data, func(open []T, candidate T) bool {
		buf = trailingWindow(open, candidate, v.window, buf)
		return chunker.Variance(buf) > v.threshold
	})
}
