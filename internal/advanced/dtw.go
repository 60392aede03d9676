package advanced

import (
	"math"

	"github.com/dshills/gochunk/internal/strategy"
	"github.com/dshills/gochunk/pkg/types"
)

// DistanceFunc measures the distance between two elements
type DistanceFunc[T any] func(a, b T) float64

// AbsDiff is the absolute difference distance for numeric elements
func AbsDiff[T types.Number](a, b T) float64 {
	return math.Abs(float64(a) - float64(b))
}

// DTW splits where the dynamic-time-warping distance between the open
// chunk's last window elements and the next window elements exceeds a
// threshold
type DTW[T any] struct {
	window    int
	threshold float64
	dist      DistanceFunc[T]
}

var _ strategy.Strategy[float64] = (*DTW[float64])(nil)

// NewDTW creates a DTW strategy comparing adjacent windows of window elements
func NewDTW[T any](window int, threshold float64, dist DistanceFunc[T]) (*DTW[T], error) {
	if window <= 0 {
		return nil, types.InvalidConfiguration("NewDTW", "window", window)
	}
	if threshold <= 0 {
		return nil, types.InvalidConfiguration("NewDTW", "threshold", threshold)
	}
	if dist == nil {
		return nil, types.InvalidArgument("NewDTW", "distance", nil)
	}
	return &DTW[T]{window: window, threshold: threshold, dist: dist}, nil
}

func (d *DTW[T]) Name() string { return "dtw" }

func (d *DTW[T]) Params() map[string]float64 {
	return map[string]float64{
		"window":    float64(d.window),
		"threshold": d.threshold,
	}
}

func (d *DTW[T]) Split(data []T) []int {
	return lookahead(data, d.window, func(prev, next []T) bool {
		return Distance(prev, next, d.dist) > d.threshold
	})
}

// Distance computes the DTW distance between a and b. D[0][0] is
// dist(a0, b0), the first row and column accumulate, and every other cell adds
// dist(ai, bj) to the cheapest of its three predecessors. Either input empty
// yields +Inf.
func Distance[T any](a, b []T, dist DistanceFunc[T]) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}

	// Two rolling rows are enough for the recurrence
	prev := make([]float64, len(b))
	cur := make([]float64, len(b))

	prev[0] = dist(a[0], b[0])
	for j := 1; j < len(b); j++ {
		prev[j] = prev[j-1] + dist(a[0], b[j])
	}

	for i := 1; i < len(a); i++ {
		cur[0] = prev[0] + dist(a[i], b[0])
		for j := 1; j < len(b); j++ {
			cur[j] = dist(a[i], b[j]) + min(prev[j], cur[j-1], prev[j-1])
		}
		prev, cur = cur, prev
	}
	return prev[len(b)-1]
}

// lookahead walks data and asks boundary whether a new chunk starts at i,
// given the open chunk's last window elements and the window elements
// starting at i. Positions without a full window on both sides are never
// boundaries, so inputs shorter than 2*window produce a single chunk.
func lookahead[T any](data []T, window int, boundary func(prev, next []T) bool) []int {
	var out []int
	start := 0
	for i := 1; i+window <= len(data); i++ {
		if i-start < window {
			continue
		}
		if boundary(data[i-window:i], data[i:i+window]) {
			out = append(out, i)
			start = i
		}
	}
	return out
}
