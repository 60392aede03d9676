package strategy

import (
	"slices"

	"github.com/dshills/gochunk/pkg/types"
)

// CyclePattern detects repeating blocks of period p <= patternSize at the end
// of the open chunk (its last 2p elements are one block repeated twice) and
// starts a new chunk at the first element that continues none of them.
type CyclePattern[T comparable] struct {
	patternSize int
}

// NewCyclePattern creates a cycle detector for periods up to patternSize
func NewCyclePattern[T comparable](patternSize int) (*CyclePattern[T], error) {
	if patternSize <= 0 {
		return nil, types.InvalidConfiguration("NewCyclePattern", "pattern_size", patternSize)
	}
	return &CyclePattern[T]{patternSize: patternSize}, nil
}

func (c *CyclePattern[T]) Name() string { return "pattern" }

func (c *CyclePattern[T]) Params() map[string]float64 {
	return map[string]float64{"pattern_size": float64(c.patternSize)}
}

func (c *CyclePattern[T]) Split(data []T) []int {
	return scan(data, func(open []T, candidate T) bool {
		periods := Periods(open, c.patternSize)
		for _, p := range periods {
			if candidate == open[len(open)-p] {
				return false
			}
		}
		return len(periods) > 0
	})
}

// Periods returns every period p <= maxPeriod for which the last 2p elements
// of data are a block repeated twice, shortest first
func Periods[T comparable](data []T, maxPeriod int) []int {
	var out []int
	n := len(data)
	for p := 1; p <= maxPeriod && 2*p <= n; p++ {
		if slices.Equal(data[n-2*p:n-p], data[n-p:]) {
			out = append(out, p)
		}
	}
	return out
}

// WindowPattern evaluates a caller predicate over every fixed window of size
// elements; when it holds for the window ending at i, a new chunk starts at
// i+1
type WindowPattern[T any] struct {
	size int
	pred func(window []T) bool
}

// NewWindowPattern creates a predicate-driven pattern strategy
func NewWindowPattern[T any](size int, pred func(window []T) bool) (*WindowPattern[T], error) {
	if size <= 0 {
		return nil, types.InvalidConfiguration("NewWindowPattern", "size", size)
	}
	if pred == nil {
		return nil, types.InvalidArgument("NewWindowPattern", "predicate", nil)
	}
	return &WindowPattern[T]{size: size, pred: pred}, nil
}

func (w *WindowPattern[T]) Name() string { return "window_pattern" }

func (w *WindowPattern[T]) Params() map[string]float64 {
	return map[string]float64{"size": float64(w.size)}
}

func (w *WindowPattern[T]) Split(data []T) []int {
	var out []int
	for i := w.size - 1; i+1 < len(data); i++ {
		if w.pred(data[i-w.size+1 : i+1]) {
			out = append(out, i+1)
		}
	}
	return out
}
