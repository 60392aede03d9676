package strategy

import (
	"math"

	"github.com/dshills/gochunk/pkg/types"
)

// Adaptive splits when metric over the trailing window exceeds the current
// threshold. After each emitted chunk the threshold moves toward the metric
// value that ended it: t = (1-alpha)*t + alpha*m.
//
// The threshold evolves within a single Split call and starts over from
// initialThreshold on the next one.
type Adaptive[T types.Number] struct {
	window           int
	initialThreshold float64
	alpha            float64
	metric           func([]T) float64
}

// NewAdaptive creates an adaptive-threshold strategy. alpha must lie in (0, 1].
func NewAdaptive[T types.Number](window int, initialThreshold, alpha float64, metric func([]T) float64) (*Adaptive[T], error) {
	if window <= 0 {
		return nil, types.InvalidConfiguration("NewAdaptive", "window", window)
	}
	if initialThreshold <= 0 {
		return nil, types.InvalidConfiguration("NewAdaptive", "threshold", initialThreshold)
	}
	if alpha <= 0 || alpha > 1 || math.IsNaN(alpha) {
		return nil, types.InvalidConfiguration("NewAdaptive", "alpha", alpha)
	}
	if metric == nil {
		return nil, types.InvalidArgument("NewAdaptive", "metric", nil)
	}
	return &Adaptive[T]{
		window:           window,
		initialThreshold: initialThreshold,
		alpha:            alpha,
		metric:           metric,
	}, nil
}

func (a *Adaptive[T]) Name() string { return "adaptive" }

func (a *Adaptive[T]) Params() map[string]float64 {
	return map[string]float64{
		"window":    float64(a.window),
		"threshold": a.initialThreshold,
		"alpha":     a.alpha,
	}
}

func (a *Adaptive[T]) Split(data []T) []int {
	_, boundaries := a.run(data)
	return boundaries
}

// Thresholds returns the threshold in force for each chunk Split would emit
func (a *Adaptive[T]) Thresholds(data []T) []float64 {
	thresholds, _ := a.run(data)
	return thresholds
}

func (a *Adaptive[T]) run(data []T) ([]float64, []int) {
	if len(data) == 0 {
		return nil, nil
	}

	t := a.initialThreshold
	thresholds := []float64{t}
	var buf []T
	boundaries := scan(data, func(open []T, candidate T) bool {
		buf = trailingWindow(open, candidate, a.window, buf)
		m := a.metric(buf)
		if m <= t {
			return false
		}
		t = (1-a.alpha)*t + a.alpha*m
		thresholds = append(thresholds, t)
		return true
	})
	return thresholds, boundaries
}

// DynamicThreshold splits when consecutive elements differ by more than the
// current threshold. After each emitted chunk the threshold decays:
// t = max(min, t*decay).
type DynamicThreshold[T types.Number] struct {
	initial float64
	min     float64
	decay   float64
}

// NewDynamicThreshold creates a decaying-threshold strategy. Parameters must
// satisfy initial > 0, 0 <= min <= initial and decay in (0, 1].
func NewDynamicThreshold[T types.Number](initial, minThreshold, decay float64) (*DynamicThreshold[T], error) {
	if initial <= 0 {
		return nil, types.InvalidConfiguration("NewDynamicThreshold", "initial", initial)
	}
	if minThreshold < 0 || minThreshold > initial {
		return nil, types.InvalidConfiguration("NewDynamicThreshold", "min", minThreshold)
	}
	if decay <= 0 || decay > 1 || math.IsNaN(decay) {
		return nil, types.InvalidConfiguration("NewDynamicThreshold", "decay", decay)
	}
	return &DynamicThreshold[T]{initial: initial, min: minThreshold, decay: decay}, nil
}

func (d *DynamicThreshold[T]) Name() string { return "dynamic" }

func (d *DynamicThreshold[T]) Params() map[string]float64 {
	return map[string]float64{
		"initial": d.initial,
		"min":     d.min,
		"decay":   d.decay,
	}
}

func (d *DynamicThreshold[T]) Split(data []T) []int {
	t := d.initial
	return scan(data, func(open []T, candidate T) bool {
		prev := float64(open[len(open)-1])
		if math.Abs(float64(candidate)-prev) <= t {
			return false
		}
		t = max(d.min, t*d.decay)
		return true
	})
}
