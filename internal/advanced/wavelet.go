package advanced

import (
	"math"
	"math/bits"

	"github.com/dshills/gochunk/pkg/types"
)

// Wavelet splits where a Haar detail coefficient over the open chunk's last
// window elements exceeds a threshold in magnitude. The boundary is placed at
// the midpoint of the strongest coefficient's support, which is where a step
// in the signal sits.
type Wavelet[T types.Number] struct {
	window    int
	threshold float64
}

// NewWavelet creates a Haar wavelet strategy. window must be a power of two
// of at least 2.
func NewWavelet[T types.Number](window int, threshold float64) (*Wavelet[T], error) {
	if window < 2 || bits.OnesCount(uint(window)) != 1 {
		return nil, types.InvalidConfiguration("NewWavelet", "window", window)
	}
	if threshold <= 0 {
		return nil, types.InvalidConfiguration("NewWavelet", "threshold", threshold)
	}
	return &Wavelet[T]{window: window, threshold: threshold}, nil
}

func (w *Wavelet[T]) Name() string { return "wavelet" }

func (w *Wavelet[T]) Params() map[string]float64 {
	return map[string]float64{
		"window":    float64(w.window),
		"threshold": w.threshold,
	}
}

func (w *Wavelet[T]) Split(data []T) []int {
	var out []int
	buf := make([]float64, w.window)
	start := 0
	for end := w.window; end <= len(data); end++ {
		if end-start < w.window {
			continue
		}
		ws := end - w.window
		for k, v := range data[ws:end] {
			buf[k] = float64(v)
		}

		offset, magnitude := strongestDetail(buf)
		if magnitude > w.threshold {
			// offset lies in [1, window), so b falls inside the open chunk
			b := ws + offset
			out = append(out, b)
			start = b
		}
	}
	return out
}

// HaarDetails returns the detail coefficients of the orthonormal Haar
// pyramid of x, finest level first. len(x) must be a power of two.
func HaarDetails(x []float64) [][]float64 {
	approx := append([]float64(nil), x...)
	var levels [][]float64
	for len(approx) > 1 {
		half := len(approx) / 2
		next := make([]float64, half)
		detail := make([]float64, half)
		for k := 0; k < half; k++ {
			a, b := approx[2*k], approx[2*k+1]
			next[k] = (a + b) / math.Sqrt2
			detail[k] = (a - b) / math.Sqrt2
		}
		levels = append(levels, detail)
		approx = next
	}
	return levels
}

// strongestDetail finds the largest-magnitude detail coefficient of x,
// preferring finer levels and earlier positions on ties, and returns the
// midpoint of its support relative to x
func strongestDetail(x []float64) (int, float64) {
	bestOffset, best := 0, -1.0
	support := 2
	for _, level := range HaarDetails(x) {
		for k, d := range level {
			if m := math.Abs(d); m > best {
				best = m
				bestOffset = k*support + support/2
			}
		}
		support *= 2
	}
	return bestOffset, best
}
