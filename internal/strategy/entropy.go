package strategy

import (
	"math"

	"github.com/dshills/gochunk/pkg/types"
)

// Entropy splits when the Shannon entropy (bits) of symbol frequencies in the
// trailing window exceeds a threshold
type Entropy[T comparable] struct {
	window    int
	threshold float64
}

// NewEntropy creates an entropy strategy over windows of window symbols
func NewEntropy[T comparable](window int, threshold float64) (*Entropy[T], error) {
	if window <= 0 {
		return nil, types.InvalidConfiguration("NewEntropy", "window", window)
	}
	if threshold <= 0 {
		return nil, types.InvalidConfiguration("NewEntropy", "threshold", threshold)
	}
	return &Entropy[T]{window: window, threshold: threshold}, nil
}

func (e *Entropy[T]) Name() string { return "entropy" }

func (e *Entropy[T]) Params() map[string]float64 {
	return map[string]float64{
		"window":    float64(e.window),
		"threshold": e.threshold,
	}
}

func (e *Entropy[T]) Split(data []T) []int {
	var buf []T
	return scan(data, func(open []T, candidate T) bool {
		buf = trailingWindow(open, candidate, e.window, buf)
		return ShannonEntropy(buf) > e.threshold
	})
}

// TextEntropy is the entropy strategy for string elements. It measures the
// character distribution across all runes of the window rather than the
// distribution of whole strings.
type TextEntropy struct {
	window    int
	threshold float64
}

// NewTextEntropy creates a character-entropy strategy over windows of window strings
func NewTextEntropy(window int, threshold float64) (*TextEntropy, error) {
	if window <= 0 {
		return nil, types.InvalidConfiguration("NewTextEntropy", "window", window)
	}
	if threshold <= 0 {
		return nil, types.InvalidConfiguration("NewTextEntropy", "threshold", threshold)
	}
	return &TextEntropy{window: window, threshold: threshold}, nil
}

func (e *TextEntropy) Name() string { return "text_entropy" }

func (e *TextEntropy) Params() map[string]float64 {
	return map[string]float64{
		"window":    float64(e.window),
		"threshold": e.threshold,
	}
}

func (e *TextEntropy) Split(data []string) []int {
	var buf []string
	return scan(data, func(open []string, candidate string) bool {
		buf = trailingWindow(open, candidate, e.window, buf)
		return RuneEntropy(buf) > e.threshold
	})
}

// ShannonEntropy returns the entropy in bits of the symbol distribution of
// values. Empty input and a single repeated symbol both yield 0.
func ShannonEntropy[T comparable](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	freq := make(map[T]int, len(values))
	for _, v := range values {
		freq[v]++
	}
	return entropyOf(freq, len(values))
}

// RuneEntropy returns the entropy in bits of the character distribution
// across all strings in values
func RuneEntropy(values []string) float64 {
	freq := make(map[rune]int)
	total := 0
	for _, s := range values {
		for _, r := range s {
			freq[r]++
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return entropyOf(freq, total)
}

func entropyOf[K comparable](freq map[K]int, total int) float64 {
	var h float64
	for _, count := range freq {
		p := float64(count) / float64(total)
		h -= p * math.Log2(p)
	}
	// A single symbol can produce -0
	return math.Abs(h)
}
