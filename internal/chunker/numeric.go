package chunker

import (
	"math"

	"github.com/dshills/gochunk/pkg/types"
)

// BySum starts a new chunk whenever adding the next element would push the
// open chunk's sum above target
func BySum[T types.Number](c *Chunker[T], target T) []types.Chunk[T] {
	chunks, _ := c.ChunkByThreshold(func(current T, window []T) bool {
		var sum T
		for _, v := range window {
			sum += v
		}
		return sum+current > target
	})
	return chunks
}

// ByMonotonicity splits the sequence into runs that are strictly increasing or
// non-increasing. The direction of a run is fixed by its first two elements.
func ByMonotonicity[T types.Number](c *Chunker[T]) []types.Chunk[T] {
	data := c.data
	switch len(data) {
	case 0:
		return nil
	case 1:
		return []types.Chunk[T]{types.NewChunk(0, 0, data)}
	}

	var out []types.Chunk[T]
	start := 0
	increasing := data[1] > data[0]
	for i := 1; i < len(data); i++ {
		if (data[i] > data[i-1]) == increasing {
			continue
		}
		out = append(out, types.NewChunk(len(out), start, data[start:i]))
		start = i
		if i+1 < len(data) {
			increasing = data[i+1] > data[i]
		}
	}
	return append(out, types.NewChunk(len(out), start, data[start:]))
}

// BySimilarity starts a new chunk when an element deviates from the open
// chunk's mean by more than threshold
func BySimilarity[T types.Number](c *Chunker[T], threshold float64) []types.Chunk[T] {
	chunks, _ := c.ChunkByThreshold(func(current T, window []T) bool {
		return math.Abs(float64(current)-Mean(window)) > threshold
	})
	return chunks
}

// ByStatistic closes the open chunk once stat over it exceeds threshold
func ByStatistic[T types.Number](c *Chunker[T], threshold float64, stat func([]T) float64) ([]types.Chunk[T], error) {
	if stat == nil {
		return nil, types.InvalidArgument("ByStatistic", "stat", nil)
	}
	return c.ChunkByThreshold(func(_ T, window []T) bool {
		return stat(window) > threshold
	})
}

// Mean returns the arithmetic mean of values, 0 for an empty slice
func Mean[T types.Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Variance returns the population variance of values
func Variance[T types.Number](values []T) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		d := float64(v) - mean
		sq += d * d
	}
	return sq / float64(len(values))
}
