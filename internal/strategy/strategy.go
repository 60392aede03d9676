package strategy

import (
	"github.com/dshills/gochunk/pkg/types"
)

// Strategy decides where an ordered sequence splits into chunks.
// Implementations are deterministic: the same input and parameters always
// produce the same boundaries.
type Strategy[T any] interface {
	// Name identifies the strategy in checkpoints, storage and the registry
	Name() string

	// Split returns ascending boundary indexes in (0, len(data)). A boundary b
	// ends one chunk at b-1 and starts the next at b. Empty input yields no
	// boundaries.
	Split(data []T) []int

	// Params returns a snapshot of the strategy's numeric parameters
	Params() map[string]float64
}

// Apply splits data with s and returns the resulting chunks
func Apply[T any](s Strategy[T], data []T) []types.Chunk[T] {
	if len(data) == 0 {
		return nil
	}
	return Materialize(data, s.Split(data))
}

// Materialize cuts data at boundaries. Boundaries that are out of range or
// not strictly increasing are ignored, so no chunk is ever empty.
func Materialize[T any](data []T, boundaries []int) []types.Chunk[T] {
	if len(data) == 0 {
		return nil
	}

	chunks := make([]types.Chunk[T], 0, len(boundaries)+1)
	start := 0
	for _, b := range boundaries {
		if b <= start || b >= len(data) {
			continue
		}
		chunks = append(chunks, types.NewChunk(len(chunks), start, data[start:b]))
		start = b
	}
	return append(chunks, types.NewChunk(len(chunks), start, data[start:]))
}

// scan walks data left to right and asks boundary whether candidate starts a
// new chunk. open is the chunk accumulated so far and is never empty.
func scan[T any](data []T, boundary func(open []T, candidate T) bool) []int {
	var out []int
	start := 0
	for i := 1; i < len(data); i++ {
		if boundary(data[start:i], data[i]) {
			out = append(out, i)
			start = i
		}
	}
	return out
}

// trailingWindow fills buf with the last n-1 elements of open followed by
// candidate and returns it
func trailingWindow[T any](open []T, candidate T, n int, buf []T) []T {
	if k := n - 1; len(open) > k {
		open = open[len(open)-k:]
	}
	buf = append(buf[:0], open...)
	return append(buf, candidate)
}

// tail returns the last n elements of s
func tail[T any](s []T, n int) []T {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
