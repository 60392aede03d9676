package strategy

import (
	"github.com/dshills/gochunk/internal/chunker"
	"github.com/dshills/gochunk/pkg/types"
)

// Fixed cuts the input into chunks of exactly size elements; the last chunk
// holds the remainder.
type Fixed[T any] struct {
	size int
}

// NewFixed creates a fixed-size strategy. size must lie in
// [1, chunker.MaxChunkSize].
func NewFixed[T any](size int) (*Fixed[T], error) {
	if size <= 0 || size > chunker.MaxChunkSize {
		return nil, types.InvalidConfiguration("NewFixed", "size", size)
	}
	return &Fixed[T]{size: size}, nil
}

func (f *Fixed[T]) Name() string { return "size" }

func (f *Fixed[T]) Params() map[string]float64 {
	return map[string]float64{"size": float64(f.size)}
}

func (f *Fixed[T]) Split(data []T) []int {
	c, err := chunker.New[T](f.size)
	if err != nil {
		return nil
	}
	c.AddAll(data...)

	seq, err := c.ChunkBySize(f.size)
	if err != nil {
		return nil
	}
	var out []int
	for chunk := range seq {
		if chunk.Offset > 0 {
			out = append(out, chunk.Offset)
		}
	}
	return out
}
