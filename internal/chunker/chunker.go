package chunker

import (
	"iter"

	"github.com/dshills/gochunk/pkg/types"
)

const (
	// DefaultChunkSize is the fixed chunk size used when none is configured
	DefaultChunkSize = 1024

	// MaxChunkSize is the largest fixed chunk size accepted from configuration
	MaxChunkSize = 1 << 20
)

// BoundaryFunc decides whether current starts a new chunk.
// window is the open chunk so far and is never empty.
type BoundaryFunc[T any] func(current T, window []T) bool

// Chunker accumulates elements and splits them into chunks
type Chunker[T any] struct {
	chunkSize int
	data      []T

	// chunk count cache, invalidated on mutation
	count      int
	countValid bool
}

// New creates a Chunker producing fixed chunks of chunkSize elements
func New[T any](chunkSize int) (*Chunker[T], error) {
	if chunkSize <= 0 {
		return nil, types.InvalidArgument("chunker.New", "chunk_size", chunkSize)
	}
	return &Chunker[T]{chunkSize: chunkSize}, nil
}

// Add appends a single element
func (c *Chunker[T]) Add(element T) {
	c.data = append(c.data, element)
	c.countValid = false
}

// AddAll appends elements in order
func (c *Chunker[T]) AddAll(elements ...T) {
	c.data = append(c.data, elements...)
	c.countValid = false
}

// Len returns the number of buffered elements
func (c *Chunker[T]) Len() int {
	return len(c.data)
}

// ChunkSize returns the configured fixed chunk size
func (c *Chunker[T]) ChunkSize() int {
	return c.chunkSize
}

// Data returns a copy of the buffered elements
func (c *Chunker[T]) Data() []T {
	out := make([]T, len(c.data))
	copy(out, c.data)
	return out
}

// ChunkCount returns the number of fixed-size chunks
func (c *Chunker[T]) ChunkCount() int {
	if !c.countValid {
		c.count = len(c.data) / c.chunkSize
		if len(c.data)%c.chunkSize != 0 {
			c.count++
		}
		c.countValid = true
	}
	return c.count
}

// ChunkBySize returns a lazy sequence of chunks of exactly n elements, except
// possibly the last. The sequence can be ranged over any number of times; each
// pass reflects the elements buffered when it starts.
func (c *Chunker[T]) ChunkBySize(n int) (iter.Seq[types.Chunk[T]], error) {
	if n <= 0 {
		return nil, types.InvalidArgument("ChunkBySize", "n", n)
	}

	return func(yield func(types.Chunk[T]) bool) {
		data := c.data
		for i, start := 0, 0; start < len(data); i, start = i+1, start+n {
			end := min(start+n, len(data))
			if !yield(types.NewChunk(i, start, data[start:end])) {
				return
			}
		}
	}, nil
}

// Chunks materializes the fixed-size chunks
func (c *Chunker[T]) Chunks() []types.Chunk[T] {
	seq, _ := c.ChunkBySize(c.chunkSize)

	out := make([]types.Chunk[T], 0, c.ChunkCount())
	for chunk := range seq {
		out = append(out, chunk)
	}
	return out
}

// Chunk returns the fixed-size chunk at index
func (c *Chunker[T]) Chunk(index int) (types.Chunk[T], error) {
	if index < 0 || index >= c.ChunkCount() {
		return types.Chunk[T]{}, types.InvalidArgument("Chunk", "index", index)
	}

	start := index * c.chunkSize
	end := min(start+c.chunkSize, len(c.data))
	return types.NewChunk(index, start, c.data[start:end]), nil
}

// ChunkByThreshold scans elements in order and starts a new chunk whenever fn
// signals a boundary. Non-empty input always yields at least one chunk and no
// chunk is ever empty.
func (c *Chunker[T]) ChunkByThreshold(fn BoundaryFunc[T]) ([]types.Chunk[T], error) {
	if fn == nil {
		return nil, types.InvalidArgument("ChunkByThreshold", "predicate", nil)
	}
	if len(c.data) == 0 {
		return nil, nil
	}

	var chunks []types.Chunk[T]
	start := 0
	for i := 1; i < len(c.data); i++ {
		if fn(c.data[i], c.data[start:i]) {
			chunks = append(chunks, types.NewChunk(len(chunks), start, c.data[start:i]))
			start = i
		}
	}
	chunks = append(chunks, types.NewChunk(len(chunks), start, c.data[start:]))

	return chunks, nil
}

// ByPredicate starts a new chunk at every element for which pred holds
func (c *Chunker[T]) ByPredicate(pred func(T) bool) ([]types.Chunk[T], error) {
	if pred == nil {
		return nil, types.InvalidArgument("ByPredicate", "predicate", nil)
	}
	return c.ChunkByThreshold(func(current T, _ []T) bool {
		return pred(current)
	})
}

// Overlapping returns full chunks of ChunkSize elements, consecutive chunks
// sharing overlap elements. A trailing partial window is dropped.
func (c *Chunker[T]) Overlapping(overlap int) ([]types.Chunk[T], error) {
	if overlap < 0 || overlap >= c.chunkSize {
		return nil, types.InvalidArgument("Overlapping", "overlap", overlap)
	}
	return c.SlidingWindow(c.chunkSize, c.chunkSize-overlap)
}

// SlidingWindow returns every full window of size elements, advancing by step
func (c *Chunker[T]) SlidingWindow(size, step int) ([]types.Chunk[T], error) {
	if size <= 0 {
		return nil, types.InvalidArgument("SlidingWindow", "window_size", size)
	}
	if step <= 0 {
		return nil, types.InvalidArgument("SlidingWindow", "step", step)
	}

	var out []types.Chunk[T]
	for i := 0; i+size <= len(c.data); i += step {
		out = append(out, types.NewChunk(len(out), i, c.data[i:i+size]))
	}
	return out, nil
}

// IntoN divides the elements into n chunks whose sizes differ by at most one.
// n is capped at the number of elements.
func (c *Chunker[T]) IntoN(n int) ([]types.Chunk[T], error) {
	if n <= 0 {
		return nil, types.InvalidArgument("IntoN", "n", n)
	}
	if len(c.data) == 0 {
		return nil, nil
	}

	n = min(n, len(c.data))
	base, remainder := len(c.data)/n, len(c.data)%n

	out := make([]types.Chunk[T], 0, n)
	pos := 0
	for i := 0; i < n; i++ {
		size := base
		if i < remainder {
			size++
		}
		out = append(out, types.NewChunk(i, pos, c.data[pos:pos+size]))
		pos += size
	}
	return out, nil
}

// Padded returns the fixed-size chunks with the last one filled up to
// ChunkSize with pad
func (c *Chunker[T]) Padded(pad T) []types.Chunk[T] {
	chunks := c.Chunks()
	if len(chunks) == 0 {
		return chunks
	}

	last := &chunks[len(chunks)-1]
	for len(last.Elements) < c.chunkSize {
		last.Elements = append(last.Elements, pad)
	}
	return chunks
}
