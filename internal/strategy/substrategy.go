package strategy

import (
	"github.com/dshills/gochunk/pkg/types"
)

// SubStrategy refines chunks one level up: for every input chunk it returns
// the leaf sub-chunks that chunk was divided into. A non-empty input chunk
// never yields an empty sub-chunk; an empty input chunk yields itself.
type SubStrategy[T any] interface {
	Apply(chunks [][]T) [][][]T
}

// Leaves flattens SubStrategy output into a single ordered list of chunks
func Leaves[T any](nested [][][]T) [][]T {
	var out [][]T
	for _, group := range nested {
		out = append(out, group...)
	}
	return out
}

// splitOnce applies s to chunk and returns the parts as fresh slices
func splitOnce[T any](s Strategy[T], chunk []T) [][]T {
	return types.Slices(Apply(s, chunk))
}

// Recursive re-applies a strategy inside each produced chunk until maxDepth
// is reached, the chunk holds at most minChunkSize elements, or the strategy
// stops dividing it
type Recursive[T any] struct {
	strategy     Strategy[T]
	maxDepth     int
	minChunkSize int
}

// NewRecursive creates a recursive sub-chunker
func NewRecursive[T any](s Strategy[T], maxDepth, minChunkSize int) (*Recursive[T], error) {
	if s == nil {
		return nil, types.InvalidArgument("NewRecursive", "strategy", nil)
	}
	if maxDepth <= 0 {
		return nil, types.InvalidConfiguration("NewRecursive", "max_depth", maxDepth)
	}
	if minChunkSize <= 0 {
		return nil, types.InvalidConfiguration("NewRecursive", "min_chunk_size", minChunkSize)
	}
	return &Recursive[T]{strategy: s, maxDepth: maxDepth, minChunkSize: minChunkSize}, nil
}

func (r *Recursive[T]) Apply(chunks [][]T) [][][]T {
	out := make([][][]T, len(chunks))
	for i, c := range chunks {
		out[i] = r.refine(c, 0)
	}
	return out
}

func (r *Recursive[T]) refine(chunk []T, depth int) [][]T {
	if depth >= r.maxDepth || len(chunk) <= r.minChunkSize {
		return [][]T{clone(chunk)}
	}

	parts := splitOnce(r.strategy, chunk)
	if len(parts) <= 1 {
		return [][]T{clone(chunk)}
	}

	var leaves [][]T
	for _, p := range parts {
		leaves = append(leaves, r.refine(p, depth+1)...)
	}
	return leaves
}

// Hierarchical applies strategies in order, each one refining the leaves
// produced by the previous level. Leaves of at most minChunkSize elements
// are not refined further.
type Hierarchical[T any] struct {
	strategies   []Strategy[T]
	minChunkSize int
}

// NewHierarchical creates a multi-level sub-chunker
func NewHierarchical[T any](strategies []Strategy[T], minChunkSize int) (*Hierarchical[T], error) {
	if len(strategies) == 0 {
		return nil, types.InvalidArgument("NewHierarchical", "strategies", 0)
	}
	for i, s := range strategies {
		if s == nil {
			return nil, types.InvalidArgument("NewHierarchical", "strategies", i)
		}
	}
	if minChunkSize <= 0 {
		return nil, types.InvalidConfiguration("NewHierarchical", "min_chunk_size", minChunkSize)
	}
	return &Hierarchical[T]{
		strategies:   append([]Strategy[T](nil), strategies...),
		minChunkSize: minChunkSize,
	}, nil
}

func (h *Hierarchical[T]) Apply(chunks [][]T) [][][]T {
	out := make([][][]T, len(chunks))
	for i, c := range chunks {
		level := [][]T{clone(c)}
		for _, s := range h.strategies {
			var next [][]T
			for _, leaf := range level {
				if len(leaf) <= h.minChunkSize {
					next = append(next, leaf)
					continue
				}
				next = append(next, splitOnce(s, leaf)...)
			}
			level = next
		}
		out[i] = level
	}
	return out
}

// Conditional sub-chunks a chunk with strategy only when cond holds for it
// and it holds more than minChunkSize elements
type Conditional[T any] struct {
	strategy     Strategy[T]
	cond         func([]T) bool
	minChunkSize int
}

// NewConditional creates a predicate-gated sub-chunker
func NewConditional[T any](s Strategy[T], cond func([]T) bool, minChunkSize int) (*Conditional[T], error) {
	if s == nil {
		return nil, types.InvalidArgument("NewConditional", "strategy", nil)
	}
	if cond == nil {
		return nil, types.InvalidArgument("NewConditional", "condition", nil)
	}
	if minChunkSize <= 0 {
		return nil, types.InvalidConfiguration("NewConditional", "min_chunk_size", minChunkSize)
	}
	return &Conditional[T]{strategy: s, cond: cond, minChunkSize: minChunkSize}, nil
}

func (c *Conditional[T]) Apply(chunks [][]T) [][][]T {
	out := make([][][]T, len(chunks))
	for i, chunk := range chunks {
		if len(chunk) > c.minChunkSize && c.cond(chunk) {
			out[i] = splitOnce(c.strategy, chunk)
			continue
		}
		out[i] = [][]T{clone(chunk)}
	}
	return out
}

func clone[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
