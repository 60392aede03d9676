package types

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
)

// Number is the set of element types numeric strategies operate on
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// Chunk is a contiguous, ordered run of input elements produced by a boundary decision
type Chunk[T any] struct {
	// Identification
	Index  int // Creation index within the run (0-based)
	Offset int // Position of the first element in the input

	// Content
	Elements []T

	// Quality
	Quality    float64 // Optional quality score in [0, 1]
	HasQuality bool
}

// NewChunk seals a copy of elements as the chunk at index, starting at offset
func NewChunk[T any](index, offset int, elements []T) Chunk[T] {
	owned := make([]T, len(elements))
	copy(owned, elements)
	return Chunk[T]{
		Index:    index,
		Offset:   offset,
		Elements: owned,
	}
}

// Len returns the number of elements in the chunk
func (c Chunk[T]) Len() int {
	return len(c.Elements)
}

// End returns the input position one past the last element
func (c Chunk[T]) End() int {
	return c.Offset + len(c.Elements)
}

// WithQuality returns a copy of the chunk carrying the given quality score
func (c Chunk[T]) WithQuality(score float64) Chunk[T] {
	c.Quality = score
	c.HasQuality = true
	return c
}

// ContentHash computes the SHA-256 hash of the chunk's JSON-encoded elements.
// Elements that cannot be encoded hash as an empty payload.
func (c Chunk[T]) ContentHash() [32]byte {
	payload, err := json.Marshal(c.Elements)
	if err != nil {
		payload = nil
	}
	return sha256.Sum256(payload)
}

// Validate checks the chunk's structural invariants
func (c Chunk[T]) Validate() error {
	if c.Index < 0 {
		return errors.New("chunk index must be non-negative")
	}

	if c.Offset < 0 {
		return errors.New("chunk offset must be non-negative")
	}

	if len(c.Elements) == 0 {
		return ErrEmptyChunk
	}

	if c.HasQuality && (c.Quality < 0 || c.Quality > 1) {
		return ErrInvalidQuality
	}

	return nil
}

// Flatten concatenates chunk elements back into a single sequence
func Flatten[T any](chunks []Chunk[T]) []T {
	total := 0
	for _, c := range chunks {
		total += len(c.Elements)
	}

	out := make([]T, 0, total)
	for _, c := range chunks {
		out = append(out, c.Elements...)
	}
	return out
}

// Slices returns the element slices of chunks, in order
func Slices[T any](chunks []Chunk[T]) [][]T {
	out := make([][]T, len(chunks))
	for i, c := range chunks {
		out[i] = c.Elements
	}
	return out
}
