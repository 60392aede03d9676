package strategy

import (
	"github.com/chmduquesne/rollinghash/buzhash64"

	"github.com/dshills/gochunk/pkg/types"
)

const (
	// HashWindowSize is the size of the rolling hash window in bytes
	HashWindowSize = 64

	// DefaultAverageBits gives an expected chunk size of 8KiB
	DefaultAverageBits = 13
)

var initialWindow = make([]byte, HashWindowSize)

// RollingHash performs content-defined chunking of byte streams. A boundary
// falls after any byte where the low averageBits bits of the buzhash64 of the
// preceding HashWindowSize bytes are all zero, subject to the minimum and
// maximum chunk sizes. The hash restarts at every boundary, so an edit only
// shifts the boundaries of the chunks it touches.
type RollingHash struct {
	averageBits int
	minSize     int
	maxSize     int
	seed        int64
	table       [256]uint64
}

// NewRollingHash creates a content-defined chunker. maxSize 0 disables the
// upper bound.
func NewRollingHash(averageBits, minSize, maxSize int, seed int64) (*RollingHash, error) {
	if averageBits <= 0 || averageBits > 63 {
		return nil, types.InvalidConfiguration("NewRollingHash", "average_bits", averageBits)
	}
	if minSize < 0 {
		return nil, types.InvalidConfiguration("NewRollingHash", "min_size", minSize)
	}
	if maxSize < 0 || (maxSize > 0 && maxSize < minSize) {
		return nil, types.InvalidConfiguration("NewRollingHash", "max_size", maxSize)
	}
	return &RollingHash{
		averageBits: averageBits,
		minSize:     minSize,
		maxSize:     maxSize,
		seed:        seed,
		table:       buzhash64.GenerateHashes(seed),
	}, nil
}

func (r *RollingHash) Name() string { return "rolling_hash" }

func (r *RollingHash) Params() map[string]float64 {
	return map[string]float64{
		"average_bits": float64(r.averageBits),
		"min_size":     float64(r.minSize),
		"max_size":     float64(r.maxSize),
		"seed":         float64(r.seed),
	}
}

func (r *RollingHash) Split(data []byte) []int {
	hash := buzhash64.NewFromUint64Array(r.table)
	reset := func() {
		hash.Reset()
		// Write on a freshly reset hash cannot fail
		_, _ = hash.Write(initialWindow)
	}
	reset()

	splitMask := uint64(1)<<uint64(r.averageBits) - 1

	var out []int
	start := 0
	for i, b := range data {
		hash.Roll(b)
		size := i + 1 - start
		if size < r.minSize {
			continue
		}
		if hash.Sum64()&splitMask == 0 || (r.maxSize > 0 && size >= r.maxSize) {
			if i+1 < len(data) {
				out = append(out, i+1)
			}
			start = i + 1
			reset()
		}
	}
	return out
}
