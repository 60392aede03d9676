package advanced

import (
	"math"

	"github.com/dshills/gochunk/pkg/types"
)

// MutualInformation splits where the empirical mutual information between
// the open chunk's last context elements and the next context elements drops
// below a threshold, i.e. where the two sides look statistically independent
type MutualInformation[T comparable] struct {
	context   int
	threshold float64
}

// NewMutualInformation creates an MI strategy over windows of context elements
func NewMutualInformation[T comparable](context int, threshold float64) (*MutualInformation[T], error) {
	if context <= 0 {
		return nil, types.InvalidConfiguration("NewMutualInformation", "context", context)
	}
	if threshold <= 0 {
		return nil, types.InvalidConfiguration("NewMutualInformation", "threshold", threshold)
	}
	return &MutualInformation[T]{context: context, threshold: threshold}, nil
}

func (m *MutualInformation[T]) Name() string { return "mutual_information" }

func (m *MutualInformation[T]) Params() map[string]float64 {
	return map[string]float64{
		"context":   float64(m.context),
		"threshold": m.threshold,
	}
}

func (m *MutualInformation[T]) Split(data []T) []int {
	return lookahead(data, m.context, func(prev, next []T) bool {
		return MutualInfo(prev, next) < m.threshold
	})
}

type pair[T comparable] struct {
	a, b T
}

// MutualInfo estimates the mutual information in bits between a and b. The
// marginals come from each segment's symbol frequencies and the joint
// distribution from position-aligned pairs. Either input empty yields 0.
func MutualInfo[T comparable](a, b []T) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	pa := frequencies(a)
	pb := frequencies(b)

	n := min(len(a), len(b))
	joint := make(map[pair[T]]float64, n)
	for i := 0; i < n; i++ {
		joint[pair[T]{a[i], b[i]}] += 1 / float64(n)
	}

	var mi float64
	for p, pj := range joint {
		mi += pj * math.Log2(pj/(pa[p.a]*pb[p.b]))
	}
	return mi
}

func frequencies[T comparable](values []T) map[T]float64 {
	out := make(map[T]float64, len(values))
	for _, v := range values {
		out[v] += 1 / float64(len(values))
	}
	return out
}
