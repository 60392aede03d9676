package metrics

import (
	"cmp"
	"math"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/gochunk/internal/chunker"
	"github.com/dshills/gochunk/internal/strategy"
	"github.com/dshills/gochunk/pkg/types"
)

// Quality score weights
const (
	CohesionWeight   = 0.3
	SeparationWeight = 0.3
	SilhouetteWeight = 0.4
)

// DefaultCacheSize is the number of per-chunk cohesion values retained
const DefaultCacheSize = 4096

// SizeMetrics describes the distribution of chunk lengths
type SizeMetrics struct {
	Mean     float64
	Variance float64 // Population variance
	Min      int
	Max      int
	Entropy  float64 // Entropy in bits of the length distribution
}

// Report bundles every metric computed over one chunk sequence
type Report struct {
	Cohesion   float64 // Mean per-chunk cohesion
	Separation float64
	Silhouette float64
	Quality    float64
	Sizes      SizeMetrics
}

type options struct {
	cacheSize int
}

// Option configures a QualityAnalyzer
type Option func(*options)

// WithCacheSize sets the cohesion cache capacity
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// QualityAnalyzer scores how well a sequence of numeric chunks is partitioned.
// It is safe for concurrent use.
type QualityAnalyzer[T types.Number] struct {
	cohesion *lru.Cache[[32]byte, float64]
}

// NewQualityAnalyzer creates an analyzer with an LRU cache of per-chunk
// cohesion keyed by chunk content
func NewQualityAnalyzer[T types.Number](opts ...Option) (*QualityAnalyzer[T], error) {
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	cache, err := lru.New[[32]byte, float64](o.cacheSize)
	if err != nil {
		return nil, err
	}
	return &QualityAnalyzer[T]{cohesion: cache}, nil
}

// Cohesion returns 1 / (1 + mean absolute deviation from the centroid).
// Chunks shorter than two elements are perfectly cohesive.
func (a *QualityAnalyzer[T]) Cohesion(chunk []T) float64 {
	if len(chunk) < 2 {
		return 1
	}

	key := types.Chunk[T]{Elements: chunk}.ContentHash()
	if v, ok := a.cohesion.Get(key); ok {
		return v
	}

	centroid := chunker.Mean(chunk)
	var total float64
	for _, v := range chunk {
		total += math.Abs(float64(v) - centroid)
	}
	c := 1 / (1 + total/float64(len(chunk)))

	a.cohesion.Add(key, c)
	return c
}

// Separation returns 1 - 1/(1 + d) where d is the smallest distance between
// any two chunk centroids. Fewer than two chunks are perfectly separated.
func (a *QualityAnalyzer[T]) Separation(chunks [][]T) float64 {
	if len(chunks) < 2 {
		return 1
	}

	centroids := make([]float64, len(chunks))
	for i, c := range chunks {
		centroids[i] = chunker.Mean(c)
	}
	slices.Sort(centroids)

	minDist := math.Inf(1)
	for i := 1; i < len(centroids); i++ {
		minDist = min(minDist, centroids[i]-centroids[i-1])
	}
	return 1 - 1/(1+minDist)
}

// centroid is the mean of one non-empty chunk
type centroid struct {
	chunk int
	value float64
}

// Silhouette returns the mean simplified silhouette over every element, in
// [-1, 1]. An element at distance a from its own chunk's centroid and b from
// the nearest other centroid scores (b - a) / max(a, b). Fewer than two
// non-empty chunks score 0.
func (a *QualityAnalyzer[T]) Silhouette(chunks [][]T) float64 {
	centroids := make([]centroid, 0, len(chunks))
	for i, c := range chunks {
		if len(c) > 0 {
			centroids = append(centroids, centroid{chunk: i, value: chunker.Mean(c)})
		}
	}
	if len(centroids) < 2 {
		return 0
	}
	slices.SortFunc(centroids, func(x, y centroid) int {
		return cmp.Compare(x.value, y.value)
	})

	rank := make([]int, len(chunks))
	for r, c := range centroids {
		rank[c.chunk] = r
	}

	var total float64
	var points int
	for i, current := range chunks {
		if len(current) == 0 {
			continue
		}
		r := rank[i]
		for _, point := range current {
			x := float64(point)
			intra := math.Abs(x - centroids[r].value)
			inter := nearestOther(centroids, r, x)
			if m := max(intra, inter); m > 0 {
				total += (inter - intra) / m
			}
			points++
		}
	}
	return total / float64(points)
}

// nearestOther returns the distance from x to the closest centroid other than
// sorted[skip]
func nearestOther(sorted []centroid, skip int, x float64) float64 {
	pos, _ := slices.BinarySearchFunc(sorted, x, func(c centroid, x float64) int {
		return cmp.Compare(c.value, x)
	})

	below, above := pos-1, pos
	if below == skip {
		below--
	}
	if above == skip {
		above++
	}

	dist := math.Inf(1)
	if below >= 0 {
		dist = x - sorted[below].value
	}
	if above < len(sorted) {
		dist = min(dist, sorted[above].value-x)
	}
	return dist
}

// Sizes summarizes chunk lengths
func (a *QualityAnalyzer[T]) Sizes(chunks [][]T) (SizeMetrics, error) {
	if len(chunks) == 0 {
		return SizeMetrics{}, types.InvalidArgument("Sizes", "chunks", 0)
	}

	lengths := make([]int, len(chunks))
	for i, c := range chunks {
		lengths[i] = len(c)
	}

	return SizeMetrics{
		Mean:     chunker.Mean(lengths),
		Variance: chunker.Variance(lengths),
		Min:      slices.Min(lengths),
		Max:      slices.Max(lengths),
		Entropy:  strategy.ShannonEntropy(lengths),
	}, nil
}

// Quality combines mean cohesion, separation and silhouette with weights
// 0.3/0.3/0.4, clamped to [0, 1]
func (a *QualityAnalyzer[T]) Quality(chunks [][]T) (float64, error) {
	if len(chunks) == 0 {
		return 0, types.InvalidArgument("Quality", "chunks", 0)
	}
	return a.quality(chunks, a.meanCohesion(chunks)), nil
}

// Analyze computes every metric in one pass over chunks
func (a *QualityAnalyzer[T]) Analyze(chunks [][]T) (Report, error) {
	sizes, err := a.Sizes(chunks)
	if err != nil {
		return Report{}, err
	}

	cohesion := a.meanCohesion(chunks)
	return Report{
		Cohesion:   cohesion,
		Separation: a.Separation(chunks),
		Silhouette: a.Silhouette(chunks),
		Quality:    a.quality(chunks, cohesion),
		Sizes:      sizes,
	}, nil
}

// Purge empties the cohesion cache
func (a *QualityAnalyzer[T]) Purge() {
	a.cohesion.Purge()
}

// Cached returns the number of cached cohesion values
func (a *QualityAnalyzer[T]) Cached() int {
	return a.cohesion.Len()
}

func (a *QualityAnalyzer[T]) meanCohesion(chunks [][]T) float64 {
	var sum float64
	for _, c := range chunks {
		sum += a.Cohesion(c)
	}
	return sum / float64(len(chunks))
}

func (a *QualityAnalyzer[T]) quality(chunks [][]T, cohesion float64) float64 {
	score := CohesionWeight*cohesion +
		SeparationWeight*a.Separation(chunks) +
		SilhouetteWeight*a.Silhouette(chunks)
	return min(max(score, 0), 1)
}
