package strategy

import (
	"math/rand/v2"
	"testing"

	"github.com/dshills/gochunk/internal/chunker"
	"github.com/dshills/gochunk/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixed returns preset boundaries regardless of input
type fixed []int

func (f fixed) Name() string               { return "fixed" }
func (f fixed) Params() map[string]float64 { return nil }
func (f fixed) Split([]int) []int          { return f }

// halve splits every chunk of two or more elements in the middle
type halve struct{}

func (halve) Name() string               { return "halve" }
func (halve) Params() map[string]float64 { return nil }
func (halve) Split(data []int) []int {
	if len(data) < 2 {
		return nil
	}
	return []int{len(data) / 2}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestMaterialize(t *testing.T) {
	data := []int{1, 2, 3, 4, 5}

	chunks := Materialize(data, []int{2, 2, 0, 9, 4, 3})
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, types.Slices(chunks))
	assert.Equal(t, []int{0, 2, 4}, []int{chunks[0].Offset, chunks[1].Offset, chunks[2].Offset})

	assert.Nil(t, Materialize[int](nil, []int{1}))
	assert.Len(t, Materialize(data, nil), 1)
}

func TestApply_EmptyInput(t *testing.T) {
	v, err := NewVariance[float64](3, 1)
	require.NoError(t, err)

	assert.Empty(t, v.Split(nil))
	assert.Empty(t, Apply[float64](v, nil))
}

func TestVariance_MeanShiftScenario(t *testing.T) {
	v, err := NewVariance[float64](3, 1.0)
	require.NoError(t, err)

	data := []float64{1, 1, 1, 5, 5, 5, 1, 1, 1}
	assert.Equal(t, []int{3, 6}, v.Split(data))

	chunks := Apply[float64](v, data)
	assert.Equal(t, [][]float64{{1, 1, 1}, {5, 5, 5}, {1, 1, 1}}, types.Slices(chunks))
}

func TestVariance_ConstantNeverSplits(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for trial := 0; trial < 20; trial++ {
		window := 1 + rng.IntN(10)
		threshold := 1e-9 + rng.Float64()*10
		v, err := NewVariance[float64](window, threshold)
		require.NoError(t, err)

		data := make([]float64, 1+rng.IntN(200))
		c := rng.Float64() * 100
		for i := range data {
			data[i] = c
		}
		assert.Empty(t, v.Split(data))
	}
}

func TestVariance_WindowOneNeverSplits(t *testing.T) {
	v, err := NewVariance[int](1, 0.001)
	require.NoError(t, err)
	assert.Empty(t, v.Split([]int{1, 100, -50, 7, 1000}))
}

func TestConstructors_RejectInvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"variance window", func() error { _, err := NewVariance[int](0, 1); return err }},
		{"variance threshold", func() error { _, err := NewVariance[int](3, 0); return err }},
		{"entropy threshold", func() error { _, err := NewEntropy[int](3, -1); return err }},
		{"text entropy window", func() error { _, err := NewTextEntropy(0, 1); return err }},
		{"quantile inverted", func() error { _, err := NewQuantile[int](4, 0.9, 0.1); return err }},
		{"quantile equal", func() error { _, err := NewQuantile[int](4, 0.5, 0.5); return err }},
		{"quantile above one", func() error { _, err := NewQuantile[int](4, 0.1, 1.5); return err }},
		{"pattern size", func() error { _, err := NewCyclePattern[int](0); return err }},
		{"fixed size zero", func() error { _, err := NewFixed[int](0); return err }},
		{"fixed size above max", func() error { _, err := NewFixed[int](chunker.MaxChunkSize + 1); return err }},
		{"adaptive alpha", func() error {
			_, err := NewAdaptive[int](2, 1, 0, chunker.Variance[int])
			return err
		}},
		{"dynamic min above initial", func() error { _, err := NewDynamicThreshold[int](1, 2, 0.5); return err }},
		{"dynamic decay", func() error { _, err := NewDynamicThreshold[int](1, 0, 1.5); return err }},
		{"rolling hash bits", func() error { _, err := NewRollingHash(0, 0, 0, 1); return err }},
		{"rolling hash max below min", func() error { _, err := NewRollingHash(8, 64, 32, 1); return err }},
		{"recursive depth", func() error { _, err := NewRecursive[int](halve{}, 0, 1); return err }},
		{"weighted quorum", func() error { _, err := WeightedVote([]float64{1}, 0); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), types.ErrInvalidConfiguration)
		})
	}
}

func TestConstructors_RejectMissingArguments(t *testing.T) {
	_, err := NewWindowPattern[int](2, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = NewMultiCriteria[int](nil, halve{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = NewMultiCriteria[int](AnyOf)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = NewAdaptive[int](2, 1, 0.5, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = NewConditional[int](halve{}, nil, 1)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestFixed(t *testing.T) {
	s, err := NewFixed[int](4)
	require.NoError(t, err)
	assert.Equal(t, "size", s.Name())

	chunks := Apply[int](s, seq(10))
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{4, 4, 2}, []int{chunks[0].Len(), chunks[1].Len(), chunks[2].Len()})
	assert.Equal(t, seq(10), types.Flatten(chunks))

	assert.Empty(t, s.Split(seq(4)))
	assert.Empty(t, s.Split(nil))
}

func TestEntropy(t *testing.T) {
	e, err := NewEntropy[string](2, 0.5)
	require.NoError(t, err)

	data := []string{"a", "a", "a", "b", "b", "b"}
	assert.Equal(t, []int{3}, e.Split(data))
}

func TestEntropy_IdenticalSymbolsNeverSplit(t *testing.T) {
	data := make([]rune, 100)
	for i := range data {
		data[i] = 'x'
	}

	assert.Equal(t, 0.0, ShannonEntropy(data))
	for _, threshold := range []float64{1e-6, 0.1, 1, 8} {
		e, err := NewEntropy[rune](8, threshold)
		require.NoError(t, err)
		assert.Empty(t, e.Split(data))
	}
}

func TestShannonEntropy(t *testing.T) {
	assert.Equal(t, 0.0, ShannonEntropy[int](nil))
	assert.InDelta(t, 1.0, ShannonEntropy([]int{0, 1}), 1e-12)
	assert.InDelta(t, 2.0, ShannonEntropy([]int{0, 1, 2, 3}), 1e-12)
}

func TestTextEntropy(t *testing.T) {
	e, err := NewTextEntropy(2, 1.0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, RuneEntropy([]string{"aaaa", "aa"}))
	assert.InDelta(t, 2.0, RuneEntropy([]string{"ab", "cd"}), 1e-12)

	data := []string{"aaaa", "aaaa", "aaaa", "abcd"}
	assert.Equal(t, []int{3}, e.Split(data))
}

func TestQuantile(t *testing.T) {
	q, err := NewQuantile[int](4, 0, 1)
	require.NoError(t, err)

	data := []int{10, 11, 10, 11, 10, 50, 51, 50, 51}
	assert.Equal(t, []int{5}, q.Split(data))
}

func TestQuantileOf(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, QuantileOf(sorted, 0))
	assert.Equal(t, 3.0, QuantileOf(sorted, 0.5))
	assert.Equal(t, 5.0, QuantileOf(sorted, 1))
	assert.InDelta(t, 2.0, QuantileOf(sorted, 0.25), 1e-12)
	assert.InDelta(t, 1.5, QuantileOf([]float64{1, 2}, 0.5), 1e-12)
}

func TestCyclePattern(t *testing.T) {
	c, err := NewCyclePattern[int](2)
	require.NoError(t, err)

	assert.Equal(t, []int{6}, c.Split([]int{1, 2, 1, 2, 1, 2, 3, 4, 3, 4}))
	assert.Equal(t, []int{4}, c.Split([]int{5, 5, 5, 5, 6}))
	assert.Empty(t, c.Split([]int{1, 2, 3, 4, 5}))
}

func TestPeriods(t *testing.T) {
	assert.Equal(t, []int{1, 2}, Periods([]int{1, 1, 1, 1}, 3))
	assert.Equal(t, []int{3}, Periods([]int{1, 2, 3, 1, 2, 3}, 3))
	assert.Empty(t, Periods([]int{1, 2, 3, 1, 2, 3}, 2))
}

func TestWindowPattern(t *testing.T) {
	w, err := NewWindowPattern(2, func(window []int) bool {
		return window[0] == window[1]
	})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 6}, w.Split([]int{1, 2, 2, 3, 4, 4, 5}))
	// A match on the final window has nowhere to cut
	assert.Empty(t, w.Split([]int{1, 2, 2}))
}

func TestMultiCriteria(t *testing.T) {
	data := seq(6)

	anyOf, err := NewMultiCriteria[int](AnyOf, fixed{2}, fixed{4})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, anyOf.Split(data))

	allOf, err := NewMultiCriteria[int](AllOf, fixed{2, 4}, fixed{4})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, allOf.Split(data))
}

func TestWeightedVote_TieAtQuorumSplits(t *testing.T) {
	data := seq(6)

	vote, err := WeightedVote([]float64{0.6, 0.4}, 0.4)
	require.NoError(t, err)
	m, err := NewMultiCriteria[int](vote, fixed{2}, fixed{4})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, m.Split(data))

	vote, err = WeightedVote([]float64{0.6, 0.4}, 0.5)
	require.NoError(t, err)
	m, err = NewMultiCriteria[int](vote, fixed{2}, fixed{4})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, m.Split(data))
}

func TestAdaptive(t *testing.T) {
	a, err := NewAdaptive(2, 1.0, 0.5, chunker.Variance[float64])
	require.NoError(t, err)

	data := []float64{0, 0, 4, 4, 4, 20}
	assert.Equal(t, []int{2, 5}, a.Split(data))
	assert.InDeltaSlice(t, []float64{1, 2.5, 33.25}, a.Thresholds(data), 1e-9)

	// Threshold state does not leak between calls
	assert.Equal(t, []int{2, 5}, a.Split(data))
}

func TestDynamicThreshold(t *testing.T) {
	d, err := NewDynamicThreshold[float64](5, 1, 0.5)
	require.NoError(t, err)

	data := []float64{0, 1, 10, 11, 14, 15, 17}
	assert.Equal(t, []int{2, 4, 6}, d.Split(data))
}

func TestRollingHash_SizeBounds(t *testing.T) {
	r, err := NewRollingHash(4, 16, 64, 42)
	require.NoError(t, err)

	data := make([]byte, 4096)
	rng := rand.New(rand.NewPCG(9, 9))
	for i := range data {
		data[i] = byte(rng.UintN(256))
	}

	chunks := Apply[byte](r, data)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, data, types.Flatten(chunks))

	for i, c := range chunks {
		assert.LessOrEqual(t, c.Len(), 64, "chunk %d", i)
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, c.Len(), 16, "chunk %d", i)
		}
	}
}

func TestRollingHash_EditLocality(t *testing.T) {
	r, err := NewRollingHash(5, 8, 0, 7)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 1))
	data := make([]byte, 8192)
	for i := range data {
		data[i] = byte(rng.UintN(256))
	}

	edited := append([]byte(nil), data[:6000]...)
	edited = append(edited, 0xff)
	edited = append(edited, data[6000:]...)

	before := r.Split(data)
	after := r.Split(edited)
	require.NotEmpty(t, before)

	for i, b := range before {
		if b >= 6000 {
			break
		}
		require.Less(t, i, len(after))
		assert.Equal(t, b, after[i])
	}

	// Same seed, same boundaries
	again, err := NewRollingHash(5, 8, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, before, again.Split(data))
}

func TestRecursive(t *testing.T) {
	r, err := NewRecursive[int](halve{}, 2, 1)
	require.NoError(t, err)

	out := r.Apply([][]int{seq(8), {}})
	require.Len(t, out, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5, 6}, {7, 8}}, out[0])
	assert.Equal(t, [][]int{{}}, out[1])

	deep, err := NewRecursive[int](halve{}, 10, 1)
	require.NoError(t, err)
	leaves := Leaves(deep.Apply([][]int{seq(8)}))
	assert.Len(t, leaves, 8)
}

func TestRecursive_StopsWithoutProgress(t *testing.T) {
	v, err := NewVariance[int](3, 100)
	require.NoError(t, err)

	r, err := NewRecursive[int](v, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, [][][]int{{{1, 2, 3}}}, r.Apply([][]int{{1, 2, 3}}))
}

func TestHierarchical(t *testing.T) {
	h, err := NewHierarchical[int]([]Strategy[int]{halve{}, halve{}}, 1)
	require.NoError(t, err)

	out := h.Apply([][]int{seq(8), {9}})
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5, 6}, {7, 8}}, out[0])
	assert.Equal(t, [][]int{{9}}, out[1])
}

func TestConditional(t *testing.T) {
	c, err := NewConditional[int](halve{}, func(chunk []int) bool { return len(chunk) > 4 }, 1)
	require.NoError(t, err)

	out := c.Apply([][]int{seq(8), {1, 2, 3}})
	assert.Equal(t, [][]int{{1, 2, 3, 4}, {5, 6, 7, 8}}, out[0])
	assert.Equal(t, [][]int{{1, 2, 3}}, out[1])
}

func TestSubStrategies_NeverProduceEmptyChunks(t *testing.T) {
	v, err := NewVariance[int](2, 4)
	require.NoError(t, err)

	rec, err := NewRecursive[int](v, 4, 1)
	require.NoError(t, err)
	hier, err := NewHierarchical[int]([]Strategy[int]{v, halve{}}, 2)
	require.NoError(t, err)
	cond, err := NewConditional[int](v, func([]int) bool { return true }, 1)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(5, 6))
	input := make([][]int, 10)
	for i := range input {
		input[i] = make([]int, 1+rng.IntN(30))
		for j := range input[i] {
			input[i][j] = rng.IntN(20)
		}
	}

	for _, sub := range []SubStrategy[int]{rec, hier, cond} {
		out := sub.Apply(input)
		require.Len(t, out, len(input))
		for i, group := range out {
			var joined []int
			for _, leaf := range group {
				assert.NotEmpty(t, leaf)
				joined = append(joined, leaf...)
			}
			assert.Equal(t, input[i], joined)
		}
	}
}
