package advanced

import (
	"math"
	"testing"

	"github.com/dshills/gochunk/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
		{"single pair", []float64{1}, []float64{4}, 3},
		{"warped", []float64{1, 1, 2}, []float64{1, 2, 2}, 0},
		{"step", []float64{1, 1}, []float64{10, 10}, 18},
		{"row accumulates", []float64{0}, []float64{1, 2, 3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b, AbsDiff[float64]), 1e-12)
		})
	}

	assert.True(t, math.IsInf(Distance(nil, []float64{1}, AbsDiff[float64]), 1))
}

func TestDTW_Split(t *testing.T) {
	d, err := NewDTW(2, 10, AbsDiff[float64])
	require.NoError(t, err)

	data := []float64{1, 1, 1, 1, 10, 10, 10, 10}
	assert.Equal(t, []int{4}, d.Split(data))
}

func TestDTW_ShortInputIsSingleChunk(t *testing.T) {
	d, err := NewDTW(4, 0.1, AbsDiff[int])
	require.NoError(t, err)
	assert.Empty(t, d.Split([]int{1, 100, 1, 100, 1, 100, 1}))
}

func TestDTW_InvalidConfiguration(t *testing.T) {
	_, err := NewDTW(0, 1, AbsDiff[int])
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)

	_, err = NewDTW(2, 0, AbsDiff[int])
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)

	_, err = NewDTW[int](2, 1, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestMutualInfo(t *testing.T) {
	assert.InDelta(t, 1.0, MutualInfo([]int{1, 2, 1, 2}, []int{1, 2, 1, 2}), 1e-12)
	assert.InDelta(t, 0.0, MutualInfo([]int{1, 1, 1, 1}, []int{1, 2, 3, 4}), 1e-12)
	assert.Equal(t, 0.0, MutualInfo[int](nil, []int{1}))
}

func TestMutualInformation_Split(t *testing.T) {
	m, err := NewMutualInformation[int](2, 0.5)
	require.NoError(t, err)

	// The alternating run is self-informative; the constant run carries no
	// information about its neighbours
	data := []int{1, 2, 1, 2, 1, 2, 5, 5, 5, 5}
	assert.Equal(t, []int{6, 8}, m.Split(data))
}

func TestMutualInformation_InvalidConfiguration(t *testing.T) {
	_, err := NewMutualInformation[int](0, 0.5)
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)

	_, err = NewMutualInformation[int](3, 0)
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestHaarDetails(t *testing.T) {
	levels := HaarDetails([]float64{0, 0, 10, 10})
	require.Len(t, levels, 2)
	assert.InDeltaSlice(t, []float64{0, 0}, levels[0], 1e-12)
	assert.InDeltaSlice(t, []float64{-10}, levels[1], 1e-9)
}

func TestWavelet_StepBoundary(t *testing.T) {
	w, err := NewWavelet[float64](4, 1)
	require.NoError(t, err)

	assert.Equal(t, []int{4}, w.Split([]float64{0, 0, 0, 0, 10, 10, 10, 10}))
}

func TestWavelet_EvenAlignedStep(t *testing.T) {
	w, err := NewWavelet[int](4, 1)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, w.Split([]int{0, 0, 10, 10, 10, 10}))
}

func TestWavelet_SmoothSignalNeverSplits(t *testing.T) {
	w, err := NewWavelet[float64](8, 5)
	require.NoError(t, err)

	data := make([]float64, 64)
	for i := range data {
		data[i] = 3
	}
	assert.Empty(t, w.Split(data))
}

func TestWavelet_WindowMustBePowerOfTwo(t *testing.T) {
	for _, window := range []int{0, 1, 3, 6, 12} {
		_, err := NewWavelet[float64](window, 1)
		assert.ErrorIs(t, err, types.ErrInvalidConfiguration, "window %d", window)
	}

	_, err := NewWavelet[float64](8, 1)
	assert.NoError(t, err)
}
