package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRingRejectsInvalidCapacity(t *testing.T) {
	_, err := NewRing(0)
	assert.Error(t, err)
	_, err = NewRing(-5)
	assert.Error(t, err)
}

func TestRingReadLatestInsufficientData(t *testing.T) {
	r, err := NewRing(16)
	require.NoError(t, err)

	_, err = r.ReadLatest(4)
	assert.ErrorIs(t, err, ErrInsufficientData)

	r.Write([]float64{1, 2, 3})
	_, err = r.ReadLatest(4)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// Requests beyond capacity can never be satisfied.
	r.Write(make([]float64, 16))
	_, err = r.ReadLatest(32)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRingReadLatestChronologicalOrder(t *testing.T) {
	r, err := NewRing(8)
	require.NoError(t, err)

	r.Write([]float64{1, 2, 3, 4, 5})
	got, err := r.ReadLatest(3)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 5}, got)
}

func TestRingOverwritesOldestWhenFull(t *testing.T) {
	r, err := NewRing(4)
	require.NoError(t, err)

	r.Write([]float64{1, 2, 3, 4})
	r.Write([]float64{5, 6})

	got, err := r.ReadLatest(4)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 5, 6}, got)
	assert.Equal(t, 4, r.Buffered())
}

func TestRingWriteLargerThanCapacityKeepsTail(t *testing.T) {
	r, err := NewRing(4)
	require.NoError(t, err)

	r.Write([]float64{1, 2, 3, 4, 5, 6, 7})
	got, err := r.ReadLatest(4)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 6, 7}, got)
}

func TestRingWrapAroundManyWrites(t *testing.T) {
	r, err := NewRing(5)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		r.Write([]float64{float64(i)})
	}
	got, err := r.ReadLatest(5)
	require.NoError(t, err)
	assert.Equal(t, []float64{95, 96, 97, 98, 99}, got)
}
