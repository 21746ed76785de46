package qvec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorActivate(t *testing.T) {
	t.Parallel()

	t.Run("activated harmonics read zero", func(t *testing.T) {
		t.Parallel()
		v, err := NewVector("plain", 2, nil)
		require.NoError(t, err)

		for h := 1; h <= MaxHarmonic; h++ {
			require.NoError(t, v.Activate(h))
			assert.True(t, v.Harmonics().Contains(h))
			assert.Zero(t, v.X(h))
			assert.Zero(t, v.Y(h))
		}
	})

	t.Run("activate above the supported maximum fails", func(t *testing.T) {
		t.Parallel()
		v, err := NewVector("plain", 2, nil)
		require.NoError(t, err)
		assert.Error(t, v.Activate(MaxHarmonic+1))
		assert.Error(t, v.Activate(0))
		assert.Error(t, v.Activate(-3))
	})

	t.Run("re-activating keeps existing components", func(t *testing.T) {
		t.Parallel()
		v, err := NewVector("plain", 2, nil)
		require.NoError(t, err)
		v.SetX(1, 0.5)
		require.NoError(t, v.Activate(1))
		assert.Equal(t, 0.5, v.X(1))
	})
}

func TestVectorNormalize(t *testing.T) {
	t.Parallel()

	t.Run("replaces components with unit vector", func(t *testing.T) {
		t.Parallel()
		v, err := NewVector("plain", 1, nil)
		require.NoError(t, err)
		v.SetX(1, 3)
		v.SetY(1, 4)

		v.Normalize()
		assert.InDelta(t, 0.6, v.X(1), 1e-12)
		assert.InDelta(t, 0.8, v.Y(1), 1e-12)
	})

	t.Run("below-threshold harmonic is left untouched", func(t *testing.T) {
		t.Parallel()
		v, err := NewVector("plain", 2, nil)
		require.NoError(t, err)
		v.SetX(1, 1e-9)
		v.SetY(1, -1e-9)
		v.SetX(2, 1)

		v.Normalize()
		assert.Equal(t, 1e-9, v.X(1))
		assert.Equal(t, -1e-9, v.Y(1))
		assert.False(t, math.IsNaN(v.X(1)))
		assert.Equal(t, 1.0, v.X(2))
	})
}

func TestVectorCopyFrom(t *testing.T) {
	t.Parallel()

	t.Run("copies components quality and optionally the name", func(t *testing.T) {
		t.Parallel()
		src, err := NewVector("rec", 2, nil)
		require.NoError(t, err)
		src.SetX(1, 1.5)
		src.SetY(2, -2.5)
		src.SetGoodQuality(true)

		dst, err := NewVector("plain", 2, nil)
		require.NoError(t, err)
		require.NoError(t, dst.CopyFrom(src, false))
		assert.Equal(t, 1.5, dst.X(1))
		assert.Equal(t, -2.5, dst.Y(2))
		assert.True(t, dst.IsGoodQuality())
		assert.Equal(t, "plain", dst.Name())

		require.NoError(t, dst.CopyFrom(src, true))
		assert.Equal(t, "rec", dst.Name())
	})

	t.Run("mismatched harmonic structures never partially copy", func(t *testing.T) {
		t.Parallel()
		src, err := NewVector("a", 4, []int{2, 4, 6, 8})
		require.NoError(t, err)
		src.SetX(2, 9)
		src.SetGoodQuality(true)

		dst, err := NewVector("b", 2, nil)
		require.NoError(t, err)
		err = dst.CopyFrom(src, false)
		require.Error(t, err)
		assert.Zero(t, dst.X(2))
		assert.False(t, dst.IsGoodQuality())
	})
}

func TestVectorEventPlane(t *testing.T) {
	t.Parallel()

	t.Run("insignificant components give zero angle", func(t *testing.T) {
		t.Parallel()
		v, err := NewVector("plain", 2, nil)
		require.NoError(t, err)
		assert.Zero(t, v.EventPlane(2))
	})

	t.Run("angle scaled by harmonic number", func(t *testing.T) {
		t.Parallel()
		v, err := NewVector("plain", 2, nil)
		require.NoError(t, err)
		v.SetX(2, 0)
		v.SetY(2, 1)
		assert.InDelta(t, math.Pi/4, v.EventPlane(2), 1e-12)
	})
}

func TestVectorReset(t *testing.T) {
	t.Parallel()

	v, err := NewVector("plain", 3, nil)
	require.NoError(t, err)
	v.SetX(1, 2)
	v.SetY(3, -7)
	v.SetGoodQuality(true)

	v.Reset()
	assert.Zero(t, v.X(1))
	assert.Zero(t, v.Y(3))
	assert.False(t, v.IsGoodQuality())
	assert.Equal(t, []int{1, 2, 3}, v.Harmonics().Harmonics())

	// Reset is idempotent.
	v.Reset()
	assert.Zero(t, v.X(1))
	assert.Equal(t, []int{1, 2, 3}, v.Harmonics().Harmonics())
}

func TestVectorSetOnInactiveHarmonicPanics(t *testing.T) {
	t.Parallel()

	v, err := NewVector("plain", 2, nil)
	require.NoError(t, err)
	assert.Panics(t, func() { v.SetX(5, 1) })
	assert.Panics(t, func() { v.SetY(5, 1) })
}
