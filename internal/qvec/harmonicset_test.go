package qvec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHarmonicSet(t *testing.T) {
	t.Parallel()

	t.Run("contiguous range", func(t *testing.T) {
		t.Parallel()
		s, err := NewHarmonicSet(3)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, s.Harmonics())
		assert.Equal(t, 3, s.Count())
		assert.Equal(t, 3, s.Highest())
	})

	t.Run("full range", func(t *testing.T) {
		t.Parallel()
		s, err := NewHarmonicSet(MaxHarmonic)
		require.NoError(t, err)
		assert.Equal(t, MaxHarmonic, s.Count())
		assert.Equal(t, MaxHarmonic, s.Highest())
	})

	t.Run("rejects zero and out of range", func(t *testing.T) {
		t.Parallel()
		_, err := NewHarmonicSet(0)
		assert.Error(t, err)
		_, err = NewHarmonicSet(MaxHarmonic + 1)
		assert.Error(t, err)
	})
}

func TestNewHarmonicSetFromMap(t *testing.T) {
	t.Parallel()

	t.Run("sparse selection", func(t *testing.T) {
		t.Parallel()
		s, err := NewHarmonicSetFromMap([]int{2, 4, 6, 8})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 4, 6, 8}, s.Harmonics())
		assert.Equal(t, 8, s.Highest())
		assert.True(t, s.Contains(4))
		assert.False(t, s.Contains(3))
	})

	t.Run("iteration is ascending regardless of map order", func(t *testing.T) {
		t.Parallel()
		s, err := NewHarmonicSetFromMap([]int{8, 2, 6, 4})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 4, 6, 8}, s.Harmonics())
	})

	t.Run("rejects out-of-range harmonics", func(t *testing.T) {
		t.Parallel()
		_, err := NewHarmonicSetFromMap([]int{1, 16})
		assert.Error(t, err)
		_, err = NewHarmonicSetFromMap([]int{0})
		assert.Error(t, err)
		_, err = NewHarmonicSetFromMap(nil)
		assert.Error(t, err)
	})
}

func TestHarmonicSetIteration(t *testing.T) {
	t.Parallel()

	t.Run("first and next walk the set in order", func(t *testing.T) {
		t.Parallel()
		s, err := NewHarmonicSetFromMap([]int{1, 3, 15})
		require.NoError(t, err)

		h := s.First()
		assert.Equal(t, 1, h)
		h = s.Next(h)
		assert.Equal(t, 3, h)
		h = s.Next(h)
		assert.Equal(t, 15, h)
		h = s.Next(h)
		assert.Equal(t, -1, h)
	})

	t.Run("empty set terminates immediately", func(t *testing.T) {
		t.Parallel()
		var s HarmonicSet
		assert.Equal(t, -1, s.First())
		assert.Equal(t, 0, s.Highest())
	})
}
