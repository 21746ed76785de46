package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flowvec/internal/profile"
)

func TestSummarizeComponents(t *testing.T) {
	t.Parallel()

	// Two bins with h2 x means 1.0 and 3.0: the summary mean is 2.0 and
	// the spread the sample standard deviation of {1, 3}.
	records := []profile.BinRecord{
		{Kind: profile.KindComponents, BinKey: "0", Channel: -1, Harmonic: 2, Axis: "x", N: 4, Sum: 4, SumSq: 5},
		{Kind: profile.KindComponents, BinKey: "1", Channel: -1, Harmonic: 2, Axis: "x", N: 2, Sum: 6, SumSq: 19},
	}

	summaries, err := SummarizeComponents("Recentering and width equalization", records)
	require.NoError(t, err)
	require.Len(t, summaries, 2, "one summary per axis of the single harmonic")

	assert.Equal(t, 2, summaries[0].Harmonic)
	assert.Equal(t, profile.AxisX, summaries[0].Axis)
	assert.InDelta(t, 2.0, summaries[0].Mean, 1e-12)
	assert.InDelta(t, 1.4142135623730951, summaries[0].Spread, 1e-12)

	assert.Equal(t, profile.AxisY, summaries[1].Axis)
	assert.Zero(t, summaries[1].Mean, "no y records were filled")
}

func TestSummarizeComponentsIgnoresOtherKinds(t *testing.T) {
	t.Parallel()

	records := []profile.BinRecord{
		{Kind: profile.KindChannel, BinKey: "0", Channel: 0, Axis: "x", N: 5, Sum: 10, SumSq: 25},
		{Kind: profile.KindCounter, BinKey: "0", Channel: -1, Axis: "x", N: 7},
	}

	summaries, err := SummarizeComponents("Gain equalization", records)
	require.NoError(t, err)
	assert.Nil(t, summaries)
}
