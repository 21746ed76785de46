package detector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flowvec/internal/corrections"
	"github.com/banshee-data/flowvec/internal/eventclass"
	"github.com/banshee-data/flowvec/internal/profile"
)

var (
	_ Configuration            = (*TrackConfiguration)(nil)
	_ Configuration            = (*ChannelConfiguration)(nil)
	_ corrections.ChannelOwner = (*ChannelConfiguration)(nil)
)

func centralityAxis(t *testing.T) eventclass.VariableSet {
	t.Helper()
	v, err := eventclass.NewUniformVariable(0, "centrality", 1, 0, 100)
	require.NoError(t, err)
	return eventclass.VariableSet{v}
}

func TestTrackConfigurationBuildsPlainVector(t *testing.T) {
	t.Parallel()

	cfg, err := NewTrackConfiguration(Config{
		Name:          "TPC",
		Harmonics:     2,
		Variables:     centralityAxis(t),
		Normalization: NormalizationOverM,
	})
	require.NoError(t, err)
	require.NoError(t, cfg.InitializeSteps())

	cfg.AddTrack(0)
	cfg.AddTrack(math.Pi / 2)
	cfg.ProcessEvent("0")

	q := cfg.CurrentVector()
	assert.True(t, q.IsGoodQuality())
	assert.InDelta(t, 0.5, q.X(1), 1e-12)
	assert.InDelta(t, 0.5, q.Y(1), 1e-12)
	assert.InDelta(t, 0.0, q.X(2), 1e-12, "second harmonic cancels for orthogonal tracks")
	assert.InDelta(t, 0.0, q.Y(2), 1e-12)

	cfg.ClearEvent()
	cfg.ProcessEvent("0")
	assert.False(t, cfg.CurrentVector().IsGoodQuality(), "empty event yields a bad-quality vector")
}

func TestTrackConfigurationNormalizationMethods(t *testing.T) {
	t.Parallel()

	build := func(m NormalizationMethod) *TrackConfiguration {
		cfg, err := NewTrackConfiguration(Config{
			Name:          "TPC",
			Harmonics:     1,
			Variables:     centralityAxis(t),
			Normalization: m,
		})
		require.NoError(t, err)
		require.NoError(t, cfg.InitializeSteps())
		for i := 0; i < 4; i++ {
			cfg.AddTrack(0)
		}
		cfg.ProcessEvent("0")
		return cfg
	}

	assert.InDelta(t, 4.0, build(NormalizationNone).CurrentVector().X(1), 1e-12)
	assert.InDelta(t, 1.0, build(NormalizationOverM).CurrentVector().X(1), 1e-12)
	assert.InDelta(t, 2.0, build(NormalizationOverSqrtM).CurrentVector().X(1), 1e-12)
}

func TestTrackConfigurationRecenteringLifecycle(t *testing.T) {
	t.Parallel()

	newConfig := func() *TrackConfiguration {
		cfg, err := NewTrackConfiguration(Config{
			Name:          "TPC",
			Harmonics:     1,
			Variables:     centralityAxis(t),
			Normalization: NormalizationOverM,
		})
		require.NoError(t, err)
		cfg.AddQvectorStep(corrections.NewRecentering(corrections.RecenteringConfig{}))
		require.NoError(t, cfg.InitializeSteps())
		return cfg
	}

	// Calibration pass: accumulate the plain vector over a few identical
	// events, so the stored mean equals the event value.
	calib := newConfig()
	for i := 0; i < 3; i++ {
		calib.AddTrack(0)
		calib.AddTrack(math.Pi / 3)
		calib.ProcessEvent("0")
		calib.ClearEvent()
	}

	var calibrating, applying []string
	calib.Report(&calibrating, &applying)
	assert.Equal(t, []string{"Recentering and width equalization"}, calibrating)
	assert.Empty(t, applying)

	snaps := calib.Snapshots()
	require.Len(t, snaps, 1)
	require.NotEmpty(t, snaps[0].Records)

	// Apply pass: attach the collected calibration and process the same
	// event again. The recentered vector must vanish.
	apply := newConfig()
	byStep := map[string][]profile.BinRecord{snaps[0].Step: snaps[0].Records}
	n, err := apply.AttachCalibration(func(config, step string) ([]profile.BinRecord, error) {
		assert.Equal(t, "TPC", config)
		return byStep[step], nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	apply.AddTrack(0)
	apply.AddTrack(math.Pi / 3)
	apply.ProcessEvent("0")

	q := apply.CurrentVector()
	assert.True(t, q.IsGoodQuality())
	assert.InDelta(t, 0.0, q.X(1), 1e-12)
	assert.InDelta(t, 0.0, q.Y(1), 1e-12)

	calibrating, applying = nil, nil
	apply.Report(&calibrating, &applying)
	assert.Equal(t, []string{"Recentering and width equalization"}, calibrating,
		"apply-collect keeps accumulating for the next pass")
	assert.Equal(t, []string{"Recentering and width equalization"}, applying)

	apply.Freeze()
	calibrating, applying = nil, nil
	apply.Report(&calibrating, &applying)
	assert.Empty(t, calibrating)
	assert.Equal(t, []string{"Recentering and width equalization"}, applying)
}

func TestChannelConfigurationValidation(t *testing.T) {
	t.Parallel()

	base := Config{Name: "V0", Harmonics: 2, Variables: centralityAxis(t)}

	_, err := NewChannelConfiguration(ChannelConfig{Config: base})
	assert.Error(t, err, "channel count is required")

	_, err = NewChannelConfiguration(ChannelConfig{
		Config: base, Channels: 4, UsedChannels: []bool{true},
	})
	assert.Error(t, err)

	_, err = NewChannelConfiguration(ChannelConfig{
		Config: base, Channels: 4, ChannelGroups: []int{0, 0},
	})
	assert.Error(t, err)

	_, err = NewChannelConfiguration(ChannelConfig{
		Config: base, Channels: 4, HardCodedGroupWeights: []float64{1, 1},
	})
	assert.Error(t, err)
}

func TestChannelConfigurationAddChannel(t *testing.T) {
	t.Parallel()

	cfg, err := NewChannelConfiguration(ChannelConfig{
		Config:       Config{Name: "V0", Harmonics: 1, Variables: centralityAxis(t)},
		Channels:     4,
		UsedChannels: []bool{true, true, false, true},
	})
	require.NoError(t, err)

	assert.True(t, cfg.AddChannel(0, 0, 1))
	assert.False(t, cfg.AddChannel(2, 0, 1), "masked channel is dropped")
	assert.False(t, cfg.AddChannel(4, 0, 1), "out-of-range channel is dropped")
	assert.False(t, cfg.AddChannel(-1, 0, 1))
	assert.Len(t, cfg.Samples(), 1)
}

func TestChannelConfigurationGainEqualizationLifecycle(t *testing.T) {
	t.Parallel()

	newConfig := func() *ChannelConfiguration {
		cfg, err := NewChannelConfiguration(ChannelConfig{
			Config:   Config{Name: "V0", Harmonics: 1, Variables: centralityAxis(t)},
			Channels: 2,
		})
		require.NoError(t, err)
		cfg.AddInputStep(corrections.NewGainEqualization(corrections.GainEqualizationConfig{
			Method: corrections.EqualizeAverage,
		}))
		require.NoError(t, cfg.InitializeSteps())
		return cfg
	}

	fill := func(cfg *ChannelConfiguration) {
		cfg.AddChannel(0, 0, 4.0)
		cfg.AddChannel(1, math.Pi/2, 1.0)
	}

	// Calibration pass: the plain vector still uses the raw weights.
	calib := newConfig()
	fill(calib)
	calib.ProcessEvent("0")
	assert.InDelta(t, 4.0, calib.CurrentVector().X(1), 1e-12)
	assert.InDelta(t, 1.0, calib.CurrentVector().Y(1), 1e-12)
	calib.ClearEvent()

	snaps := calib.Snapshots()
	require.Len(t, snaps, 1)

	// Apply pass: each channel's weight divides by its stored average, so
	// both hits contribute with unit weight.
	apply := newConfig()
	n, err := apply.AttachCalibration(func(config, step string) ([]profile.BinRecord, error) {
		return snaps[0].Records, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fill(apply)
	apply.ProcessEvent("0")
	assert.InDelta(t, 1.0, apply.CurrentVector().X(1), 1e-12)
	assert.InDelta(t, 1.0, apply.CurrentVector().Y(1), 1e-12)
}

func TestChannelConfigurationClearEvent(t *testing.T) {
	t.Parallel()

	cfg, err := NewChannelConfiguration(ChannelConfig{
		Config:   Config{Name: "V0", Harmonics: 1, Variables: centralityAxis(t)},
		Channels: 2,
	})
	require.NoError(t, err)
	require.NoError(t, cfg.InitializeSteps())

	cfg.AddChannel(0, 0, 2.0)
	cfg.ProcessEvent("0")
	require.True(t, cfg.CurrentVector().IsGoodQuality())

	cfg.ClearEvent()
	assert.Empty(t, cfg.Samples())
	assert.False(t, cfg.CurrentVector().IsGoodQuality())
	assert.InDelta(t, 0.0, cfg.CurrentVector().X(1), 1e-12)
}
