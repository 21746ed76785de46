package manager

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flowvec/internal/corrections"
	"github.com/banshee-data/flowvec/internal/detector"
	"github.com/banshee-data/flowvec/internal/eventclass"
	"github.com/banshee-data/flowvec/internal/profile"
)

// memoryStore is a calibration store backed by a map, keyed by
// configuration and step name.
type memoryStore struct {
	records map[string]map[string][]profile.BinRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]map[string][]profile.BinRecord)}
}

func (s *memoryStore) save(snaps []ConfigSnapshot) {
	for _, cs := range snaps {
		byStep, ok := s.records[cs.Config]
		if !ok {
			byStep = make(map[string][]profile.BinRecord)
			s.records[cs.Config] = byStep
		}
		for _, step := range cs.Steps {
			byStep[step.Step] = step.Records
		}
	}
}

func (s *memoryStore) load(config, step string) ([]profile.BinRecord, error) {
	return s.records[config][step], nil
}

func centralityAxis(t *testing.T) eventclass.VariableSet {
	t.Helper()
	v, err := eventclass.NewUniformVariable(0, "centrality", 2, 0, 100)
	require.NoError(t, err)
	return eventclass.VariableSet{v}
}

// newManager wires a track configuration with recentering and a channel
// configuration with gain equalization, mirroring a typical two-detector
// setup.
func newManager(t *testing.T) *Manager {
	t.Helper()

	track, err := detector.NewTrackConfiguration(detector.Config{
		Name:          "TPC",
		Harmonics:     1,
		Variables:     centralityAxis(t),
		Normalization: detector.NormalizationOverM,
	})
	require.NoError(t, err)
	track.AddQvectorStep(corrections.NewRecentering(corrections.RecenteringConfig{}))

	channel, err := detector.NewChannelConfiguration(detector.ChannelConfig{
		Config: detector.Config{
			Name:      "V0",
			Harmonics: 1,
			Variables: centralityAxis(t),
		},
		Channels: 2,
	})
	require.NoError(t, err)
	channel.AddInputStep(corrections.NewGainEqualization(corrections.GainEqualizationConfig{
		Method: corrections.EqualizeAverage,
	}))
	channel.AddQvectorStep(corrections.NewRecentering(corrections.RecenteringConfig{}))

	m := New()
	require.NoError(t, m.AddConfiguration(track))
	require.NoError(t, m.AddConfiguration(channel))
	require.NoError(t, m.InitializeFramework())
	return m
}

func feedEvent(t *testing.T, m *Manager, vars []float64) {
	t.Helper()
	track, ok := m.Configuration("TPC")
	require.True(t, ok)
	track.(*detector.TrackConfiguration).AddTrack(0)
	track.(*detector.TrackConfiguration).AddTrack(math.Pi / 4)

	channel, ok := m.Configuration("V0")
	require.True(t, ok)
	channel.(*detector.ChannelConfiguration).AddChannel(0, 0, 3.0)
	channel.(*detector.ChannelConfiguration).AddChannel(1, math.Pi/2, 1.0)

	m.ProcessEvent(vars)
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	cfg, err := detector.NewTrackConfiguration(detector.Config{
		Name: "TPC", Harmonics: 1, Variables: centralityAxis(t),
	})
	require.NoError(t, err)
	dup, err := detector.NewTrackConfiguration(detector.Config{
		Name: "TPC", Harmonics: 1, Variables: centralityAxis(t),
	})
	require.NoError(t, err)

	m := New()
	require.NoError(t, m.AddConfiguration(cfg))
	assert.Error(t, m.AddConfiguration(dup))
}

func TestManagerAddDetector(t *testing.T) {
	t.Parallel()

	d := detector.NewDetector("TPC", 1)
	full, err := detector.NewTrackConfiguration(detector.Config{
		Name: "TPCfull", Harmonics: 1, Variables: centralityAxis(t),
	})
	require.NoError(t, err)
	require.NoError(t, d.AddConfiguration(full))
	positive, err := detector.NewTrackConfiguration(detector.Config{
		Name: "TPCpos", Harmonics: 1, Variables: centralityAxis(t),
	})
	require.NoError(t, err)
	require.NoError(t, d.AddConfiguration(positive))
	assert.Error(t, d.AddConfiguration(full), "duplicate name within the detector")

	m := New()
	require.NoError(t, m.AddDetector(d))
	assert.Len(t, m.Configurations(), 2)
	_, ok := m.Configuration("TPCpos")
	assert.True(t, ok)
}

func TestManagerPersistCalibration(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	for i := 0; i < 3; i++ {
		feedEvent(t, m, []float64{30})
		m.ClearEvent()
	}

	saved := make(map[string]int)
	require.NoError(t, m.PersistCalibration(func(config, step string, records []profile.BinRecord) error {
		saved[config+"/"+step] = len(records)
		return nil
	}))
	assert.Len(t, saved, 3)
	assert.NotZero(t, saved["TPC/Recentering and width equalization"])
	assert.NotZero(t, saved["V0/Gain equalization"])

	errSave := func(config, step string, records []profile.BinRecord) error {
		return assert.AnError
	}
	assert.Error(t, m.PersistCalibration(errSave))
}

func TestManagerSkipsOutOfRangeEvents(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	m.ProcessEvent([]float64{150})
	assert.Equal(t, int64(2), m.SkippedEvents(), "both configurations skip the unclassifiable event")

	snaps := m.Snapshots()
	for _, cs := range snaps {
		for _, step := range cs.Steps {
			assert.Empty(t, step.Records, "skipped events must not reach the calibration profiles")
		}
	}
}

func TestManagerTwoPassCampaign(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()

	// Pass one: every step calibrates, nothing applies.
	pass1 := newManager(t)
	for i := 0; i < 5; i++ {
		feedEvent(t, pass1, []float64{30})
		pass1.ClearEvent()
	}
	calibrating, applying := pass1.Report()
	assert.Len(t, calibrating, 3)
	assert.Empty(t, applying)
	store.save(pass1.Snapshots())

	// Pass two: attach pass-one calibration; every step moves to
	// apply-collect and produces corrected output.
	pass2 := newManager(t)
	n, err := pass2.AttachCalibration(store.load)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	feedEvent(t, pass2, []float64{30})

	calibrating, applying = pass2.Report()
	assert.Len(t, calibrating, 3, "apply-collect keeps calibrating for the next pass")
	assert.Len(t, applying, 3)

	// The events are identical across passes, so recentering cancels the
	// track vector exactly.
	track, _ := pass2.Configuration("TPC")
	assert.True(t, track.CurrentVector().IsGoodQuality())
	assert.InDelta(t, 0.0, track.CurrentVector().X(1), 1e-12)
	assert.InDelta(t, 0.0, track.CurrentVector().Y(1), 1e-12)

	// The channel vector does not cancel yet: its recentering mean was
	// collected from raw weights in pass one, while pass two builds from
	// gain-equalized weights. Raw build is (3, 1); equalized build is
	// (1, 1); recentered output is their difference in x.
	channel, _ := pass2.Configuration("V0")
	assert.True(t, channel.CurrentVector().IsGoodQuality())
	assert.InDelta(t, -2.0, channel.CurrentVector().X(1), 1e-12)
	assert.InDelta(t, 0.0, channel.CurrentVector().Y(1), 1e-12)

	pass2.ClearEvent()

	// Frozen steps stop collecting but keep applying.
	pass2.FreezeCalibrations()
	calibrating, applying = pass2.Report()
	assert.Empty(t, calibrating)
	assert.Len(t, applying, 3)

	feedEvent(t, pass2, []float64{30})
	assert.InDelta(t, 0.0, func() float64 {
		cfg, _ := pass2.Configuration("TPC")
		return cfg.CurrentVector().X(1)
	}(), 1e-12)
}
