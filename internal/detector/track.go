package detector

import (
	"fmt"

	"github.com/banshee-data/flowvec/internal/qvec"
)

// TrackConfiguration builds its flow vector from reconstructed tracks.
// Every track contributes with unit weight and there is no channel
// structure, so only flow-vector corrections apply.
type TrackConfiguration struct {
	baseConfiguration
}

// NewTrackConfiguration creates a track-based detector configuration.
func NewTrackConfiguration(cfg Config) (*TrackConfiguration, error) {
	base, err := newBaseConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &TrackConfiguration{baseConfiguration: base}, nil
}

// AddTrack records one track's azimuthal angle for the current event.
func (c *TrackConfiguration) AddTrack(phi float64) {
	c.samples = append(c.samples, qvec.NewTrackSample(phi))
}

// InitializeSteps implements Configuration.
func (c *TrackConfiguration) InitializeSteps() error {
	for _, step := range c.qSteps.Steps() {
		if err := step.CreateSupport(c); err != nil {
			return fmt.Errorf("detector: configuration %q: %w", c.name, err)
		}
	}
	return nil
}

// AttachCalibration implements Configuration.
func (c *TrackConfiguration) AttachCalibration(load LoadFunc) (int, error) {
	attached := 0
	for _, step := range c.qSteps.Steps() {
		records, err := load(c.name, step.Name())
		if err != nil {
			return attached, fmt.Errorf("detector: configuration %q: load %q: %w", c.name, step.Name(), err)
		}
		ok, err := step.AttachInput(records)
		if err != nil {
			return attached, fmt.Errorf("detector: configuration %q: attach %q: %w", c.name, step.Name(), err)
		}
		if ok {
			attached++
		}
	}
	return attached, nil
}

// ProcessEvent implements Configuration.
func (c *TrackConfiguration) ProcessEvent(key string) {
	c.buildPlainVector(func(s *qvec.DataSample) float64 { return s.Weight })
	c.processQvectorSteps(key)
}

// ClearEvent implements Configuration.
func (c *TrackConfiguration) ClearEvent() { c.clearQvectorSteps() }

// Freeze implements Configuration.
func (c *TrackConfiguration) Freeze() { c.freezeQvectorSteps() }

// Report implements Configuration.
func (c *TrackConfiguration) Report(calibrating, applying *[]string) {
	c.reportQvectorSteps(calibrating, applying)
}

// Snapshots implements Configuration.
func (c *TrackConfiguration) Snapshots() []StepSnapshot {
	out := make([]StepSnapshot, 0, len(c.qSteps.Steps()))
	for _, step := range c.qSteps.Steps() {
		out = append(out, StepSnapshot{Step: step.Name(), Records: step.CalibrationSnapshot()})
	}
	return out
}
