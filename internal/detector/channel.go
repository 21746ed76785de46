package detector

import (
	"fmt"

	"github.com/banshee-data/flowvec/internal/corrections"
	"github.com/banshee-data/flowvec/internal/qvec"
)

// ChannelConfig extends Config with the channel structure of a segmented
// detector.
type ChannelConfig struct {
	Config
	// Channels is the total number of readout channels.
	Channels int
	// UsedChannels marks the channels that participate; nil means all.
	UsedChannels []bool
	// ChannelGroups maps each channel to its gain group; nil when the
	// detector has no grouping.
	ChannelGroups []int
	// HardCodedGroupWeights supplies per-channel weights for gain
	// equalization when group weight histograms are disabled; nil when not
	// supplied.
	HardCodedGroupWeights []float64
}

// ChannelConfiguration builds its flow vector from the signals of a
// segmented detector. Each hit carries the channel id and signal amplitude
// as weight; input-data corrections may rewrite the weights before the
// vector is built.
type ChannelConfiguration struct {
	baseConfiguration

	channels    int
	used        []bool
	groups      []int
	hardWeights []float64
	inputSteps  corrections.InputStepSet
}

// NewChannelConfiguration creates a channelized detector configuration.
func NewChannelConfiguration(cfg ChannelConfig) (*ChannelConfiguration, error) {
	base, err := newBaseConfiguration(cfg.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("detector: configuration %q: needs at least one channel", cfg.Name)
	}
	if cfg.UsedChannels != nil && len(cfg.UsedChannels) != cfg.Channels {
		return nil, fmt.Errorf("detector: configuration %q: used-channel mask has %d entries for %d channels",
			cfg.Name, len(cfg.UsedChannels), cfg.Channels)
	}
	if cfg.ChannelGroups != nil && len(cfg.ChannelGroups) != cfg.Channels {
		return nil, fmt.Errorf("detector: configuration %q: group map has %d entries for %d channels",
			cfg.Name, len(cfg.ChannelGroups), cfg.Channels)
	}
	if cfg.HardCodedGroupWeights != nil && len(cfg.HardCodedGroupWeights) != cfg.Channels {
		return nil, fmt.Errorf("detector: configuration %q: weight table has %d entries for %d channels",
			cfg.Name, len(cfg.HardCodedGroupWeights), cfg.Channels)
	}
	return &ChannelConfiguration{
		baseConfiguration: base,
		channels:          cfg.Channels,
		used:              cfg.UsedChannels,
		groups:            cfg.ChannelGroups,
		hardWeights:       cfg.HardCodedGroupWeights,
	}, nil
}

// ChannelCount implements corrections.ChannelOwner.
func (c *ChannelConfiguration) ChannelCount() int { return c.channels }

// UsedChannels implements corrections.ChannelOwner.
func (c *ChannelConfiguration) UsedChannels() []bool { return c.used }

// ChannelGroups implements corrections.ChannelOwner.
func (c *ChannelConfiguration) ChannelGroups() []int { return c.groups }

// HardCodedGroupWeights implements corrections.ChannelOwner.
func (c *ChannelConfiguration) HardCodedGroupWeights() []float64 { return c.hardWeights }

// AddInputStep appends an input-data correction, kept ordered by the
// step's sort key.
func (c *ChannelConfiguration) AddInputStep(step corrections.InputStep) {
	c.inputSteps.Add(step)
}

// AddChannel records one channel hit for the current event. Hits on
// channels outside the range or masked out are dropped; the return value
// reports whether the hit was accepted.
func (c *ChannelConfiguration) AddChannel(channelID int, phi, weight float64) bool {
	if channelID < 0 || channelID >= c.channels {
		return false
	}
	if c.used != nil && !c.used[channelID] {
		return false
	}
	c.samples = append(c.samples, qvec.NewChannelSample(channelID, phi, weight))
	return true
}

// InitializeSteps implements Configuration.
func (c *ChannelConfiguration) InitializeSteps() error {
	for _, step := range c.inputSteps.Steps() {
		if err := step.CreateSupport(c); err != nil {
			return fmt.Errorf("detector: configuration %q: %w", c.name, err)
		}
	}
	for _, step := range c.qSteps.Steps() {
		if err := step.CreateSupport(c); err != nil {
			return fmt.Errorf("detector: configuration %q: %w", c.name, err)
		}
	}
	return nil
}

// AttachCalibration implements Configuration.
func (c *ChannelConfiguration) AttachCalibration(load LoadFunc) (int, error) {
	attached := 0
	attach := func(step corrections.Step) error {
		records, err := load(c.name, step.Name())
		if err != nil {
			return fmt.Errorf("detector: configuration %q: load %q: %w", c.name, step.Name(), err)
		}
		ok, err := step.AttachInput(records)
		if err != nil {
			return fmt.Errorf("detector: configuration %q: attach %q: %w", c.name, step.Name(), err)
		}
		if ok {
			attached++
		}
		return nil
	}
	for _, step := range c.inputSteps.Steps() {
		if err := attach(step); err != nil {
			return attached, err
		}
	}
	for _, step := range c.qSteps.Steps() {
		if err := attach(step); err != nil {
			return attached, err
		}
	}
	return attached, nil
}

// ProcessEvent implements Configuration. Input-data corrections run first
// so the flow vector is built from equalized weights.
func (c *ChannelConfiguration) ProcessEvent(key string) {
	for _, step := range c.inputSteps.Steps() {
		step.Process(key)
	}
	c.buildPlainVector(func(s *qvec.DataSample) float64 { return s.EqualizedWeight })
	c.processQvectorSteps(key)
}

// ClearEvent implements Configuration.
func (c *ChannelConfiguration) ClearEvent() {
	for _, step := range c.inputSteps.Steps() {
		step.ClearStep()
	}
	c.clearQvectorSteps()
}

// Freeze implements Configuration.
func (c *ChannelConfiguration) Freeze() {
	for _, step := range c.inputSteps.Steps() {
		step.Freeze()
	}
	c.freezeQvectorSteps()
}

// Report implements Configuration.
func (c *ChannelConfiguration) Report(calibrating, applying *[]string) {
	for _, step := range c.inputSteps.Steps() {
		step.ReportUsage(calibrating, applying)
	}
	c.reportQvectorSteps(calibrating, applying)
}

// Snapshots implements Configuration.
func (c *ChannelConfiguration) Snapshots() []StepSnapshot {
	out := make([]StepSnapshot, 0, len(c.inputSteps.Steps())+len(c.qSteps.Steps()))
	for _, step := range c.inputSteps.Steps() {
		out = append(out, StepSnapshot{Step: step.Name(), Records: step.CalibrationSnapshot()})
	}
	for _, step := range c.qSteps.Steps() {
		out = append(out, StepSnapshot{Step: step.Name(), Records: step.CalibrationSnapshot()})
	}
	return out
}
