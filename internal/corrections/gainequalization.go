package corrections

import (
	"fmt"
	"log"

	"github.com/banshee-data/flowvec/internal/profile"
	"github.com/banshee-data/flowvec/internal/qvec"
)

// EqualizationMethod selects how raw channel weights are equalized.
type EqualizationMethod int

const (
	// EqualizeNone passes raw weights through unchanged.
	EqualizeNone EqualizationMethod = iota
	// EqualizeAverage divides each weight by the channel's calibrated mean
	// multiplicity.
	EqualizeAverage
	// EqualizeWidth recenters each weight on the calibrated mean and
	// scales by the calibrated dispersion: A + B·(w−mean)/width.
	EqualizeWidth
)

func (m EqualizationMethod) String() string {
	switch m {
	case EqualizeNone:
		return "none"
	case EqualizeAverage:
		return "average"
	case EqualizeWidth:
		return "width"
	default:
		return "unknown"
	}
}

const (
	gainEqualizationName = "Gain equalization"
	gainEqualizationKey  = "CCCC"
	multiplicityProfile  = "Multiplicity"
)

// GainEqualizationConfig configures a gain equalization step.
type GainEqualizationConfig struct {
	Method EqualizationMethod
	// A and B are the width-equalization constants. Nil fields take the
	// conventional defaults A=0, B=1.
	A *float64
	B *float64
	// UseGroupWeights takes group weights from the calibration group
	// profile instead of the configuration's hard-coded table.
	UseGroupWeights bool
}

// GainEqualization equalizes per-channel raw weights using the channel's
// accumulated multiplicity statistics, removing gain differences between
// detector channels before the flow vector is built.
type GainEqualization struct {
	StepBase
	cfg   GainEqualizationConfig
	a, b  float64
	owner ChannelOwner

	hardWeights []float64
	input       *profile.Channelized // attached from a previous pass
	calib       *profile.Channelized // filling this pass
}

// NewGainEqualization creates a gain equalization step.
func NewGainEqualization(cfg GainEqualizationConfig) *GainEqualization {
	a, b := 0.0, 1.0
	if cfg.A != nil {
		a = *cfg.A
	}
	if cfg.B != nil {
		b = *cfg.B
	}
	return &GainEqualization{
		StepBase: NewStepBase(gainEqualizationName, gainEqualizationKey),
		cfg:      cfg,
		a:        a,
		b:        b,
	}
}

// Method returns the configured equalization method.
func (g *GainEqualization) Method() EqualizationMethod { return g.cfg.Method }

// CreateSupport binds the step to its owner. Gain equalization only makes
// sense on a channel-structured configuration; anything else is a wiring
// bug upstream.
func (g *GainEqualization) CreateSupport(owner Owner) error {
	ch, ok := owner.(ChannelOwner)
	if !ok {
		return fmt.Errorf("corrections: gain equalization attached to %q which is not channel-structured", owner.Name())
	}
	calib, err := profile.NewChannelized(multiplicityProfile, ch.ChannelCount(), ch.UsedChannels(), ch.ChannelGroups())
	if err != nil {
		return fmt.Errorf("corrections: gain equalization on %q: %w", owner.Name(), err)
	}
	g.owner = ch
	g.calib = calib
	return nil
}

// AttachInput restores the multiplicity profile persisted by a previous
// pass. On success the step starts applying while it keeps collecting, and
// the hard-coded group weights are fetched from the owner.
func (g *GainEqualization) AttachInput(records []profile.BinRecord) (bool, error) {
	if len(records) == 0 {
		return false, nil
	}
	input, err := profile.ChannelizedFromRecords(multiplicityProfile,
		g.owner.ChannelCount(), g.owner.UsedChannels(), g.owner.ChannelGroups(), records)
	if err != nil {
		return false, fmt.Errorf("corrections: gain equalization on %q: %w", g.owner.Name(), err)
	}
	g.input = input
	g.hardWeights = g.owner.HardCodedGroupWeights()
	g.markAttached()
	log.Printf("Gain equalization on %s: calibration attached, now %s", g.owner.Name(), g.State())
	return true, nil
}

// Process runs the step for one event. While collecting it accumulates
// every sample's raw weight into the multiplicity profile; while applying
// it writes the equalized weight back onto each sample.
func (g *GainEqualization) Process(key string) bool {
	samples := g.owner.Samples()

	if g.State().Collecting() {
		for i := range samples {
			g.calib.Fill(key, samples[i].ChannelID, samples[i].Weight)
		}
	}
	if !g.State().Applying() {
		return false
	}

	switch g.cfg.Method {
	case EqualizeNone:
		for i := range samples {
			samples[i].EqualizedWeight = samples[i].Weight
		}
	case EqualizeAverage:
		for i := range samples {
			s := &samples[i]
			average := g.input.BinContent(key, s.ChannelID)
			if average < qvec.MinSignificantValue {
				// Channel deemed non-functional for this bin rather than
				// producing a huge unstable weight.
				s.EqualizedWeight = 0
				continue
			}
			s.EqualizedWeight = (s.Weight / average) * g.groupWeight(key, s.ChannelID)
		}
	case EqualizeWidth:
		for i := range samples {
			s := &samples[i]
			average := g.input.BinContent(key, s.ChannelID)
			width := g.input.BinError(key, s.ChannelID)
			if average < qvec.MinSignificantValue || width < qvec.MinSignificantValue {
				s.EqualizedWeight = 0
				continue
			}
			s.EqualizedWeight = (g.a + g.b*(s.Weight-average)/width) * g.groupWeight(key, s.ChannelID)
		}
	}
	return true
}

// groupWeight resolves the group weight for a channel: the group profile
// when enabled, else the hard-coded table, else 1.
func (g *GainEqualization) groupWeight(key string, channel int) float64 {
	if g.cfg.UseGroupWeights {
		return g.input.GroupWeight(key, channel)
	}
	if g.hardWeights != nil && channel >= 0 && channel < len(g.hardWeights) {
		return g.hardWeights[channel]
	}
	return 1
}

// ClearStep has no per-event working state to reset: equalized weights
// live on the samples, which the configuration clears at the event
// boundary.
func (g *GainEqualization) ClearStep() {}

// CalibrationSnapshot returns the multiplicity statistics collected this
// pass.
func (g *GainEqualization) CalibrationSnapshot() []profile.BinRecord {
	if g.calib == nil {
		return nil
	}
	return g.calib.Snapshot()
}
