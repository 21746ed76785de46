package corrections

import (
	"sort"

	"github.com/banshee-data/flowvec/internal/profile"
	"github.com/banshee-data/flowvec/internal/qvec"
)

// Owner is the surface a correction step needs from the detector
// configuration that owns it. The interface lives here, on the consumer
// side, so detector configurations can depend on corrections without a
// cycle.
type Owner interface {
	// Name identifies the detector configuration in logs and persistence.
	Name() string
	// Harmonics is the configuration's harmonic structure; every vector a
	// step creates shares it.
	Harmonics() qvec.HarmonicSet
	// CurrentVector is the configuration's vector after the corrections
	// applied so far this event.
	CurrentVector() *qvec.Vector
	// UpdateCurrentVector publishes a step's output as the new current
	// vector for the next step in the pipeline.
	UpdateCurrentVector(v *qvec.Vector)
	// PreviousVector returns the corrected vector of the step preceding the
	// given one, or the plain vector for the first step. Steps accumulate
	// calibration statistics from this vector.
	PreviousVector(step QvectorStep) *qvec.Vector
	// Samples is the event's input data bank. Elements may be mutated in
	// place (gain equalization writes equalized weights back).
	Samples() []qvec.DataSample
}

// ChannelOwner extends Owner with the channel structure that input-data
// corrections require.
type ChannelOwner interface {
	Owner
	// ChannelCount is the number of detector channels.
	ChannelCount() int
	// UsedChannels marks which channels participate; nil means all.
	UsedChannels() []bool
	// ChannelGroups maps each channel to its gain group; nil when the
	// detector has no grouping.
	ChannelGroups() []int
	// HardCodedGroupWeights is the per-channel weight table used when group
	// weight histograms are disabled; nil when not supplied.
	HardCodedGroupWeights() []float64
}

// Step is the contract shared by every correction step.
type Step interface {
	// Name is the human-readable step name used in usage reports.
	Name() string
	// SortKey orders steps within a pipeline.
	SortKey() string
	// State returns the step's calibration/apply state.
	State() State
	// CreateSupport binds the step to its owner configuration and builds
	// the per-pass working structures.
	CreateSupport(owner Owner) error
	// AttachInput binds previously persisted calibration to the step. A
	// successful attach (non-empty records) moves a calibrating step to
	// StateApplyCollect. Returns whether the attach took effect.
	AttachInput(records []profile.BinRecord) (bool, error)
	// Freeze stops calibration accumulation: StateApplyCollect becomes
	// StateApply. Steps still in StateCalibration stay there; they have
	// nothing to apply.
	Freeze()
	// ReportUsage appends the step name to the calibrating list if the
	// step is accumulating statistics and to the applying list if it is
	// producing corrected output. Returns whether it is applying.
	ReportUsage(calibrating, applying *[]string) bool
	// ClearStep resets the step's per-event working state without touching
	// its calibration statistics.
	ClearStep()
	// CalibrationSnapshot returns the statistics collected this pass, for
	// persistence.
	CalibrationSnapshot() []profile.BinRecord
}

// QvectorStep corrects the configuration's flow vector.
type QvectorStep interface {
	Step
	// ProcessCorrections applies the step for the event in the given
	// event-class bin and publishes its output vector. Returns whether a
	// correction was applied.
	ProcessCorrections(key string) bool
	// ProcessDataCollection accumulates calibration statistics for the
	// event. Returns whether the step applied a correction this event.
	ProcessDataCollection(key string) bool
	// CorrectedVector is the step's output vector.
	CorrectedVector() *qvec.Vector
}

// InputStep corrects the input data bank before the flow vector is built.
type InputStep interface {
	Step
	// Process accumulates statistics and/or equalizes the event's samples
	// according to the step state. Returns whether a correction was
	// applied.
	Process(key string) bool
}

// StepBase carries the identity and state shared by all steps.
type StepBase struct {
	name    string
	sortKey string
	state   State
}

// NewStepBase initializes the identity of a step. Steps start in
// StateCalibration.
func NewStepBase(name, sortKey string) StepBase {
	return StepBase{name: name, sortKey: sortKey, state: StateCalibration}
}

// Name returns the step name.
func (b *StepBase) Name() string { return b.name }

// SortKey returns the pipeline ordering key.
func (b *StepBase) SortKey() string { return b.sortKey }

// State returns the current step state.
func (b *StepBase) State() State { return b.state }

// Freeze moves StateApplyCollect to StateApply.
func (b *StepBase) Freeze() {
	if b.state == StateApplyCollect {
		b.state = StateApply
	}
}

// ReportUsage implements the shared reporting contract from the state.
func (b *StepBase) ReportUsage(calibrating, applying *[]string) bool {
	if b.state.Collecting() {
		*calibrating = append(*calibrating, b.name)
	}
	if b.state.Applying() {
		*applying = append(*applying, b.name)
	}
	return b.state.Applying()
}

// markAttached records a successful calibration attach.
func (b *StepBase) markAttached() {
	if b.state == StateCalibration {
		b.state = StateApplyCollect
	}
}

// QvectorStepSet is the ordered list of Q-vector corrections of one
// detector configuration.
type QvectorStepSet struct {
	steps []QvectorStep
}

// Add inserts a step keeping the set sorted by SortKey; equal keys keep
// insertion order.
func (s *QvectorStepSet) Add(step QvectorStep) {
	i := sort.Search(len(s.steps), func(i int) bool {
		return s.steps[i].SortKey() > step.SortKey()
	})
	s.steps = append(s.steps, nil)
	copy(s.steps[i+1:], s.steps[i:])
	s.steps[i] = step
}

// Steps returns the ordered steps.
func (s *QvectorStepSet) Steps() []QvectorStep { return s.steps }

// Previous returns the step preceding the given one, or nil for the first
// step (or an unknown step).
func (s *QvectorStepSet) Previous(step QvectorStep) QvectorStep {
	for i, st := range s.steps {
		if st == step {
			if i == 0 {
				return nil
			}
			return s.steps[i-1]
		}
	}
	return nil
}

// InputStepSet is the ordered list of input-data corrections of one
// detector configuration.
type InputStepSet struct {
	steps []InputStep
}

// Add inserts a step keeping the set sorted by SortKey.
func (s *InputStepSet) Add(step InputStep) {
	i := sort.Search(len(s.steps), func(i int) bool {
		return s.steps[i].SortKey() > step.SortKey()
	})
	s.steps = append(s.steps, nil)
	copy(s.steps[i+1:], s.steps[i:])
	s.steps[i] = step
}

// Steps returns the ordered steps.
func (s *InputStepSet) Steps() []InputStep { return s.steps }
