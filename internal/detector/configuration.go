// Package detector models detector configurations: the unit that owns an
// event's sample bank, the flow vectors built from it, and the ordered
// correction steps applied to them. A physical detector can expose several
// configurations (different cuts, different harmonic sets); each is
// processed independently and shares nothing with its siblings.
package detector

import (
	"fmt"

	"github.com/banshee-data/flowvec/internal/corrections"
	"github.com/banshee-data/flowvec/internal/eventclass"
	"github.com/banshee-data/flowvec/internal/profile"
	"github.com/banshee-data/flowvec/internal/qvec"
)

// NormalizationMethod selects how the plain flow vector is scaled after
// accumulation.
type NormalizationMethod int

const (
	// NormalizationNone leaves the raw component sums.
	NormalizationNone NormalizationMethod = iota
	// NormalizationOverM divides by the sum of weights.
	NormalizationOverM
	// NormalizationOverSqrtM divides by the square root of the sum of
	// weights.
	NormalizationOverSqrtM
)

func (m NormalizationMethod) String() string {
	switch m {
	case NormalizationNone:
		return "none"
	case NormalizationOverM:
		return "overM"
	case NormalizationOverSqrtM:
		return "overSqrtM"
	default:
		return "unknown"
	}
}

// LoadFunc resolves the persisted calibration records for one step of one
// configuration. Empty records mean no prior calibration exists.
type LoadFunc func(configName, stepName string) ([]profile.BinRecord, error)

// StepSnapshot pairs a step name with the calibration statistics it
// collected this pass.
type StepSnapshot struct {
	Step    string
	Records []profile.BinRecord
}

// Configuration is the surface the corrections manager drives. Both
// concrete variants (track and channel configurations) implement it on top
// of corrections.Owner.
type Configuration interface {
	corrections.Owner
	// Variables is the event-classification axis set keying this
	// configuration's calibration.
	Variables() eventclass.VariableSet
	// InitializeSteps builds every step's support structures. Must run
	// after all steps are added and before the first event.
	InitializeSteps() error
	// AttachCalibration offers persisted calibration to every step and
	// returns how many attached.
	AttachCalibration(load LoadFunc) (int, error)
	// ProcessEvent runs the full per-event pipeline for the given
	// event-class bin key.
	ProcessEvent(key string)
	// ClearEvent resets the sample bank and every per-event vector for the
	// next event.
	ClearEvent()
	// Freeze stops calibration accumulation on every step.
	Freeze()
	// Report appends each step's name to the calibrating and/or applying
	// lists according to its state.
	Report(calibrating, applying *[]string)
	// Snapshots returns each step's collected calibration statistics.
	Snapshots() []StepSnapshot
}

// Config carries the construction parameters shared by both configuration
// variants.
type Config struct {
	Name string
	// Harmonics is the number of harmonics; HarmonicMap optionally lists
	// their external numbers (sparse sets).
	Harmonics   int
	HarmonicMap []int
	// Variables keys the calibration bins.
	Variables eventclass.VariableSet
	// Normalization scales the plain vector after accumulation.
	Normalization NormalizationMethod
}

// baseConfiguration implements the state and behavior common to both
// variants.
type baseConfiguration struct {
	name          string
	set           qvec.HarmonicSet
	variables     eventclass.VariableSet
	normalization NormalizationMethod

	plain   *qvec.BuildVector
	current *qvec.Vector
	samples []qvec.DataSample
	qSteps  corrections.QvectorStepSet
}

func newBaseConfiguration(cfg Config) (baseConfiguration, error) {
	if cfg.Name == "" {
		return baseConfiguration{}, fmt.Errorf("detector: configuration needs a name")
	}
	if len(cfg.Variables) == 0 {
		return baseConfiguration{}, fmt.Errorf("detector: configuration %q needs event-class variables", cfg.Name)
	}
	plain, err := qvec.NewBuildVector("plain", cfg.Harmonics, cfg.HarmonicMap)
	if err != nil {
		return baseConfiguration{}, fmt.Errorf("detector: configuration %q: %w", cfg.Name, err)
	}
	b := baseConfiguration{
		name:          cfg.Name,
		set:           plain.Harmonics(),
		variables:     cfg.Variables,
		normalization: cfg.Normalization,
		plain:         plain,
	}
	b.current = b.plainVector()
	return b, nil
}

// plainVector exposes the plain build vector through its Vector view.
func (b *baseConfiguration) plainVector() *qvec.Vector { return &b.plain.Vector }

// Name implements corrections.Owner.
func (b *baseConfiguration) Name() string { return b.name }

// Harmonics implements corrections.Owner.
func (b *baseConfiguration) Harmonics() qvec.HarmonicSet { return b.set }

// CurrentVector implements corrections.Owner: the vector after the
// corrections applied so far this event.
func (b *baseConfiguration) CurrentVector() *qvec.Vector { return b.current }

// UpdateCurrentVector implements corrections.Owner.
func (b *baseConfiguration) UpdateCurrentVector(v *qvec.Vector) { b.current = v }

// PreviousVector implements corrections.Owner: the corrected vector of the
// step before the given one, or the plain vector for the first step.
func (b *baseConfiguration) PreviousVector(step corrections.QvectorStep) *qvec.Vector {
	if prev := b.qSteps.Previous(step); prev != nil {
		return prev.CorrectedVector()
	}
	return b.plainVector()
}

// Samples implements corrections.Owner.
func (b *baseConfiguration) Samples() []qvec.DataSample { return b.samples }

// Variables returns the event-classification axes.
func (b *baseConfiguration) Variables() eventclass.VariableSet { return b.variables }

// AddQvectorStep appends a flow-vector correction, kept ordered by the
// step's sort key.
func (b *baseConfiguration) AddQvectorStep(step corrections.QvectorStep) {
	b.qSteps.Add(step)
}

// buildPlainVector folds the sample bank into the plain vector using the
// given per-sample weight, applies the configured normalization, and marks
// quality. The plain vector becomes the current vector.
func (b *baseConfiguration) buildPlainVector(weight func(*qvec.DataSample) float64) {
	b.plain.Reset()
	for i := range b.samples {
		b.plain.AccumulateAngle(b.samples[i].Phi, weight(&b.samples[i]))
	}
	switch b.normalization {
	case NormalizationOverM:
		b.plain.NormalizeOverM()
	case NormalizationOverSqrtM:
		b.plain.NormalizeOverSqrtM()
	}
	b.plain.SetGoodQuality(b.plain.EntryCount() > 0)
	b.current = b.plainVector()
}

// processQvectorSteps applies every flow-vector correction in order, then
// lets each step collect statistics. Collection runs after all corrections
// so every step's output vector holds this event's value.
func (b *baseConfiguration) processQvectorSteps(key string) {
	for _, step := range b.qSteps.Steps() {
		step.ProcessCorrections(key)
	}
	for _, step := range b.qSteps.Steps() {
		step.ProcessDataCollection(key)
	}
}

func (b *baseConfiguration) clearQvectorSteps() {
	for _, step := range b.qSteps.Steps() {
		step.ClearStep()
	}
	b.samples = b.samples[:0]
	b.plain.Reset()
	b.current = b.plainVector()
}

func (b *baseConfiguration) freezeQvectorSteps() {
	for _, step := range b.qSteps.Steps() {
		step.Freeze()
	}
}

func (b *baseConfiguration) reportQvectorSteps(calibrating, applying *[]string) {
	for _, step := range b.qSteps.Steps() {
		step.ReportUsage(calibrating, applying)
	}
}
