package corrections

import (
	"fmt"
	"log"

	"github.com/banshee-data/flowvec/internal/profile"
	"github.com/banshee-data/flowvec/internal/qvec"
)

const (
	recenteringName        = "Recentering and width equalization"
	recenteringKey         = "CCCC"
	recenteringProfileName = "Qn"
	recenteringVectorName  = "rec"
	notValidatedName       = "Rec NvE"
)

// DefaultMinEntriesToValidate is the minimum number of prior events a
// calibration bin needs before its statistics are trusted.
const DefaultMinEntriesToValidate = 2

// RecenteringConfig configures a recentering step.
type RecenteringConfig struct {
	// WidthEqualization additionally divides each component by its
	// calibrated dispersion.
	WidthEqualization bool
	// MinEntriesToValidate overrides DefaultMinEntriesToValidate when > 0.
	MinEntriesToValidate int64
}

// Recentering subtracts the calibrated mean of each harmonic's components
// from the current flow vector, optionally scaling by the calibrated
// width, removing the average detector-acceptance bias.
type Recentering struct {
	StepBase
	widthEqualization bool
	minEntries        int64
	owner             Owner

	inputVector  *qvec.Vector        // previous step's output, statistics source
	corrected    *qvec.Vector        // this step's output
	input        *profile.Components // attached from a previous pass
	calib        *profile.Components // filling this pass
	notValidated *profile.SparseCounter
}

// NewRecentering creates a recentering step.
func NewRecentering(cfg RecenteringConfig) *Recentering {
	minEntries := cfg.MinEntriesToValidate
	if minEntries <= 0 {
		minEntries = DefaultMinEntriesToValidate
	}
	return &Recentering{
		StepBase:          NewStepBase(recenteringName, recenteringKey),
		widthEqualization: cfg.WidthEqualization,
		minEntries:        minEntries,
	}
}

// CreateSupport binds the step to its owner: builds the output vector with
// the owner's harmonic structure, resolves the statistics input vector and
// allocates this pass's calibration profile.
func (r *Recentering) CreateSupport(owner Owner) error {
	if owner.Harmonics().Count() == 0 {
		return fmt.Errorf("corrections: recentering on %q: no harmonics configured", owner.Name())
	}
	r.owner = owner
	r.corrected = qvec.NewVectorFromSet(recenteringVectorName, owner.Harmonics())
	r.inputVector = owner.PreviousVector(r)
	r.calib = profile.NewComponents(recenteringProfileName, owner.Harmonics(), r.minEntries)
	r.notValidated = profile.NewSparseCounter(notValidatedName)
	return nil
}

// AttachInput restores the component profile persisted by a previous pass.
// On success the step starts applying while it keeps collecting.
func (r *Recentering) AttachInput(records []profile.BinRecord) (bool, error) {
	if len(records) == 0 {
		return false, nil
	}
	input, err := profile.ComponentsFromRecords(recenteringProfileName, r.owner.Harmonics(), r.minEntries, records)
	if err != nil {
		return false, fmt.Errorf("corrections: recentering on %q: %w", r.owner.Name(), err)
	}
	r.input = input
	r.markAttached()
	log.Printf("Recentering on %s: calibration attached, now %s", r.owner.Name(), r.State())
	return true, nil
}

// ProcessCorrections applies the correction to the configuration's current
// vector and publishes the result, which composes with downstream steps.
func (r *Recentering) ProcessCorrections(key string) bool {
	if !r.State().Applying() {
		return false
	}
	current := r.owner.CurrentVector()
	if !current.IsGoodQuality() {
		// Propagate the bad quality; no arithmetic on unusable input.
		r.corrected.SetGoodQuality(false)
		r.owner.UpdateCurrentVector(r.corrected)
		return true
	}
	if err := r.corrected.CopyFrom(current, false); err != nil {
		panic(err) // structures are fixed at CreateSupport; cannot differ
	}
	if r.input.Validated(key) {
		for h := current.Harmonics().First(); h != -1; h = current.Harmonics().Next(h) {
			widthX, widthY := 1.0, 1.0
			if r.widthEqualization {
				if w := r.input.BinError(key, h, profile.AxisX); w > qvec.MinSignificantValue {
					widthX = w
				}
				if w := r.input.BinError(key, h, profile.AxisY); w > qvec.MinSignificantValue {
					widthY = w
				}
			}
			r.corrected.SetX(h, (current.X(h)-r.input.BinContent(key, h, profile.AxisX))/widthX)
			r.corrected.SetY(h, (current.Y(h)-r.input.BinContent(key, h, profile.AxisY))/widthY)
		}
	} else {
		// Calibration exists but is statistically insufficient for this
		// bin: pass the vector through and record the event.
		r.notValidated.Inc(key)
	}
	r.owner.UpdateCurrentVector(r.corrected)
	return true
}

// ProcessDataCollection accumulates the previous-stage vector's components
// into the calibration profile, provided the vector carries usable
// information.
func (r *Recentering) ProcessDataCollection(key string) bool {
	if r.State().Collecting() && r.inputVector.IsGoodQuality() {
		for h := r.inputVector.Harmonics().First(); h != -1; h = r.inputVector.Harmonics().Next(h) {
			r.calib.FillX(key, h, r.inputVector.X(h))
			r.calib.FillY(key, h, r.inputVector.Y(h))
		}
	}
	return r.State().Applying()
}

// CorrectedVector returns the step's output vector.
func (r *Recentering) CorrectedVector() *qvec.Vector { return r.corrected }

// ClearStep resets the output vector for the next event. Calibration
// statistics are untouched.
func (r *Recentering) ClearStep() {
	r.corrected.Reset()
}

// CalibrationSnapshot returns the component statistics collected this
// pass.
func (r *Recentering) CalibrationSnapshot() []profile.BinRecord {
	if r.calib == nil {
		return nil
	}
	return r.calib.Snapshot()
}

// NotValidatedCount returns how many events fell into statistically
// insufficient bins, total or per bin via the counter.
func (r *Recentering) NotValidatedCount() int64 {
	return r.notValidated.Total()
}

// NotValidated exposes the diagnostic counter for QA output.
func (r *Recentering) NotValidated() *profile.SparseCounter { return r.notValidated }
