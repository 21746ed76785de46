// Package corrections implements the correction steps applied to each
// event's flow vectors and input data, and the calibration state machine
// they share.
//
// Every step moves through three states. In StateCalibration it only
// accumulates statistics; its output equals its input. A step that attaches
// to calibration persisted by a previous pass moves to StateApplyCollect,
// where it keeps accumulating while also applying the attached correction.
// StateApply is entered when the campaign freezes calibration accumulation
// for a final pass.
package corrections

// State is the calibration/apply phase of a correction step.
type State int

const (
	// StateCalibration collects statistics only; no correction is applied.
	StateCalibration State = iota
	// StateApplyCollect applies corrections from a previous pass while
	// collecting statistics for the next one.
	StateApplyCollect
	// StateApply applies corrections only; accumulation is frozen.
	StateApply
)

func (s State) String() string {
	switch s {
	case StateCalibration:
		return "calibration"
	case StateApplyCollect:
		return "apply+collect"
	case StateApply:
		return "apply"
	default:
		return "unknown"
	}
}

// Collecting reports whether a step in this state accumulates calibration
// statistics from the current event.
func (s State) Collecting() bool {
	return s == StateCalibration || s == StateApplyCollect
}

// Applying reports whether a step in this state produces a corrected
// output.
func (s State) Applying() bool {
	return s == StateApplyCollect || s == StateApply
}
