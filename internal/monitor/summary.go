package monitor

import (
	"github.com/banshee-data/flowvec/internal/profile"
	"github.com/banshee-data/flowvec/internal/qvec"
)

// ComponentSummary reports how one harmonic component's calibrated mean
// varies across the event-class bins of a step.
type ComponentSummary struct {
	Harmonic int
	Axis     profile.Axis
	Mean     float64
	Spread   float64
}

// SummarizeComponents condenses the component records of one step into a
// per-harmonic QA summary. A large spread across bins flags a calibration
// that drifts with the event class. Returns nil when the records hold no
// component bins.
func SummarizeComponents(name string, records []profile.BinRecord) ([]ComponentSummary, error) {
	seen := make(map[int]bool)
	var harmonics []int
	for _, r := range records {
		if r.Kind != profile.KindComponents || seen[r.Harmonic] {
			continue
		}
		seen[r.Harmonic] = true
		harmonics = append(harmonics, r.Harmonic)
	}
	if len(harmonics) == 0 {
		return nil, nil
	}

	set, err := qvec.NewHarmonicSetFromMap(harmonics)
	if err != nil {
		return nil, err
	}
	p, err := profile.ComponentsFromRecords(name, set, 0, records)
	if err != nil {
		return nil, err
	}

	var out []ComponentSummary
	for h := set.First(); h != -1; h = set.Next(h) {
		for _, axis := range []profile.Axis{profile.AxisX, profile.AxisY} {
			mean, spread := p.Summary(h, axis)
			out = append(out, ComponentSummary{Harmonic: h, Axis: axis, Mean: mean, Spread: spread})
		}
	}
	return out, nil
}
