package profile

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/flowvec/internal/qvec"
)

// Components is the per-harmonic (X,Y) profile a recentering step keeps:
// for every event-class bin and every active harmonic it accumulates the
// distribution of the input vector's components.
type Components struct {
	name       string
	set        qvec.HarmonicSet
	minEntries int64
	bins       map[string]*componentBin
}

type componentBin struct {
	x [qvec.MaxHarmonic + 1]binStats
	y [qvec.MaxHarmonic + 1]binStats
}

// NewComponents creates a component profile over the given harmonic set.
// minEntries is the validation threshold: bins with fewer entries are
// statistically insufficient and must not drive corrections.
func NewComponents(name string, set qvec.HarmonicSet, minEntries int64) *Components {
	return &Components{
		name:       name,
		set:        set,
		minEntries: minEntries,
		bins:       make(map[string]*componentBin),
	}
}

// Name returns the profile name.
func (p *Components) Name() string { return p.name }

// Harmonics returns the harmonic set the profile covers.
func (p *Components) Harmonics() qvec.HarmonicSet { return p.set }

// SetMinEntries changes the validation threshold.
func (p *Components) SetMinEntries(n int64) { p.minEntries = n }

func (p *Components) bin(key string) *componentBin {
	b, ok := p.bins[key]
	if !ok {
		b = &componentBin{}
		p.bins[key] = b
	}
	return b
}

// FillX accumulates an X component value for harmonic h in the given bin.
func (p *Components) FillX(key string, h int, value float64) {
	if !p.set.Contains(h) {
		return
	}
	p.bin(key).x[h].add(value)
}

// FillY accumulates a Y component value for harmonic h in the given bin.
func (p *Components) FillY(key string, h int, value float64) {
	if !p.set.Contains(h) {
		return
	}
	p.bin(key).y[h].add(value)
}

// BinContent returns the mean of the accumulated component for the given
// bin, harmonic and axis; zero for bins never filled.
func (p *Components) BinContent(key string, h int, axis Axis) float64 {
	b, ok := p.bins[key]
	if !ok {
		return 0
	}
	if axis == AxisX {
		return b.x[h].mean()
	}
	return b.y[h].mean()
}

// BinError returns the standard deviation of the accumulated component,
// interpreted as the calibrated width.
func (p *Components) BinError(key string, h int, axis Axis) float64 {
	b, ok := p.bins[key]
	if !ok {
		return 0
	}
	if axis == AxisX {
		return b.x[h].stdDev()
	}
	return b.y[h].stdDev()
}

// Entries returns the entry count of the bin. All harmonics of a bin are
// filled together once per event, so the first active harmonic's X axis is
// representative.
func (p *Components) Entries(key string) int64 {
	b, ok := p.bins[key]
	if !ok {
		return 0
	}
	first := p.set.First()
	if first == -1 {
		return 0
	}
	return b.x[first].n
}

// Validated reports whether the bin holds enough statistics to be trusted.
func (p *Components) Validated(key string) bool {
	return p.Entries(key) >= p.minEntries
}

// Snapshot flattens the profile into persistable bin records, ordered by
// bin key for deterministic output.
func (p *Components) Snapshot() []BinRecord {
	keys := make([]string, 0, len(p.bins))
	for k := range p.bins {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []BinRecord
	for _, key := range keys {
		b := p.bins[key]
		for h := p.set.First(); h != -1; h = p.set.Next(h) {
			for _, ax := range []Axis{AxisX, AxisY} {
				s := b.x[h]
				if ax == AxisY {
					s = b.y[h]
				}
				if s.n == 0 {
					continue
				}
				out = append(out, BinRecord{
					Kind:     KindComponents,
					BinKey:   key,
					Channel:  -1,
					Harmonic: h,
					Axis:     ax.String(),
					N:        s.n,
					Sum:      s.sum,
					SumSq:    s.sumSq,
				})
			}
		}
	}
	return out
}

// ComponentsFromRecords rebuilds a component profile from snapshot records.
// Records for harmonics outside the given set are a structure mismatch.
func ComponentsFromRecords(name string, set qvec.HarmonicSet, minEntries int64, records []BinRecord) (*Components, error) {
	p := NewComponents(name, set, minEntries)
	for _, r := range records {
		if r.Kind != KindComponents {
			continue
		}
		if !set.Contains(r.Harmonic) {
			return nil, fmt.Errorf("profile: record for harmonic %d outside configured set %v", r.Harmonic, set.Harmonics())
		}
		b := p.bin(r.BinKey)
		s := binStats{n: r.N, sum: r.Sum, sumSq: r.SumSq}
		switch r.Axis {
		case "x":
			b.x[r.Harmonic].merge(s)
		case "y":
			b.y[r.Harmonic].merge(s)
		default:
			return nil, fmt.Errorf("profile: record with unknown axis %q", r.Axis)
		}
	}
	return p, nil
}

// Merge folds another component profile into this one. Both must cover the
// same harmonic set.
func (p *Components) Merge(other *Components) error {
	if !p.set.Equal(other.set) {
		return structureMismatch("component profiles", p.set.String(), other.set.String())
	}
	for key, ob := range other.bins {
		b := p.bin(key)
		for h := p.set.First(); h != -1; h = p.set.Next(h) {
			b.x[h].merge(ob.x[h])
			b.y[h].merge(ob.y[h])
		}
	}
	return nil
}

// BinKeys returns the filled bin keys in sorted order.
func (p *Components) BinKeys() []string {
	keys := make([]string, 0, len(p.bins))
	for k := range p.bins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary returns the mean and spread of the bin contents across all
// filled bins for one harmonic and axis. QA reporting uses it to spot
// drifting calibrations.
func (p *Components) Summary(h int, axis Axis) (mean, spread float64) {
	means := make([]float64, 0, len(p.bins))
	for key := range p.bins {
		means = append(means, p.BinContent(key, h, axis))
	}
	if len(means) == 0 {
		return 0, 0
	}
	mean = stat.Mean(means, nil)
	if len(means) > 1 {
		spread = stat.StdDev(means, nil)
	}
	return mean, spread
}
