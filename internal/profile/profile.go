// Package profile implements the calibration accumulators behind the
// correction steps: per-harmonic component profiles, per-channel
// multiplicity profiles and sparse diagnostic counters, all keyed by
// event-class bin.
//
// Each bin tracks entry count, sum and sum of squares, so bin content is
// the mean of the accumulated quantity and bin error its standard
// deviation. Profiles with identical structure can be merged, which is how
// calibration statistics accumulate across independent processing passes.
package profile

import (
	"fmt"
	"math"
)

// Axis selects the X or Y component of a harmonic profile.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

// Kind tags the snapshot records of the different profile types.
type Kind string

const (
	KindComponents Kind = "components"
	KindChannel    Kind = "channel"
	KindGroup      Kind = "group"
	KindCounter    Kind = "counter"
)

// BinRecord is one flattened profile bin, the unit of persistence and
// cross-pass merging. Fields that do not apply to a record kind hold their
// zero value (Channel is -1 when not channelized).
type BinRecord struct {
	Kind     Kind
	BinKey   string
	Channel  int
	Harmonic int
	Axis     string
	N        int64
	Sum      float64
	SumSq    float64
}

// Mean returns the record's bin content, zero for an empty bin.
func (r BinRecord) Mean() float64 {
	return binStats{n: r.N, sum: r.Sum, sumSq: r.SumSq}.mean()
}

// Width returns the standard deviation of the record's bin, zero for an
// empty bin.
func (r BinRecord) Width() float64 {
	return binStats{n: r.N, sum: r.Sum, sumSq: r.SumSq}.stdDev()
}

// binStats accumulates the running moments of one profile bin.
type binStats struct {
	n     int64
	sum   float64
	sumSq float64
}

func (b *binStats) add(v float64) {
	b.n++
	b.sum += v
	b.sumSq += v * v
}

func (b *binStats) merge(o binStats) {
	b.n += o.n
	b.sum += o.sum
	b.sumSq += o.sumSq
}

// mean returns the bin content, zero for an empty bin.
func (b binStats) mean() float64 {
	if b.n == 0 {
		return 0
	}
	return b.sum / float64(b.n)
}

// stdDev returns the population standard deviation of the accumulated
// values, zero for an empty bin. Rounding can drive the variance a hair
// negative; clamp it.
func (b binStats) stdDev() float64 {
	if b.n == 0 {
		return 0
	}
	m := b.mean()
	variance := b.sumSq/float64(b.n) - m*m
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func structureMismatch(what, a, b string) error {
	return fmt.Errorf("profile: cannot merge %s: structures differ (%s vs %s)", what, a, b)
}
