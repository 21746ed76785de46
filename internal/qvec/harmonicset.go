// Package qvec provides the harmonic flow-vector types used throughout the
// correction framework: the per-event Q vector, the accumulating build
// vector assembled from detector hits, and the per-hit data sample.
//
// Harmonic numbers are external: a vector configured with the map {2,4,6,8}
// carries exactly those four harmonics and nothing in between. The set of
// active harmonics is fixed by construction and shared by every vector of a
// detector configuration; mixing vectors with different harmonic structures
// is a wiring bug and is rejected.
package qvec

import (
	"fmt"
	"math/bits"
)

// MaxHarmonic is the highest harmonic number the framework supports.
// Harmonic 0 is unused; valid harmonics are 1..MaxHarmonic.
const MaxHarmonic = 15

// MinSignificantValue is the threshold below which weights and components
// are treated as zero to avoid dividing by near-zero noise.
const MinSignificantValue = 1e-6

// ConfigError reports a configuration wiring bug: a harmonic outside the
// supported range, mismatched harmonic structures, or a forbidden operation
// on a build vector. These indicate errors made before any event was
// processed and must abort the run.
type ConfigError struct {
	Op  string
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("qvec: %s: %s", e.Op, e.Msg)
}

// HarmonicSet is a fixed-size bit set over harmonic numbers 1..MaxHarmonic.
// The zero value is the empty set.
type HarmonicSet struct {
	mask uint16
}

// NewHarmonicSet builds the contiguous set {1..n}.
func NewHarmonicSet(n int) (HarmonicSet, error) {
	if n < 1 || n > MaxHarmonic {
		return HarmonicSet{}, &ConfigError{
			Op:  "NewHarmonicSet",
			Msg: fmt.Sprintf("requested %d harmonics but the framework supports 1..%d", n, MaxHarmonic),
		}
	}
	var s HarmonicSet
	for h := 1; h <= n; h++ {
		s.mask |= 1 << uint(h)
	}
	return s, nil
}

// NewHarmonicSetFromMap builds a set from an explicit ordered list of
// external harmonic numbers, e.g. {2,4,6,8}.
func NewHarmonicSetFromMap(harmonicMap []int) (HarmonicSet, error) {
	if len(harmonicMap) == 0 {
		return HarmonicSet{}, &ConfigError{Op: "NewHarmonicSetFromMap", Msg: "empty harmonic map"}
	}
	var s HarmonicSet
	for _, h := range harmonicMap {
		if h < 1 || h > MaxHarmonic {
			return HarmonicSet{}, &ConfigError{
				Op:  "NewHarmonicSetFromMap",
				Msg: fmt.Sprintf("harmonic %d outside supported range 1..%d", h, MaxHarmonic),
			}
		}
		s.mask |= 1 << uint(h)
	}
	return s, nil
}

// Contains reports whether harmonic h is in the set.
func (s HarmonicSet) Contains(h int) bool {
	if h < 1 || h > MaxHarmonic {
		return false
	}
	return s.mask&(1<<uint(h)) != 0
}

// Count returns the number of active harmonics.
func (s HarmonicSet) Count() int {
	return bits.OnesCount16(s.mask)
}

// Highest returns the largest harmonic in the set, or 0 for the empty set.
func (s HarmonicSet) Highest() int {
	if s.mask == 0 {
		return 0
	}
	return bits.Len16(s.mask) - 1
}

// First returns the smallest harmonic in the set, or -1 for the empty set.
// Together with Next it yields the canonical ascending iteration order.
func (s HarmonicSet) First() int {
	if s.mask == 0 {
		return -1
	}
	return bits.TrailingZeros16(s.mask)
}

// Next returns the smallest harmonic greater than h, or -1 when exhausted.
func (s HarmonicSet) Next(h int) int {
	if h < 0 || h >= MaxHarmonic {
		return -1
	}
	rest := s.mask &^ (1<<uint(h+1) - 1)
	if rest == 0 {
		return -1
	}
	return bits.TrailingZeros16(rest)
}

// Harmonics returns the active harmonics in ascending order.
func (s HarmonicSet) Harmonics() []int {
	out := make([]int, 0, s.Count())
	for h := s.First(); h != -1; h = s.Next(h) {
		out = append(out, h)
	}
	return out
}

// Equal reports whether both sets contain exactly the same harmonics.
func (s HarmonicSet) Equal(other HarmonicSet) bool {
	return s.mask == other.mask
}

// add extends the set in place. Internal: only Vector.Activate grows a set
// once it has been handed out.
func (s *HarmonicSet) add(h int) {
	s.mask |= 1 << uint(h)
}

func (s HarmonicSet) String() string {
	return fmt.Sprintf("%v", s.Harmonics())
}
