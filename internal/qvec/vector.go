package qvec

import (
	"fmt"
	"math"
)

// Vector is a per-event harmonic flow vector: one (X,Y) pair per active
// harmonic plus a quality flag. The harmonic structure is fixed at
// construction; values are reset to zero at every event boundary.
//
// Components of inactive harmonics are always zero and never exposed.
type Vector struct {
	name string
	set  HarmonicSet
	x    [MaxHarmonic + 1]float64
	y    [MaxHarmonic + 1]float64
	good bool
}

// NewVector creates a vector carrying n harmonics. When harmonicMap is nil
// the harmonics are {1..n}; otherwise harmonicMap lists the external
// harmonic numbers and n must equal len(harmonicMap).
func NewVector(name string, n int, harmonicMap []int) (*Vector, error) {
	var set HarmonicSet
	var err error
	if harmonicMap == nil {
		set, err = NewHarmonicSet(n)
	} else {
		if len(harmonicMap) != n {
			return nil, &ConfigError{
				Op:  "NewVector",
				Msg: fmt.Sprintf("harmonic map with %d entries but %d harmonics requested", len(harmonicMap), n),
			}
		}
		set, err = NewHarmonicSetFromMap(harmonicMap)
	}
	if err != nil {
		return nil, err
	}
	return &Vector{name: name, set: set}, nil
}

// NewVectorFromSet creates a vector sharing an already validated harmonic
// set, the way correction steps derive their output vectors from the
// detector configuration's structure.
func NewVectorFromSet(name string, set HarmonicSet) *Vector {
	return &Vector{name: name, set: set}
}

// Name returns the vector's display name, identifying its origin
// (the detector configuration or the correction step that produced it).
func (v *Vector) Name() string { return v.name }

// SetName changes the display name.
func (v *Vector) SetName(name string) { v.name = name }

// Harmonics returns the vector's harmonic set.
func (v *Vector) Harmonics() HarmonicSet { return v.set }

// IsGoodQuality reports whether the vector carries usable information.
func (v *Vector) IsGoodQuality() bool { return v.good }

// SetGoodQuality marks the vector quality.
func (v *Vector) SetGoodQuality(good bool) { v.good = good }

// Activate adds harmonic h to the vector's structure, zeroing its
// components. Activating an already active harmonic is a no-op.
func (v *Vector) Activate(h int) error {
	if h < 1 || h > MaxHarmonic {
		return &ConfigError{
			Op:  "Activate",
			Msg: fmt.Sprintf("requested harmonic %d but the highest harmonic supported by the framework is %d", h, MaxHarmonic),
		}
	}
	if v.set.Contains(h) {
		return nil
	}
	v.set.add(h)
	v.x[h] = 0
	v.y[h] = 0
	return nil
}

// X returns the X component for harmonic h. Inactive harmonics read zero.
func (v *Vector) X(h int) float64 {
	if h < 0 || h > MaxHarmonic {
		return 0
	}
	return v.x[h]
}

// Y returns the Y component for harmonic h. Inactive harmonics read zero.
func (v *Vector) Y(h int) float64 {
	if h < 0 || h > MaxHarmonic {
		return 0
	}
	return v.y[h]
}

// SetX stores the X component for harmonic h.
func (v *Vector) SetX(h int, value float64) {
	if !v.set.Contains(h) {
		panic(&ConfigError{Op: "SetX", Msg: fmt.Sprintf("harmonic %d is not active", h)})
	}
	v.x[h] = value
}

// SetY stores the Y component for harmonic h.
func (v *Vector) SetY(h int, value float64) {
	if !v.set.Contains(h) {
		panic(&ConfigError{Op: "SetY", Msg: fmt.Sprintf("harmonic %d is not active", h)})
	}
	v.y[h] = value
}

// Length returns the modulus sqrt(x²+y²) for harmonic h.
func (v *Vector) Length(h int) float64 {
	return math.Hypot(v.x[h], v.y[h])
}

// Normalize replaces each active harmonic's components with the
// corresponding unit vector. Harmonics whose modulus is below the
// significance threshold are left untouched so no NaN can propagate.
func (v *Vector) Normalize() {
	for h := v.set.First(); h != -1; h = v.set.Next(h) {
		r := v.Length(h)
		if r < MinSignificantValue {
			continue
		}
		v.x[h] /= r
		v.y[h] /= r
	}
}

// Reset zeroes all components and clears the quality flag. The harmonic
// structure is untouched.
func (v *Vector) Reset() {
	v.x = [MaxHarmonic + 1]float64{}
	v.y = [MaxHarmonic + 1]float64{}
	v.good = false
}

// CopyFrom copies all components and the quality flag from other. The
// harmonic structures must match bit for bit; a mismatch is a wiring bug
// and nothing is copied. When rename is true the display name is copied
// as well.
func (v *Vector) CopyFrom(other *Vector, rename bool) error {
	if !v.set.Equal(other.set) {
		return &ConfigError{
			Op: "CopyFrom",
			Msg: fmt.Sprintf("harmonic structures do not match: %v vs %v",
				v.set.Harmonics(), other.set.Harmonics()),
		}
	}
	v.x = other.x
	v.y = other.y
	v.good = other.good
	if rename {
		v.name = other.name
	}
	return nil
}

// EventPlane returns the event-plane angle atan2(y,x)/h for harmonic h, or
// zero when both components are below the significance threshold.
func (v *Vector) EventPlane(h int) float64 {
	if math.Abs(v.X(h)) < MinSignificantValue && math.Abs(v.Y(h)) < MinSignificantValue {
		return 0
	}
	return math.Atan2(v.Y(h), v.X(h)) / float64(h)
}

func (v *Vector) String() string {
	s := fmt.Sprintf("Q vector %q quality=%v", v.name, v.good)
	for h := v.set.First(); h != -1; h = v.set.Next(h) {
		s += fmt.Sprintf(" h%d=(%g,%g)", h, v.x[h], v.y[h])
	}
	return s
}
