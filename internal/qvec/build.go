package qvec

import (
	"fmt"
	"math"
)

// BuildVector accumulates per-hit contributions into a flow vector while an
// event is being assembled. On top of the plain Vector it tracks the sum of
// weights and the number of contributing samples, which the normalization
// modes need.
//
// Components may only change through accumulation or Reset: SetX and SetY
// are forbidden so the sum/count invariant cannot be broken.
type BuildVector struct {
	Vector
	sumW float64
	n    int
}

// NewBuildVector creates a build vector with the same harmonic structure
// rules as NewVector.
func NewBuildVector(name string, n int, harmonicMap []int) (*BuildVector, error) {
	v, err := NewVector(name, n, harmonicMap)
	if err != nil {
		return nil, err
	}
	return &BuildVector{Vector: *v}, nil
}

// NewBuildVectorFromSet creates a build vector sharing an already
// validated harmonic set.
func NewBuildVectorFromSet(name string, set HarmonicSet) *BuildVector {
	return &BuildVector{Vector: *NewVectorFromSet(name, set)}
}

// SumOfWeights returns the accumulated weight sum.
func (b *BuildVector) SumOfWeights() float64 { return b.sumW }

// EntryCount returns the number of accumulated angle samples.
func (b *BuildVector) EntryCount() int { return b.n }

// AccumulateAngle adds one detected angle with the given weight: for every
// active harmonic h the contribution (w·cos(h·phi), w·sin(h·phi)) is summed.
func (b *BuildVector) AccumulateAngle(phi, weight float64) {
	for h := b.set.First(); h != -1; h = b.set.Next(h) {
		b.x[h] += weight * math.Cos(float64(h)*phi)
		b.y[h] += weight * math.Sin(float64(h)*phi)
	}
	b.sumW += weight
	b.n++
}

// Add merges another build vector into this one: componentwise sum over the
// active harmonics plus the weight sum and sample count. Used to merge
// sub-detector contributions; both vectors must share harmonic structure.
func (b *BuildVector) Add(other *BuildVector) error {
	if !b.set.Equal(other.set) {
		return &ConfigError{
			Op: "Add",
			Msg: fmt.Sprintf("harmonic structures do not match: %v vs %v",
				b.set.Harmonics(), other.set.Harmonics()),
		}
	}
	for h := b.set.First(); h != -1; h = b.set.Next(h) {
		b.x[h] += other.x[h]
		b.y[h] += other.y[h]
	}
	b.sumW += other.sumW
	b.n += other.n
	return nil
}

// NormalizeOverM divides every component by the sum of weights. Below the
// significance threshold the call is a no-op.
func (b *BuildVector) NormalizeOverM() {
	if b.sumW < MinSignificantValue {
		return
	}
	for h := b.set.First(); h != -1; h = b.set.Next(h) {
		b.x[h] /= b.sumW
		b.y[h] /= b.sumW
	}
}

// NormalizeOverSqrtM divides every component by the square root of the sum
// of weights. Below the significance threshold the call is a no-op.
func (b *BuildVector) NormalizeOverSqrtM() {
	if b.sumW < MinSignificantValue {
		return
	}
	root := math.Sqrt(b.sumW)
	for h := b.set.First(); h != -1; h = b.set.Next(h) {
		b.x[h] /= root
		b.y[h] /= root
	}
}

// Reset zeroes components, quality, the weight sum and the sample count.
func (b *BuildVector) Reset() {
	b.Vector.Reset()
	b.sumW = 0
	b.n = 0
}

// SetX is forbidden on a build vector.
func (b *BuildVector) SetX(int, float64) {
	panic(&ConfigError{Op: "SetX", Msg: "forbidden on a build vector; use AccumulateAngle or Add"})
}

// SetY is forbidden on a build vector.
func (b *BuildVector) SetY(int, float64) {
	panic(&ConfigError{Op: "SetY", Msg: "forbidden on a build vector; use AccumulateAngle or Add"})
}
