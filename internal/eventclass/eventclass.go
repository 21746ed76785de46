// Package eventclass maps event-level variables (centrality, vertex
// position, ...) onto calibration bins. Each correction step keys its
// statistics by the bin an event falls into, so events that share detector
// conditions are calibrated together.
package eventclass

import (
	"fmt"
	"strconv"
	"strings"
)

// Variable describes one event-classification axis: which entry of the
// per-event variable container it reads and the bin edges that partition it.
type Variable struct {
	// VarID indexes the per-event variable container.
	VarID int
	// Label names the variable in reports and QA output.
	Label string
	// Edges are the ascending bin edges; len(Edges)-1 bins. A value v falls
	// in bin i when Edges[i] <= v < Edges[i+1].
	Edges []float64
}

// NewUniformVariable builds a variable with nBins equal-width bins over
// [min, max).
func NewUniformVariable(varID int, label string, nBins int, min, max float64) (Variable, error) {
	if nBins < 1 {
		return Variable{}, fmt.Errorf("eventclass: variable %q needs at least one bin, got %d", label, nBins)
	}
	if max <= min {
		return Variable{}, fmt.Errorf("eventclass: variable %q has empty range [%g, %g)", label, min, max)
	}
	edges := make([]float64, nBins+1)
	width := (max - min) / float64(nBins)
	for i := range edges {
		edges[i] = min + float64(i)*width
	}
	edges[nBins] = max
	return Variable{VarID: varID, Label: label, Edges: edges}, nil
}

// NewVariable builds a variable with explicit ascending bin edges.
func NewVariable(varID int, label string, edges []float64) (Variable, error) {
	if len(edges) < 2 {
		return Variable{}, fmt.Errorf("eventclass: variable %q needs at least two edges", label)
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return Variable{}, fmt.Errorf("eventclass: variable %q has non-ascending edges at %d", label, i)
		}
	}
	return Variable{VarID: varID, Label: label, Edges: edges}, nil
}

// Bins returns the number of bins on this axis.
func (v Variable) Bins() int { return len(v.Edges) - 1 }

// Bin returns the bin index for value, or ok=false when the value lies
// outside the axis range.
func (v Variable) Bin(value float64) (int, bool) {
	if value < v.Edges[0] || value >= v.Edges[len(v.Edges)-1] {
		return 0, false
	}
	// Edge lists are short (typically < 20 bins); a linear scan beats the
	// bookkeeping of a binary search here.
	for i := 1; i < len(v.Edges); i++ {
		if value < v.Edges[i] {
			return i - 1, true
		}
	}
	return 0, false
}

// VariableSet is the ordered list of classification axes for a detector
// configuration.
type VariableSet []Variable

// Key flattens the per-axis bin indices for the given variable container
// into a single calibration bin key. ok is false when any variable falls
// outside its axis range; such events carry no usable calibration bin.
func (s VariableSet) Key(vars []float64) (string, bool) {
	if len(s) == 0 {
		return "", false
	}
	parts := make([]string, len(s))
	for i, v := range s {
		if v.VarID < 0 || v.VarID >= len(vars) {
			return "", false
		}
		bin, ok := v.Bin(vars[v.VarID])
		if !ok {
			return "", false
		}
		parts[i] = strconv.Itoa(bin)
	}
	return strings.Join(parts, "_"), true
}

// TotalBins returns the product of all axis bin counts.
func (s VariableSet) TotalBins() int {
	total := 1
	for _, v := range s {
		total *= v.Bins()
	}
	return total
}

// Labels returns the axis labels in order.
func (s VariableSet) Labels() []string {
	labels := make([]string, len(s))
	for i, v := range s {
		labels[i] = v.Label
	}
	return labels
}
