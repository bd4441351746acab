package environment

import (
	"fmt"
)

// Cardinality determines the cardinality of a number (discrete or
// continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the
// dimension and bounds of an action or observation.
//
// Discrete actions are a single category index, in which case the
// upper bound is the largest index.
type Spec struct {
	Dims       int
	LowerBound []float64
	UpperBound []float64
	Cardinality
}

// NewSpec constructs a new environment specification
func NewSpec(lowerBound, upperBound []float64,
	cardinality Cardinality) (Spec, error) {
	if len(lowerBound) != len(upperBound) {
		return Spec{}, fmt.Errorf("newSpec: bounds must have the same "+
			"length\n\twant(%v)\n\thave(%v)", len(lowerBound),
			len(upperBound))
	}
	for i := range lowerBound {
		if lowerBound[i] > upperBound[i] {
			return Spec{}, fmt.Errorf("newSpec: lower bound %v exceeds "+
				"upper bound %v in dimension %d", lowerBound[i],
				upperBound[i], i)
		}
	}
	if cardinality == Discrete && len(lowerBound) != 1 {
		return Spec{}, fmt.Errorf("newSpec: discrete specs must have a " +
			"single dimension")
	}
	return Spec{
		Dims:        len(lowerBound),
		LowerBound:  lowerBound,
		UpperBound:  upperBound,
		Cardinality: cardinality,
	}, nil
}

// Categories returns the number of categories of a discrete Spec
func (s Spec) Categories() int {
	if s.Cardinality != Discrete {
		return 0
	}
	return int(s.UpperBound[0]-s.LowerBound[0]) + 1
}
