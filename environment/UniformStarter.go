package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformStarter samples starting states uniformly from a box
type UniformStarter struct {
	features int
	rand     *distmv.Uniform
}

// NewUniformStarter returns a new UniformStarter sampling dimension i
// uniformly from bounds[i]
func NewUniformStarter(bounds []r1.Interval, seed uint64) UniformStarter {
	source := rand.NewSource(seed)
	rand := distmv.NewUniform(bounds, source)

	return UniformStarter{len(bounds), rand}
}

// Start returns a starting state
func (u UniformStarter) Start() []float64 {
	return u.rand.Rand(make([]float64, u.features))
}
