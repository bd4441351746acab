// Package bandit implements contextual bandit environments. Each
// episode lasts a single step: a context is sampled, the agent acts,
// and the episode ends with a reward that depends on both.
package bandit

import (
	"fmt"

	"github.com/samuelfneumann/goppo/environment"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// contexts returns a starter sampling contexts from [-1, 1]^features
func contexts(features int, seed uint64) environment.UniformStarter {
	bounds := make([]r1.Interval, features)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: -1, Max: 1}
	}
	return environment.NewUniformStarter(bounds, seed)
}

// randomWeights returns a rows x cols matrix with standard normal
// entries
func randomWeights(rows, cols int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

// Discrete is a contextual bandit with a finite number of arms. Each
// arm scores a context linearly and pulling the best scoring arm
// yields a reward of 1, all other arms yield 0.
type Discrete struct {
	starter environment.Starter
	weights *mat.Dense
	context []float64
	obs     environment.Spec
	act     environment.Spec
}

// NewDiscrete returns a new Discrete bandit
func NewDiscrete(features, arms int, seed uint64) (*Discrete, error) {
	if features < 1 || arms < 2 {
		return nil, fmt.Errorf("newDiscrete: need at least 1 feature and 2 "+
			"arms\n\thave(%d features, %d arms)", features, arms)
	}
	obs, act, err := specs(features, environment.Discrete, arms)
	if err != nil {
		return nil, fmt.Errorf("newDiscrete: %v", err)
	}

	return &Discrete{
		starter: contexts(features, seed),
		weights: randomWeights(arms, features, seed+1),
		obs:     obs,
		act:     act,
	}, nil
}

// Best returns the best arm in context
func (d *Discrete) Best(context []float64) int {
	arms, _ := d.weights.Dims()
	scores := mat.NewVecDense(arms, nil)
	scores.MulVec(d.weights, mat.NewVecDense(len(context), context))
	return floats.MaxIdx(scores.RawVector().Data)
}

// Reset implements the environment.Environment interface
func (d *Discrete) Reset() []float64 {
	d.context = d.starter.Start()
	return d.context
}

// Step implements the environment.Environment interface
func (d *Discrete) Step(action []float64) ([]float64, float64, bool,
	error) {
	if d.context == nil {
		return nil, 0, false, fmt.Errorf("step: environment must be reset")
	}
	if len(action) != 1 || action[0] < 0 ||
		int(action[0]) >= d.act.Categories() {
		return nil, 0, false, fmt.Errorf("step: illegal action %v", action)
	}

	var reward float64
	if int(action[0]) == d.Best(d.context) {
		reward = 1
	}
	obs := d.context
	d.context = nil
	return obs, reward, true, nil
}

// ObservationSpec implements the environment.Environment interface
func (d *Discrete) ObservationSpec() environment.Spec {
	return d.obs
}

// ActionSpec implements the environment.Environment interface
func (d *Discrete) ActionSpec() environment.Spec {
	return d.act
}

// Continuous is a contextual bandit with continuous actions. The best
// action is a fixed linear function of the context, and the reward is
// the negative squared distance of the action from the best action.
type Continuous struct {
	starter environment.Starter
	weights *mat.Dense
	context []float64
	obs     environment.Spec
	act     environment.Spec
}

// NewContinuous returns a new Continuous bandit with actionDims
// dimensional actions
func NewContinuous(features, actionDims int, seed uint64) (*Continuous,
	error) {
	if features < 1 || actionDims < 1 {
		return nil, fmt.Errorf("newContinuous: need at least 1 feature and "+
			"1 action dimension\n\thave(%d features, %d dimensions)",
			features, actionDims)
	}
	obs, act, err := specs(features, environment.Continuous, actionDims)
	if err != nil {
		return nil, fmt.Errorf("newContinuous: %v", err)
	}

	return &Continuous{
		starter: contexts(features, seed),
		weights: randomWeights(actionDims, features, seed+1),
		obs:     obs,
		act:     act,
	}, nil
}

// Best returns the best action in context
func (c *Continuous) Best(context []float64) []float64 {
	dims, _ := c.weights.Dims()
	best := mat.NewVecDense(dims, nil)
	best.MulVec(c.weights, mat.NewVecDense(len(context), context))
	return best.RawVector().Data
}

// Reset implements the environment.Environment interface
func (c *Continuous) Reset() []float64 {
	c.context = c.starter.Start()
	return c.context
}

// Step implements the environment.Environment interface
func (c *Continuous) Step(action []float64) ([]float64, float64, bool,
	error) {
	if c.context == nil {
		return nil, 0, false, fmt.Errorf("step: environment must be reset")
	}
	if len(action) != c.act.Dims {
		return nil, 0, false, fmt.Errorf("step: illegal action dimension"+
			"\n\twant(%d)\n\thave(%d)", c.act.Dims, len(action))
	}

	dist := floats.Distance(action, c.Best(c.context), 2)
	obs := c.context
	c.context = nil
	return obs, -dist * dist, true, nil
}

// ObservationSpec implements the environment.Environment interface
func (c *Continuous) ObservationSpec() environment.Spec {
	return c.obs
}

// ActionSpec implements the environment.Environment interface
func (c *Continuous) ActionSpec() environment.Spec {
	return c.act
}

// specs returns the observation and action specs of a bandit
func specs(features int, cardinality environment.Cardinality,
	actions int) (environment.Spec, environment.Spec, error) {
	low, high := make([]float64, features), make([]float64, features)
	for i := range low {
		low[i], high[i] = -1, 1
	}
	obs, err := environment.NewSpec(low, high, environment.Continuous)
	if err != nil {
		return environment.Spec{}, environment.Spec{}, err
	}

	var act environment.Spec
	if cardinality == environment.Discrete {
		act, err = environment.NewSpec([]float64{0},
			[]float64{float64(actions - 1)}, environment.Discrete)
	} else {
		low, high := make([]float64, actions), make([]float64, actions)
		for i := range low {
			low[i], high[i] = -3, 3
		}
		act, err = environment.NewSpec(low, high, environment.Continuous)
	}
	return obs, act, err
}
