package policy

import (
	"math"
	"testing"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/initwfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func testConfig(batch int) Config {
	c := DefaultConfig(batch)
	c.PolicyLayers = []int{8}
	c.PolicyActivations = []string{"tanh"}
	c.ValueLayers = []int{8}
	c.ValueActivations = []string{"relu"}
	c.LearningRate = 1e-3
	c.Seed = 7
	return c
}

func zeroConfig(batch int) Config {
	c := testConfig(batch)
	c.Init = initwfn.NewZeroes()
	return c
}

var (
	_ agent.ActorCritic = &CategoricalMLP{}
	_ agent.Sampler     = &CategoricalMLP{}
	_ agent.ActorCritic = &GaussianMLP{}
	_ agent.Sampler     = &GaussianMLP{}
	_ agent.Stder       = &GaussianMLP{}
)

func TestCategoricalProbabilities(t *testing.T) {
	pol, err := NewCategoricalMLP(testConfig(4), 2, 3)
	require.NoError(t, err)
	assert.True(t, pol.Discrete())

	obs := []float64{0.1, -0.2, 1.0, 0.5, -1.5, 2.0}
	total := make([]float64, 3)
	for a := 0.0; a < 3; a++ {
		eval, err := pol.EvaluateActions(obs, []float64{a, a, a})
		require.NoError(t, err)
		require.Len(t, eval.LogProb, 3)
		require.Len(t, eval.Values, 3)
		require.Len(t, eval.Entropy, 3)

		for i, lp := range eval.LogProb {
			total[i] += math.Exp(lp)
			assert.Less(t, lp, 0.0)
			assert.GreaterOrEqual(t, eval.Entropy[i], 0.0)
			assert.LessOrEqual(t, eval.Entropy[i], math.Log(3)+1e-12)
		}
	}
	for _, p := range total {
		assert.InDelta(t, 1.0, p, 1e-9)
	}

	probs, err := pol.Probabilities(obs[:2])
	require.NoError(t, err)
	assert.InDelta(t, 1.0, floats.Sum(probs), 1e-9)
}

func TestCategoricalUniform(t *testing.T) {
	pol, err := NewCategoricalMLP(zeroConfig(2), 2, 4)
	require.NoError(t, err)

	eval, err := pol.EvaluateActions([]float64{1, 2, 3, 4}, []float64{0, 3})
	require.NoError(t, err)
	for i := range eval.LogProb {
		assert.InDelta(t, -math.Log(4), eval.LogProb[i], 1e-12)
		assert.InDelta(t, math.Log(4), eval.Entropy[i], 1e-12)
		assert.Equal(t, 0.0, eval.Values[i])
	}

	action, logProb, value, err := pol.SelectAction([]float64{1, 2})
	require.NoError(t, err)
	require.Len(t, action, 1)
	assert.Equal(t, math.Trunc(action[0]), action[0])
	assert.GreaterOrEqual(t, action[0], 0.0)
	assert.Less(t, action[0], 4.0)
	assert.InDelta(t, -math.Log(4), logProb, 1e-12)
	assert.Equal(t, 0.0, value)
}

func TestCategoricalLargeLogits(t *testing.T) {
	c := testConfig(2)
	c.Init = initwfn.Config{Type: initwfn.Ones}
	c.PolicyActivations = []string{"identity"}
	pol, err := NewCategoricalMLP(c, 2, 3)
	require.NoError(t, err)

	// The first row has logits of 8 * 2000, far past the range of exp
	eval, err := pol.EvaluateActions([]float64{1000, 1000, -500, -500},
		[]float64{0, 2})
	require.NoError(t, err)
	for i := range eval.LogProb {
		assert.InDelta(t, -math.Log(3), eval.LogProb[i], 1e-9)
		assert.InDelta(t, math.Log(3), eval.Entropy[i], 1e-9)
	}

	probs, err := pol.Probabilities([]float64{1000, 1000})
	require.NoError(t, err)
	for _, p := range probs {
		assert.InDelta(t, 1.0/3, p, 1e-9)
	}
}

func TestCategoricalErrors(t *testing.T) {
	pol, err := NewCategoricalMLP(testConfig(2), 2, 3)
	require.NoError(t, err)

	_, err = pol.EvaluateActions([]float64{1, 2, 3, 4, 5, 6},
		[]float64{0, 1, 2})
	assert.Error(t, err, "batch too large")
	_, err = pol.EvaluateActions([]float64{1, 2, 3}, []float64{0})
	assert.Error(t, err, "ragged observations")
	_, err = pol.EvaluateActions([]float64{1, 2}, []float64{3})
	assert.Error(t, err, "action out of range")

	assert.Error(t, pol.Backward(agent.LossGradient{}),
		"backward before evaluation")

	_, err = pol.EvaluateActions([]float64{1, 2}, []float64{1})
	require.NoError(t, err)
	assert.Error(t, pol.Backward(agent.LossGradient{
		LogProb: []float64{1, 1},
		Values:  []float64{1, 1},
	}))

	_, err = NewCategoricalMLP(testConfig(2), 2, 1)
	assert.Error(t, err)
}

func TestCategoricalStep(t *testing.T) {
	pol, err := NewCategoricalMLP(testConfig(4), 2, 3)
	require.NoError(t, err)

	// A truncated batch of 3 samples in a batch of 4
	obs := []float64{0.1, -0.2, 1.0, 0.5, -1.5, 2.0}
	actions := []float64{0, 2, 1}
	before, err := pol.EvaluateActions(obs, actions)
	require.NoError(t, err)

	// Increase the log probability of the actions taken
	grad := agent.LossGradient{
		LogProb: []float64{-1, -1, -1},
		Values:  []float64{0, 0, 0},
	}
	require.NoError(t, pol.Backward(grad))
	for _, p := range pol.PolicyParameters() {
		require.NotNil(t, p.Grad())
		assert.Len(t, p.Grad(), len(p.Data()))
	}
	for _, p := range pol.ValueParameters() {
		for _, g := range p.Grad() {
			assert.Equal(t, 0.0, g)
		}
	}
	require.NoError(t, pol.Step())

	after, err := pol.EvaluateActions(obs, actions)
	require.NoError(t, err)
	assert.Greater(t, floats.Sum(after.LogProb), floats.Sum(before.LogProb))
	assert.Equal(t, before.Values, after.Values)
}

func TestGaussianStandardNormal(t *testing.T) {
	pol, err := NewGaussianMLP(zeroConfig(3), 2, 2)
	require.NoError(t, err)
	assert.False(t, pol.Discrete())
	assert.Equal(t, 1.0, pol.Std())

	actions := []float64{0, 0, 1, -1, 0.5, 2}
	eval, err := pol.EvaluateActions([]float64{1, 1, 2, 2, 3, 3}, actions)
	require.NoError(t, err)

	norm := math.Log(2 * math.Pi)
	for i := range eval.LogProb {
		a0, a1 := actions[2*i], actions[2*i+1]
		assert.InDelta(t, -0.5*(a0*a0+a1*a1)-norm, eval.LogProb[i], 1e-12)
		assert.InDelta(t, 1+norm, eval.Entropy[i], 1e-12)
	}

	action, logProb, value, err := pol.SelectAction([]float64{1, 1})
	require.NoError(t, err)
	require.Len(t, action, 2)
	assert.Equal(t, 0.0, value)

	eval, err = pol.EvaluateActions([]float64{1, 1}, action)
	require.NoError(t, err)
	assert.InDelta(t, eval.LogProb[0], logProb, 1e-12)
}

func TestGaussianLogStdGradient(t *testing.T) {
	c := zeroConfig(4)
	pol, err := NewGaussianMLP(c, 1, 1)
	require.NoError(t, err)

	actions := []float64{0.5, -2, 1}
	_, err = pol.EvaluateActions([]float64{0, 1, 2}, actions)
	require.NoError(t, err)

	coef := []float64{0.1, 0.2, -0.3}
	require.NoError(t, pol.Backward(agent.LossGradient{
		LogProb: coef,
		Values:  []float64{0, 0, 0},
		Entropy: []float64{0.5, 0.5, 0.5},
	}))

	// d/dlogσ of Σ cᵢ log π(aᵢ) + Σ eᵢ H is Σ cᵢ (aᵢ² - 1) + Σ eᵢ
	var want float64
	for i, a := range actions {
		want += coef[i]*(a*a-1) + 0.5
	}
	params := pol.PolicyParameters()
	logStd := params[len(params)-1]
	require.Len(t, logStd.Grad(), 1)
	assert.InDelta(t, want, logStd.Grad()[0], 1e-12)

	require.NoError(t, pol.Step())
	assert.NotEqual(t, 1.0, pol.Std())
}

func TestLearningRate(t *testing.T) {
	pol, err := NewGaussianMLP(testConfig(2), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1e-3, pol.LearningRate())

	pol.SetLearningRate(5e-4)
	assert.Equal(t, 5e-4, pol.LearningRate())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig(64).Validate())

	c := DefaultConfig(0)
	assert.Error(t, c.Validate())

	c = DefaultConfig(64)
	c.PolicyActivations = c.PolicyActivations[:1]
	assert.Error(t, c.Validate())

	c = DefaultConfig(64)
	c.ValueActivations = []string{"tanh", "swish"}
	_, err := NewGaussianMLP(c, 1, 1)
	assert.Error(t, err)
}
