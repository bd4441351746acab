package ppo

import (
	"testing"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func TestRunningMean(t *testing.T) {
	xs := []float64{3.5, -1, 1e6, 7, 0.25, -42, 1e-3}
	for k := 1; k <= len(xs); k++ {
		var r runningMean
		for _, x := range xs[:k] {
			r.add(x)
		}
		assert.InDelta(t, floats.Sum(xs[:k])/float64(k), r.value, 1e-6)
		assert.Equal(t, k, r.n)

		r.reset()
		assert.Equal(t, 0.0, r.value)
		assert.Equal(t, 0, r.n)
	}
}

func TestRunningMeanLarge(t *testing.T) {
	var r runningMean
	for i := 0; i < 1_000_000; i++ {
		r.add(0.1)
	}
	assert.InDelta(t, 0.1, r.value, 1e-10)
}

func TestDiagnosticsFlush(t *testing.T) {
	rec := newMemRecorder()
	d := newDiagnostics(3, Primary, rec)
	var state trainingState

	losses := []float64{1, 2, 6}
	for _, l := range losses {
		u := updateResult{learningRate: 0.1}
		u.policyLoss = l
		require.NoError(t, d.observe(&state, Primary, u))
	}

	require.Len(t, rec.dumps, 1)
	assert.Equal(t, 3, rec.dumps[0].step)
	assert.Len(t, rec.dumps[0].values, 13)
	assert.Equal(t, stat.Mean(losses, nil), rec.dumps[0].values["debug/policy_loss"])
	assert.InDelta(t, 0.1, rec.dumps[0].values["debug/lr"], 1e-15)

	assert.Equal(t, slotStats{}, d.slots[Primary])
	assert.Equal(t, 0, state.stepsSinceFlush)
	assert.Equal(t, 3, state.numGradientSteps)
}

func TestDiagnosticsSharedCounter(t *testing.T) {
	rec := newMemRecorder()
	d := newDiagnostics(2, Auxiliary, rec)
	var state trainingState

	// Primary reaches the cadence first but does not reset the counter
	require.NoError(t, d.observe(&state, Primary, updateResult{}))
	require.NoError(t, d.observe(&state, Primary, updateResult{}))
	assert.Equal(t, 2, state.stepsSinceFlush)
	require.Len(t, rec.dumps, 1)
	assert.Contains(t, rec.dumps[0].values, "debug/critic_model_norm")

	require.NoError(t, d.observe(&state, Auxiliary, updateResult{}))
	assert.Equal(t, 0, state.stepsSinceFlush)
	require.Len(t, rec.dumps, 2)
	assert.Contains(t, rec.dumps[1].values, "debug/ent_net_critic_model_norm")
	assert.Equal(t, 3, rec.dumps[1].step)
}

func TestEarlyStop(t *testing.T) {
	target := 0.01
	kls := []float64{0.001, 0.012, 0.015, 0.0151, 0.0}

	e := newEarlyStop(&target)
	var stoppedAt int
	for i, kl := range kls {
		if e.observe(kl) {
			stoppedAt = i
			break
		}
	}
	assert.Equal(t, 3, stoppedAt)
	assert.True(t, e.stopped())

	// Stopping is permanent
	assert.True(t, e.observe(0))

	e = newEarlyStop(nil)
	assert.False(t, e.observe(1e9))
}

func TestNorms(t *testing.T) {
	a := &fakeParam{data: []float64{3, 4}, grad: []float64{6, 8}}
	b := &fakeParam{data: []float64{12}, grad: []float64{0}}
	params := []agent.Parameter{a, b}

	assert.InDelta(t, 13.0, modelNorm(params), 1e-12)
	assert.InDelta(t, 10.0, gradNorm(params), 1e-12)

	pre := clipGradNorm(params, 100)
	assert.Equal(t, 10.0, pre)
	assert.Equal(t, []float64{6, 8}, a.grad)

	pre = clipGradNorm(params, 0.5)
	assert.Equal(t, 10.0, pre)
	assert.InDelta(t, 0.5, gradNorm(params), 1e-6)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := map[string]func(c *Config){
		"BatchSizeNormalize": func(c *Config) { c.BatchSize = 1 },
		"BufferNormalize":    func(c *Config) { c.NSteps, c.NEnvs, c.BatchSize = 1, 1, 2 },
		"Epochs":             func(c *Config) { c.NEpochs = 0 },
		"ClipRangeVF":        func(c *Config) { c.ClipRangeVF = &c.ClipRange; c.ClipRange.Start = 0 },
		"Mode":               func(c *Config) { c.Mode = "triple" },
		"MaxGradNorm":        func(c *Config) { c.MaxGradNorm = 0 },
		"Schedule":           func(c *Config) { c.LearningRate.Type = "cosine" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := DefaultConfig()
	c.NormalizeAdvantage = false
	c.BatchSize = 1
	c.NSteps = 1
	assert.NoError(t, c.Validate())
}

func TestDebugCadence(t *testing.T) {
	c := DefaultConfig()
	c.TotalTimesteps = 1_000_000
	c.NEpochs = 10
	c.BatchSize = 64
	assert.Equal(t, 15, c.debugCadence())

	c.TotalTimesteps = 1000
	assert.Equal(t, 0, c.debugCadence())
}

func TestModeSet(t *testing.T) {
	primary, auxiliary := newFakePolicy(), newFakePolicy()

	set, err := newPolicySet(Opt, primary, auxiliary, true)
	require.NoError(t, err)
	require.Len(t, set.members(), 1)
	assert.True(t, set.members()[0].useEntropy)
	assert.False(t, set.members()[0].zeroClip)
	assert.Equal(t, Primary, set.last())

	for _, mode := range []Mode{Dbl, DblTrn} {
		set, err = newPolicySet(mode, primary, auxiliary, true)
		require.NoError(t, err)
		require.Len(t, set.members(), 2)
		assert.False(t, set.members()[0].useEntropy)
		assert.True(t, set.members()[1].useEntropy)
		assert.True(t, set.members()[1].zeroClip)
		assert.Equal(t, Auxiliary, set.last())
	}
}
