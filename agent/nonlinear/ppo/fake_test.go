package ppo

import (
	"math"
	"testing"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/buffer/rollout"
	"github.com/stretchr/testify/require"
)

type fakeParam struct {
	data []float64
	grad []float64
}

func (f *fakeParam) Data() []float64 { return f.data }
func (f *fakeParam) Grad() []float64 { return f.grad }

// fakePolicy is an ActorCritic whose observations are the log
// probabilities of the actions taken in them. On its k-th evaluation
// it returns those log probabilities shifted by shifts[k], so a test
// can script the approximate KL divergence of each update.
type fakePolicy struct {
	shifts   []float64
	entropy  *float64
	value    float64
	discrete bool

	actor  *fakeParam
	critic *fakeParam
	lr     float64

	evaluations  int
	steps        int
	lastGrad     agent.LossGradient
	seenActions  [][]float64
	noiseResets  int
	lastNoiseDim int
}

func newFakePolicy(shifts ...float64) *fakePolicy {
	return &fakePolicy{
		shifts: shifts,
		actor:  &fakeParam{data: []float64{3, 4}, grad: make([]float64, 2)},
		critic: &fakeParam{data: []float64{1}, grad: make([]float64, 1)},
	}
}

func (f *fakePolicy) EvaluateActions(obs, actions []float64) (agent.Evaluation,
	error) {
	var shift float64
	if f.evaluations < len(f.shifts) {
		shift = f.shifts[f.evaluations]
	}
	f.evaluations++
	f.seenActions = append(f.seenActions, actions)

	eval := agent.Evaluation{
		Values:  make([]float64, len(obs)),
		LogProb: make([]float64, len(obs)),
	}
	for i := range obs {
		eval.LogProb[i] = obs[i] + shift
		eval.Values[i] = f.value
	}
	if f.entropy != nil {
		eval.Entropy = make([]float64, len(obs))
		for i := range eval.Entropy {
			eval.Entropy[i] = *f.entropy
		}
	}
	return eval, nil
}

func (f *fakePolicy) Backward(grad agent.LossGradient) error {
	f.lastGrad = grad
	var actor, critic float64
	for _, g := range grad.LogProb {
		actor += g
	}
	for _, g := range grad.Values {
		critic += g
	}
	f.actor.grad[0], f.actor.grad[1] = actor, -actor
	f.critic.grad[0] = critic
	return nil
}

func (f *fakePolicy) PolicyParameters() []agent.Parameter {
	return []agent.Parameter{f.actor}
}

func (f *fakePolicy) ValueParameters() []agent.Parameter {
	return []agent.Parameter{f.critic}
}

func (f *fakePolicy) Parameters() []agent.Parameter {
	return []agent.Parameter{f.actor, f.critic}
}

func (f *fakePolicy) Step() error {
	f.steps++
	for _, p := range f.Parameters() {
		for i := range p.Data() {
			p.Data()[i] -= f.lr * p.Grad()[i]
		}
	}
	return nil
}

func (f *fakePolicy) LearningRate() float64     { return f.lr }
func (f *fakePolicy) SetLearningRate(l float64) { f.lr = l }
func (f *fakePolicy) Discrete() bool            { return f.discrete }

func (f *fakePolicy) ResetNoise(batch int) {
	f.noiseResets++
	f.lastNoiseDim = batch
}

// stdPolicy is a fakePolicy with a learned standard deviation
type stdPolicy struct {
	*fakePolicy
}

func (s stdPolicy) Std() float64 { return 0.5 }

// dump is a single call to memRecorder.Dump
type dump struct {
	step     int
	values   map[string]float64
	excludes map[string][]string
}

// memRecorder records metrics in memory
type memRecorder struct {
	pending  map[string]float64
	excludes map[string][]string
	dumps    []dump
}

func newMemRecorder() *memRecorder {
	return &memRecorder{
		pending:  make(map[string]float64),
		excludes: make(map[string][]string),
	}
}

func (m *memRecorder) Record(key string, value float64, exclude ...string) {
	m.pending[key] = value
	if len(exclude) > 0 {
		m.excludes[key] = exclude
	}
}

func (m *memRecorder) Dump(step int) error {
	m.dumps = append(m.dumps, dump{
		step:     step,
		values:   m.pending,
		excludes: m.excludes,
	})
	m.pending = make(map[string]float64)
	m.excludes = make(map[string][]string)
	return nil
}

// count returns the number of dumps that contain key
func (m *memRecorder) count(key string) int {
	var n int
	for _, d := range m.dumps {
		if _, ok := d.values[key]; ok {
			n++
		}
	}
	return n
}

// last returns the value of key in the last dump that contains it
func (m *memRecorder) last(key string) (float64, bool) {
	for i := len(m.dumps) - 1; i >= 0; i-- {
		if v, ok := m.dumps[i].values[key]; ok {
			return v, true
		}
	}
	return 0, false
}

// newSource returns a full rollout buffer of n transitions whose
// observations equal their stored log probabilities
func newSource(t *testing.T, n int) *rollout.Buffer {
	t.Helper()
	b, err := rollout.New(1, 1, n, 0.95, 0.99, 3)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		logProb := -0.1 * float64(i+1)
		err := b.Store([]float64{logProb}, []float64{float64(i%3) + 0.5},
			float64(i%3), 0.2*float64(i%2), logProb)
		require.NoError(t, err)
	}
	b.FinishPath(0)
	return b
}

// testConfig returns a Config for a buffer of size n
func testConfig(n, batch, epochs int) Config {
	c := DefaultConfig()
	c.NSteps = n
	c.NEnvs = 1
	c.BatchSize = batch
	c.NEpochs = epochs
	c.TotalTimesteps = 0
	return c
}

// shiftForKL returns the constant log ratio d > 0 whose approximate KL
// divergence exp(d) - 1 - d equals kl
func shiftForKL(kl float64) float64 {
	d := math.Sqrt(2 * kl)
	for i := 0; i < 50; i++ {
		f := math.Exp(d) - 1 - d - kl
		d -= f / (math.Exp(d) - 1)
	}
	return d
}
