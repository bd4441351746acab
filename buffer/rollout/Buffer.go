// Package rollout implements the on-policy rollout buffer that PPO
// optimizes over: a fixed number of transitions, each with the
// log-probability and value estimate recorded at collection time and
// a GAE(λ) advantage and return computed once each trajectory
// finishes.
package rollout

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Batch is a minibatch of transitions drawn from a Buffer.
// Observations and Actions are stored in row major order.
type Batch struct {
	ObsDim int
	ActDim int

	Observations []float64
	Actions      []float64
	OldLogProb   []float64
	OldValues    []float64
	Advantages   []float64
	Returns      []float64
}

// Len returns the number of transitions in the Batch
func (b Batch) Len() int {
	return len(b.OldLogProb)
}

// Iterator iterates over the minibatches of one pass through a Buffer
type Iterator interface {
	// Next advances the Iterator and reports whether a new Batch is
	// available.
	Next() bool

	// Batch returns the current Batch
	Batch() Batch
}

// Buffer implements a forward view generalized advantage estimate -
// GAE(λ) - rollout buffer following https://arxiv.org/abs/1506.02438.
// Unlike a plain GAE buffer, each transition also records the log
// probability of its action and the value estimate at collection
// time so that clipped-objective updates can compare against them.
type Buffer struct {
	obsSize    int // Size of state observations
	actionSize int // Number of action dimensions
	maxSize    int // Max buffer size

	currentPos   int // Current position in the buffer
	pathStartIdx int // Position in the buffer where current trajectory starts

	lambda float64 // λ for GAE(λ) calculation
	gamma  float64 // Discount factor ℽ

	rng *rand.Rand

	obsBuffer     []float64
	actBuffer     []float64
	rewBuffer     []float64
	valBuffer     []float64
	logProbBuffer []float64
	advBuffer     []float64
	retBuffer     []float64
}

// New creates and returns a new rollout buffer holding size
// transitions. The seed determines the order in which minibatches
// are drawn.
func New(obsDim, actDim, size int, lambda, gamma float64,
	seed uint64) (*Buffer, error) {
	if size < 1 {
		return nil, fmt.Errorf("new: buffer size must be positive"+
			"\n\thave(%v)", size)
	}
	if obsDim < 1 || actDim < 1 {
		return nil, fmt.Errorf("new: observation and action dimensions "+
			"must be positive\n\thave(%v, %v)", obsDim, actDim)
	}

	return &Buffer{
		obsSize:       obsDim,
		actionSize:    actDim,
		maxSize:       size,
		lambda:        lambda,
		gamma:         gamma,
		rng:           rand.New(rand.NewSource(seed)),
		obsBuffer:     make([]float64, size*obsDim),
		actBuffer:     make([]float64, size*actDim),
		rewBuffer:     make([]float64, size),
		valBuffer:     make([]float64, size),
		logProbBuffer: make([]float64, size),
		advBuffer:     make([]float64, size),
		retBuffer:     make([]float64, size),
	}, nil
}

// Store stores a single timestep state, action, reward, value, and
// action log probability to the Buffer.
func (b *Buffer) Store(obs, act []float64, rew, val, logProb float64) error {
	if b.currentPos >= b.maxSize {
		return &BufferError{Op: "store", Err: errFull}
	}
	if len(obs) != b.obsSize {
		return fmt.Errorf("store: illegal obs length \n\twant(%v)\n\thave(%v)",
			b.obsSize, len(obs))
	}
	if len(act) != b.actionSize {
		return fmt.Errorf("store: illegal act length \n\twant(%v)\n\thave(%v)",
			b.actionSize, len(act))
	}

	start := b.currentPos * b.obsSize
	copy(b.obsBuffer[start:start+b.obsSize], obs)

	start = b.currentPos * b.actionSize
	copy(b.actBuffer[start:start+b.actionSize], act)

	b.rewBuffer[b.currentPos] = rew
	b.valBuffer[b.currentPos] = val
	b.logProbBuffer[b.currentPos] = logProb
	b.currentPos++
	return nil
}

// FinishPath computes GAE(λ) advantage estimates and returns for the
// current trajectory. This should be called at the end of a
// trajectory or when one gets cut off because the buffer filled up.
//
// The lastVal argument should be 0 if the trajectory ended because
// the agent reached a terminal state, and otherwise it should be
// v(s), the value estimate of the state following the last stored
// transition, which bootstraps the estimates past the cutoff.
//
// Returns are computed as advantage + value, the TD(λ) target that
// the critic regresses on.
func (b *Buffer) FinishPath(lastVal float64) {
	start := b.pathStartIdx
	stop := b.currentPos
	if start == stop {
		return
	}
	n := stop - start

	vals := make([]float64, n+1)
	copy(vals, b.valBuffer[start:stop])
	vals[n] = lastVal

	// δ_t = r_t + ℽ v(s_{t+1}) - v(s_t)
	stateVals := mat.NewVecDense(n, vals[:n])
	nextStateVals := mat.NewVecDense(n, vals[1:])
	rewards := mat.NewVecDense(n, append([]float64(nil),
		b.rewBuffer[start:stop]...))

	deltas := mat.NewVecDense(n, nil)
	deltas.AddScaledVec(rewards, b.gamma, nextStateVals)
	deltas.SubVec(deltas, stateVals)

	copy(b.advBuffer[start:stop], discountCumSum(deltas, b.gamma*b.lambda))
	floats.AddTo(b.retBuffer[start:stop], b.advBuffer[start:stop],
		b.valBuffer[start:stop])

	b.pathStartIdx = b.currentPos
}

// discountCumSum computes and returns the discounted cumulative sum
// of all elements of a vector. Given a vector v = [x0 x1 x2 ... xN]
// and discount ℽ, element i of the result is
//
//	xi + ℽ x(i+1) + ℽ^2 x(i+2) + ... + ℽ^(N-i) xN
func discountCumSum(x *mat.VecDense, discount float64) []float64 {
	cumSums := make([]float64, x.Len())
	var running float64
	for i := x.Len() - 1; i >= 0; i-- {
		running = x.AtVec(i) + discount*running
		cumSums[i] = running
	}
	return cumSums
}

// Full returns whether the buffer has been filled
func (b *Buffer) Full() bool {
	return b.currentPos == b.maxSize
}

// Len returns the capacity of the buffer, the number of transitions
// in one full pass.
func (b *Buffer) Len() int {
	return b.maxSize
}

// Values returns the value estimates recorded at collection time
func (b *Buffer) Values() []float64 {
	return b.valBuffer
}

// Returns returns the return targets computed by FinishPath
func (b *Buffer) Returns() []float64 {
	return b.retBuffer
}

// Advantages returns the advantage estimates computed by FinishPath
func (b *Buffer) Advantages() []float64 {
	return b.advBuffer
}

// Reset empties the buffer so that a new rollout can be stored
func (b *Buffer) Reset() {
	b.currentPos = 0
	b.pathStartIdx = 0
}

// Get returns an Iterator over one complete, freshly shuffled pass
// through the buffer in minibatches of batchSize transitions. If
// batchSize does not divide the buffer size, the final minibatch is
// truncated. A batchSize < 1 yields the whole buffer as one batch.
//
// The last trajectory must have been finished with FinishPath, since
// otherwise its advantages and returns are those of a previous rollout.
func (b *Buffer) Get(batchSize int) (Iterator, error) {
	if !b.Full() {
		return nil, &BufferError{Op: "get", Err: errNotFull}
	}
	if b.pathStartIdx != b.currentPos {
		return nil, &BufferError{Op: "get", Err: errOpenPath}
	}
	if batchSize < 1 {
		batchSize = b.maxSize
	}

	return &minibatches{
		buffer:    b,
		indices:   b.rng.Perm(b.maxSize),
		batchSize: batchSize,
	}, nil
}

// minibatches implements Iterator for a single shuffled pass
type minibatches struct {
	buffer    *Buffer
	indices   []int
	batchSize int
	start     int
	current   Batch
}

// Next implements the Iterator interface
func (m *minibatches) Next() bool {
	if m.start >= len(m.indices) {
		return false
	}
	stop := m.start + m.batchSize
	if stop > len(m.indices) {
		stop = len(m.indices)
	}
	m.current = m.buffer.gather(m.indices[m.start:stop])
	m.start = stop
	return true
}

// Batch implements the Iterator interface
func (m *minibatches) Batch() Batch {
	return m.current
}

// gather copies the transitions at the given indices into a new Batch
func (b *Buffer) gather(indices []int) Batch {
	n := len(indices)
	batch := Batch{
		ObsDim:       b.obsSize,
		ActDim:       b.actionSize,
		Observations: make([]float64, 0, n*b.obsSize),
		Actions:      make([]float64, 0, n*b.actionSize),
		OldLogProb:   make([]float64, n),
		OldValues:    make([]float64, n),
		Advantages:   make([]float64, n),
		Returns:      make([]float64, n),
	}

	for i, idx := range indices {
		batch.Observations = append(batch.Observations,
			b.obsBuffer[idx*b.obsSize:(idx+1)*b.obsSize]...)
		batch.Actions = append(batch.Actions,
			b.actBuffer[idx*b.actionSize:(idx+1)*b.actionSize]...)
		batch.OldLogProb[i] = b.logProbBuffer[idx]
		batch.OldValues[i] = b.valBuffer[idx]
		batch.Advantages[i] = b.advBuffer[idx]
		batch.Returns[i] = b.retBuffer[idx]
	}
	return batch
}
