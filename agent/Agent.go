// Package agent defines the interfaces that learning algorithms use to
// drive the function approximators they train.
package agent

// ActorCritic is a policy and state value function pair that can be
// trained by a gradient-based, on-policy learner.
//
// An ActorCritic owns its parameters, their gradients, and the
// optimizer that updates them. A learner never sees the computational
// graph itself: it asks the ActorCritic to evaluate a batch of
// actions, computes the derivative of its loss with respect to the
// quantities returned, and hands that derivative back through
// Backward. The ActorCritic then propagates it to its parameters.
type ActorCritic interface {
	// EvaluateActions returns the value of each state and the log
	// probability and entropy of the policy taking each action in the
	// corresponding state. Inputs are in row major order.
	EvaluateActions(obs, actions []float64) (Evaluation, error)

	// Backward propagates the derivative of a loss with respect to the
	// outputs of the last call to EvaluateActions into the parameter
	// gradients. Gradients are overwritten, not accumulated.
	Backward(LossGradient) error

	// PolicyParameters returns the parameters of the policy
	PolicyParameters() []Parameter

	// ValueParameters returns the parameters of the state value
	// function
	ValueParameters() []Parameter

	// Parameters returns all parameters whose gradients the optimizer
	// consumes
	Parameters() []Parameter

	// Step applies the optimizer to the current gradients
	Step() error

	LearningRate() float64
	SetLearningRate(float64)

	// Discrete returns whether actions are category indices
	Discrete() bool
}

// Parameter is a learnable tensor. Both slices alias the underlying
// storage, so modifying the gradient in place changes what the
// optimizer sees.
type Parameter interface {
	Data() []float64
	Grad() []float64
}

// Evaluation holds the outputs of an ActorCritic on a batch of
// actions. Entropy is nil when the policy has no closed form
// entropy.
type Evaluation struct {
	Values  []float64
	LogProb []float64
	Entropy []float64
}

// LossGradient holds the derivative of a scalar loss with respect to
// each output in an Evaluation. Entropy may be nil, in which case the
// loss does not depend on the entropy.
type LossGradient struct {
	Values  []float64
	LogProb []float64
	Entropy []float64
}

// NoiseResetter is an ActorCritic that uses state-dependent
// exploration noise which must be re-sampled before evaluation.
type NoiseResetter interface {
	ResetNoise(batchSize int)
}

// Stder is an ActorCritic whose action distribution has a learned
// standard deviation.
type Stder interface {
	// Std returns the mean standard deviation over action dimensions
	Std() float64
}

// Sampler is an ActorCritic that can act in an environment
type Sampler interface {
	// SelectAction samples an action in state obs and returns it
	// together with its log probability and the value of obs.
	SelectAction(obs []float64) (action []float64, logProb, value float64,
		err error)
}
