// Package policy implements neural network actor-critics that can be
// trained by the PPO learner. Each actor-critic holds a policy network
// and a state value network which read from the same input in a single
// Gorgonia computational graph.
package policy

import (
	"fmt"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/initwfn"
	"github.com/samuelfneumann/goppo/network"
	"github.com/samuelfneumann/goppo/solver"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Config describes the networks and optimizer of an actor-critic
type Config struct {
	// BatchSize is the largest number of samples that can be evaluated
	// at once. Smaller batches are padded.
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	PolicyLayers      []int    `json:"policy_layers" yaml:"policy_layers" mapstructure:"policy_layers"`
	PolicyActivations []string `json:"policy_activations" yaml:"policy_activations" mapstructure:"policy_activations"`
	ValueLayers       []int    `json:"value_layers" yaml:"value_layers" mapstructure:"value_layers"`
	ValueActivations  []string `json:"value_activations" yaml:"value_activations" mapstructure:"value_activations"`

	Init initwfn.Config `json:"init" yaml:"init" mapstructure:"init"`

	Solver       solver.Type `json:"solver" yaml:"solver" mapstructure:"solver"`
	LearningRate float64     `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`

	// InitLogStd is the initial log standard deviation of Gaussian
	// policies
	InitLogStd float64 `json:"init_log_std" yaml:"init_log_std" mapstructure:"init_log_std"`

	Seed uint64 `json:"seed" yaml:"seed" mapstructure:"seed"`
}

// DefaultConfig returns a Config with two hidden layers of 64 tanh
// units in each network
func DefaultConfig(batchSize int) Config {
	return Config{
		BatchSize:         batchSize,
		PolicyLayers:      []int{64, 64},
		PolicyActivations: []string{"tanh", "tanh"},
		ValueLayers:       []int{64, 64},
		ValueActivations:  []string{"tanh", "tanh"},
		Init:              initwfn.NewGlorotU(1.0),
		Solver:            solver.Adam,
		LearningRate:      3e-4,
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive")
	}
	if len(c.PolicyLayers) != len(c.PolicyActivations) {
		return fmt.Errorf("validate: policy needs one activation per layer")
	}
	if len(c.ValueLayers) != len(c.ValueActivations) {
		return fmt.Errorf("validate: value function needs one activation " +
			"per layer")
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be positive")
	}
	return c.Init.Validate()
}

// activations parses activation function names
func activations(names []string) ([]*network.Activation, error) {
	acts := make([]*network.Activation, len(names))
	for i, name := range names {
		act, err := network.ParseActivation(name)
		if err != nil {
			return nil, err
		}
		acts[i] = act
	}
	return acts, nil
}

// biases returns a bias flag for each of n layers
func biases(n int) []bool {
	b := make([]bool, n)
	for i := range b {
		b[i] = true
	}
	return b
}

// param exposes a learnable node as an agent.Parameter
type param struct {
	n *G.Node
}

// Data returns the values of the node
func (p param) Data() []float64 {
	return p.n.Value().Data().([]float64)
}

// Grad returns the gradient of the node, or nil if no gradient has
// been computed
func (p param) Grad() []float64 {
	grad, err := p.n.Grad()
	if err != nil || grad == nil {
		return nil
	}
	return grad.Data().([]float64)
}

func toParameters(nodes G.Nodes) []agent.Parameter {
	params := make([]agent.Parameter, len(nodes))
	for i, n := range nodes {
		params[i] = param{n}
	}
	return params
}

// distribution adds the log probability and entropy of actions under
// a policy to a graph. The logProb node must be a vector with one
// element per sample. The entropy node may be a vector of the same
// shape or a scalar when the entropy does not depend on the state.
type distribution struct {
	actions  *G.Node
	logProb  *G.Node
	entropy  *G.Node
	extra    G.Nodes // learnables outside of the policy network
	setActs  func(actions []float64, n int) ([]float64, error)
	actWidth int // columns of the actions node
	actDim   int // columns of a single action
}

// actorCritic holds the computational graph shared by all
// actor-critics
type actorCritic struct {
	g     *G.ExprGraph
	vm    G.VM
	input *G.Node

	actor  network.NeuralNet
	critic network.NeuralNet
	dist   distribution

	// Loss coefficients which turn the derivative of a loss with
	// respect to each output into a scalar cost on the graph
	dLogProb *G.Node
	dEntropy *G.Node
	dValue   *G.Node

	values     *G.Node
	valuesVal  G.Value
	logProbVal G.Value
	entropyVal G.Value

	solver     *solver.Solver
	learnables G.Nodes
	policy     []agent.Parameter
	value      []agent.Parameter
	params     []agent.Parameter

	features  int
	batchSize int

	// Inputs of the last evaluation, replayed by Backward
	lastObs     []float64
	lastActions []float64
	lastN       int
	pending     bool
}

// newActorCritic creates the graph of an actor-critic whose policy
// network has actorOutputs outputs. The build function adds the action
// distribution to the graph given the policy network.
func newActorCritic(c Config, features, actorOutputs int,
	build func(g *G.ExprGraph, actor network.NeuralNet) (distribution,
		error)) (*actorCritic, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	init, err := c.Init.Create()
	if err != nil {
		return nil, err
	}
	policyActs, err := activations(c.PolicyActivations)
	if err != nil {
		return nil, err
	}
	valueActs, err := activations(c.ValueActivations)
	if err != nil {
		return nil, err
	}

	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(c.BatchSize, features),
		G.WithName("obs"), G.WithInit(G.Zeroes()))

	actor, err := network.NewMLPFromInput(input, actorOutputs, c.PolicyLayers,
		biases(len(c.PolicyLayers)), init, policyActs, "pi")
	if err != nil {
		return nil, fmt.Errorf("newActorCritic: could not create policy "+
			"network: %v", err)
	}
	critic, err := network.NewMLPFromInput(input, 1, c.ValueLayers,
		biases(len(c.ValueLayers)), init, valueActs, "vf")
	if err != nil {
		return nil, fmt.Errorf("newActorCritic: could not create value "+
			"network: %v", err)
	}

	dist, err := build(g, actor)
	if err != nil {
		return nil, err
	}

	a := &actorCritic{
		g:         g,
		input:     input,
		actor:     actor,
		critic:    critic,
		dist:      dist,
		features:  features,
		batchSize: c.BatchSize,
	}

	a.values = G.Must(G.Reshape(critic.Prediction(),
		tensor.Shape{c.BatchSize}))

	a.dLogProb = coefficient(g, c.BatchSize, "dLogProb")
	a.dValue = coefficient(g, c.BatchSize, "dValue")
	a.dEntropy = coefficient(g, c.BatchSize, "dEntropy")

	// cost = Σ dLogProb·logπ + Σ dEntropy·H + Σ dValue·V
	cost := G.Must(G.Sum(G.Must(G.HadamardProd(a.dLogProb, dist.logProb))))
	var entropyCost *G.Node
	if dist.entropy.IsScalar() {
		entropyCost = G.Must(G.Mul(G.Must(G.Sum(a.dEntropy)), dist.entropy))
	} else {
		entropyCost = G.Must(G.Sum(G.Must(G.HadamardProd(a.dEntropy,
			dist.entropy))))
	}
	cost = G.Must(G.Add(cost, entropyCost))
	valueCost := G.Must(G.Sum(G.Must(G.HadamardProd(a.dValue, a.values))))
	cost = G.Must(G.Add(cost, valueCost))

	G.Read(a.values, &a.valuesVal)
	G.Read(dist.logProb, &a.logProbVal)
	G.Read(dist.entropy, &a.entropyVal)

	policyNodes := append(G.Nodes{}, actor.Learnables()...)
	policyNodes = append(policyNodes, dist.extra...)
	valueNodes := critic.Learnables()
	a.learnables = append(append(G.Nodes{}, policyNodes...), valueNodes...)

	if _, err := G.Grad(cost, a.learnables...); err != nil {
		return nil, fmt.Errorf("newActorCritic: could not compute "+
			"gradient: %v", err)
	}

	a.policy = toParameters(policyNodes)
	a.value = toParameters(valueNodes)
	a.params = append(append([]agent.Parameter{}, a.policy...), a.value...)

	a.solver, err = solver.New(c.Solver, c.LearningRate)
	if err != nil {
		return nil, err
	}

	a.vm = G.NewTapeMachine(g, G.BindDualValues(a.learnables...))
	return a, nil
}

// coefficient adds a vector of loss coefficients to g
func coefficient(g *G.ExprGraph, size int, name string) *G.Node {
	return G.NewVector(g, tensor.Float64, G.WithShape(size), G.WithName(name),
		G.WithInit(G.Zeroes()))
}

// setVector sets the first len(data) elements of a vector node,
// padding the rest with zeros
func setVector(n *G.Node, data []float64, size int) error {
	backing := make([]float64, size)
	copy(backing, data)
	return G.Let(n, tensor.New(tensor.WithBacking(backing),
		tensor.WithShape(size)))
}

// setInputs sets the observations and actions of n samples
func (a *actorCritic) setInputs(obs, actions []float64, n int) error {
	padded := make([]float64, a.batchSize*a.features)
	copy(padded, obs)
	if err := a.actor.SetInput(padded); err != nil {
		return err
	}

	acts, err := a.dist.setActs(actions, n)
	if err != nil {
		return err
	}
	paddedActs := make([]float64, a.batchSize*a.dist.actWidth)
	copy(paddedActs, acts)
	return G.Let(a.dist.actions, tensor.New(tensor.WithBacking(paddedActs),
		tensor.WithShape(a.batchSize, a.dist.actWidth)))
}

// samples returns the number of samples in a row major batch of
// observations
func (a *actorCritic) samples(obs []float64) (int, error) {
	if len(obs)%a.features != 0 {
		return 0, fmt.Errorf("observations must have %d features",
			a.features)
	}
	n := len(obs) / a.features
	if n < 1 || n > a.batchSize {
		return 0, fmt.Errorf("batch of %d samples does not fit in %d", n,
			a.batchSize)
	}
	return n, nil
}

// run runs the graph with the given loss coefficients. The machine is
// not reset, so that gradients remain available.
func (a *actorCritic) run(obs, actions []float64, n int,
	grad agent.LossGradient) error {
	a.vm.Reset()
	if err := a.setInputs(obs, actions, n); err != nil {
		return err
	}
	if err := setVector(a.dLogProb, grad.LogProb, a.batchSize); err != nil {
		return err
	}
	if err := setVector(a.dValue, grad.Values, a.batchSize); err != nil {
		return err
	}
	if err := setVector(a.dEntropy, grad.Entropy, a.batchSize); err != nil {
		return err
	}
	return a.vm.RunAll()
}

// EvaluateActions implements the agent.ActorCritic interface
func (a *actorCritic) EvaluateActions(obs, actions []float64) (
	agent.Evaluation, error) {
	n, err := a.samples(obs)
	if err != nil {
		return agent.Evaluation{}, fmt.Errorf("evaluateActions: %v", err)
	}
	if err := a.run(obs, actions, n, agent.LossGradient{}); err != nil {
		return agent.Evaluation{}, fmt.Errorf("evaluateActions: %v", err)
	}

	eval := agent.Evaluation{
		Values:  head(a.valuesVal, n),
		LogProb: head(a.logProbVal, n),
	}
	if a.dist.entropy.IsScalar() {
		h := a.entropyVal.Data().(float64)
		eval.Entropy = make([]float64, n)
		for i := range eval.Entropy {
			eval.Entropy[i] = h
		}
	} else {
		eval.Entropy = head(a.entropyVal, n)
	}

	a.lastObs = append(a.lastObs[:0], obs...)
	a.lastActions = append(a.lastActions[:0], actions...)
	a.lastN = n
	a.pending = true
	return eval, nil
}

// head copies the first n elements of a vector value
func head(v G.Value, n int) []float64 {
	out := make([]float64, n)
	copy(out, v.Data().([]float64))
	return out
}

// Backward implements the agent.ActorCritic interface
func (a *actorCritic) Backward(grad agent.LossGradient) error {
	if !a.pending {
		return fmt.Errorf("backward: no evaluation to differentiate")
	}
	if len(grad.LogProb) != a.lastN || len(grad.Values) != a.lastN {
		return fmt.Errorf("backward: gradient must have %d elements",
			a.lastN)
	}
	if grad.Entropy != nil && len(grad.Entropy) != a.lastN {
		return fmt.Errorf("backward: entropy gradient must have %d elements",
			a.lastN)
	}
	return a.run(a.lastObs, a.lastActions, a.lastN, grad)
}

// Step implements the agent.ActorCritic interface
func (a *actorCritic) Step() error {
	if err := a.solver.Step(G.NodesToValueGrads(a.learnables)); err != nil {
		return fmt.Errorf("step: could not step solver: %v", err)
	}
	a.pending = false
	return nil
}

// PolicyParameters implements the agent.ActorCritic interface
func (a *actorCritic) PolicyParameters() []agent.Parameter {
	return a.policy
}

// ValueParameters implements the agent.ActorCritic interface
func (a *actorCritic) ValueParameters() []agent.Parameter {
	return a.value
}

// Parameters implements the agent.ActorCritic interface
func (a *actorCritic) Parameters() []agent.Parameter {
	return a.params
}

// LearningRate returns the learning rate of the optimizer
func (a *actorCritic) LearningRate() float64 {
	return a.solver.LearningRate()
}

// SetLearningRate sets the learning rate of the optimizer
func (a *actorCritic) SetLearningRate(lr float64) {
	a.solver.SetLearningRate(lr)
}

// forward runs the graph on a single observation, which is placed in
// the first row of the batch
func (a *actorCritic) forward(obs []float64) error {
	if len(obs) != a.features {
		return fmt.Errorf("observation must have %d features, have %d",
			a.features, len(obs))
	}
	zeros := make([]float64, a.dist.actDim)
	if err := a.run(obs, zeros, 1, agent.LossGradient{}); err != nil {
		return err
	}
	a.pending = false
	return nil
}
