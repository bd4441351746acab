package policy

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goppo/network"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// CategoricalMLP is an actor-critic with a softmax policy over a
// discrete set of actions. Actions are the indices of the chosen
// categories, stored as float64.
type CategoricalMLP struct {
	*actorCritic

	numActions int
	logPiVal   G.Value // log probabilities of all actions
	src        rand.Source
}

// NewCategoricalMLP returns a new CategoricalMLP over numActions
// actions for observations with the given number of features
func NewCategoricalMLP(c Config, features, numActions int) (*CategoricalMLP,
	error) {
	if numActions < 2 {
		return nil, fmt.Errorf("newCategoricalMLP: need at least 2 actions")
	}

	pol := &CategoricalMLP{
		numActions: numActions,
		src:        rand.NewSource(c.Seed),
	}

	build := func(g *G.ExprGraph, actor network.NeuralNet) (distribution,
		error) {
		logits := actor.Prediction()
		batch := logits.Shape()[0]

		// log π(a|s) = z - log Σ exp(z) with z = logits - max(logits)
		maxLogit := G.Must(G.Max(logits, 1))
		maxLogit = G.Must(G.Reshape(maxLogit, tensor.Shape{batch, 1}))
		shifted := G.Must(G.BroadcastSub(logits, maxLogit, nil, []byte{1}))

		lse := G.Must(G.Log(G.Must(G.Sum(G.Must(G.Exp(shifted)), 1))))
		lse = G.Must(G.Reshape(lse, tensor.Shape{batch, 1}))
		logPi := G.Must(G.BroadcastSub(shifted, lse, nil, []byte{1}))
		G.Read(logPi, &pol.logPiVal)

		// Actions are one-hot encoded
		oneHot := G.NewMatrix(g, tensor.Float64,
			G.WithShape(batch, numActions), G.WithName("actions"),
			G.WithInit(G.Zeroes()))
		logProb := G.Must(G.Sum(G.Must(G.HadamardProd(oneHot, logPi)), 1))

		probs := G.Must(G.Exp(logPi))
		entropy := G.Must(G.Neg(G.Must(G.Sum(G.Must(G.HadamardProd(probs,
			logPi)), 1))))

		return distribution{
			actions:  oneHot,
			logProb:  logProb,
			entropy:  entropy,
			setActs:  pol.oneHot,
			actWidth: numActions,
			actDim:   1,
		}, nil
	}

	ac, err := newActorCritic(c, features, numActions, build)
	if err != nil {
		return nil, fmt.Errorf("newCategoricalMLP: %v", err)
	}
	pol.actorCritic = ac
	return pol, nil
}

// oneHot encodes n action indices
func (c *CategoricalMLP) oneHot(actions []float64, n int) ([]float64, error) {
	if len(actions) != n {
		return nil, fmt.Errorf("need one action per observation, have %d "+
			"actions for %d observations", len(actions), n)
	}
	encoded := make([]float64, n*c.numActions)
	for i, a := range actions {
		index := int(a)
		if index < 0 || index >= c.numActions {
			return nil, fmt.Errorf("action %v out of range [0, %d)", a,
				c.numActions)
		}
		encoded[i*c.numActions+index] = 1.0
	}
	return encoded, nil
}

// Discrete returns true
func (c *CategoricalMLP) Discrete() bool {
	return true
}

// Probabilities returns the probability of each action in state obs
func (c *CategoricalMLP) Probabilities(obs []float64) ([]float64, error) {
	if err := c.forward(obs); err != nil {
		return nil, fmt.Errorf("probabilities: %v", err)
	}
	logPi := head(c.logPiVal, c.numActions)
	for i := range logPi {
		logPi[i] = math.Exp(logPi[i])
	}
	return logPi, nil
}

// SelectAction samples an action in state obs
func (c *CategoricalMLP) SelectAction(obs []float64) ([]float64, float64,
	float64, error) {
	if err := c.forward(obs); err != nil {
		return nil, 0, 0, fmt.Errorf("selectAction: %v", err)
	}
	logPi := head(c.logPiVal, c.numActions)
	value := c.valuesVal.Data().([]float64)[0]

	probs := make([]float64, len(logPi))
	for i := range logPi {
		probs[i] = math.Exp(logPi[i])
	}
	action := distuv.NewCategorical(probs, c.src).Rand()

	return []float64{action}, logPi[int(action)], value, nil
}
