package policy

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goppo/network"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GaussianMLP is an actor-critic with a diagonal Gaussian policy. The
// policy network predicts the mean of the Gaussian and the log
// standard deviation is a state independent learnable vector.
//
// Actions are selected by sampling ɛ ~ N(0, I) and computing
// action := μ + σ ⊙ ɛ.
type GaussianMLP struct {
	*actorCritic

	actionDims int
	logStd     *G.Node
	meanVal    G.Value

	normal distmv.Rander
}

// NewGaussianMLP returns a new GaussianMLP over actionDims dimensional
// actions for observations with the given number of features
func NewGaussianMLP(c Config, features, actionDims int) (*GaussianMLP,
	error) {
	if actionDims < 1 {
		return nil, fmt.Errorf("newGaussianMLP: need at least one action " +
			"dimension")
	}

	means := make([]float64, actionDims)
	std := mat.NewDiagDense(actionDims, nil)
	for i := 0; i < actionDims; i++ {
		std.SetDiag(i, 1.0)
	}
	normal, ok := distmv.NewNormal(means, std, rand.NewSource(c.Seed))
	if !ok {
		return nil, fmt.Errorf("newGaussianMLP: could not create standard " +
			"normal")
	}

	pol := &GaussianMLP{
		actionDims: actionDims,
		normal:     normal,
	}

	build := func(g *G.ExprGraph, actor network.NeuralNet) (distribution,
		error) {
		mean := actor.Prediction()
		batch := mean.Shape()[0]
		G.Read(mean, &pol.meanVal)

		pol.logStd = G.NewMatrix(g, tensor.Float64,
			G.WithShape(1, actionDims), G.WithName("logStd"),
			G.WithInit(G.ValuesOf(c.InitLogStd)))

		actions := G.NewMatrix(g, tensor.Float64,
			G.WithShape(batch, actionDims), G.WithName("actions"),
			G.WithInit(G.Zeroes()))

		// z = (a - μ) / σ
		invStd := G.Must(G.Exp(G.Must(G.Neg(pol.logStd))))
		z := G.Must(G.BroadcastHadamardProd(G.Must(G.Sub(actions, mean)),
			invStd, nil, []byte{0}))

		// log π(a|s) = -½ Σ z² - Σ log σ - ½ d log 2π
		sumLogStd := G.Must(G.Sum(pol.logStd))
		normalizer := G.Must(G.Add(sumLogStd,
			G.NewConstant(0.5*float64(actionDims)*math.Log(2*math.Pi))))
		sq := G.Must(G.Sum(G.Must(G.Square(z)), 1))
		logProb := G.Must(G.Mul(sq, G.NewConstant(-0.5)))
		logProb = G.Must(G.Sub(logProb, normalizer))

		// H = Σ log σ + d (½ + ½ log 2π)
		entropy := G.Must(G.Add(sumLogStd, G.NewConstant(
			float64(actionDims)*(0.5+0.5*math.Log(2*math.Pi)))))

		return distribution{
			actions:  actions,
			logProb:  logProb,
			entropy:  entropy,
			extra:    G.Nodes{pol.logStd},
			setActs:  pol.checkActions,
			actWidth: actionDims,
			actDim:   actionDims,
		}, nil
	}

	ac, err := newActorCritic(c, features, actionDims, build)
	if err != nil {
		return nil, fmt.Errorf("newGaussianMLP: %v", err)
	}
	pol.actorCritic = ac
	return pol, nil
}

// checkActions ensures n actions were given
func (g *GaussianMLP) checkActions(actions []float64, n int) ([]float64,
	error) {
	if len(actions) != n*g.actionDims {
		return nil, fmt.Errorf("need %d action dimensions per observation, "+
			"have %d values for %d observations", g.actionDims, len(actions),
			n)
	}
	return actions, nil
}

// Discrete returns false
func (g *GaussianMLP) Discrete() bool {
	return false
}

// logStds returns the current log standard deviations
func (g *GaussianMLP) logStds() []float64 {
	return g.logStd.Value().Data().([]float64)
}

// Std returns the mean standard deviation over action dimensions
func (g *GaussianMLP) Std() float64 {
	var total float64
	for _, l := range g.logStds() {
		total += math.Exp(l)
	}
	return total / float64(g.actionDims)
}

// SelectAction samples an action in state obs
func (g *GaussianMLP) SelectAction(obs []float64) ([]float64, float64,
	float64, error) {
	if err := g.forward(obs); err != nil {
		return nil, 0, 0, fmt.Errorf("selectAction: %v", err)
	}
	mean := head(g.meanVal, g.actionDims)
	value := g.valuesVal.Data().([]float64)[0]
	logStd := g.logStds()

	eps := g.normal.Rand(nil)
	action := make([]float64, g.actionDims)
	logProb := -0.5 * float64(g.actionDims) * math.Log(2*math.Pi)
	for i := range action {
		action[i] = mean[i] + math.Exp(logStd[i])*eps[i]
		logProb -= 0.5*eps[i]*eps[i] + logStd[i]
	}

	return action, logProb, value, nil
}
