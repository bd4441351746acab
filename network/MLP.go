package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// mlp implements a multi-layered perceptron
type mlp struct {
	g         *G.ExprGraph
	layers    []*fcLayer
	input     *G.Node
	numInputs int
	outputs   int
	batchSize int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// validate checks that one bias and activation is given per hidden
// layer
func validate(hiddenSizes []int, biases []bool,
	activations []*Activation) error {
	if len(hiddenSizes) != len(activations) {
		return fmt.Errorf("invalid number of activations\n\twant(%d)"+
			"\n\thave(%d)", len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		return fmt.Errorf("invalid number of biases\n\twant(%d)"+
			"\n\thave(%d)", len(hiddenSizes), len(biases))
	}
	for i, size := range hiddenSizes {
		if size < 1 {
			return fmt.Errorf("hidden layer %d must have at least one "+
				"unit\n\thave(%d)", i, size)
		}
	}
	return nil
}

// NewMLP creates and returns a new multi-layered perceptron whose
// input is a new batch x features matrix in the graph g.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// linear layer with a bias unit is always added so that the network
// predicts outputs values per input row. For index i, hiddenSizes[i]
// is the number of nodes in hidden layer i; biases[i] is true if the
// hidden layer will contain a bias unit; and activations[i] is the
// activation function for hidden layer i. The parameter init
// determines the weight initialization scheme.
func NewMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	return NewMLPFromInput(input, outputs, hiddenSizes, biases, init,
		activations, "")
}

// NewMLPFromInput returns a new multi-layered perceptron that reads
// from an existing input matrix node. Several networks can share a
// single input this way. The prefix distinguishes the names of the
// network's weights from those of other networks in the same graph.
//
// See NewMLP for details on the remaining arguments.
func NewMLPFromInput(input *G.Node, outputs int, hiddenSizes []int,
	biases []bool, init G.InitWFn, activations []*Activation,
	prefix string) (NeuralNet, error) {
	if err := validate(hiddenSizes, biases, activations); err != nil {
		return nil, fmt.Errorf("newMLPFromInput: %v", err)
	}
	if !input.IsMatrix() {
		return nil, fmt.Errorf("newMLPFromInput: input must be a matrix")
	}
	if outputs < 1 {
		return nil, fmt.Errorf("newMLPFromInput: outputs must be positive"+
			"\n\thave(%d)", outputs)
	}

	g := input.Graph()
	batch := input.Shape()[0]
	features := input.Shape()[1]

	net := &mlp{
		g:         g,
		layers:    addFCLayers(g, features, outputs, hiddenSizes, biases, activations, init, prefix),
		input:     input,
		numInputs: features,
		outputs:   outputs,
		batchSize: batch,
	}

	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("newMLPFromInput: could not compute "+
			"forward pass: %v", err)
	}
	return net, nil
}

// Graph returns the computational graph of the mlp
func (m *mlp) Graph() *G.ExprGraph {
	return m.g
}

// BatchSize returns the batch size of inputs to the network
func (m *mlp) BatchSize() int {
	return m.batchSize
}

// Features returns the number of features in a single input row
func (m *mlp) Features() int {
	return m.numInputs
}

// Outputs returns the number of outputs from the network
func (m *mlp) Outputs() int {
	return m.outputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (m *mlp) SetInput(input []float64) error {
	if len(input) != m.numInputs*m.batchSize {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", m.numInputs*m.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(m.input.Shape()...),
	)
	return G.Let(m.input, inputTensor)
}

// Learnables returns the learnable nodes in the mlp
func (m *mlp) Learnables() G.Nodes {
	if m.learnables == nil {
		learnables := make(G.Nodes, 0, 2*len(m.layers))
		for _, l := range m.layers {
			learnables = append(learnables, l.learnables()...)
		}
		m.learnables = learnables
	}
	return m.learnables
}

// Model returns the learnables nodes with their gradients.
func (m *mlp) Model() []G.ValueGrad {
	if m.model == nil {
		m.model = G.NodesToValueGrads(m.Learnables())
	}
	return m.model
}

// fwd performs the forward pass of the mlp on the input node
func (m *mlp) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			return nil, fmt.Errorf("fwd: could not compute forward pass "+
				"of layer %v: %v", i, err)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)

	return pred, nil
}

// Output returns the output of the mlp.
func (m *mlp) Output() G.Value {
	return m.predVal
}

// Prediction returns the node of the computational graph the stores
// the output of the mlp
func (m *mlp) Prediction() *G.Node {
	return m.prediction
}
