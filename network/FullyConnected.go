package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// newFCLayer adds the weights of a fully connected layer mapping in
// features to out features to the graph g
func newFCLayer(g *G.ExprGraph, in, out int, bias bool, act *Activation,
	init G.InitWFn, name string) *fcLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(name+"W"),
		G.WithInit(init),
	)

	var b *G.Node
	if bias {
		b = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(1, out),
			G.WithName(name+"B"),
			G.WithInit(G.Zeroes()),
		)
	}

	return &fcLayer{weights: weights, bias: b, act: act}
}

// addFCLayers adds a stack of fully connected layers to g, one per
// element of hiddenSizes, followed by a linear output layer with
// outputs units
func addFCLayers(g *G.ExprGraph, features, outputs int, hiddenSizes []int,
	biases []bool, activations []*Activation, init G.InitWFn,
	prefix string) []*fcLayer {
	layers := make([]*fcLayer, 0, len(hiddenSizes)+1)

	in := features
	for i, size := range hiddenSizes {
		name := fmt.Sprintf("%sL%d", prefix, i)
		layers = append(layers, newFCLayer(g, in, size, biases[i],
			activations[i], init, name))
		in = size
	}

	name := fmt.Sprintf("%sL%d", prefix, len(hiddenSizes))
	layers = append(layers, newFCLayer(g, in, outputs, true, Identity(),
		init, name))

	return layers
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, err
	}

	if f.bias != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0})
		if err != nil {
			return nil, err
		}
	}

	if f.act == nil || f.act.IsIdentity() {
		return x, nil
	}
	return f.act.fwd(x)
}

// learnables returns the learnable nodes of the layer
func (f *fcLayer) learnables() G.Nodes {
	if f.bias == nil {
		return G.Nodes{f.weights}
	}
	return G.Nodes{f.weights, f.bias}
}
