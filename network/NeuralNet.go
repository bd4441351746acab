// Package network implements feed forward neural networks on top of
// Gorgonia computational graphs.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a neural network whose forward pass has been added to
// a computational graph
type NeuralNet interface {
	Graph() *G.ExprGraph

	// BatchSize returns the number of rows in the input
	BatchSize() int

	// Features returns the number of columns in the input
	Features() int

	// Outputs returns the number of columns in the prediction
	Outputs() int

	// SetInput sets the value of the input node, in row major order
	SetInput([]float64) error

	Learnables() G.Nodes
	Model() []G.ValueGrad

	// Prediction returns the node holding the network output
	Prediction() *G.Node

	// Output returns the value of the prediction after the graph has
	// been run
	Output() G.Value
}
