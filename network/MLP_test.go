package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestMLPForward(t *testing.T) {
	g := G.NewGraph()
	net, err := NewMLP(3, 2, 2, g, []int{4}, []bool{true}, G.Ones(),
		[]*Activation{ReLU()})
	require.NoError(t, err)

	assert.Equal(t, 2, net.BatchSize())
	assert.Equal(t, 3, net.Features())
	assert.Equal(t, 2, net.Outputs())
	assert.Len(t, net.Learnables(), 4)
	assert.Len(t, net.Model(), 4)

	require.NoError(t, net.SetInput([]float64{1, 2, 3, -1, -2, -3}))
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	// Hidden units are relu(6) = 6 and relu(-6) = 0, and each output
	// sums the 4 hidden units. Biases start at zero.
	out := net.Output().Data().([]float64)
	assert.Equal(t, []float64{24, 24, 0, 0}, out)

	assert.Error(t, net.SetInput([]float64{1, 2, 3}))
}

func TestMLPSharedInput(t *testing.T) {
	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(1, 2),
		G.WithName("x"), G.WithInit(G.Zeroes()))

	a, err := NewMLPFromInput(input, 1, nil, nil, G.Ones(), nil, "a")
	require.NoError(t, err)
	b, err := NewMLPFromInput(input, 3, []int{2}, []bool{false}, G.Ones(),
		[]*Activation{Identity()}, "b")
	require.NoError(t, err)
	assert.Len(t, a.Learnables(), 2)
	assert.Len(t, b.Learnables(), 3)

	require.NoError(t, a.SetInput([]float64{1, 2}))
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	assert.Equal(t, []float64{3}, a.Output().Data().([]float64))
	assert.Equal(t, []float64{6, 6, 6}, b.Output().Data().([]float64))
}

func TestMLPErrors(t *testing.T) {
	_, err := NewMLP(3, 2, 2, G.NewGraph(), []int{4}, []bool{true}, G.Ones(), nil)
	assert.Error(t, err)

	_, err = NewMLP(3, 2, 2, G.NewGraph(), []int{4}, nil, G.Ones(),
		[]*Activation{TanH()})
	assert.Error(t, err)

	_, err = NewMLP(3, 2, 0, G.NewGraph(), nil, nil, G.Ones(), nil)
	assert.Error(t, err)
}

func TestParseActivation(t *testing.T) {
	for _, name := range []string{"relu", "tanh", "identity", "sigmoid"} {
		act, err := ParseActivation(name)
		require.NoError(t, err)
		assert.Equal(t, name, act.String())
	}
	_, err := ParseActivation("swish")
	assert.Error(t, err)
	assert.True(t, Identity().IsIdentity())

	var act Activation
	require.NoError(t, act.UnmarshalJSON([]byte(`"tanh"`)))
	assert.Equal(t, "tanh", act.String())
}
