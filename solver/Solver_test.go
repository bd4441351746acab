package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, ty := range []Type{Adam, RMSProp, Vanilla} {
		s, err := New(ty, 0.01)
		require.NoError(t, err)
		assert.Equal(t, ty, s.Type)
		assert.Equal(t, 0.01, s.LearningRate())
		assert.NotNil(t, s.Solver)
	}

	_, err := New("Momentum", 0.01)
	assert.Error(t, err)
}

func TestSetLearningRate(t *testing.T) {
	s, err := NewDefaultAdam(1e-3, 1)
	require.NoError(t, err)
	inner := s.Solver

	s.SetLearningRate(1e-3)
	assert.True(t, inner == s.Solver, "same learning rate must not rebuild")

	s.SetLearningRate(5e-4)
	assert.Equal(t, 5e-4, s.LearningRate())
	assert.Equal(t, 5e-4, s.Config.(AdamConfig).StepSize)
	assert.Equal(t, 0.9, s.Config.(AdamConfig).Beta1)
}

func TestUnmarshalJSON(t *testing.T) {
	s, err := NewRMSProp(0.1, 1e-6, 0.9, 1, 2)
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Solver
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, RMSProp, decoded.Type)
	assert.Equal(t, s.Config, decoded.Config)
	assert.NotNil(t, decoded.Solver)

	assert.Error(t, json.Unmarshal([]byte(`{"Type": "Nope"}`), &decoded))
}
