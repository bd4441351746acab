package floatutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func TestExplainedVariance(t *testing.T) {
	returns := []float64{1, -2, 3.5, 0, 7, 2}

	t.Run("Perfect", func(t *testing.T) {
		assert.Equal(t, 1.0, ExplainedVariance(returns, returns))
	})

	t.Run("Mean", func(t *testing.T) {
		mean := stat.Mean(returns, nil)
		pred := make([]float64, len(returns))
		for i := range pred {
			pred[i] = mean
		}
		assert.InDelta(t, 0.0, ExplainedVariance(pred, returns), 1e-12)
	})

	t.Run("ConstantTarget", func(t *testing.T) {
		target := []float64{3, 3, 3}
		assert.True(t, math.IsNaN(ExplainedVariance([]float64{1, 2, 3},
			target)))
	})
}

func TestStandardize(t *testing.T) {
	in := []float64{1, 2, 3, 4}
	out := Standardize(in, 0)

	mean, std := stat.MeanStdDev(out, nil)
	assert.InDelta(t, 0.0, mean, 1e-12)
	assert.InDelta(t, 1.0, std, 1e-12)
	assert.Equal(t, []float64{1, 2, 3, 4}, in, "input must not be modified")
}

func TestClip(t *testing.T) {
	assert.Equal(t, 1.2, Clip(3, 0.8, 1.2))
	assert.Equal(t, 0.8, Clip(-1, 0.8, 1.2))
	assert.Equal(t, 1.0, Clip(1, 0.8, 1.2))
}
