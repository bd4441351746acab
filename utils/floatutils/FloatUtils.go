// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// Standardize returns a copy of values shifted to mean 0 and scaled by
// the inverse of (standard deviation + eps). The standard deviation is
// the unbiased estimate, so values must have at least two elements for
// the result to be finite.
func Standardize(values []float64, eps float64) []float64 {
	mean, std := stat.MeanStdDev(values, nil)
	out := make([]float64, len(values))
	copy(out, values)
	floats.AddConst(-mean, out)
	floats.Scale(1/(std+eps), out)
	return out
}

// ExplainedVariance computes the fraction of the variance of target
// that is explained by pred:
//
//	1 - Var[target - pred] / Var[target]
//
// A result of 1 is a perfect prediction, 0 is no better than
// predicting the mean of target, and negative values are worse than
// that. NaN is returned when target has zero variance.
func ExplainedVariance(pred, target []float64) float64 {
	if len(pred) != len(target) {
		panic("explainedVariance: pred and target lengths differ")
	}
	varTarget := stat.Variance(target, nil)
	if varTarget == 0 {
		return math.NaN()
	}

	diff := make([]float64, len(target))
	floats.SubTo(diff, target, pred)
	return 1 - stat.Variance(diff, nil)/varTarget
}
