package ppo

import (
	"math"

	"github.com/samuelfneumann/goppo/agent"
	"gonum.org/v1/gonum/floats"
)

// clipEps offsets the gradient norm when computing the clip
// coefficient
const clipEps = 1e-6

// modelNorm returns the L2 norm of all parameters taken together
func modelNorm(params []agent.Parameter) float64 {
	var sq float64
	for _, p := range params {
		n := floats.Norm(p.Data(), 2)
		sq += n * n
	}
	return math.Sqrt(sq)
}

// gradNorm returns the L2 norm of all parameter gradients taken
// together
func gradNorm(params []agent.Parameter) float64 {
	var sq float64
	for _, p := range params {
		n := floats.Norm(p.Grad(), 2)
		sq += n * n
	}
	return math.Sqrt(sq)
}

// clipGradNorm rescales the gradients of params in place so that
// their combined L2 norm is at most maxNorm. The norm before clipping
// is returned.
func clipGradNorm(params []agent.Parameter, maxNorm float64) float64 {
	total := gradNorm(params)
	coef := maxNorm / (total + clipEps)
	if coef < 1 {
		for _, p := range params {
			floats.Scale(coef, p.Grad())
		}
	}
	return total
}
