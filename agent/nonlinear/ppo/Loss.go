package ppo

import (
	"math"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/buffer/rollout"
	"github.com/samuelfneumann/goppo/utils/floatutils"
	"gonum.org/v1/gonum/stat"
)

// advantageEps offsets the standard deviation when normalizing
// advantages
const advantageEps = 1e-8

// lossConfig holds the coefficients of the PPO loss for a single
// policy update
type lossConfig struct {
	clipRange   float64
	clipRangeVF float64
	clipValues  bool

	zeroClip   bool // Lower bound of the ratio clip is 0 instead of 1 - ε
	useEntropy bool // Entropy bonus is part of the total loss
	normalize  bool

	entCoef float64
	vfCoef  float64
}

// lossResult holds the losses and diagnostics of one policy update
// together with the derivative of the total loss with respect to the
// policy outputs
type lossResult struct {
	policyLoss  float64
	valueLoss   float64
	entropyLoss float64
	totalLoss   float64

	clipFraction float64
	approxKL     float64

	meanTargetValue  float64 // Mean of the predicted values
	meanPredictValue float64 // Mean of the possibly clipped values

	grad agent.LossGradient
}

// computeLoss computes the clipped surrogate loss, value loss, and
// entropy loss of a policy evaluation on a minibatch:
//
//	L = -mean(min(A r, A clip(r, lo, 1+ε))) + c_vf * mean((R - v')^2)
//	    + c_ent * entropy loss
//
// where r = exp(log π(a|s) - log π_old(a|s)) and v' is the predicted
// value with its change from the old value optionally clipped to
// ±ε_vf. The entropy loss is -mean(H) if the policy has closed form
// entropy and -mean(-log π(a|s)) otherwise.
func computeLoss(batch rollout.Batch, eval agent.Evaluation,
	c lossConfig) lossResult {
	n := len(eval.LogProb)
	invN := 1.0 / float64(n)

	advantages := batch.Advantages
	if c.normalize && n > 1 {
		advantages = floatutils.Standardize(advantages, advantageEps)
	}

	lower := 1 - c.clipRange
	if c.zeroClip {
		lower = 0
	}
	upper := 1 + c.clipRange

	grad := agent.LossGradient{
		Values:  make([]float64, n),
		LogProb: make([]float64, n),
	}
	if eval.Entropy != nil {
		grad.Entropy = make([]float64, n)
	}

	var policyLoss, clipped, approxKL float64
	for i := 0; i < n; i++ {
		logRatio := eval.LogProb[i] - batch.OldLogProb[i]
		ratio := math.Exp(logRatio)

		unclippedObj := advantages[i] * ratio
		clippedObj := advantages[i] * floatutils.Clip(ratio, lower, upper)

		// The clipped objective is only smaller when the ratio lies
		// outside the clip bounds, where its gradient is zero
		if clippedObj < unclippedObj {
			policyLoss -= clippedObj
		} else {
			policyLoss -= unclippedObj
			grad.LogProb[i] = -invN * unclippedObj
		}

		if math.Abs(ratio-1) > c.clipRange {
			clipped++
		}
		approxKL += (ratio - 1) - logRatio
	}
	policyLoss *= invN

	valuesPred := eval.Values
	if c.clipValues {
		valuesPred = make([]float64, n)
		for i, v := range eval.Values {
			old := batch.OldValues[i]
			valuesPred[i] = old + floatutils.Clip(v-old, -c.clipRangeVF,
				c.clipRangeVF)
		}
	}

	var valueLoss float64
	for i := 0; i < n; i++ {
		diff := valuesPred[i] - batch.Returns[i]
		valueLoss += diff * diff

		change := math.Abs(eval.Values[i] - batch.OldValues[i])
		if !c.clipValues || change <= c.clipRangeVF {
			grad.Values[i] = c.vfCoef * 2 * invN * diff
		}
	}
	valueLoss *= invN

	var entropyLoss float64
	entCoef := 0.0
	if c.useEntropy {
		entCoef = c.entCoef
	}
	if eval.Entropy == nil {
		entropyLoss = stat.Mean(eval.LogProb, nil)
		for i := range grad.LogProb {
			grad.LogProb[i] += entCoef * invN
		}
	} else {
		entropyLoss = -stat.Mean(eval.Entropy, nil)
		for i := range grad.Entropy {
			grad.Entropy[i] = -entCoef * invN
		}
	}

	total := policyLoss + c.vfCoef*valueLoss
	if c.useEntropy {
		total += c.entCoef * entropyLoss
	}

	return lossResult{
		policyLoss:       policyLoss,
		valueLoss:        valueLoss,
		entropyLoss:      entropyLoss,
		totalLoss:        total,
		clipFraction:     clipped * invN,
		approxKL:         approxKL * invN,
		meanTargetValue:  stat.Mean(eval.Values, nil),
		meanPredictValue: stat.Mean(valuesPred, nil),
		grad:             grad,
	}
}
