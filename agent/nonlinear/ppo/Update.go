package ppo

import (
	"fmt"

	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/buffer/rollout"
)

// clipValues holds the clip ranges of one training step
type clipValues struct {
	clipRange   float64
	clipRangeVF float64
	clipValues  bool // Whether value predictions are clipped
}

// updateResult holds the losses and diagnostics of an applied policy
// update
type updateResult struct {
	lossResult

	learningRate float64

	actorModelNorm       float64
	actorGradNorm        float64 // After clipping
	actorPreClipGradNorm float64

	criticModelNorm       float64
	criticGradNorm        float64 // After clipping
	criticPreClipGradNorm float64
}

// discretize reinterprets actions as category indices
func discretize(actions []float64) []float64 {
	indices := make([]float64, len(actions))
	for i, a := range actions {
		indices[i] = float64(int64(a))
	}
	return indices
}

// evaluate evaluates the policy of m on batch and computes its loss
func (p *PPO) evaluate(m member, batch rollout.Batch,
	clip clipValues) (lossResult, error) {
	pol := m.policy

	actions := batch.Actions
	if pol.Discrete() {
		actions = discretize(actions)
	}

	if resetter, ok := pol.(agent.NoiseResetter); ok && p.config.UseSDE {
		resetter.ResetNoise(p.config.BatchSize)
	}

	eval, err := pol.EvaluateActions(batch.Observations, actions)
	if err != nil {
		return lossResult{}, fmt.Errorf("evaluate: could not evaluate "+
			"actions of %v policy: %w", m.slot, err)
	}

	n := batch.Len()
	if len(eval.Values) != n || len(eval.LogProb) != n ||
		(eval.Entropy != nil && len(eval.Entropy) != n) {
		return lossResult{}, fmt.Errorf("evaluate: %v policy returned an "+
			"evaluation of the wrong size\n\twant(%v)\n\thave(%v, %v, %v)",
			m.slot, n, len(eval.Values), len(eval.LogProb), len(eval.Entropy))
	}

	return computeLoss(batch, eval, lossConfig{
		clipRange:   clip.clipRange,
		clipRangeVF: clip.clipRangeVF,
		clipValues:  clip.clipValues,
		zeroClip:    m.zeroClip,
		useEntropy:  m.useEntropy,
		normalize:   p.config.NormalizeAdvantage,
		entCoef:     p.config.EntCoef,
		vfCoef:      p.config.VFCoef,
	}), nil
}

// apply backpropagates the loss of an evaluated update through the
// policy of m, clips the gradient, and takes an optimizer step.
//
// The pre-clip gradient norms of the actor and critic are both
// measured on the gradient of the total loss.
func (p *PPO) apply(m member, res lossResult) (updateResult, error) {
	pol := m.policy
	if err := pol.Backward(res.grad); err != nil {
		return updateResult{}, fmt.Errorf("apply: could not backpropagate "+
			"loss of %v policy: %w", m.slot, err)
	}

	actor := pol.PolicyParameters()
	critic := pol.ValueParameters()

	u := updateResult{
		lossResult:            res,
		learningRate:          pol.LearningRate(),
		actorPreClipGradNorm:  gradNorm(actor),
		criticPreClipGradNorm: gradNorm(critic),
	}

	clipGradNorm(pol.Parameters(), p.config.MaxGradNorm)
	u.actorGradNorm = gradNorm(actor)
	u.criticGradNorm = gradNorm(critic)

	if err := pol.Step(); err != nil {
		return updateResult{}, fmt.Errorf("apply: could not step optimizer "+
			"of %v policy: %w", m.slot, err)
	}

	u.actorModelNorm = modelNorm(actor)
	u.criticModelNorm = modelNorm(critic)
	return u, nil
}
