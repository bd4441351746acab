// Package ppo implements the training step of Proximal Policy
// Optimization with the clipped surrogate objective, following
// https://arxiv.org/abs/1707.06347.
//
// Besides the standard single policy mode, two dual modes train a
// second, entropy regularized auxiliary policy alongside the primary
// one. Each policy is updated independently on every minibatch.
package ppo

import (
	"fmt"
	"math"

	"github.com/aunum/log"
	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/buffer/rollout"
	"github.com/samuelfneumann/goppo/schedule"
	"github.com/samuelfneumann/goppo/utils/floatutils"
)

// Source is a fully populated rollout buffer that training iterates
// over
type Source interface {
	// Get returns an iterator over one shuffled pass through the
	// buffer in minibatches of size batchSize
	Get(batchSize int) (rollout.Iterator, error)

	// Values returns the value estimates of all buffered transitions
	Values() []float64

	// Returns returns the return targets of all buffered transitions
	Returns() []float64
}

// Recorder is a sink for training metrics
type Recorder interface {
	// Record records a metric, which is written on the next call to
	// Dump by all writers except those named in exclude
	Record(key string, value float64, exclude ...string)

	// Dump writes all recorded metrics at the given step
	Dump(step int) error
}

// PlotWriter names the writer that training excludes epoch counts
// from
const PlotWriter = "plot"

// PPO implements the training step of Proximal Policy Optimization
type PPO struct {
	config   Config
	source   Source
	policies policySet
	rec      Recorder

	lr          schedule.Schedule
	clipRange   schedule.Schedule
	clipRangeVF schedule.Schedule // nil if value predictions are not clipped

	diag  *diagnostics
	state trainingState
}

// New returns a new PPO training step that optimizes primary, and
// auxiliary if the configured mode is dual, on the transitions of
// source. Metrics are written to rec.
func New(c Config, source Source, primary, auxiliary agent.ActorCritic,
	rec Recorder) (*PPO, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if source == nil {
		return nil, fmt.Errorf("new: rollout source must not be nil")
	}
	if rec == nil {
		return nil, fmt.Errorf("new: recorder must not be nil")
	}

	policies, err := newPolicySet(c.Mode, primary, auxiliary,
		c.AllowZeroClipLoss)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	if size := c.BufferSize(); size%c.BatchSize != 0 {
		log.Infof("warning: mini-batch size %v does not divide the rollout "+
			"buffer size n_steps * n_envs = %v, after every %v untruncated "+
			"mini-batches there will be a truncated mini-batch of size %v "+
			"(n_steps=%v and n_envs=%v)", c.BatchSize, size,
			size/c.BatchSize, size%c.BatchSize, c.NSteps, c.NEnvs)
	}

	p := &PPO{
		config:    c,
		source:    source,
		policies:  policies,
		rec:       rec,
		lr:        c.LearningRate.Create(),
		clipRange: c.ClipRange.Create(),
		diag:      newDiagnostics(c.debugCadence(), policies.last(), rec),
	}
	if c.ClipRangeVF != nil {
		p.clipRangeVF = c.ClipRangeVF.Create()
	}

	return p, nil
}

// NumGradientSteps returns the number of individual policy updates
// applied so far
func (p *PPO) NumGradientSteps() int {
	return p.state.numGradientSteps
}

// NUpdates returns the number of epochs run so far
func (p *PPO) NUpdates() int {
	return p.state.nUpdates
}

// progressRemaining returns the fraction of training that remains
// after numTimesteps environment steps
func (p *PPO) progressRemaining(numTimesteps int) float64 {
	if p.config.TotalTimesteps <= 0 {
		return 1.0
	}
	remaining := 1 - float64(numTimesteps)/float64(p.config.TotalTimesteps)
	return floatutils.Clip(remaining, 0, 1)
}

// epochStats holds the means of the summary metrics of one slot over
// a single epoch
type epochStats struct {
	entropyLoss  runningMean
	policyLoss   runningMean
	valueLoss    runningMean
	approxKL     runningMean
	clipFraction runningMean
}

func (e *epochStats) add(res lossResult) {
	e.entropyLoss.add(res.entropyLoss)
	e.policyLoss.add(res.policyLoss)
	e.valueLoss.add(res.valueLoss)
	e.approxKL.add(res.approxKL)
	e.clipFraction.add(res.clipFraction)
}

// meanOrNaN returns the mean of r, or NaN if nothing was added to r
func meanOrNaN(r runningMean) float64 {
	if r.n == 0 {
		return math.NaN()
	}
	return r.value
}

// Train runs the training step on the rollout source, which must be
// fully populated. The numTimesteps argument is the number of
// environment steps taken so far and determines the values of all
// schedules.
func (p *PPO) Train(numTimesteps int) error {
	progress := p.progressRemaining(numTimesteps)
	members := p.policies.members()

	lr := p.lr(progress)
	for _, m := range members {
		m.policy.SetLearningRate(lr)
	}

	clip := clipValues{clipRange: p.clipRange(progress)}
	if p.clipRangeVF != nil {
		clip.clipRangeVF = p.clipRangeVF(progress)
		clip.clipValues = true
	}

	stop := newEarlyStop(p.config.TargetKL)
	var epoch [2]epochStats
	lastLoss := [2]float64{math.NaN(), math.NaN()}

	for e := 0; e < p.config.NEpochs && !stop.stopped(); e++ {
		epoch = [2]epochStats{}

		it, err := p.source.Get(p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("train: could not sample minibatches: %w", err)
		}

		for !stop.stopped() && it.Next() {
			batch := it.Batch()

			for _, m := range members {
				res, err := p.evaluate(m, batch, clip)
				if err != nil {
					return fmt.Errorf("train: %w", err)
				}
				epoch[m.slot].add(res)
				lastLoss[m.slot] = res.totalLoss

				if stop.observe(res.approxKL) {
					if p.config.Verbose >= 1 {
						log.Infof("early stopping at step %v due to reaching "+
							"max kl: %.2f", e, res.approxKL)
					}
					break
				}

				u, err := p.apply(m, res)
				if err != nil {
					return fmt.Errorf("train: %w", err)
				}
				if err := p.diag.observe(&p.state, m.slot, u); err != nil {
					return fmt.Errorf("train: %w", err)
				}
			}
		}
		p.state.nUpdates++
	}

	explainedVar := floatutils.ExplainedVariance(p.source.Values(),
		p.source.Returns())

	p.recordSummary(members, epoch, lastLoss)
	p.rec.Record("train/explained_variance", explainedVar)
	p.rec.Record("train/n_updates", float64(p.state.nUpdates), PlotWriter)
	p.rec.Record("train/clip_range", clip.clipRange)
	if clip.clipValues {
		p.rec.Record("train/clip_range_vf", clip.clipRangeVF)
	}
	p.rec.Record("train/learning_rate", lr)

	if err := p.rec.Dump(numTimesteps); err != nil {
		return fmt.Errorf("train: could not dump training metrics: %w", err)
	}
	return nil
}

// recordSummary records the summary metrics of each policy over the
// last epoch
func (p *PPO) recordSummary(members []member, epoch [2]epochStats,
	lastLoss [2]float64) {
	for _, m := range members {
		prefix := "train/" + m.slot.prefix()
		stats := epoch[m.slot]

		p.rec.Record(prefix+"entropy_loss", meanOrNaN(stats.entropyLoss))
		p.rec.Record(prefix+"policy_gradient_loss",
			meanOrNaN(stats.policyLoss))
		p.rec.Record(prefix+"value_loss", meanOrNaN(stats.valueLoss))
		p.rec.Record(prefix+"approx_kl", meanOrNaN(stats.approxKL))
		p.rec.Record(prefix+"clip_fraction", meanOrNaN(stats.clipFraction))
		p.rec.Record(prefix+"loss", lastLoss[m.slot])

		if stder, ok := m.policy.(agent.Stder); ok {
			p.rec.Record(prefix+"std", stder.Std())
		}
	}
}
