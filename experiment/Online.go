// Package experiment implements functionality for running on-policy
// experiments, which alternate between collecting a rollout in an
// environment and training on it
package experiment

import (
	"fmt"

	"github.com/aunum/log"
	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/agent/nonlinear/ppo"
	"github.com/samuelfneumann/goppo/buffer/rollout"
	"github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/utils/progressbar"
)

// Trainer trains on a full rollout buffer
type Trainer interface {
	// Train performs an optimization phase after numTimesteps
	// environment steps have been taken
	Train(numTimesteps int) error
}

// statsWindow is the number of recent episodes that rollout statistics
// are averaged over
const statsWindow = 100

// Online is an experiment that alternates between filling a rollout
// buffer by acting in an environment and training on the buffer
type Online struct {
	env     environment.Environment
	sampler agent.Sampler
	buffer  *rollout.Buffer
	trainer Trainer
	rec     ppo.Recorder

	maxSteps     int
	currentSteps int
	obs          []float64
	pathOpen     bool

	returns  *Return
	progress *progressbar.ManualProgressBar
}

// NewOnline creates and returns a new online experiment. The sampler
// selects actions in env, and transitions are stored in buffer until it
// is full, at which point trainer trains on it. The experiment runs for
// at least steps environment steps, finishing the last rollout.
func NewOnline(env environment.Environment, sampler agent.Sampler,
	buffer *rollout.Buffer, trainer Trainer, rec ppo.Recorder,
	steps int) (*Online, error) {
	if env == nil || sampler == nil || buffer == nil || trainer == nil {
		return nil, fmt.Errorf("newOnline: environment, sampler, buffer, " +
			"and trainer must not be nil")
	}
	if rec == nil {
		return nil, fmt.Errorf("newOnline: recorder must not be nil")
	}
	if steps < 1 {
		return nil, fmt.Errorf("newOnline: steps must be positive"+
			"\n\thave(%v)", steps)
	}

	return &Online{
		env:      env,
		sampler:  sampler,
		buffer:   buffer,
		trainer:  trainer,
		rec:      rec,
		maxSteps: steps,
		returns:  NewReturn(),
	}, nil
}

// SetProgressBar sets a progress bar that is advanced by each
// environment step
func (o *Online) SetProgressBar(p *progressbar.ManualProgressBar) {
	o.progress = p
}

// Steps returns the number of environment steps taken so far
func (o *Online) Steps() int {
	return o.currentSteps
}

// Returns returns the episodic returns tracked so far
func (o *Online) Returns() *Return {
	return o.returns
}

// Collect fills the rollout buffer with transitions. Paths cut off by a
// full buffer are bootstrapped with the value of the next state.
func (o *Online) Collect() error {
	o.buffer.Reset()
	if o.obs == nil {
		o.obs = o.env.Reset()
	}

	for !o.buffer.Full() {
		action, logProb, value, err := o.sampler.SelectAction(o.obs)
		if err != nil {
			return fmt.Errorf("collect: could not select action: %w", err)
		}
		next, reward, done, err := o.env.Step(action)
		if err != nil {
			return fmt.Errorf("collect: could not step environment: %w", err)
		}
		if err := o.buffer.Store(o.obs, action, reward, value,
			logProb); err != nil {
			return fmt.Errorf("collect: %w", err)
		}

		o.currentSteps++
		o.pathOpen = true
		o.returns.Track(reward, done)
		if o.progress != nil {
			o.progress.Increment()
		}

		if done {
			o.buffer.FinishPath(0)
			o.pathOpen = false
			o.obs = o.env.Reset()
		} else {
			o.obs = next
		}
	}

	if o.pathOpen {
		_, _, value, err := o.sampler.SelectAction(o.obs)
		if err != nil {
			return fmt.Errorf("collect: could not bootstrap path: %w", err)
		}
		o.buffer.FinishPath(value)
		o.pathOpen = false
	}
	return nil
}

// Run runs the entire experiment
func (o *Online) Run() error {
	for o.currentSteps < o.maxSteps {
		if err := o.Collect(); err != nil {
			return fmt.Errorf("run: %w", err)
		}

		if o.returns.Episodes() > 0 {
			o.rec.Record("rollout/ep_rew_mean", o.returns.Mean(statsWindow))
			o.rec.Record("rollout/ep_len_mean",
				o.returns.MeanLength(statsWindow))
		}
		o.rec.Record("time/total_timesteps", float64(o.currentSteps))

		// Rollout statistics are dumped before training, since debug
		// flushes during training dump everything recorded so far
		if err := o.rec.Dump(o.currentSteps); err != nil {
			return fmt.Errorf("run: could not dump rollout statistics: %w",
				err)
		}

		if err := o.trainer.Train(o.currentSteps); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if o.progress != nil {
			o.progress.Display()
		}
	}
	if o.progress != nil {
		o.progress.Close()
	}

	log.Infof("finished %v steps over %v episodes", o.currentSteps,
		o.returns.Episodes())
	return nil
}

// Save saves the tracked episodic returns to filename
func (o *Online) Save(filename string) error {
	return o.returns.Save(filename)
}
