package ppo

import (
	"fmt"

	"github.com/samuelfneumann/goppo/schedule"
)

// Config implements a configuration of the PPO training step
type Config struct {
	BatchSize      int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	NEpochs        int `json:"n_epochs" yaml:"n_epochs" mapstructure:"n_epochs"`
	NSteps         int `json:"n_steps" yaml:"n_steps" mapstructure:"n_steps"`
	NEnvs          int `json:"n_envs" yaml:"n_envs" mapstructure:"n_envs"`
	TotalTimesteps int `json:"total_timesteps" yaml:"total_timesteps" mapstructure:"total_timesteps"`

	Gamma  float64 `json:"gamma" yaml:"gamma" mapstructure:"gamma"`
	Lambda float64 `json:"gae_lambda" yaml:"gae_lambda" mapstructure:"gae_lambda"`

	LearningRate schedule.Config `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`
	ClipRange    schedule.Config `json:"clip_range" yaml:"clip_range" mapstructure:"clip_range"`

	// ClipRangeVF clips the change in value predictions, nil disables
	// value clipping
	ClipRangeVF *schedule.Config `json:"clip_range_vf" yaml:"clip_range_vf" mapstructure:"clip_range_vf"`

	NormalizeAdvantage bool    `json:"normalize_advantage" yaml:"normalize_advantage" mapstructure:"normalize_advantage"`
	EntCoef            float64 `json:"ent_coef" yaml:"ent_coef" mapstructure:"ent_coef"`
	VFCoef             float64 `json:"vf_coef" yaml:"vf_coef" mapstructure:"vf_coef"`
	MaxGradNorm        float64 `json:"max_grad_norm" yaml:"max_grad_norm" mapstructure:"max_grad_norm"`

	// TargetKL stops training early when the approximate KL divergence
	// exceeds 1.5 * TargetKL, nil disables early stopping
	TargetKL *float64 `json:"target_kl" yaml:"target_kl" mapstructure:"target_kl"`

	Mode Mode `json:"mode" yaml:"mode" mapstructure:"mode"`

	// AllowZeroClipLoss lowers the ratio clip bound from 1 - ε to 0
	// in dual modes
	AllowZeroClipLoss bool `json:"allow_zero_clip_loss" yaml:"allow_zero_clip_loss" mapstructure:"allow_zero_clip_loss"`

	// UseSDE re-samples state dependent exploration noise before each
	// evaluation, for policies that implement agent.NoiseResetter
	UseSDE bool `json:"use_sde" yaml:"use_sde" mapstructure:"use_sde"`

	Verbose int `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the usual PPO hyperparameters
func DefaultConfig() Config {
	return Config{
		BatchSize:          64,
		NEpochs:            10,
		NSteps:             2048,
		NEnvs:              1,
		TotalTimesteps:     1_000_000,
		Gamma:              0.99,
		Lambda:             0.95,
		LearningRate:       *schedule.NewConstant(3e-4),
		ClipRange:          *schedule.NewConstant(0.2),
		NormalizeAdvantage: true,
		EntCoef:            0.0,
		VFCoef:             0.5,
		MaxGradNorm:        0.5,
		Mode:               Opt,
	}
}

// BufferSize returns the number of transitions collected between
// training steps
func (c Config) BufferSize() int {
	return c.NSteps * c.NEnvs
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive\n\t"+
			"have(%v)", c.BatchSize)
	}
	if c.NormalizeAdvantage && c.BatchSize <= 1 {
		return fmt.Errorf("validate: batch size must be greater than 1 "+
			"when normalizing advantages\n\thave(%v)", c.BatchSize)
	}

	if c.NSteps < 1 || c.NEnvs < 1 {
		return fmt.Errorf("validate: n_steps and n_envs must be positive"+
			"\n\thave(%v, %v)", c.NSteps, c.NEnvs)
	}
	if c.NormalizeAdvantage && c.BufferSize() <= 1 {
		return fmt.Errorf("validate: n_steps * n_envs must be greater "+
			"than 1 when normalizing advantages\n\thave(n_steps=%v, "+
			"n_envs=%v)", c.NSteps, c.NEnvs)
	}

	if c.NEpochs < 1 {
		return fmt.Errorf("validate: number of epochs must be positive"+
			"\n\thave(%v)", c.NEpochs)
	}
	if c.TotalTimesteps < 0 {
		return fmt.Errorf("validate: total timesteps must be "+
			"non-negative\n\thave(%v)", c.TotalTimesteps)
	}

	if err := c.LearningRate.Validate(); err != nil {
		return fmt.Errorf("validate: learning rate: %v", err)
	}
	if err := c.ClipRange.Validate(); err != nil {
		return fmt.Errorf("validate: clip range: %v", err)
	}
	if c.ClipRangeVF != nil {
		if err := c.ClipRangeVF.Validate(); err != nil {
			return fmt.Errorf("validate: clip range vf: %v", err)
		}
		constant := c.ClipRangeVF.Type == schedule.Constant ||
			c.ClipRangeVF.Type == ""
		if constant && c.ClipRangeVF.Start <= 0 {
			return fmt.Errorf("validate: clip range vf must be positive, "+
				"use nil to disable value clipping\n\thave(%v)",
				c.ClipRangeVF.Start)
		}
	}

	if c.MaxGradNorm <= 0 {
		return fmt.Errorf("validate: max grad norm must be positive"+
			"\n\thave(%v)", c.MaxGradNorm)
	}

	return c.Mode.Validate()
}

// debugCadence returns the number of policy updates between
// diagnostics flushes, chosen so each debug curve has roughly 10,000
// points over a full run
func (c Config) debugCadence() int {
	return c.TotalTimesteps * c.NEpochs / c.BatchSize / 10000
}
