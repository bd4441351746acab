// Package schedule implements hyperparameter schedules: functions of
// the fraction of training that remains, which moves from 1 at the
// start of training to 0 at the end.
package schedule

import (
	"fmt"

	"github.com/samuelfneumann/goppo/utils/floatutils"
)

// Schedule maps the remaining training progress in [0, 1] to a
// hyperparameter value.
type Schedule func(progressRemaining float64) float64

// Type describes the different schedules that are available
type Type string

// Available schedule types
const (
	Constant Type = "constant"
	Linear   Type = "linear"
)

// Config describes a Schedule in a form that can be serialized into
// configuration files.
type Config struct {
	Type  Type    `json:"type" yaml:"type" mapstructure:"type"`
	Start float64 `json:"start" yaml:"start" mapstructure:"start"`
	End   float64 `json:"end" yaml:"end" mapstructure:"end"`

	// EndFraction is the fraction of training after which a linear
	// schedule stays at End.
	EndFraction float64 `json:"end_fraction" yaml:"end_fraction" mapstructure:"end_fraction"`
}

// NewConstant returns a Config describing a constant schedule
func NewConstant(value float64) *Config {
	return &Config{Type: Constant, Start: value, End: value}
}

// NewLinear returns a Config describing a schedule that moves linearly
// from start to end over the first endFraction of training.
func NewLinear(start, end, endFraction float64) *Config {
	return &Config{Type: Linear, Start: start, End: end,
		EndFraction: endFraction}
}

// Validate checks that the Config describes a valid Schedule
func (c *Config) Validate() error {
	switch c.Type {
	case Constant, "":
		return nil
	case Linear:
		if c.EndFraction <= 0 || c.EndFraction > 1 {
			return fmt.Errorf("validate: linear schedule end fraction "+
				"must be in (0, 1]\n\thave(%v)", c.EndFraction)
		}
		return nil
	default:
		return fmt.Errorf("validate: unknown schedule type %q", c.Type)
	}
}

// Create returns the Schedule described by the Config. An empty Type
// is treated as Constant.
func (c *Config) Create() Schedule {
	switch c.Type {
	case Linear:
		return LinearFn(c.Start, c.End, c.EndFraction)
	default:
		return ConstantFn(c.Start)
	}
}

// Initial returns the value the schedule takes at the start of
// training, which is also the value of a constant schedule.
func (c *Config) Initial() float64 {
	return c.Start
}

// ConstantFn returns a Schedule that always returns value
func ConstantFn(value float64) Schedule {
	return func(float64) float64 {
		return value
	}
}

// LinearFn returns a Schedule that interpolates linearly between start
// and end while the progress made (1 - progressRemaining) is smaller
// than endFraction, and returns end afterwards.
func LinearFn(start, end, endFraction float64) Schedule {
	return func(progressRemaining float64) float64 {
		progress := 1 - progressRemaining
		if progress > endFraction {
			return end
		}
		frac := floatutils.Clip(progress/endFraction, 0, 1)
		return start + frac*(end-start)
	}
}
