// Package initwfn implements serializable descriptions of Gorgonia
// weight initialization functions so that they can be read from
// configuration files.
package initwfn

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of InitWFn that are available
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Zeroes   Type = "Zeroes"
	Ones     Type = "Ones"
	Gaussian Type = "Gaussian"
	Uniform  Type = "Uniform"
)

// Config describes a Gorgonia InitWFn. Only the fields used by Type
// are considered.
type Config struct {
	Type Type `json:"type" yaml:"type" mapstructure:"type"`

	Gain float64 `json:"gain" yaml:"gain" mapstructure:"gain"` // Glorot and He

	Mean   float64 `json:"mean" yaml:"mean" mapstructure:"mean"` // Gaussian
	StdDev float64 `json:"std" yaml:"std" mapstructure:"std"`

	Low  float64 `json:"low" yaml:"low" mapstructure:"low"` // Uniform
	High float64 `json:"high" yaml:"high" mapstructure:"high"`
}

// NewGlorotU returns a Config describing Glorot uniform
// initialization
func NewGlorotU(gain float64) Config {
	return Config{Type: GlorotU, Gain: gain}
}

// NewGlorotN returns a Config describing Glorot normal initialization
func NewGlorotN(gain float64) Config {
	return Config{Type: GlorotN, Gain: gain}
}

// NewHeU returns a Config describing He uniform initialization
func NewHeU(gain float64) Config {
	return Config{Type: HeU, Gain: gain}
}

// NewHeN returns a Config describing He normal initialization
func NewHeN(gain float64) Config {
	return Config{Type: HeN, Gain: gain}
}

// NewZeroes returns a Config describing zero initialization
func NewZeroes() Config {
	return Config{Type: Zeroes}
}

// NewGaussian returns a Config describing initialization from a
// Gaussian distribution
func NewGaussian(mean, stddev float64) Config {
	return Config{Type: Gaussian, Mean: mean, StdDev: stddev}
}

// NewUniform returns a Config describing initialization from a
// uniform distribution
func NewUniform(low, high float64) Config {
	return Config{Type: Uniform, Low: low, High: high}
}

// String implements the fmt.Stringer interface
func (c Config) String() string {
	switch c.Type {
	case GlorotU, GlorotN, HeU, HeN:
		return fmt.Sprintf("{%v InitWFn: gain=%v}", c.Type, c.Gain)
	case Gaussian:
		return fmt.Sprintf("{%v InitWFn: N(%v, %v)}", c.Type, c.Mean, c.StdDev)
	case Uniform:
		return fmt.Sprintf("{%v InitWFn: U[%v, %v)}", c.Type, c.Low, c.High)
	default:
		return fmt.Sprintf("{%v InitWFn}", c.Type)
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	switch c.Type {
	case GlorotU, GlorotN, HeU, HeN:
		if c.Gain <= 0 {
			return fmt.Errorf("validate: gain must be positive\n\thave(%v)",
				c.Gain)
		}
	case Gaussian:
		if c.StdDev <= 0 {
			return fmt.Errorf("validate: standard deviation must be "+
				"positive\n\thave(%v)", c.StdDev)
		}
	case Uniform:
		if c.High <= c.Low {
			return fmt.Errorf("validate: empty interval [%v, %v)", c.Low,
				c.High)
		}
	case Zeroes, Ones:
	default:
		return fmt.Errorf("validate: unknown weight initializer %q", c.Type)
	}
	return nil
}

// Create returns the Gorgonia InitWFn that the Config describes
func (c Config) Create() (G.InitWFn, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	switch c.Type {
	case GlorotU:
		return G.GlorotU(c.Gain), nil
	case GlorotN:
		return G.GlorotN(c.Gain), nil
	case HeU:
		return G.HeU(c.Gain), nil
	case HeN:
		return G.HeN(c.Gain), nil
	case Gaussian:
		return G.Gaussian(c.Mean, c.StdDev), nil
	case Uniform:
		return G.Uniform(c.Low, c.High), nil
	case Ones:
		return G.Ones(), nil
	default:
		return G.Zeroes(), nil
	}
}
