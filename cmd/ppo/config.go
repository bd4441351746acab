package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/goppo/agent/nonlinear/policy"
	"github.com/samuelfneumann/goppo/agent/nonlinear/ppo"
	"github.com/samuelfneumann/goppo/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Environment types
const (
	discreteEnv   = "discrete"
	continuousEnv = "continuous"
)

// EnvConfig describes a contextual bandit
type EnvConfig struct {
	Type     string `json:"type" yaml:"type" mapstructure:"type"`
	Features int    `json:"features" yaml:"features" mapstructure:"features"`

	// Actions is the number of arms of discrete bandits and the action
	// dimension of continuous bandits
	Actions int `json:"actions" yaml:"actions" mapstructure:"actions"`
}

// Config is the configuration of a training run
type Config struct {
	Seed     uint64        `json:"seed" yaml:"seed" mapstructure:"seed"`
	Env      EnvConfig     `json:"env" yaml:"env" mapstructure:"env"`
	PPO      ppo.Config    `json:"ppo" yaml:"ppo" mapstructure:"ppo"`
	Policy   policy.Config `json:"policy" yaml:"policy" mapstructure:"policy"`
	Writers  []string      `json:"writers" yaml:"writers" mapstructure:"writers"`
	Progress bool          `json:"progress" yaml:"progress" mapstructure:"progress"`
}

// defaultConfig returns a Config that trains a categorical policy on
// a small discrete bandit
func defaultConfig() Config {
	c := ppo.DefaultConfig()
	c.NSteps = 256
	c.TotalTimesteps = 25_600
	c.NEpochs = 4
	c.EntCoef = 0.01

	return Config{
		Seed:    1,
		Env:     EnvConfig{Type: discreteEnv, Features: 4, Actions: 3},
		PPO:     c,
		Policy:  policy.DefaultConfig(c.BatchSize),
		Writers: []string{logger.HumanName, logger.CSVName, logger.PlotName},
	}
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.Env.Type != discreteEnv && c.Env.Type != continuousEnv {
		return fmt.Errorf("validate: unknown environment type %q", c.Env.Type)
	}
	if err := c.PPO.Validate(); err != nil {
		return err
	}
	if c.PPO.TotalTimesteps < 1 {
		return fmt.Errorf("validate: total timesteps must be positive")
	}
	for _, name := range c.Writers {
		switch name {
		case logger.HumanName, logger.CSVName, logger.JSONName,
			logger.PlotName:
		default:
			return fmt.Errorf("validate: unknown writer %q", name)
		}
	}
	return nil
}

// loadConfig reads a Config from a YAML file, with defaults for all
// keys that are not set. An empty filename returns the default Config.
func loadConfig(filename string) (Config, error) {
	c := defaultConfig()

	v := viper.New()
	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("loadConfig: could not read %v: %w",
				filename, err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("loadConfig: could not decode %v: %w",
			filename, err)
	}

	// Lists replace their defaults instead of overwriting a prefix of
	// them
	if v.IsSet("writers") {
		c.Writers = v.GetStringSlice("writers")
	}
	for key, list := range map[string]*[]int{
		"policy.policy_layers": &c.Policy.PolicyLayers,
		"policy.value_layers":  &c.Policy.ValueLayers,
	} {
		if v.IsSet(key) {
			*list = v.GetIntSlice(key)
		}
	}
	for key, list := range map[string]*[]string{
		"policy.policy_activations": &c.Policy.PolicyActivations,
		"policy.value_activations":  &c.Policy.ValueActivations,
	} {
		if v.IsSet(key) {
			*list = v.GetStringSlice(key)
		}
	}

	// The networks evaluate whole minibatches and begin with the
	// learning rate the schedule starts at
	c.Policy.BatchSize = c.PPO.BatchSize
	c.Policy.LearningRate = c.PPO.LearningRate.Initial()

	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("loadConfig: %w", err)
	}
	return c, nil
}

// save writes the Config to config.yaml in dir
func (c Config) save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644)
}
