// Command ppo trains a neural network actor-critic with Proximal
// Policy Optimization on a contextual bandit. Each run writes its
// configuration, metrics, and episodic returns to a new directory
// named by a random UUID.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aunum/log"
	"github.com/google/uuid"
	"github.com/samuelfneumann/goppo/agent"
	"github.com/samuelfneumann/goppo/agent/nonlinear/policy"
	"github.com/samuelfneumann/goppo/agent/nonlinear/ppo"
	"github.com/samuelfneumann/goppo/buffer/rollout"
	"github.com/samuelfneumann/goppo/environment"
	"github.com/samuelfneumann/goppo/environment/bandit"
	"github.com/samuelfneumann/goppo/experiment"
	"github.com/samuelfneumann/goppo/logger"
	"github.com/samuelfneumann/goppo/utils/progressbar"
)

func main() {
	configFile := flag.String("config", "", "YAML configuration file")
	runs := flag.String("runs", "runs", "directory to save runs in")
	flag.Parse()

	c, err := loadConfig(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	dir, err := run(c, *runs)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("saved run to %v", dir)
}

// run trains an actor-critic as described by c and returns the
// directory the run was saved to
func run(c Config, runs string) (string, error) {
	dir := filepath.Join(runs, uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("run: could not create run directory: %w", err)
	}
	if err := c.save(dir); err != nil {
		return "", fmt.Errorf("run: could not save config: %w", err)
	}

	env, err := newEnv(c.Env, c.Seed)
	if err != nil {
		return "", fmt.Errorf("run: %w", err)
	}
	obsDims, actDims := env.ObservationSpec().Dims, env.ActionSpec().Dims

	primary, sampler, err := newPolicy(c.Policy, env, c.Seed)
	if err != nil {
		return "", fmt.Errorf("run: could not create policy: %w", err)
	}
	var auxiliary agent.ActorCritic
	if c.PPO.Mode.Dual() {
		auxiliary, _, err = newPolicy(c.Policy, env, c.Seed+1)
		if err != nil {
			return "", fmt.Errorf("run: could not create auxiliary "+
				"policy: %w", err)
		}
	}

	buf, err := rollout.New(obsDims, actDims, c.PPO.BufferSize(),
		c.PPO.Lambda, c.PPO.Gamma, c.Seed)
	if err != nil {
		return "", fmt.Errorf("run: %w", err)
	}

	l, err := newLogger(c.Writers, dir)
	if err != nil {
		return "", fmt.Errorf("run: could not create logger: %w", err)
	}

	trainer, err := ppo.New(c.PPO, buf, primary, auxiliary, l)
	if err != nil {
		l.Close()
		return "", fmt.Errorf("run: %w", err)
	}

	exp, err := experiment.NewOnline(env, sampler, buf, trainer, l,
		c.PPO.TotalTimesteps)
	if err != nil {
		l.Close()
		return "", fmt.Errorf("run: %w", err)
	}
	if c.Progress {
		exp.SetProgressBar(progressbar.NewManualProgressBar(os.Stderr, 50,
			c.PPO.TotalTimesteps))
	}

	if err := exp.Run(); err != nil {
		l.Close()
		return "", fmt.Errorf("run: %w", err)
	}
	if err := l.Close(); err != nil {
		return "", fmt.Errorf("run: %w", err)
	}
	if err := exp.Save(filepath.Join(dir, "returns.bin")); err != nil {
		return "", fmt.Errorf("run: %w", err)
	}
	return dir, nil
}

// newEnv returns the contextual bandit described by c
func newEnv(c EnvConfig, seed uint64) (environment.Environment, error) {
	switch c.Type {
	case discreteEnv:
		return bandit.NewDiscrete(c.Features, c.Actions, seed)
	case continuousEnv:
		return bandit.NewContinuous(c.Features, c.Actions, seed)
	default:
		return nil, fmt.Errorf("newEnv: unknown environment type %q", c.Type)
	}
}

// newPolicy returns a categorical policy for discrete actions and a
// Gaussian policy for continuous actions
func newPolicy(c policy.Config, env environment.Environment,
	seed uint64) (agent.ActorCritic, agent.Sampler, error) {
	c.Seed = seed
	features := env.ObservationSpec().Dims

	if env.ActionSpec().Cardinality == environment.Discrete {
		pol, err := policy.NewCategoricalMLP(c, features,
			env.ActionSpec().Categories())
		if err != nil {
			return nil, nil, err
		}
		return pol, pol, nil
	}

	pol, err := policy.NewGaussianMLP(c, features, env.ActionSpec().Dims)
	if err != nil {
		return nil, nil, err
	}
	return pol, pol, nil
}

// newLogger returns a Logger writing to the named writers. Files are
// created in dir.
func newLogger(names []string, dir string) (*logger.Logger, error) {
	writers := make([]logger.Writer, 0, len(names))
	for _, name := range names {
		var (
			w   logger.Writer
			err error
		)
		switch name {
		case logger.HumanName:
			w = logger.NewHumanWriter(os.Stdout)
		case logger.CSVName:
			w, err = logger.NewCSVWriter(filepath.Join(dir, "progress.csv"))
		case logger.JSONName:
			w, err = logger.NewJSONWriter(filepath.Join(dir, "progress.json"))
		case logger.PlotName:
			w, err = logger.NewPlotWriter(filepath.Join(dir, "plots"))
		default:
			err = fmt.Errorf("newLogger: unknown writer %q", name)
		}
		if err != nil {
			for _, open := range writers {
				open.Close()
			}
			return nil, err
		}
		writers = append(writers, w)
	}
	return logger.New(writers...), nil
}
