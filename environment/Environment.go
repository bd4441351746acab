// Package environment outlines the interfaces that environments
// implement to generate experience for on-policy learners
package environment

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() []float64
}

// Environment implements a simulated environment. Observations and
// actions are flat slices whose layouts are described by the
// environment's Specs.
type Environment interface {
	// Reset starts a new episode and returns its first observation
	Reset() []float64

	// Step takes an action in the environment. It returns the next
	// observation, the reward for the transition, and whether the
	// episode has ended.
	Step(action []float64) (obs []float64, reward float64, done bool,
		err error)

	ObservationSpec() Spec
	ActionSpec() Spec
}
