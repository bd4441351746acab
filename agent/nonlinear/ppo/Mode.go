package ppo

import (
	"fmt"

	"github.com/samuelfneumann/goppo/agent"
)

// Mode describes how many policies are trained and how their losses
// are composed
type Mode string

// Available modes
const (
	// Opt trains a single policy with the standard objective
	Opt Mode = "opt"

	// Dbl trains a primary policy on the clipped surrogate and value
	// loss only, and an independently initialized auxiliary policy
	// which additionally receives the entropy bonus
	Dbl Mode = "dbl"

	// DblTrn updates policies exactly as Dbl. It differs only in how
	// the collection loop chooses which policy acts.
	DblTrn Mode = "dbltrn"
)

// Validate returns an error if m is not a known Mode
func (m Mode) Validate() error {
	switch m {
	case Opt, Dbl, DblTrn:
		return nil
	default:
		return fmt.Errorf("validate: unknown mode %q\n\twant(%v, %v, or %v)",
			string(m), Opt, Dbl, DblTrn)
	}
}

// Dual returns whether m trains two policies
func (m Mode) Dual() bool {
	return m == Dbl || m == DblTrn
}

// Slot indexes a policy in the set of trained policies
type Slot int

const (
	Primary Slot = iota
	Auxiliary
)

// String implements the fmt.Stringer interface
func (s Slot) String() string {
	if s == Auxiliary {
		return "auxiliary"
	}
	return "primary"
}

// prefix returns the prefix that distinguishes the slot's metric keys
func (s Slot) prefix() string {
	if s == Auxiliary {
		return "ent_net_"
	}
	return ""
}

// member is one policy of a policySet together with how its loss is
// composed
type member struct {
	slot       Slot
	policy     agent.ActorCritic
	useEntropy bool
	zeroClip   bool // Lower bound of the ratio clip is 0
}

// policySet is the set of policies updated on each minibatch. It is
// either single or dual, decided once at construction.
type policySet interface {
	// members returns the policies in the order they are updated
	members() []member

	// last returns the slot whose flush resets the shared counter of
	// updates since the last diagnostics flush
	last() Slot
}

type single struct {
	m []member
}

func newSingle(primary agent.ActorCritic) single {
	return single{m: []member{
		{slot: Primary, policy: primary, useEntropy: true},
	}}
}

func (s single) members() []member { return s.m }
func (s single) last() Slot        { return Primary }

type dual struct {
	m []member
}

func newDual(primary, auxiliary agent.ActorCritic, zeroClip bool) dual {
	return dual{m: []member{
		{slot: Primary, policy: primary, zeroClip: zeroClip},
		{slot: Auxiliary, policy: auxiliary, useEntropy: true,
			zeroClip: zeroClip},
	}}
}

func (d dual) members() []member { return d.m }
func (d dual) last() Slot        { return Auxiliary }

// newPolicySet returns the policySet described by mode
func newPolicySet(mode Mode, primary, auxiliary agent.ActorCritic,
	allowZeroClip bool) (policySet, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, fmt.Errorf("newPolicySet: primary policy must not be nil")
	}

	if !mode.Dual() {
		return newSingle(primary), nil
	}
	if auxiliary == nil {
		return nil, fmt.Errorf("newPolicySet: mode %v requires an "+
			"auxiliary policy", mode)
	}
	if auxiliary == primary {
		return nil, fmt.Errorf("newPolicySet: primary and auxiliary " +
			"policies must not share parameters")
	}
	return newDual(primary, auxiliary, allowZeroClip), nil
}
