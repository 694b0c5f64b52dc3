// Package fsm specifies the finite-state transition system consumed
// by the core (spec §6.2): the initial-states predicate, the
// transition-relation predicate, and fairness acquisition. FSM
// construction itself — parsing a model description into these
// predicates — is an external collaborator; this package only
// specifies the interface and, for testing and the demo CLI, a
// handful of small reference FSMs built directly against an Encoder.
package fsm

import (
	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// FSM is the boolean-variable transition system the unroller (C5)
// instantiates at each new real step.
type FSM interface {
	// InitPredicate returns the BE asserting the initial-states
	// condition at the given time (almost always R(0)).
	InitPredicate(at timeidx.TimeIdx) encode.BE

	// Transition returns the BE relating the state/input variables at
	// from to the state variables at to; the unroller always calls it
	// with from, to = R(i), R(i+1) for consecutive i.
	Transition(from, to timeidx.TimeIdx) encode.BE

	// FairnessList returns the untimed fairness predicates; the
	// (out-of-scope) PLTL front-end conjoins ∧_i G F p_i into the
	// property before it ever reaches the tableau builder, so the core
	// itself never calls FairnessList — it is specified here only for
	// interface completeness (spec §6.2). Nothing in this repository
	// calls it; CheckLTL takes its fairness formulas as an argument.
	FairnessList() []encode.BE

	// StateVarNames and InputVarNames let the front-end stand-in and
	// tests populate the state-vars registry (C2) without reaching
	// into FSM internals.
	StateVarNames() []string
	InputVarNames() []string
}
