// Package satsolver specifies the incremental SAT solver consumed by
// the core (spec §6.3) and implements the solver façade (C8): the
// permanent/volatile clause-group bracketing, CNF conversion with
// inlining, model and conflict extraction, and assumption-based
// solving.
package satsolver

import (
	"context"

	"github.com/rfielding/zigzagbmc/internal/idgen"
	"github.com/rfielding/zigzagbmc/pkg/encode"
)

// CnfLit is the incremental solver's native literal type. In this
// implementation it is the same underlying type as encode.BE: gini's
// AIG literal already doubles as a CNF literal once its defining
// clauses have been taught to the solver (logic.C.ToCnf walks the AIG
// and Adds each clause's literals, terminated by z.LitNull, to any
// inter.Adder — which *gini.Gini itself implements).
type CnfLit = encode.BE

// Group identifies a clause group: the one permanent group (alive for
// the run's lifetime) or the single volatile group that may be alive
// at any moment. Permanent-group clauses are taught to the solver and
// never retracted; volatile-group clauses are unit clauses held as
// assumption literals that simply stop being assumed once the group
// is destroyed (spec §4.6) — this implementation never adds a
// multi-literal clause to the volatile group, since the only things
// the core ever asserts there are single atoms (closing constraints
// and loop-selector forcing, §4.5/§4.6).
type Group = idgen.Handle

// Verdict is the result of a solve call.
type Verdict int

const (
	Unknown Verdict = iota
	SAT
	UNSAT
	InternalError
	Timeout
	Memout
)

func (v Verdict) String() string {
	switch v {
	case SAT:
		return "SAT"
	case UNSAT:
		return "UNSAT"
	case InternalError:
		return "INTERNAL_ERROR"
	case Timeout:
		return "TIMEOUT"
	case Memout:
		return "MEMOUT"
	default:
		return "UNKNOWN"
	}
}

// Fatal reports whether v is one of the three solver verdicts spec §7
// treats as unconditionally fatal for the current verification.
func (v Verdict) Fatal() bool {
	return v == InternalError || v == Timeout || v == Memout
}

// Engine is the incremental SAT solver consumed per spec §6.3.
type Engine interface {
	PermanentGroup() Group
	// CreateGroup opens the (single) volatile group; it is an error to
	// call it while one is already open.
	CreateGroup() (Group, error)
	// DestroyGroup closes g, discarding whatever was asserted into it.
	DestroyGroup(g Group) error

	// Add teaches one literal of the clause currently being built in
	// group g; a literal equal to z.LitNull (CnfLit's zero value)
	// terminates the clause, mirroring DIMACS incremental-add style.
	Add(lit CnfLit, g Group) error
	// SetPolarity is a branching-order hint, not a correctness
	// requirement; implementations that cannot offer it may no-op.
	SetPolarity(lit CnfLit, sign bool, g Group) error

	SolveAllGroups(ctx context.Context) (Verdict, error)
	SolveAllGroupsAssume(ctx context.Context, assume []CnfLit) (Verdict, error)

	// GetModel reports, for each literal in vars, the correctly-signed
	// literal that holds in the last model. The façade supplies vars
	// from the state-vars/translation-vars registries, because the
	// solver itself does not self-report its live variable universe.
	GetModel(vars []CnfLit) ([]CnfLit, error)
	GetConflicts() ([]CnfLit, error)
}
