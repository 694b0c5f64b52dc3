package satsolver

import (
	"context"
	"fmt"

	"github.com/go-air/gini/z"

	"github.com/rfielding/zigzagbmc/pkg/encode"
)

// Facade is the solver façade named C8: it owns the permanent/
// volatile group bracketing (goto_volatile_group/goto_permanent_group
// in spec §4.6), CNF conversion with inlining of the BE DAG's
// accumulated structure, and translation between BE handles and raw
// CnfLit values so C4/C5/C6/C7 never talk to the Engine directly.
//
// Structural clauses (the tableau's and unroller's defining
// equations) always land in the permanent group, regardless of which
// group is nominally active, because a volatile clause that could
// reference a BE subexpression not yet taught to the solver would be
// unsound once the group is destroyed and the subexpression is
// reused by later, permanent constraints. Only the caller's own
// ForceTrue/ForceConstraintList calls route to whichever group is
// currently active.
type Facade struct {
	eng Engine
	enc encode.Encoder

	volatileActive bool
	volatileGroup  Group
}

// NewFacade builds a façade over eng and enc, and asserts the
// encoder's Truth constant as the first permanent unit clause.
func NewFacade(eng Engine, enc encode.Encoder) (*Facade, error) {
	f := &Facade{eng: eng, enc: enc}
	if err := f.flushCircuit(); err != nil {
		return nil, err
	}
	if err := f.forceIn(f.eng.PermanentGroup(), enc.Truth()); err != nil {
		return nil, fmt.Errorf("satsolver: asserting truth constant: %w", err)
	}
	return f, nil
}

// adderFunc adapts a plain function to gini's inter.Adder contract
// (Add(m z.Lit) bool), so logic.C.ToCnf can stream freshly-built AIG
// structure straight into the façade's group bookkeeping.
type adderFunc func(z.Lit) bool

func (a adderFunc) Add(m z.Lit) bool { return a(m) }

func (f *Facade) flushCircuit() error {
	var addErr error
	group := f.eng.PermanentGroup()
	a := adderFunc(func(m z.Lit) bool {
		if addErr != nil {
			return false
		}
		if err := f.eng.Add(m, group); err != nil {
			addErr = err
			return false
		}
		return true
	})
	f.enc.Circuit().ToCnf(a)
	return addErr
}

func (f *Facade) activeGroup() Group {
	if f.volatileActive {
		return f.volatileGroup
	}
	return f.eng.PermanentGroup()
}

func (f *Facade) forceIn(g Group, be encode.BE) error {
	if err := f.eng.Add(be, g); err != nil {
		return err
	}
	return f.eng.Add(z.LitNull, g)
}

// ForceTrue asserts be as a unit clause in whichever group is
// currently active (spec's force_true primitive).
func (f *Facade) ForceTrue(be encode.BE) error {
	if err := f.flushCircuit(); err != nil {
		return err
	}
	return f.forceIn(f.activeGroup(), be)
}

// ForceConstraintList asserts each element of bes as a separate unit
// clause, in declaration order, in the currently active group.
func (f *Facade) ForceConstraintList(bes []encode.BE) error {
	for _, be := range bes {
		if err := f.ForceTrue(be); err != nil {
			return err
		}
	}
	return nil
}

// GotoVolatileGroup opens the single volatile clause group. It is an
// error to call this while a volatile group is already open.
func (f *Facade) GotoVolatileGroup() error {
	if f.volatileActive {
		return fmt.Errorf("satsolver: a volatile group is already active")
	}
	g, err := f.eng.CreateGroup()
	if err != nil {
		return err
	}
	f.volatileGroup = g
	f.volatileActive = true
	return nil
}

// GotoPermanentGroup closes the volatile group, discarding everything
// asserted into it since GotoVolatileGroup. A no-op if no volatile
// group is open.
func (f *Facade) GotoPermanentGroup() error {
	if !f.volatileActive {
		return nil
	}
	if err := f.eng.DestroyGroup(f.volatileGroup); err != nil {
		return err
	}
	f.volatileActive = false
	f.volatileGroup = Group{}
	return nil
}

// Solve flushes any freshly-built circuit structure and asks whether
// the permanent group plus the currently open volatile group (if any)
// is satisfiable. ctx must be non-nil; pass context.Background() for
// an unbounded solve.
func (f *Facade) Solve(ctx context.Context) (Verdict, error) {
	if err := f.flushCircuit(); err != nil {
		return InternalError, err
	}
	return f.eng.SolveAllGroups(ctx)
}

// SolveAssume is Solve with additional one-shot assumption literals,
// used by the assumption-capable simple-path check (§4.4) and the
// assumption variant of the main loop (§4.7.2).
func (f *Facade) SolveAssume(ctx context.Context, assume []encode.BE) (Verdict, error) {
	if err := f.flushCircuit(); err != nil {
		return InternalError, err
	}
	return f.eng.SolveAllGroupsAssume(ctx, assume)
}

// Model reports, for each of vars, whether it holds true in the last
// found model.
func (f *Facade) Model(vars []encode.BE) (map[int]bool, error) {
	lits, err := f.eng.GetModel(vars)
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(lits))
	for _, l := range lits {
		out[f.enc.VarToIndex(l)] = l.IsPos()
	}
	return out, nil
}

// Conflicts returns the literals implicated in the last UNSAT result
// under assumptions (the unsat core), used for trace/diagnostic
// reporting when a check comes back UNSAT.
func (f *Facade) Conflicts() ([]encode.BE, error) {
	return f.eng.GetConflicts()
}
