package satsolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/rfielding/zigzagbmc/internal/idgen"
)

const pollInterval = 10 * time.Millisecond

// GiniEngine is the reference Engine implementation. Permanent-group
// clauses are taught directly to the wrapped *gini.Gini, which
// implements gini's inter.Adder contract (Add one literal per call,
// z.LitNull terminates the clause); volatile-group content is kept as
// a pending assumption-literal set that vanishes when the group is
// destroyed, never reaching the solver as a permanent clause.
type GiniEngine struct {
	g         *gini.Gini
	permanent Group

	volatileGroup *Group
	volatileLits  []CnfLit

	pending []CnfLit // clause literals accumulated since the last terminator
}

// NewGiniEngine returns an Engine with no volatile group open.
func NewGiniEngine() *GiniEngine {
	return &GiniEngine{g: gini.New(), permanent: idgen.NewHandle()}
}

func (e *GiniEngine) PermanentGroup() Group { return e.permanent }

func (e *GiniEngine) CreateGroup() (Group, error) {
	if e.volatileGroup != nil {
		return Group{}, errors.New("satsolver: a volatile group is already active")
	}
	h := idgen.NewHandle()
	e.volatileGroup = &h
	e.volatileLits = nil
	return h, nil
}

func (e *GiniEngine) DestroyGroup(g Group) error {
	if e.volatileGroup == nil || *e.volatileGroup != g {
		return fmt.Errorf("satsolver: group %s is not the active volatile group", g)
	}
	e.volatileGroup = nil
	e.volatileLits = nil
	return nil
}

func (e *GiniEngine) groupIsVolatile(g Group) bool {
	return e.volatileGroup != nil && *e.volatileGroup == g
}

// Add buffers lit into the clause under construction for g. z.LitNull
// terminates the clause: for the permanent group it is taught to the
// solver immediately; for the volatile group it must be a unit
// clause, recorded as an assumption literal.
func (e *GiniEngine) Add(lit CnfLit, g Group) error {
	volatile := e.groupIsVolatile(g)
	if !volatile && g != e.permanent {
		return fmt.Errorf("satsolver: group %s is not active", g)
	}
	if lit != z.LitNull {
		e.pending = append(e.pending, lit)
		return nil
	}
	clause := e.pending
	e.pending = nil
	if volatile {
		if len(clause) != 1 {
			return fmt.Errorf("satsolver: volatile group only supports unit clauses, got %d literals", len(clause))
		}
		e.volatileLits = append(e.volatileLits, clause[0])
		return nil
	}
	for _, m := range clause {
		e.g.Add(m)
	}
	e.g.Add(z.LitNull)
	return nil
}

// SetPolarity is a best-effort branching hint. gini does not expose a
// public polarity API, so this degrades to a no-op rather than
// failing a call that only ever affects search performance.
func (e *GiniEngine) SetPolarity(lit CnfLit, sign bool, g Group) error {
	if !e.groupIsVolatile(g) && g != e.permanent {
		return fmt.Errorf("satsolver: group %s is not active", g)
	}
	return nil
}

func (e *GiniEngine) SolveAllGroups(ctx context.Context) (Verdict, error) {
	return e.solve(ctx, nil)
}

func (e *GiniEngine) SolveAllGroupsAssume(ctx context.Context, assume []CnfLit) (Verdict, error) {
	return e.solve(ctx, assume)
}

func (e *GiniEngine) solve(ctx context.Context, assume []CnfLit) (Verdict, error) {
	all := append(append([]CnfLit{}, e.volatileLits...), assume...)
	if len(all) > 0 {
		e.g.Assume(all...)
	}
	gs := e.g.GoSolve()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return translate(gs.Stop())
		case <-ticker.C:
			if result, ok := gs.Test(); ok {
				return translate(result)
			}
		}
	}
}

func translate(r int) (Verdict, error) {
	switch r {
	case 1:
		return SAT, nil
	case -1:
		return UNSAT, nil
	default:
		return InternalError, errors.New("satsolver: solver returned an indeterminate result")
	}
}

func (e *GiniEngine) GetModel(vars []CnfLit) ([]CnfLit, error) {
	out := make([]CnfLit, 0, len(vars))
	for _, v := range vars {
		if e.g.Value(v) {
			out = append(out, v)
		} else {
			out = append(out, v.Not())
		}
	}
	return out, nil
}

func (e *GiniEngine) GetConflicts() ([]CnfLit, error) {
	return e.g.Why(nil), nil
}

var _ Engine = (*GiniEngine)(nil)
