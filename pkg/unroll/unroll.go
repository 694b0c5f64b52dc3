// Package unroll implements the Incremental Unroller (C5): given a
// zigzag cursor (prev_k, current_k), it pushes to the permanent group
// only the state-vector, transition, loop-selector, InLoop and
// eventuality-witness slices missing between the two bounds (spec
// §4.3). Every step is idempotent and each of its index ranges starts
// just after what the earlier bounds already covered (so a step may
// start at prev_k itself, e.g. the transition from R(prev_k) to
// R(prev_k+1)), which is what lets the driver (pkg/zigzag) call
// Extend repeatedly as the bound grows without re-asserting anything.
package unroll

import (
	"fmt"

	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/fsm"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/statevars"
	"github.com/rfielding/zigzagbmc/pkg/tableau"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// Sentinel is the cursor value a fresh run starts from: strictly below
// -2, so max(Sentinel+2, 0) and max(Sentinel+1, 0) both collapse to 0
// on the very first Extend.
const Sentinel = -3

// Cursor tracks the zigzag driver's (prev_k, current_k) pair named in
// spec §4.7.1. The zero Cursor is not usable; start from NewCursor.
type Cursor struct {
	PrevK int
}

// NewCursor returns a cursor for a fresh run (no bound extended yet).
func NewCursor() Cursor { return Cursor{PrevK: Sentinel} }

// inLoopVarName names the cumulative "inside the loop" boolean; it has
// no counterpart in statevars.Registry because, unlike l_i/LastState_i
// (read by pkg/tableau's past-operator equations), InLoop is only ever
// read inside this package and, through InLoopVar, by pkg/closer and
// pkg/simplepath.
const inLoopVarName = "InLoop"

// Unroller is C5. It shares the encoder, state-vars registry and
// tableau builder with the rest of the run (spec §5, "shared... BE DAG
// and name table").
type Unroller struct {
	enc encode.Encoder
	reg *statevars.Registry
	tb  *tableau.Builder
	fsm fsm.FSM

	rootForced bool
}

// New returns an Unroller over an already-Prepared tableau Builder.
func New(enc encode.Encoder, reg *statevars.Registry, tb *tableau.Builder, machine fsm.FSM) *Unroller {
	return &Unroller{enc: enc, reg: reg, tb: tb, fsm: machine}
}

func max0(i int) int {
	if i < 0 {
		return 0
	}
	return i
}

// lVar, lastStateVar, loopExistsVar and inLoopVar read the per-index
// or untimed boolean handles; VarAt is itself idempotent so repeated
// calls for the same (name, time) are free.
func (u *Unroller) lVar(i int) encode.BE {
	return u.enc.VarAt(u.reg.LVar, encode.Timed(timeidx.R(i)))
}
func (u *Unroller) lastStateVar(i int) encode.BE {
	return u.enc.VarAt(u.reg.LastStateVar, encode.Timed(timeidx.R(i)))
}
func (u *Unroller) loopExistsVar() encode.BE {
	return u.enc.VarAt(u.reg.LoopExistsVar, encode.Untimed())
}
func (u *Unroller) inLoopVar(i int) encode.BE {
	return u.enc.VarAt(inLoopVarName, encode.Timed(timeidx.R(i)))
}

// InLoopVar, LVarAt, LastStateVarAt and LoopExistsVar are the exported
// accessors pkg/simplepath and pkg/closer use to read the same handles
// without duplicating the naming scheme.
func (u *Unroller) InLoopVar(i int) encode.BE      { return u.inLoopVar(i) }
func (u *Unroller) LVarAt(i int) encode.BE         { return u.lVar(i) }
func (u *Unroller) LastStateVarAt(i int) encode.BE { return u.lastStateVar(i) }
func (u *Unroller) LoopExistsVar() encode.BE       { return u.loopExistsVar() }

// inLoopPrev returns InLoop_{i-1}, treating the position before R(0)
// as falsity: there is no loop before the execution has a single
// state.
func (u *Unroller) inLoopPrev(i int) encode.BE {
	if i == 0 {
		return u.enc.Falsity()
	}
	return u.inLoopVar(i - 1)
}

// stateEquality conjoins, over every name in SimplePathSystemVars, the
// claim that the variable agrees at a and b. It implements the `s_x =
// s_y` shorthand spec §4.3/§4.4 use for system-variable equality.
func (u *Unroller) stateEquality(a, b timeidx.TimeIdx) encode.BE {
	out := u.enc.Truth()
	for _, name := range u.reg.SimplePathSystemVars {
		out = u.enc.And(out, u.enc.Iff(u.enc.VarAt(name, encode.Timed(a)), u.enc.VarAt(name, encode.Timed(b))))
	}
	return out
}

// Extend pushes every permanent clause between cursor.PrevK and
// currentK (spec §4.3, steps 1-9, run in this exact order: ordering is
// required for solver performance even though correctness does not
// depend on it, per §5). It returns the cursor advanced to currentK.
func (u *Unroller) Extend(cursor Cursor, currentK int, pusher tableau.Pusher) (Cursor, error) {
	prevK := cursor.PrevK

	// 1. State vector extension: materialise [[f]]_{R(i)}^d for every
	// subformula and every depth, one index further than the
	// transition/invariant ranges below so that X's child reference and
	// past operators' i-1 transport already have somewhere to land.
	for i := max0(prevK + 2); i <= currentK+1; i++ {
		if err := u.materializeStateVector(i, pusher); err != nil {
			return cursor, fmt.Errorf("unroll: state vector at %d: %w", i, err)
		}
	}

	// 2. Transition relation.
	for i := max0(prevK); i < currentK; i++ {
		if err := pusher.ForceTrue(u.fsm.Transition(timeidx.R(i), timeidx.R(i+1))); err != nil {
			return cursor, fmt.Errorf("unroll: transition at %d: %w", i, err)
		}
	}

	// 3. Loop-selector semantics.
	for i := max0(prevK + 1); i <= currentK; i++ {
		if i == 0 {
			if err := pusher.ForceTrue(u.enc.Not(u.lVar(0))); err != nil {
				return cursor, fmt.Errorf("unroll: l_0: %w", err)
			}
			continue
		}
		eq := u.stateEquality(timeidx.R(i-1), timeidx.E())
		if err := pusher.ForceTrue(u.enc.Implies(u.lVar(i), eq)); err != nil {
			return cursor, fmt.Errorf("unroll: loop-selector at %d: %w", i, err)
		}
	}

	// 4. LastState timeline.
	for i := max0(prevK); i <= currentK-1; i++ {
		if err := pusher.ForceTrue(u.enc.Not(u.lastStateVar(i))); err != nil {
			return cursor, fmt.Errorf("unroll: LastState at %d: %w", i, err)
		}
	}

	// 5. InLoop recursion.
	for i := max0(prevK + 1); i <= currentK; i++ {
		def := u.enc.Or(u.inLoopPrev(i), u.lVar(i))
		if err := pusher.ForceTrue(u.enc.Iff(u.inLoopVar(i), def)); err != nil {
			return cursor, fmt.Errorf("unroll: InLoop at %d: %w", i, err)
		}
		if err := pusher.ForceTrue(u.enc.Implies(u.inLoopPrev(i), u.enc.Not(u.lVar(i)))); err != nil {
			return cursor, fmt.Errorf("unroll: InLoop anti-reflexivity at %d: %w", i, err)
		}
	}

	// 6. Loop existence propagation.
	for i := max0(prevK + 1); i <= currentK; i++ {
		if err := pusher.ForceTrue(u.enc.Implies(u.lVar(i), u.loopExistsVar())); err != nil {
			return cursor, fmt.Errorf("unroll: loop existence at %d: %w", i, err)
		}
	}

	// 7. Future & past invariants are instantiated as a side effect of
	// the Ensure calls already made in step 1: this implementation
	// collapses variable allocation and defining-equation assertion
	// into one idempotent Ensure call (see pkg/tableau), so there is no
	// separate equation to push here.

	// 8. Eventuality witnesses.
	if err := u.extendEventualityWitnesses(max0(prevK+1), currentK, pusher); err != nil {
		return cursor, err
	}

	// 9. Formula root, exactly once.
	if !u.rootForced {
		root := u.tb.Root()
		rootBE, err := u.tb.Ensure(root, u.tb.Info().MustGet(root).PastDepth, timeidx.R(0), pusher)
		if err != nil {
			return cursor, fmt.Errorf("unroll: formula root: %w", err)
		}
		if err := pusher.ForceTrue(rootBE); err != nil {
			return cursor, fmt.Errorf("unroll: forcing formula root: %w", err)
		}
		u.rootForced = true
	}

	return Cursor{PrevK: currentK}, nil
}

// materializeStateVector calls Ensure for every (subformula, depth)
// pair at R(i); for translation-variable nodes this also asserts the
// defining equation (pkg/tableau.Ensure's ForceTrue side effect), for
// purely definitional nodes it only populates the cache.
func (u *Unroller) materializeStateVector(i int, pusher tableau.Pusher) error {
	var err error
	pltl.Walk(u.tb.Root(), func(f *pltl.Formula) {
		if err != nil {
			return
		}
		fi := u.tb.Info().MustGet(f)
		for d := 0; d <= fi.PastDepth; d++ {
			if _, e := u.tb.Ensure(f, d, timeidx.R(i), pusher); e != nil {
				err = e
				return
			}
		}
	})
	return err
}

// extendEventualityWitnesses instantiates <<Ff>>_i / <<Gf>>_i for
// every i in [from, to] and every subformula carrying an eventuality
// witness (spec §4.3 step 8). f here ranges over the *witnessed*
// subformula (F's child, U's right child, G's child, R's right
// child), matching how pkg/tableau.Builder.allocAuxF/allocAuxG name
// them during Prepare.
func (u *Unroller) extendEventualityWitnesses(from, to int, pusher tableau.Pusher) error {
	var err error
	pltl.Walk(u.tb.Root(), func(f *pltl.Formula) {
		if err != nil {
			return
		}
		fi := u.tb.Info().MustGet(f)
		if fi.AuxFNode != "" {
			for i := from; i <= to; i++ {
				if e := u.stepAuxF(f, fi, i, pusher); e != nil {
					err = e
					return
				}
			}
		}
		if fi.AuxGNode != "" {
			for i := from; i <= to; i++ {
				if e := u.stepAuxG(f, fi, i, pusher); e != nil {
					err = e
					return
				}
			}
		}
	})
	return err
}

// auxFAt and auxGAt read a witness already materialised by an earlier
// (lower-i) call to stepAuxF/stepAuxG; Extend's strictly-increasing i
// order guarantees i-1 is cached by the time i is processed.
func (u *Unroller) auxFAt(fi *tableau.FormulaInfo, f *pltl.Formula, i int) (encode.BE, error) {
	be, ok := fi.AuxFAt(timeidx.R(i))
	if !ok {
		return encode.BE(0), fmt.Errorf("unroll: missing <<Ff>>_%d witness for %s", i, f)
	}
	return be, nil
}

func (u *Unroller) auxGAt(fi *tableau.FormulaInfo, f *pltl.Formula, i int) (encode.BE, error) {
	be, ok := fi.AuxGAt(timeidx.R(i))
	if !ok {
		return encode.BE(0), fmt.Errorf("unroll: missing <<Gf>>_%d witness for %s", i, f)
	}
	return be, nil
}

func (u *Unroller) stepAuxF(f *pltl.Formula, fi *tableau.FormulaInfo, i int, pusher tableau.Pusher) error {
	_, err := u.tb.EnsureAuxF(f, timeidx.R(i), func() (encode.BE, error) {
		if i == 0 {
			return u.enc.Falsity(), nil
		}
		prev, err := u.auxFAt(fi, f, i-1)
		if err != nil {
			return encode.BE(0), err
		}
		atI, err := u.tb.Ensure(f, fi.PastDepth, timeidx.R(i), pusher)
		if err != nil {
			return encode.BE(0), err
		}
		return u.enc.Or(prev, u.enc.And(u.inLoopVar(i), atI)), nil
	}, pusher)
	return err
}

func (u *Unroller) stepAuxG(f *pltl.Formula, fi *tableau.FormulaInfo, i int, pusher tableau.Pusher) error {
	_, err := u.tb.EnsureAuxG(f, timeidx.R(i), func() (encode.BE, error) {
		if i == 0 {
			return u.enc.Truth(), nil
		}
		prev, err := u.auxGAt(fi, f, i-1)
		if err != nil {
			return encode.BE(0), err
		}
		atI, err := u.tb.Ensure(f, fi.PastDepth, timeidx.R(i), pusher)
		if err != nil {
			return encode.BE(0), err
		}
		return u.enc.And(prev, u.enc.Or(u.enc.Not(u.inLoopVar(i)), atI)), nil
	}, pusher)
	return err
}
