// Package simplepath implements the Simple-Path Engine (C6, spec
// §4.4): completeness checking via a pairwise distinguishability
// constraint between every earlier position j and the newest bound k.
package simplepath

import (
	"fmt"

	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/statevars"
	"github.com/rfielding/zigzagbmc/pkg/tableau"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// AssumptionVarName names the literal that gates every simple-path
// clause under the assumption-capable variant (spec §4.4, §4.7.2).
const AssumptionVarName = "ass_SimplePath"

// Engine is C6. It reads the tableau's FormulaInfo map and the
// registry's InLoop accessor (supplied by pkg/unroll, since InLoop has
// no name in statevars.Registry) to build the distinguishability
// disjunction.
type Engine struct {
	enc encode.Encoder
	reg *statevars.Registry
	tb  *tableau.Builder

	inLoopVar func(i int) encode.BE
}

// New returns a simple-path Engine. inLoopVar must return the same
// InLoop_i handle pkg/unroll materialises (encode.VarAt("InLoop",
// Timed(R(i)))); it is supplied as a function rather than duplicating
// the name here so the two packages cannot drift.
func New(enc encode.Encoder, reg *statevars.Registry, tb *tableau.Builder, inLoopVar func(i int) encode.BE) *Engine {
	return &Engine{enc: enc, reg: reg, tb: tb, inLoopVar: inLoopVar}
}

func (e *Engine) assumptionVar() encode.BE {
	return e.enc.VarAt(AssumptionVarName, encode.Untimed())
}

// distinguish builds the "j and k are distinguishable" disjunction of
// spec §4.4 for a single pair (j, k). pusher is only ever consulted by
// Ensure on a cache miss; by the time the driver calls ExtendPermanent/
// ExtendAssumable for bound k, the unroller has already materialised
// every (subformula, depth) pair up to k, so in practice this is
// always a cache hit — pusher is threaded through regardless, so a gap
// in that precondition fails loudly instead of nil-deref panicking.
func (e *Engine) distinguish(j, k int, pusher tableau.Pusher) (encode.BE, error) {
	enc := e.enc
	sj, sk := timeidx.R(j), timeidx.R(k)

	stateNeq := enc.Not(e.stateEquality(sj, sk))
	inLoopNeq := enc.Not(enc.Iff(e.inLoopVar(j), e.inLoopVar(k)))

	var depthZeroNeq, deeperNeq, auxNeq encode.BE
	var err error
	pltl.Walk(e.tb.Root(), func(f *pltl.Formula) {
		if err != nil {
			return
		}
		fi := e.tb.Info().MustGet(f)
		if !fi.HasTransVars() {
			return
		}
		atJ0, e1 := e.tb.Ensure(f, 0, sj, pusher)
		atK0, e2 := e.tb.Ensure(f, 0, sk, pusher)
		if e1 != nil {
			err = e1
			return
		}
		if e2 != nil {
			err = e2
			return
		}
		clause := enc.Not(enc.Iff(atJ0, atK0))
		if depthZeroNeq == encode.BE(0) {
			depthZeroNeq = clause
		} else {
			depthZeroNeq = enc.Or(depthZeroNeq, clause)
		}

		for d := 1; d <= fi.PastDepth; d++ {
			atJd, e3 := e.tb.Ensure(f, d, sj, pusher)
			atKd, e4 := e.tb.Ensure(f, d, sk, pusher)
			if e3 != nil {
				err = e3
				return
			}
			if e4 != nil {
				err = e4
				return
			}
			c := enc.Not(enc.Iff(atJd, atKd))
			if deeperNeq == encode.BE(0) {
				deeperNeq = c
			} else {
				deeperNeq = enc.Or(deeperNeq, c)
			}
		}

		if fi.AuxFNode != "" {
			auxNeq = orAux(enc, auxNeq, fi.AuxFAt, j, k)
		}
		if fi.AuxGNode != "" {
			auxNeq = orAux(enc, auxNeq, fi.AuxGAt, j, k)
		}
	})
	if err != nil {
		return encode.BE(0), fmt.Errorf("simplepath: distinguishing %d/%d: %w", j, k, err)
	}
	if depthZeroNeq == encode.BE(0) {
		depthZeroNeq = enc.Falsity()
	}

	insideLoopNeq := enc.Falsity()
	if deeperNeq != encode.BE(0) {
		insideLoopNeq = enc.Or(insideLoopNeq, deeperNeq)
	}
	if auxNeq != encode.BE(0) {
		insideLoopNeq = enc.Or(insideLoopNeq, auxNeq)
	}
	bothInLoop := enc.And(e.inLoopVar(j), e.inLoopVar(k))
	insideClause := enc.And(bothInLoop, insideLoopNeq)

	out := enc.Or(stateNeq, enc.Or(inLoopNeq, enc.Or(depthZeroNeq, insideClause)))
	return out, nil
}

func orAux(enc encode.Encoder, acc encode.BE, at func(timeidx.TimeIdx) (encode.BE, bool), j, k int) encode.BE {
	auxJ, okJ := at(timeidx.R(j))
	auxK, okK := at(timeidx.R(k))
	if !okJ || !okK {
		return acc
	}
	clause := enc.Not(enc.Iff(auxJ, auxK))
	if acc == encode.BE(0) {
		return clause
	}
	return enc.Or(acc, clause)
}

func (e *Engine) stateEquality(a, b timeidx.TimeIdx) encode.BE {
	out := e.enc.Truth()
	for _, name := range e.reg.SimplePathSystemVars {
		out = e.enc.And(out, e.enc.Iff(e.enc.VarAt(name, encode.Timed(a)), e.enc.VarAt(name, encode.Timed(b))))
	}
	return out
}

// ExtendPermanent pushes SimplePath_{j,k} for every 0 <= j < k into the
// permanent group (spec §4.4, non-assumption variant).
func (e *Engine) ExtendPermanent(k int, pusher tableau.Pusher) error {
	for j := 0; j < k; j++ {
		clause, err := e.distinguish(j, k, pusher)
		if err != nil {
			return err
		}
		if err := pusher.ForceTrue(clause); err != nil {
			return fmt.Errorf("simplepath: forcing SimplePath_%d,%d: %w", j, k, err)
		}
	}
	return nil
}

// ExtendAssumable pushes `ass_SimplePath ⇒ SimplePath_{j,k}` for every
// 0 <= j < k into the permanent group, and returns the literal the
// caller must add to its next assumption set (spec §4.4, assumption
// variant).
func (e *Engine) ExtendAssumable(k int, pusher tableau.Pusher) (encode.BE, error) {
	ass := e.assumptionVar()
	for j := 0; j < k; j++ {
		clause, err := e.distinguish(j, k, pusher)
		if err != nil {
			return encode.BE(0), err
		}
		if err := pusher.ForceTrue(e.enc.Implies(ass, clause)); err != nil {
			return encode.BE(0), fmt.Errorf("simplepath: forcing ass_SimplePath => SimplePath_%d,%d: %w", j, k, err)
		}
	}
	return ass, nil
}
