// Package closer implements the k-Dependent Closer (C7, spec §4.5):
// the bridging constraints that make position k behave, for one
// solve, as if it closed a lasso back to the loop head L. Everything
// it pushes goes into the driver's volatile group and must be gone by
// the next bound.
package closer

import (
	"fmt"

	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/statevars"
	"github.com/rfielding/zigzagbmc/pkg/tableau"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// Closer is C7.
type Closer struct {
	enc encode.Encoder
	reg *statevars.Registry
	tb  *tableau.Builder

	inLoopVar     func(i int) encode.BE
	lVar          func(i int) encode.BE
	lastStateVar  func(i int) encode.BE
	loopExistsVar func() encode.BE
}

// New returns a Closer reading the same per-index handles pkg/unroll
// materialises, supplied as accessor functions so the two packages
// share one naming scheme while closer itself does not import
// pkg/unroll.
func New(enc encode.Encoder, reg *statevars.Registry, tb *tableau.Builder, inLoopVar, lVar, lastStateVar func(i int) encode.BE, loopExistsVar func() encode.BE) *Closer {
	return &Closer{enc: enc, reg: reg, tb: tb, inLoopVar: inLoopVar, lVar: lVar, lastStateVar: lastStateVar, loopExistsVar: loopExistsVar}
}

func (c *Closer) stateEquality(a, b timeidx.TimeIdx) encode.BE {
	out := c.enc.Truth()
	for _, name := range c.reg.SimplePathSystemVars {
		out = c.enc.And(out, c.enc.Iff(c.enc.VarAt(name, encode.Timed(a)), c.enc.VarAt(name, encode.Timed(b))))
	}
	return out
}

// Close pushes every closing constraint of spec §4.5 for bound k into
// the volatile group (pusher must already be routed there, i.e. the
// driver must have called Facade.GotoVolatileGroup first).
func (c *Closer) Close(k int, pusher tableau.Pusher) error {
	enc := c.enc

	// E's defining equations were pushed into the previous bound's
	// volatile group and are gone now that group was destroyed; drop
	// the tableau's cached handles so Ensure/EnsureAuxF/EnsureAuxG
	// rebuild them against this bound's k instead of returning stale
	// BEs with no live equation behind them.
	c.tb.ResetAt(timeidx.E())

	if err := pusher.ForceTrue(c.lastStateVar(k)); err != nil {
		return fmt.Errorf("closer: LastState_%d: %w", k, err)
	}
	if err := pusher.ForceTrue(enc.Not(c.lVar(k + 1))); err != nil {
		return fmt.Errorf("closer: l_%d: %w", k+1, err)
	}
	if err := pusher.ForceTrue(c.stateEquality(timeidx.E(), timeidx.R(k))); err != nil {
		return fmt.Errorf("closer: s_E = s_%d: %w", k, err)
	}
	if err := pusher.ForceTrue(enc.Iff(c.loopExistsVar(), c.inLoopVar(k))); err != nil {
		return fmt.Errorf("closer: LoopExists <=> InLoop_%d: %w", k, err)
	}

	var err error
	pltl.Walk(c.tb.Root(), func(f *pltl.Formula) {
		if err != nil {
			return
		}
		fi := c.tb.Info().MustGet(f)
		if !fi.HasTransVars() {
			return
		}
		for d := 0; d <= fi.PastDepth; d++ {
			if e := c.bridgeAtDepth(f, fi, d, k, pusher); e != nil {
				err = e
				return
			}
		}
		if fi.AuxFNode != "" {
			if e := c.bridgeAuxF(f, fi, k, pusher); e != nil {
				err = e
				return
			}
		}
		if fi.AuxGNode != "" {
			if e := c.bridgeAuxG(f, fi, k, pusher); e != nil {
				err = e
				return
			}
		}
	})
	return err
}

// bridgeAtDepth pushes [[f]]_E^d <=> [[f]]_k^d and
// [[f]]_{k+1}^d <=> [[f]]_L^{min(d+1,pd)}.
func (c *Closer) bridgeAtDepth(f *pltl.Formula, fi *tableau.FormulaInfo, d, k int, pusher tableau.Pusher) error {
	atE, err := c.tb.Ensure(f, d, timeidx.E(), pusher)
	if err != nil {
		return err
	}
	atK, err := c.tb.Ensure(f, d, timeidx.R(k), pusher)
	if err != nil {
		return err
	}
	if err := pusher.ForceTrue(c.enc.Iff(atE, atK)); err != nil {
		return fmt.Errorf("closer: [[%s]]_E^%d <=> [[%s]]_%d^%d: %w", f, d, f, k, d, err)
	}

	dNext := d + 1
	if dNext > fi.PastDepth {
		dNext = fi.PastDepth
	}
	atKPlus1, err := c.tb.Ensure(f, d, timeidx.R(k+1), pusher)
	if err != nil {
		return err
	}
	atLNext, err := c.tb.Ensure(f, dNext, timeidx.L(), pusher)
	if err != nil {
		return err
	}
	if err := pusher.ForceTrue(c.enc.Iff(atKPlus1, atLNext)); err != nil {
		return fmt.Errorf("closer: [[%s]]_%d^%d <=> [[%s]]_L^%d: %w", f, k+1, d, f, dNext, err)
	}
	return nil
}

// bridgeAuxF defines <<Ff>>_E as <<Ff>>_k: the witness's closing value
// is exactly its value at the position being closed over (spec §4.5).
// <<Ff>>_E is never materialised outside the closer, so EnsureAuxF's
// body runs on every call (E is re-entered each bound).
func (c *Closer) bridgeAuxF(f *pltl.Formula, fi *tableau.FormulaInfo, k int, pusher tableau.Pusher) error {
	auxK, ok := fi.AuxFAt(timeidx.R(k))
	if !ok {
		return fmt.Errorf("closer: <<Ff>>_%d for %s was never materialised", k, f)
	}
	_, err := c.tb.EnsureAuxF(f, timeidx.E(), func() (encode.BE, error) {
		return auxK, nil
	}, pusher)
	return err
}

func (c *Closer) bridgeAuxG(f *pltl.Formula, fi *tableau.FormulaInfo, k int, pusher tableau.Pusher) error {
	auxK, ok := fi.AuxGAt(timeidx.R(k))
	if !ok {
		return fmt.Errorf("closer: <<Gf>>_%d for %s was never materialised", k, f)
	}
	_, err := c.tb.EnsureAuxG(f, timeidx.E(), func() (encode.BE, error) {
		return auxK, nil
	}, pusher)
	return err
}
