package tableau

import (
	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// BaseConstraints emits the k-invariant base constraints on L/E named
// in spec §4.2.3. It must run exactly once at run start, into the
// permanent group, after Prepare.
func (b *Builder) BaseConstraints(pusher Pusher) error {
	loopExists := b.enc.VarAt(b.reg.LoopExistsVar, encode.Untimed())

	var err error
	pltl.Walk(b.root, func(f *pltl.Formula) {
		if err != nil {
			return
		}
		fi := b.info.MustGet(f)
		if !fi.HasTransVars() {
			return
		}

		// ¬LoopExists ⇒ [[f]]_L^d = ⊥ for every depth: the loop head is
		// meaningless when no loop exists.
		for d := 0; d <= fi.PastDepth; d++ {
			var atL encode.BE
			atL, err = b.Ensure(f, d, timeidx.L(), pusher)
			if err != nil {
				return
			}
			if pushErr := pusher.ForceTrue(b.enc.Implies(b.enc.Not(loopExists), b.enc.Not(atL))); pushErr != nil {
				err = pushErr
				return
			}
		}

		// Eventuality bridges at E: LoopExists ⇒ ([[Ff]]_E^pd ⇒ <<Ff>>_E),
		// and the symmetric implication for G.
		switch f.Op {
		case pltl.OpFuture, pltl.OpUntil:
			witness := f.L
			if f.Op == pltl.OpUntil {
				witness = f.R
			}
			wfi := b.info.MustGet(witness)
			if wfi.AuxFNode == "" {
				return
			}
			var atE encode.BE
			atE, err = b.Ensure(f, fi.PastDepth, timeidx.E(), pusher)
			if err != nil {
				return
			}
			auxE := b.enc.VarAt(wfi.AuxFNode, encode.Timed(timeidx.E()))
			if pushErr := pusher.ForceTrue(b.enc.Implies(loopExists, b.enc.Implies(atE, auxE))); pushErr != nil {
				err = pushErr
			}
		case pltl.OpGlobally, pltl.OpRelease:
			witness := f.L
			if f.Op == pltl.OpRelease {
				witness = f.R
			}
			wfi := b.info.MustGet(witness)
			if wfi.AuxGNode == "" {
				return
			}
			var atE encode.BE
			atE, err = b.Ensure(f, fi.PastDepth, timeidx.E(), pusher)
			if err != nil {
				return
			}
			auxE := b.enc.VarAt(wfi.AuxGNode, encode.Timed(timeidx.E()))
			if pushErr := pusher.ForceTrue(b.enc.Implies(loopExists, b.enc.Implies(atE, auxE))); pushErr != nil {
				err = pushErr
			}
		}
	})
	if err != nil {
		return err
	}

	// Definitional sanity at E is free: every purely-definitional node
	// (TRUE, FALSE, non-input atoms, propositional connectives, future
	// operators without forced vars) already computes its value at E
	// the same way it does at any other time index, via Ensure's normal
	// body() dispatch — there is nothing additional to assert here.
	return nil
}
