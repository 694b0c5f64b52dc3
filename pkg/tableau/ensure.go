package tableau

import (
	"fmt"

	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// Ensure returns [[f]]_t^d (spec §4.2.2), materialising it (and
// recursively anything it depends on) if this is the first time the
// triple has been requested. Nodes with translation variables get a
// stub cached before the defining body is computed, so a defining
// equation that refers back to the same (f,t,d) — F/G's own
// fixpoint-shaped equations — terminates instead of looping.
func (b *Builder) Ensure(f *pltl.Formula, d int, t timeidx.TimeIdx, pusher Pusher) (encode.BE, error) {
	fi := b.info.MustGet(f)
	if d < 0 {
		d = 0
	}
	if d > fi.PastDepth {
		d = fi.PastDepth
	}

	if be, ok := fi.TransBEAt(t, d); ok {
		return be, nil
	}

	if fi.HasTransVars() {
		v := b.enc.VarAt(fi.TransVars[d], encode.Timed(t))
		fi.setTransBE(t, d, v)
		body, err := b.body(f, fi, d, t, pusher)
		if err != nil {
			return encode.BE(0), err
		}
		if err := pusher.ForceTrue(b.enc.Iff(v, body)); err != nil {
			return encode.BE(0), err
		}
		return v, nil
	}

	body, err := b.body(f, fi, d, t, pusher)
	if err != nil {
		return encode.BE(0), err
	}
	fi.setTransBE(t, d, body)
	return body, nil
}

// EnsureAuxF / EnsureAuxG return the eventuality-witness BE for f at
// t, allocating and caching it if this is the first request. f must
// be the child node that allocAuxF/allocAuxG ran on (the operand of
// F/U, resp. G/R) — callers pass the same node they used in Prepare.
func (b *Builder) EnsureAuxF(f *pltl.Formula, t timeidx.TimeIdx, body func() (encode.BE, error), pusher Pusher) (encode.BE, error) {
	fi := b.info.MustGet(f)
	if fi.AuxFNode == "" {
		return encode.BE(0), fmt.Errorf("tableau: %s has no F-witness allocated", f)
	}
	if be, ok := fi.AuxFAt(t); ok {
		return be, nil
	}
	v := b.enc.VarAt(fi.AuxFNode, encode.Timed(t))
	fi.setAuxF(t, v)
	rhs, err := body()
	if err != nil {
		return encode.BE(0), err
	}
	if err := pusher.ForceTrue(b.enc.Iff(v, rhs)); err != nil {
		return encode.BE(0), err
	}
	return v, nil
}

func (b *Builder) EnsureAuxG(f *pltl.Formula, t timeidx.TimeIdx, body func() (encode.BE, error), pusher Pusher) (encode.BE, error) {
	fi := b.info.MustGet(f)
	if fi.AuxGNode == "" {
		return encode.BE(0), fmt.Errorf("tableau: %s has no G-witness allocated", f)
	}
	if be, ok := fi.AuxGAt(t); ok {
		return be, nil
	}
	v := b.enc.VarAt(fi.AuxGNode, encode.Timed(t))
	fi.setAuxG(t, v)
	rhs, err := body()
	if err != nil {
		return encode.BE(0), err
	}
	if err := pusher.ForceTrue(b.enc.Iff(v, rhs)); err != nil {
		return encode.BE(0), err
	}
	return v, nil
}

// body computes the right-hand side of [[f]]_t^d per the table in
// spec §4.2.2. It never itself caches — Ensure does that — so it is
// always safe to call once per materialisation.
func (b *Builder) body(f *pltl.Formula, fi *FormulaInfo, d int, t timeidx.TimeIdx, pusher Pusher) (encode.BE, error) {
	enc := b.enc
	i, isReal := t.TimeOf()

	switch f.Op {
	case pltl.OpAtom:
		base := enc.VarAt(f.Atom, encode.Timed(t))
		if f.IsInput && isReal {
			lastState := enc.VarAt(b.reg.LastStateVar, encode.Timed(t))
			loopExists := enc.VarAt(b.reg.LoopExistsVar, encode.Untimed())
			guard := enc.Or(enc.Not(lastState), loopExists)
			return enc.And(base, guard), nil
		}
		return base, nil

	case pltl.OpTrue:
		return enc.Truth(), nil
	case pltl.OpFalse:
		return enc.Falsity(), nil

	case pltl.OpNot:
		child, err := b.Ensure(f.L, min(d, b.pd(f.L)), t, pusher)
		if err != nil {
			return encode.BE(0), err
		}
		return enc.Not(child), nil

	case pltl.OpAnd, pltl.OpOr:
		dl := min(d, b.pd(f.L))
		dr := min(d, b.pd(f.R))
		l, err := b.Ensure(f.L, dl, t, pusher)
		if err != nil {
			return encode.BE(0), err
		}
		r, err := b.Ensure(f.R, dr, t, pusher)
		if err != nil {
			return encode.BE(0), err
		}
		if f.Op == pltl.OpAnd {
			return enc.And(l, r), nil
		}
		return enc.Or(l, r), nil

	case pltl.OpNext:
		childPd := b.pd(f.L)
		switch {
		case t == timeidx.L() || t == timeidx.E():
			return b.Ensure(f.L, min(d+1, childPd), timeidx.L(), pusher)
		case isReal:
			return b.Ensure(f.L, d, timeidx.R(i+1), pusher)
		default:
			return encode.BE(0), fmt.Errorf("tableau: unreachable time index for X")
		}

	case pltl.OpFuture, pltl.OpGlobally:
		childPd := b.pd(f.L)
		child, err := b.Ensure(f.L, min(d, childPd), t, pusher)
		if err != nil {
			return encode.BE(0), err
		}
		loopTail, err := b.Ensure(f, min(d+1, fi.PastDepth), timeidx.L(), pusher)
		if err != nil {
			return encode.BE(0), err
		}
		if f.Op == pltl.OpFuture {
			return enc.Or(child, loopTail), nil
		}
		return enc.And(child, loopTail), nil

	case pltl.OpUntil, pltl.OpRelease:
		dl := min(d, b.pd(f.L))
		dr := min(d, b.pd(f.R))
		l, err := b.Ensure(f.L, dl, t, pusher)
		if err != nil {
			return encode.BE(0), err
		}
		r, err := b.Ensure(f.R, dr, t, pusher)
		if err != nil {
			return encode.BE(0), err
		}
		loopTail, err := b.Ensure(f, min(d+1, fi.PastDepth), timeidx.L(), pusher)
		if err != nil {
			return encode.BE(0), err
		}
		if f.Op == pltl.OpUntil {
			// f U r <=> r | (l & loop-tail), the standard unrolling of
			// the until fixpoint, with the loop tail standing in for
			// "holds from here on inside the lasso".
			return enc.Or(r, enc.And(l, loopTail)), nil
		}
		// l R r <=> r & (l | loop-tail)
		return enc.And(r, enc.Or(l, loopTail)), nil

	case pltl.OpPrev, pltl.OpNotPrevNot, pltl.OpOnce, pltl.OpHistorically:
		return b.pastUnary(f, fi, d, t, pusher)

	case pltl.OpSince, pltl.OpTriggered:
		return b.pastBinary(f, fi, d, t, pusher)

	default:
		return encode.BE(0), fmt.Errorf("tableau: unreachable operator %s in body", f.Op)
	}
}

// pastUnary handles Y, Z, O, H: operators whose past depth is
// pd(child)+1 and whose defining equation transports a value through
// the loop head via the pseudo-state E once a loop has been found
// (spec §4.2.2, §4.3 step 7). O and H carry their OWN recursive value
// through the transport, combined with the child read at the same
// time; Y and Z have no same-time term at all and instead transport
// the CHILD's value (NuSMV sbmcTableauIncLTLformula.c: OP_ONCE and
// OP_HISTORICAL read their own trans_bes array across the ITE, while
// OP_PREC and OP_NOTPRECNOT read the child's).
//
// Three depths are distinguished at a real time i>0, per §4.3 step 7:
// d==0 has no loop-transport ITE at all (a plain recurrence against
// i-1); 0<d<pd transports through E at depth d-1; d==pd pushes an
// ADDITIONAL second equation transporting through E at depth d (plain,
// not d-1) to stabilise the past value at the deepest unrolling.
func (b *Builder) pastUnary(f *pltl.Formula, fi *FormulaInfo, d int, t timeidx.TimeIdx, pusher Pusher) (encode.BE, error) {
	enc := b.enc
	childPd := b.pd(f.L)
	i, isReal := t.TimeOf()

	combine := enc.Or
	childAtSameTime := true
	emptyBase := enc.Falsity
	switch f.Op {
	case pltl.OpHistorically:
		combine = enc.And
		emptyBase = enc.Truth
	case pltl.OpPrev:
		childAtSameTime = false
	case pltl.OpNotPrevNot:
		childAtSameTime = false
		emptyBase = enc.Truth
	}

	readChildAt := func(depth int, at timeidx.TimeIdx) (encode.BE, error) {
		return b.Ensure(f.L, depth, at, pusher)
	}

	switch {
	case t == timeidx.L():
		// The loop head has no predecessor of its own; its past value
		// is whatever the base constraints at §4.2.3 pin it to
		// (definitional only when LoopExists holds).
		if childAtSameTime {
			return readChildAt(min(d, childPd), timeidx.L())
		}
		return emptyBase(), nil

	case t == timeidx.E():
		return readChildAt(min(d, childPd), timeidx.E())

	case isReal && i == 0:
		// [[Of]]_0^d, [[Hf]]_0^d <=> [[child]]_0^0: there is no past
		// before time 0, so O/H collapse to the child holding right
		// now, always read at depth 0 regardless of d. Y/Z have no
		// predecessor at all to read.
		if childAtSameTime {
			return readChildAt(0, timeidx.R(0))
		}
		return emptyBase(), nil

	case isReal && d == 0:
		if !childAtSameTime {
			return readChildAt(0, timeidx.R(i-1))
		}
		prevSelf, err := b.Ensure(f, 0, timeidx.R(i-1), pusher)
		if err != nil {
			return encode.BE(0), err
		}
		child, err := readChildAt(0, timeidx.R(i))
		if err != nil {
			return encode.BE(0), err
		}
		return combine(child, prevSelf), nil

	case isReal:
		v := enc.VarAt(fi.TransVars[d], encode.Timed(t))
		lVar := enc.VarAt(b.reg.LVar, encode.Timed(timeidx.R(i)))

		carryAt := func(eDepth int) (encode.BE, error) {
			if childAtSameTime {
				atE, err := b.Ensure(f, eDepth, timeidx.E(), pusher)
				if err != nil {
					return encode.BE(0), err
				}
				atIm1, err := b.Ensure(f, d, timeidx.R(i-1), pusher)
				if err != nil {
					return encode.BE(0), err
				}
				return enc.Ite(lVar, atE, atIm1), nil
			}
			atE, err := readChildAt(eDepth, timeidx.E())
			if err != nil {
				return encode.BE(0), err
			}
			atIm1, err := readChildAt(min(d, childPd), timeidx.R(i-1))
			if err != nil {
				return encode.BE(0), err
			}
			return enc.Ite(lVar, atE, atIm1), nil
		}

		bodyAt := func(eDepth int) (encode.BE, error) {
			carry, err := carryAt(eDepth)
			if err != nil {
				return encode.BE(0), err
			}
			if !childAtSameTime {
				return carry, nil
			}
			child, err := readChildAt(min(d, childPd), timeidx.R(i))
			if err != nil {
				return encode.BE(0), err
			}
			return combine(child, carry), nil
		}

		body, err := bodyAt(d - 1)
		if err != nil {
			return encode.BE(0), err
		}

		if d == fi.PastDepth {
			stabilized, err := bodyAt(d)
			if err != nil {
				return encode.BE(0), err
			}
			if err := pusher.ForceTrue(enc.Iff(v, stabilized)); err != nil {
				return encode.BE(0), err
			}
		}
		return body, nil

	default:
		return encode.BE(0), fmt.Errorf("tableau: unreachable time index for past-unary operator")
	}
}

// pastBinary handles S (since) and T (triggered), whose past depth is
// max(pd(l),pd(r))+1. Like O/H, both transport their OWN recursive
// value through the loop head; the same d==0 / 0<d<pd / d==pd split
// documented on pastUnary applies here (spec §4.3 step 7).
func (b *Builder) pastBinary(f *pltl.Formula, fi *FormulaInfo, d int, t timeidx.TimeIdx, pusher Pusher) (encode.BE, error) {
	enc := b.enc
	dl := min(d, b.pd(f.L))
	dr := min(d, b.pd(f.R))
	i, isReal := t.TimeOf()

	readL := func(depth int, at timeidx.TimeIdx) (encode.BE, error) { return b.Ensure(f.L, depth, at, pusher) }
	readR := func(depth int, at timeidx.TimeIdx) (encode.BE, error) { return b.Ensure(f.R, depth, at, pusher) }

	// l S r <=> r | (l & carry); l T r <=> r & (l | carry)
	combine := func(l, r, carry encode.BE) encode.BE {
		if f.Op == pltl.OpSince {
			return enc.Or(r, enc.And(l, carry))
		}
		return enc.And(r, enc.Or(l, carry))
	}

	switch {
	case t == timeidx.L():
		return readR(dr, timeidx.L())

	case t == timeidx.E():
		return readR(dr, timeidx.E())

	case isReal && i == 0:
		// [[f S g]]_0^d, [[f T g]]_0^d <=> [[g]]_0^0: no past before
		// time 0, so the fixpoint collapses to the right operand now,
		// always read at depth 0 regardless of d.
		return readR(0, timeidx.R(0))

	case isReal && d == 0:
		l, err := readL(0, timeidx.R(i))
		if err != nil {
			return encode.BE(0), err
		}
		r, err := readR(0, timeidx.R(i))
		if err != nil {
			return encode.BE(0), err
		}
		prevSelf, err := b.Ensure(f, 0, timeidx.R(i-1), pusher)
		if err != nil {
			return encode.BE(0), err
		}
		return combine(l, r, prevSelf), nil

	case isReal:
		v := enc.VarAt(fi.TransVars[d], encode.Timed(t))
		l, err := readL(dl, timeidx.R(i))
		if err != nil {
			return encode.BE(0), err
		}
		r, err := readR(dr, timeidx.R(i))
		if err != nil {
			return encode.BE(0), err
		}
		lVar := enc.VarAt(b.reg.LVar, encode.Timed(timeidx.R(i)))
		prevAtIm1, err := b.Ensure(f, d, timeidx.R(i-1), pusher)
		if err != nil {
			return encode.BE(0), err
		}
		prevAtEdM1, err := b.Ensure(f, d-1, timeidx.E(), pusher)
		if err != nil {
			return encode.BE(0), err
		}
		carry := enc.Ite(lVar, prevAtEdM1, prevAtIm1)
		body := combine(l, r, carry)

		if d == fi.PastDepth {
			prevAtEd, err := b.Ensure(f, d, timeidx.E(), pusher)
			if err != nil {
				return encode.BE(0), err
			}
			stabCarry := enc.Ite(lVar, prevAtEd, prevAtIm1)
			if err := pusher.ForceTrue(enc.Iff(v, combine(l, r, stabCarry))); err != nil {
				return encode.BE(0), err
			}
		}
		return body, nil

	default:
		return encode.BE(0), fmt.Errorf("tableau: unreachable time index for past-binary operator")
	}
}
