package tableau

import (
	"fmt"

	"github.com/rfielding/zigzagbmc/internal/idgen"
	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/statevars"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// Pusher is the subset of the solver façade (C8) the tableau builder
// needs: somewhere to force a defining equation permanently true.
// satsolver.Facade satisfies this without either package importing
// the other.
type Pusher interface {
	ForceTrue(be encode.BE) error
}

// Builder is the Tableau Builder named C4.
type Builder struct {
	enc   encode.Encoder
	reg   *statevars.Registry
	names *idgen.Counter
	info  *InfoMap

	forceStateVars   bool
	virtualUnrolling bool

	root *pltl.Formula
}

// NewBuilder returns a Builder over an already-constructed encoder
// and registry. names is the run's monotone name counter (spec §5,
// §9 "global counters").
func NewBuilder(enc encode.Encoder, reg *statevars.Registry, names *idgen.Counter, forceStateVars, virtualUnrolling bool) *Builder {
	return &Builder{
		enc:              enc,
		reg:              reg,
		names:            names,
		info:             NewInfoMap(),
		forceStateVars:   forceStateVars,
		virtualUnrolling: virtualUnrolling,
	}
}

func (b *Builder) Info() *InfoMap { return b.info }
func (b *Builder) Root() *pltl.Formula {
	return b.root
}

// ResetAt drops every node's cached handle at t, forcing the next
// Ensure/EnsureAuxF/EnsureAuxG call at t to rebuild its defining
// equation. pkg/closer calls this for timeidx.E() at the start of
// every bound, since E's defining equations live in the volatile group
// and are discarded along with it between bounds.
func (b *Builder) ResetAt(t timeidx.TimeIdx) {
	pltl.Walk(b.root, func(f *pltl.Formula) {
		b.info.MustGet(f).clearAt(t)
	})
}

// needsTransVars reports whether op is one of the ten operators spec
// §4.2.1 says always allocate fresh names, or forceStateVars is set.
func (b *Builder) needsTransVars(op pltl.Op) bool {
	switch op {
	case pltl.OpFuture, pltl.OpGlobally, pltl.OpUntil, pltl.OpRelease,
		pltl.OpOnce, pltl.OpHistorically, pltl.OpPrev, pltl.OpNotPrevNot,
		pltl.OpSince, pltl.OpTriggered:
		return true
	default:
		return b.forceStateVars
	}
}

// Prepare traverses phi bottom-up (spec §4.2.1) computing past depths
// and allocating translation/auxiliary variable names, and scans
// every atom into the state-vars registry. It must run exactly once,
// before any call to Ensure or BaseConstraints.
func (b *Builder) Prepare(phi *pltl.Formula) {
	b.root = phi
	pltl.Walk(phi, func(f *pltl.Formula) {
		fi := b.info.Get(f)
		fi.PastDepth = b.pastDepth(f)

		switch f.Op {
		case pltl.OpAtom:
			if f.IsInput {
				b.reg.AddFormulaInputVar(f.Atom)
			} else {
				b.reg.AddFormulaStateVar(f.Atom)
			}
		}

		if b.needsTransVars(f.Op) {
			fi.TransVars = make([]string, fi.PastDepth+1)
			for d := range fi.TransVars {
				name := b.names.Fresh("tv")
				fi.TransVars[d] = name
				if d == 0 {
					b.reg.RecordTranslationVar(statevars.AllocPD0, name)
				} else {
					b.reg.RecordTranslationVar(statevars.AllocPDX, name)
				}
			}
		}

		// Eventuality witnesses: F/U allocate on the child that must
		// eventually hold; G/R allocate the symmetric G-witness.
		switch f.Op {
		case pltl.OpFuture:
			b.allocAuxF(b.info.Get(f.L))
		case pltl.OpUntil:
			b.allocAuxF(b.info.Get(f.R))
		case pltl.OpGlobally:
			b.allocAuxG(b.info.Get(f.L))
		case pltl.OpRelease:
			b.allocAuxG(b.info.Get(f.R))
		}
	})
	b.reg.RecomputeSimplePathVars()
}

func (b *Builder) allocAuxF(fi *FormulaInfo) {
	if fi.AuxFNode != "" {
		return
	}
	fi.AuxFNode = b.names.Fresh("auxF")
	b.reg.RecordTranslationVar(statevars.AllocAux, fi.AuxFNode)
}

func (b *Builder) allocAuxG(fi *FormulaInfo) {
	if fi.AuxGNode != "" {
		return
	}
	fi.AuxGNode = b.names.Fresh("auxG")
	b.reg.RecordTranslationVar(statevars.AllocAux, fi.AuxGNode)
}

func (b *Builder) pd(f *pltl.Formula) int { return b.info.Get(f).PastDepth }

func (b *Builder) pastDepth(f *pltl.Formula) int {
	switch f.Op {
	case pltl.OpAtom, pltl.OpTrue, pltl.OpFalse:
		return 0
	case pltl.OpNot:
		if b.virtualUnrolling {
			return b.pd(f.L)
		}
		return 0
	case pltl.OpAnd, pltl.OpOr:
		if b.virtualUnrolling {
			return max(b.pd(f.L), b.pd(f.R))
		}
		return 0
	case pltl.OpNext, pltl.OpFuture, pltl.OpGlobally:
		if b.virtualUnrolling {
			return b.pd(f.L)
		}
		return 0
	case pltl.OpUntil, pltl.OpRelease:
		if b.virtualUnrolling {
			return max(b.pd(f.L), b.pd(f.R))
		}
		return 0
	case pltl.OpPrev, pltl.OpNotPrevNot, pltl.OpOnce, pltl.OpHistorically:
		return b.pd(f.L) + 1
	case pltl.OpSince, pltl.OpTriggered:
		return max(b.pd(f.L), b.pd(f.R)) + 1
	default:
		panic(fmt.Sprintf("tableau: unreachable operator %s in pastDepth", f.Op))
	}
}
