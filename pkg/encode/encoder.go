// Package encode specifies the BE (boolean-expression) encoder
// consumed by the core (spec §6.1): the externally-owned DAG manager
// with structural sharing, CNF conversion, and the mapping from named
// variables at a given time index to BE variables. The core never
// reaches into the DAG directly; every access goes through this
// interface.
package encode

import (
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// BE is an opaque handle into the shared BE DAG. In this
// implementation it is gini's AIG literal type: gini's design already
// unifies the BE-DAG node and the eventual CNF literal (logic.C.ToCnf
// walks the AIG and teaches its clauses to a solver using the same
// literal space), so no separate be<->cnf_literal conversion step is
// needed beyond calling Circuit().ToCnf.
type BE = z.Lit

// At names a point at which a variable is observed: either a TimeIdx
// (L, E or a real step) or the distinguished untimed marker used for
// frozen variables, which must compare unequal to every TimeIdx.
type At struct {
	T       timeidx.TimeIdx
	untimed bool
}

// Timed wraps a TimeIdx as an At.
func Timed(t timeidx.TimeIdx) At { return At{T: t} }

// Untimed is the distinguished marker for frozen variables.
func Untimed() At { return At{untimed: true} }

// IsUntimed reports whether a is the untimed marker.
func (a At) IsUntimed() bool { return a.untimed }

// Layer is a handle returned by FreshLayer, used to scope a batch of
// new boolean state variables so they can be committed or released
// together (spec §5, "scoped resources").
type Layer struct {
	id       string
	Name     string
	Position int
}

// Encoder is the externally-owned BE DAG manager and variable/time
// table (spec §6.1). Implementations must treat BE handles as shared,
// immutable references: never deep-copy, never mutate through one.
type Encoder interface {
	VarAt(name string, at At) BE

	VarToIndex(be BE) int
	IndexToName(idx int) (string, bool)
	// IndexToTime returns the TimeIdx and true, or the zero TimeIdx and
	// false when idx names an untimed (frozen) variable.
	IndexToTime(idx int) (timeidx.TimeIdx, bool)

	IsInputVar(name string) bool
	IsStateVar(name string) bool
	IsFrozenVar(name string) bool

	Not(a BE) BE
	And(a, b BE) BE
	Or(a, b BE) BE
	Iff(a, b BE) BE
	Implies(a, b BE) BE
	Ite(cond, then, els BE) BE
	Truth() BE
	Falsity() BE

	// Circuit exposes the underlying AIG manager so the solver façade
	// (C8) can convert accumulated BE structure to CNF and teach it to
	// the active clause group; this is the "shared... between C4, C5,
	// C6, C7 and C8" resource named in spec §5.
	Circuit() *logic.C

	// Dump renders be for verbose diagnostics; never used for control
	// flow.
	Dump(be BE) string

	FreshLayer(name string, position int) Layer
	AddBooleanStateVar(layer Layer, name string)
	Commit(layer Layer) error
	Remove(layer Layer) error
}
