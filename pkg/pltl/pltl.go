// Package pltl defines the propositional PLTL formula representation
// consumed by the tableau builder: a structurally-shared DAG of
// subformulas in Negation Normal Form, built through a Builder that
// interns nodes by structural hash so identical subformulas share one
// *Formula and therefore one FormulaInfo entry (see pkg/tableau).
package pltl

import "fmt"

// Op enumerates the PLTL connectives and temporal operators. Past
// operators are O (once), H (historically), Y (prev), Z
// (not-prev-not), S (since), T (triggered); future operators are X
// (next), F (eventually), G (globally), U (until), R (release).
type Op int

const (
	OpAtom Op = iota
	OpTrue
	OpFalse
	OpNot
	OpAnd
	OpOr
	OpNext
	OpFuture
	OpGlobally
	OpUntil
	OpRelease
	OpPrev
	OpNotPrevNot
	OpOnce
	OpHistorically
	OpSince
	OpTriggered
)

func (o Op) String() string {
	switch o {
	case OpAtom:
		return "atom"
	case OpTrue:
		return "true"
	case OpFalse:
		return "false"
	case OpNot:
		return "not"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNext:
		return "X"
	case OpFuture:
		return "F"
	case OpGlobally:
		return "G"
	case OpUntil:
		return "U"
	case OpRelease:
		return "R"
	case OpPrev:
		return "Y"
	case OpNotPrevNot:
		return "Z"
	case OpOnce:
		return "O"
	case OpHistorically:
		return "H"
	case OpSince:
		return "S"
	case OpTriggered:
		return "T"
	default:
		return "?"
	}
}

// IsPast reports whether op is one of the six past-time operators.
func (o Op) IsPast() bool {
	switch o {
	case OpPrev, OpNotPrevNot, OpOnce, OpHistorically, OpSince, OpTriggered:
		return true
	default:
		return false
	}
}

// IsBinary reports whether op takes two children.
func (o Op) IsBinary() bool {
	switch o {
	case OpAnd, OpOr, OpUntil, OpRelease, OpSince, OpTriggered:
		return true
	default:
		return false
	}
}

// Formula is one node of the shared subformula DAG. Two Formula
// values built from equal structure by the same Builder are the same
// *Formula pointer, so FormulaInfo tables keyed by *Formula behave as
// if keyed by structural hash.
type Formula struct {
	ID      int
	Op      Op
	Atom    string
	IsInput bool
	L, R    *Formula
}

func (f *Formula) String() string {
	switch f.Op {
	case OpAtom:
		return f.Atom
	case OpTrue:
		return "TRUE"
	case OpFalse:
		return "FALSE"
	case OpNot:
		return fmt.Sprintf("!%s", f.L)
	default:
		if f.Op.IsBinary() {
			return fmt.Sprintf("(%s %s %s)", f.L, f.Op, f.R)
		}
		return fmt.Sprintf("%s(%s)", f.Op, f.L)
	}
}

func key(op Op, atom string, l, r *Formula) string {
	lid, rid := -1, -1
	if l != nil {
		lid = l.ID
	}
	if r != nil {
		rid = r.ID
	}
	return fmt.Sprintf("%d|%s|%d|%d", op, atom, lid, rid)
}

// Builder interns Formula nodes by structural key, giving the DAG its
// sharing property.
type Builder struct {
	table  map[string]*Formula
	nextID int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{table: make(map[string]*Formula)}
}

func (b *Builder) intern(op Op, atom string, isInput bool, l, r *Formula) *Formula {
	k := key(op, atom, l, r)
	if f, ok := b.table[k]; ok {
		return f
	}
	f := &Formula{ID: b.nextID, Op: op, Atom: atom, IsInput: isInput, L: l, R: r}
	b.nextID++
	b.table[k] = f
	return f
}

func (b *Builder) Atom(name string, isInput bool) *Formula {
	return b.intern(OpAtom, name, isInput, nil, nil)
}
func (b *Builder) True() *Formula  { return b.intern(OpTrue, "", false, nil, nil) }
func (b *Builder) False() *Formula { return b.intern(OpFalse, "", false, nil, nil) }
func (b *Builder) Not(f *Formula) *Formula {
	return b.intern(OpNot, "", false, f, nil)
}
func (b *Builder) And(l, r *Formula) *Formula { return b.intern(OpAnd, "", false, l, r) }
func (b *Builder) Or(l, r *Formula) *Formula  { return b.intern(OpOr, "", false, l, r) }
func (b *Builder) Next(f *Formula) *Formula   { return b.intern(OpNext, "", false, f, nil) }
func (b *Builder) Future(f *Formula) *Formula { return b.intern(OpFuture, "", false, f, nil) }
func (b *Builder) Globally(f *Formula) *Formula {
	return b.intern(OpGlobally, "", false, f, nil)
}
func (b *Builder) Until(l, r *Formula) *Formula   { return b.intern(OpUntil, "", false, l, r) }
func (b *Builder) Release(l, r *Formula) *Formula { return b.intern(OpRelease, "", false, l, r) }
func (b *Builder) Prev(f *Formula) *Formula       { return b.intern(OpPrev, "", false, f, nil) }
func (b *Builder) NotPrevNot(f *Formula) *Formula {
	return b.intern(OpNotPrevNot, "", false, f, nil)
}
func (b *Builder) Once(f *Formula) *Formula { return b.intern(OpOnce, "", false, f, nil) }
func (b *Builder) Historically(f *Formula) *Formula {
	return b.intern(OpHistorically, "", false, f, nil)
}
func (b *Builder) Since(l, r *Formula) *Formula { return b.intern(OpSince, "", false, l, r) }
func (b *Builder) Triggered(l, r *Formula) *Formula {
	return b.intern(OpTriggered, "", false, l, r)
}

// ConjoinFairness builds phi ∧ ⋀_i G F fair_i, the pre-processing step
// spec.md §6.2 leaves implicit in "fairness_list() (conjoined as
// ∧_i G F p_i during pre-processing)" (recovered explicitly from
// NuSMV's sbmcBmcInc.c, see SPEC_FULL.md §3.3). Returns phi unchanged
// when fairness is empty.
func (b *Builder) ConjoinFairness(phi *Formula, fairness []*Formula) *Formula {
	out := phi
	for _, p := range fairness {
		gf := b.Globally(b.Future(p))
		out = b.And(out, gf)
	}
	return out
}

// Walk visits every distinct subformula of root exactly once, children
// before parents (bottom-up), using an explicit worklist so the
// traversal never recurses on deep formulas (spec §4.2.1).
func Walk(root *Formula, visit func(*Formula)) {
	visited := make(map[*Formula]bool)
	var order []*Formula

	// Post-order iterative traversal via an explicit stack with a
	// "children pushed" marker.
	type frame struct {
		f        *Formula
		expanded bool
	}
	stack := []frame{{f: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if visited[top.f] {
			stack = stack[:len(stack)-1]
			continue
		}
		if top.expanded {
			visited[top.f] = true
			order = append(order, top.f)
			stack = stack[:len(stack)-1]
			continue
		}
		top.expanded = true
		if top.f.R != nil && !visited[top.f.R] {
			stack = append(stack, frame{f: top.f.R})
		}
		if top.f.L != nil && !visited[top.f.L] {
			stack = append(stack, frame{f: top.f.L})
		}
	}
	for _, f := range order {
		visit(f)
	}
}
