package encode

import (
	"fmt"

	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/rfielding/zigzagbmc/internal/idgen"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

type varKey struct {
	name    string
	untimed bool
	flat    int
}

type varInfo struct {
	name string
	at   At
}

// GiniEncoder is the reference Encoder implementation, backing the BE
// DAG with gini's logic.C AIG manager. It is what pkg/zigzag and
// pkg/satsolver use by default, and what cmd/zigzagbmc wires up.
type GiniEncoder struct {
	c *logic.C

	vars    map[varKey]BE
	byVar   map[int]varInfo
	layers  map[string]*layerState
	inputs  map[string]bool
	states  map[string]bool
	frozen  map[string]bool
	truth   BE
	falsity BE
}

type layerState struct {
	names     []string
	committed bool
}

// NewGiniEncoder returns an Encoder with capacity cap fresh variables
// pre-reserved in the underlying circuit.
func NewGiniEncoder(cap int) *GiniEncoder {
	c := logic.NewCCap(cap)
	e := &GiniEncoder{
		c:      c,
		vars:   make(map[varKey]BE),
		byVar:  make(map[int]varInfo),
		layers: make(map[string]*layerState),
		inputs: make(map[string]bool),
		states: make(map[string]bool),
		frozen: make(map[string]bool),
	}
	// Truth is not a builtin constant in gini's AIG; a ∨ ¬a collapses
	// to the constant via the circuit's own structural rules for any
	// fresh a, and gets asserted true by the solver façade as the very
	// first permanent clause (see satsolver.NewFacade).
	a := c.Lit()
	e.truth = c.Or(a, a.Not())
	e.falsity = e.truth.Not()
	return e
}

func flatten(at At) (int, bool) {
	if at.untimed {
		return 0, true
	}
	return at.T.Index(), false
}

func (e *GiniEncoder) VarAt(name string, at At) BE {
	flat, untimed := flatten(at)
	k := varKey{name: name, untimed: untimed, flat: flat}
	if be, ok := e.vars[k]; ok {
		return be
	}
	be := e.c.Lit()
	e.vars[k] = be
	e.byVar[int(be.Var())] = varInfo{name: name, at: at}
	return be
}

func (e *GiniEncoder) VarToIndex(be BE) int { return int(be.Var()) }

func (e *GiniEncoder) IndexToName(idx int) (string, bool) {
	info, ok := e.byVar[idx]
	if !ok {
		return "", false
	}
	return info.name, true
}

func (e *GiniEncoder) IndexToTime(idx int) (timeidx.TimeIdx, bool) {
	info, ok := e.byVar[idx]
	if !ok || info.at.untimed {
		return timeidx.TimeIdx{}, false
	}
	return info.at.T, true
}

func (e *GiniEncoder) IsInputVar(name string) bool  { return e.inputs[name] }
func (e *GiniEncoder) IsStateVar(name string) bool  { return e.states[name] }
func (e *GiniEncoder) IsFrozenVar(name string) bool { return e.frozen[name] }

// MarkInputVar, MarkStateVar and MarkFrozenVar classify a variable
// name. The classification itself is an external-front-end concern
// per spec §1 (NNF/fairness pre-processing); GiniEncoder exposes them
// so tests and cmd/zigzagbmc can stand in for that front end.
func (e *GiniEncoder) MarkInputVar(name string)  { e.inputs[name] = true }
func (e *GiniEncoder) MarkStateVar(name string)  { e.states[name] = true }
func (e *GiniEncoder) MarkFrozenVar(name string) { e.frozen[name] = true }

func (e *GiniEncoder) Not(a BE) BE        { return a.Not() }
func (e *GiniEncoder) And(a, b BE) BE     { return e.c.And(a, b) }
func (e *GiniEncoder) Or(a, b BE) BE      { return e.c.Or(a, b) }
func (e *GiniEncoder) Iff(a, b BE) BE     { return e.c.Or(e.c.And(a, b), e.c.And(a.Not(), b.Not())) }
func (e *GiniEncoder) Implies(a, b BE) BE { return e.c.Or(a.Not(), b) }
func (e *GiniEncoder) Ite(cond, then, els BE) BE {
	return e.c.Or(e.c.And(cond, then), e.c.And(cond.Not(), els))
}
func (e *GiniEncoder) Truth() BE   { return e.truth }
func (e *GiniEncoder) Falsity() BE { return e.falsity }

func (e *GiniEncoder) Circuit() *logic.C { return e.c }

func (e *GiniEncoder) Dump(be BE) string {
	if info, ok := e.byVar[int(be.Var())]; ok {
		sign := ""
		if !be.IsPos() {
			sign = "!"
		}
		if info.at.untimed {
			return fmt.Sprintf("%s%s@untimed", sign, info.name)
		}
		return fmt.Sprintf("%s%s@%s", sign, info.name, info.at.T)
	}
	return fmt.Sprintf("be#%d", int(be))
}

func (e *GiniEncoder) FreshLayer(name string, position int) Layer {
	id := idgen.NewHandle().String()
	e.layers[id] = &layerState{}
	return Layer{id: id, Name: name, Position: position}
}

func (e *GiniEncoder) AddBooleanStateVar(layer Layer, name string) {
	ls, ok := e.layers[layer.id]
	if !ok {
		return
	}
	ls.names = append(ls.names, name)
}

func (e *GiniEncoder) Commit(layer Layer) error {
	ls, ok := e.layers[layer.id]
	if !ok {
		return fmt.Errorf("encode: commit of unknown layer %q", layer.Name)
	}
	if ls.committed {
		return nil
	}
	for _, n := range ls.names {
		e.states[n] = true
	}
	ls.committed = true
	return nil
}

// Remove releases layer. It is idempotent: calling it twice (e.g. once
// from a deferred scope guard and once from an interrupted earlier
// attempt) is a safe no-op the second time, replacing the source's
// "layer_currently_added" recovery boolean.
func (e *GiniEncoder) Remove(layer Layer) error {
	ls, ok := e.layers[layer.id]
	if !ok {
		return nil
	}
	if ls.committed {
		for _, n := range ls.names {
			delete(e.states, n)
		}
	}
	delete(e.layers, layer.id)
	return nil
}

var _ Encoder = (*GiniEncoder)(nil)
