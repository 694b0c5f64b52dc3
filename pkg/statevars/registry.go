// Package statevars implements the State-Vars Registry (C2): the
// per-run bookkeeping of which variables participate in
// equality-of-states constraints, and the names of the fresh
// translation/auxiliary variables the formula tableau allocates.
package statevars

// Registry is created empty at run start and never has a name removed
// from it; each of its sequence fields is deduplicated independently
// and preserves first-insertion order.
type Registry struct {
	TransitionStateVars []string
	FormulaStateVars    []string
	FormulaInputVars    []string

	// SimplePathSystemVars is the deduplicated union of the three
	// fields above, recomputed by RecomputeSimplePathVars once the
	// FSM and formula scans are both complete.
	SimplePathSystemVars []string

	TranslationVarsPD0 []string
	TranslationVarsPDX []string
	TranslationVarsAux []string

	LVar          string
	LoopExistsVar string
	LastStateVar  string

	seenTransition map[string]bool
	seenFormulaSV  map[string]bool
	seenFormulaIV  map[string]bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		seenTransition: make(map[string]bool),
		seenFormulaSV:  make(map[string]bool),
		seenFormulaIV:  make(map[string]bool),
	}
}

// AddTransitionStateVar records a system state variable observed in
// the transition relation.
func (r *Registry) AddTransitionStateVar(name string) {
	if r.seenTransition[name] {
		return
	}
	r.seenTransition[name] = true
	r.TransitionStateVars = append(r.TransitionStateVars, name)
}

// AddFormulaStateVar records a state variable observed while scanning
// the NNF formula.
func (r *Registry) AddFormulaStateVar(name string) {
	if r.seenFormulaSV[name] {
		return
	}
	r.seenFormulaSV[name] = true
	r.FormulaStateVars = append(r.FormulaStateVars, name)
}

// AddFormulaInputVar records an input variable observed while
// scanning the NNF formula.
func (r *Registry) AddFormulaInputVar(name string) {
	if r.seenFormulaIV[name] {
		return
	}
	r.seenFormulaIV[name] = true
	r.FormulaInputVars = append(r.FormulaInputVars, name)
}

// RecomputeSimplePathVars rebuilds SimplePathSystemVars as the
// deduplicated union of TransitionStateVars, FormulaStateVars and
// FormulaInputVars, in that order. Call once both the FSM and the
// formula have been fully scanned.
func (r *Registry) RecomputeSimplePathVars() {
	seen := make(map[string]bool, len(r.TransitionStateVars)+len(r.FormulaStateVars)+len(r.FormulaInputVars))
	r.SimplePathSystemVars = r.SimplePathSystemVars[:0]
	for _, group := range [][]string{r.TransitionStateVars, r.FormulaStateVars, r.FormulaInputVars} {
		for _, name := range group {
			if seen[name] {
				continue
			}
			seen[name] = true
			r.SimplePathSystemVars = append(r.SimplePathSystemVars, name)
		}
	}
}

// AllocKind selects which translation-variable list a freshly
// allocated name is appended to.
type AllocKind int

const (
	AllocPD0 AllocKind = iota
	AllocPDX
	AllocAux
)

// RecordTranslationVar appends a freshly allocated name (minted by the
// tableau builder's id generator) to the appropriate list. It never
// deduplicates: the tableau builder is the only caller and it never
// allocates the same name twice.
func (r *Registry) RecordTranslationVar(kind AllocKind, name string) {
	switch kind {
	case AllocPD0:
		r.TranslationVarsPD0 = append(r.TranslationVarsPD0, name)
	case AllocPDX:
		r.TranslationVarsPDX = append(r.TranslationVarsPDX, name)
	case AllocAux:
		r.TranslationVarsAux = append(r.TranslationVarsAux, name)
	}
}

// SetPseudoVars records the single-valued handles for l_i, LoopExists
// and LastState_i. Called once at run start.
func (r *Registry) SetPseudoVars(lVar, loopExistsVar, lastStateVar string) {
	r.LVar = lVar
	r.LoopExistsVar = loopExistsVar
	r.LastStateVar = lastStateVar
}
