// Package zigzag implements the Zigzag Driver named C9: the
// bound-by-bound counter-example search loop (spec §4.7) wiring the
// tableau builder, incremental unroller, simple-path engine and
// k-dependent closer against the solver façade.
package zigzag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rfielding/zigzagbmc/internal/idgen"
	"github.com/rfielding/zigzagbmc/pkg/closer"
	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/fsm"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/satsolver"
	"github.com/rfielding/zigzagbmc/pkg/simplepath"
	"github.com/rfielding/zigzagbmc/pkg/statevars"
	"github.com/rfielding/zigzagbmc/pkg/tableau"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
	"github.com/rfielding/zigzagbmc/pkg/unroll"
)

// Verdict is the three-valued answer spec §6.4's check_ltl returns.
type Verdict int

const (
	PropertyUnknown Verdict = iota
	PropertyTrue
	PropertyFalse
)

func (v Verdict) String() string {
	switch v {
	case PropertyTrue:
		return "TRUE"
	case PropertyFalse:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}

// AssumptionAtom is one entry of the assumption-variant's caller-
// supplied list (spec §4.7.2): a named atom, optionally negated.
type AssumptionAtom struct {
	Name    string
	Negated bool
}

func (a AssumptionAtom) be(enc encode.Encoder) encode.BE {
	lit := enc.VarAt(a.Name, encode.Timed(timeidx.R(0)))
	if a.Negated {
		return enc.Not(lit)
	}
	return lit
}

// Engine is the Zigzag Driver named C9. One Engine checks exactly one
// property: a second CheckLTL/CheckLTLAssume call on an already-
// checked Engine is the "property already checked" precondition
// violation spec §7.1 names.
type Engine struct {
	enc     encode.Encoder
	facade  *satsolver.Facade
	machine fsm.FSM
	reg     *statevars.Registry
	names   *idgen.Counter

	logger       *zap.SugaredLogger
	stats        *Stats
	traceBuilder TraceBuilder

	checked bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger overrides the default no-op *zap.SugaredLogger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStats overrides the default fresh Stats tracker.
func WithStats(stats *Stats) Option {
	return func(e *Engine) { e.stats = stats }
}

// WithTraceBuilder overrides the default trace reconstruction
// function.
func WithTraceBuilder(tb TraceBuilder) Option {
	return func(e *Engine) { e.traceBuilder = tb }
}

// NewEngine returns an Engine bound to one FSM over one façade. It
// registers the FSM's state variables (not its input variables) into
// reg immediately,
// since the registry must see every transition-relation variable
// before the first Prepare call scans the formula (spec §4.2.1).
func NewEngine(enc encode.Encoder, facade *satsolver.Facade, machine fsm.FSM, opts ...Option) *Engine {
	reg := statevars.New()
	reg.SetPseudoVars("l", "LoopExists", "LastState")
	for _, name := range machine.StateVarNames() {
		reg.AddTransitionStateVar(name)
	}
	e := &Engine{
		enc:          enc,
		facade:       facade,
		machine:      machine,
		reg:          reg,
		names:        idgen.NewCounter(),
		logger:       zap.NewNop().Sugar(),
		stats:        NewStats(),
		traceBuilder: DefaultTraceBuilder(enc, machine),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns the run's progress counters.
func (e *Engine) Stats() *Stats { return e.stats }

type checkState struct {
	tb *tableau.Builder
	ur *unroll.Unroller
	sp *simplepath.Engine
	cl *closer.Closer
}

func (e *Engine) prepare(fb *pltl.Builder, phi *pltl.Formula, fairness []*pltl.Formula, virtualUnrolling bool) (*checkState, error) {
	if e.checked {
		return nil, newExecutionError(PreconditionViolated, "property already checked on this engine")
	}
	e.checked = true

	full := fb.ConjoinFairness(phi, fairness)

	tb := tableau.NewBuilder(e.enc, e.reg, e.names, false, virtualUnrolling)
	tb.Prepare(full)
	if err := tb.BaseConstraints(e.facade); err != nil {
		return nil, fmt.Errorf("zigzag: base constraints: %w", err)
	}

	ur := unroll.New(e.enc, e.reg, tb, e.machine)
	sp := simplepath.New(e.enc, e.reg, tb, ur.InLoopVar)
	cl := closer.New(e.enc, e.reg, tb, ur.InLoopVar, ur.LVarAt, ur.LastStateVarAt, ur.LoopExistsVar)
	return &checkState{tb: tb, ur: ur, sp: sp, cl: cl}, nil
}

func (e *Engine) verdictFromFatal(v satsolver.Verdict) error {
	switch v {
	case satsolver.Timeout:
		return newExecutionError(SolverTimeout, "")
	case satsolver.Memout:
		return newExecutionError(SolverMemOut, "")
	case satsolver.InternalError:
		return newExecutionError(SolverInternal, "")
	default:
		return nil
	}
}

// CheckLTL implements spec §6.4's check_ltl / §4.7.1's main loop.
func (e *Engine) CheckLTL(fb *pltl.Builder, phi *pltl.Formula, fairness []*pltl.Formula, kMax int, virtualUnrolling, completeness bool) (Verdict, Trace, error) {
	cs, err := e.prepare(fb, phi, fairness, virtualUnrolling)
	if err != nil {
		return PropertyUnknown, Trace{}, err
	}
	ctx := context.Background()
	cursor := unroll.NewCursor()

	for k := 0; k <= kMax; k++ {
		cursor, err = cs.ur.Extend(cursor, k, e.facade)
		if err != nil {
			return PropertyUnknown, Trace{}, fmt.Errorf("zigzag: extend at k=%d: %w", k, err)
		}
		e.stats.inc("bounds_extended")

		if completeness {
			if err := cs.sp.ExtendPermanent(k, e.facade); err != nil {
				return PropertyUnknown, Trace{}, fmt.Errorf("zigzag: simple-path at k=%d: %w", k, err)
			}
			verdict, err := e.facade.Solve(ctx)
			if err != nil {
				return PropertyUnknown, Trace{}, fmt.Errorf("zigzag: completeness solve at k=%d: %w", k, err)
			}
			e.stats.inc("solves")
			if fatalErr := e.verdictFromFatal(verdict); fatalErr != nil {
				return PropertyUnknown, Trace{}, fatalErr
			}
			if verdict == satsolver.UNSAT {
				e.logger.Infow("completeness bound reached, property true", "k", k)
				return PropertyTrue, Trace{}, nil
			}
		}

		if err := e.facade.GotoVolatileGroup(); err != nil {
			return PropertyUnknown, Trace{}, fmt.Errorf("zigzag: enter volatile group at k=%d: %w", k, err)
		}
		if err := cs.cl.Close(k, e.facade); err != nil {
			return PropertyUnknown, Trace{}, fmt.Errorf("zigzag: closer at k=%d: %w", k, err)
		}
		verdict, err := e.facade.Solve(ctx)
		if err != nil {
			return PropertyUnknown, Trace{}, fmt.Errorf("zigzag: counter-example solve at k=%d: %w", k, err)
		}
		e.stats.inc("solves")
		if fatalErr := e.verdictFromFatal(verdict); fatalErr != nil {
			return PropertyUnknown, Trace{}, fatalErr
		}

		if verdict == satsolver.SAT {
			trace, err := e.reconstructTrace(cs, k)
			if err != nil {
				return PropertyUnknown, Trace{}, fmt.Errorf("zigzag: trace reconstruction at k=%d: %w", k, err)
			}
			e.logger.Infow("counter-example found", "k", k)
			return PropertyFalse, trace, nil
		}

		if err := e.facade.GotoPermanentGroup(); err != nil {
			return PropertyUnknown, Trace{}, fmt.Errorf("zigzag: leave volatile group at k=%d: %w", k, err)
		}
	}

	return PropertyUnknown, Trace{}, nil
}

// CheckLTLAssume implements spec §6.4's check_ltl_assume / §4.7.2's
// assumption variant. Only the completeness solve is assumption-gated
// by ass_SimplePath — the per-bound counter-example search carries the
// caller's assumptions but never ass_SimplePath, since simple-path
// constraints are a completeness-only mechanism (spec §4.4) with
// nothing to gate in the counter-example branch.
func (e *Engine) CheckLTLAssume(fb *pltl.Builder, phi *pltl.Formula, fairness []*pltl.Formula, kMax int, virtualUnrolling, completeness bool, assumptions []AssumptionAtom) (Verdict, Trace, []AssumptionAtom, error) {
	cs, err := e.prepare(fb, phi, fairness, virtualUnrolling)
	if err != nil {
		return PropertyUnknown, Trace{}, nil, err
	}
	ctx := context.Background()
	cursor := unroll.NewCursor()

	userAssume := make([]encode.BE, 0, len(assumptions))
	for _, a := range assumptions {
		userAssume = append(userAssume, a.be(e.enc))
	}

	for k := 0; k <= kMax; k++ {
		cursor, err = cs.ur.Extend(cursor, k, e.facade)
		if err != nil {
			return PropertyUnknown, Trace{}, nil, fmt.Errorf("zigzag: extend at k=%d: %w", k, err)
		}
		e.stats.inc("bounds_extended")

		if completeness {
			assLit, err := cs.sp.ExtendAssumable(k, e.facade)
			if err != nil {
				return PropertyUnknown, Trace{}, nil, fmt.Errorf("zigzag: simple-path at k=%d: %w", k, err)
			}
			assume := append(append([]encode.BE{}, userAssume...), assLit)
			verdict, err := e.facade.SolveAssume(ctx, assume)
			if err != nil {
				return PropertyUnknown, Trace{}, nil, fmt.Errorf("zigzag: completeness solve at k=%d: %w", k, err)
			}
			e.stats.inc("solves")
			if fatalErr := e.verdictFromFatal(verdict); fatalErr != nil {
				return PropertyUnknown, Trace{}, nil, fatalErr
			}
			if verdict == satsolver.UNSAT {
				conflict, err := e.extractConflict(assumptions, assLit)
				if err != nil {
					return PropertyUnknown, Trace{}, nil, err
				}
				e.logger.Infow("completeness bound reached, property true", "k", k)
				return PropertyTrue, Trace{}, conflict, nil
			}
		}

		if err := e.facade.GotoVolatileGroup(); err != nil {
			return PropertyUnknown, Trace{}, nil, fmt.Errorf("zigzag: enter volatile group at k=%d: %w", k, err)
		}
		if err := cs.cl.Close(k, e.facade); err != nil {
			return PropertyUnknown, Trace{}, nil, fmt.Errorf("zigzag: closer at k=%d: %w", k, err)
		}
		verdict, err := e.facade.SolveAssume(ctx, userAssume)
		if err != nil {
			return PropertyUnknown, Trace{}, nil, fmt.Errorf("zigzag: counter-example solve at k=%d: %w", k, err)
		}
		e.stats.inc("solves")
		if fatalErr := e.verdictFromFatal(verdict); fatalErr != nil {
			return PropertyUnknown, Trace{}, nil, fatalErr
		}

		if verdict == satsolver.SAT {
			trace, err := e.reconstructTrace(cs, k)
			if err != nil {
				return PropertyUnknown, Trace{}, nil, fmt.Errorf("zigzag: trace reconstruction at k=%d: %w", k, err)
			}
			e.logger.Infow("counter-example found", "k", k)
			return PropertyFalse, trace, nil, nil
		}

		if err := e.facade.GotoPermanentGroup(); err != nil {
			return PropertyUnknown, Trace{}, nil, fmt.Errorf("zigzag: leave volatile group at k=%d: %w", k, err)
		}
	}

	return PropertyUnknown, Trace{}, nil, nil
}

// reconstructTrace queries the model for every state/input variable
// at positions 0..=k plus the loop-selector/LoopExists bookkeeping,
// then hands it to the configured TraceBuilder.
func (e *Engine) reconstructTrace(cs *checkState, k int) (Trace, error) {
	names := append(append([]string{}, e.machine.StateVarNames()...), e.machine.InputVarNames()...)
	vars := make([]encode.BE, 0, len(names)*(k+1)+k+1)
	for i := 0; i <= k; i++ {
		for _, name := range names {
			vars = append(vars, e.enc.VarAt(name, encode.Timed(timeidx.R(i))))
		}
	}
	vars = append(vars, cs.ur.LoopExistsVar())
	for j := 1; j <= k; j++ {
		vars = append(vars, cs.ur.LVarAt(j))
	}

	values, err := e.facade.Model(vars)
	if err != nil {
		return Trace{}, err
	}

	loopExists := values[e.enc.VarToIndex(cs.ur.LoopExistsVar())]
	loopHead := -1
	if loopExists {
		for j := 1; j <= k; j++ {
			if values[e.enc.VarToIndex(cs.ur.LVarAt(j))] {
				loopHead = j
				break
			}
		}
	}

	model := Model{Values: values}
	info := LoopInfo{LoopExists: loopExists, LoopHead: loopHead, K: k}
	return e.traceBuilder(model, info), nil
}

// extractConflict walks the solver's unsat core, reporting whether
// ass_SimplePath was implicated and rebuilding the user-visible
// conflict list from whichever of the caller's own assumption atoms
// also appear in it (spec §4.7.2.2).
func (e *Engine) extractConflict(assumptions []AssumptionAtom, assLit encode.BE) ([]AssumptionAtom, error) {
	core, err := e.facade.Conflicts()
	if err != nil {
		return nil, fmt.Errorf("zigzag: reading conflicts: %w", err)
	}
	inCore := make(map[int]bool, len(core))
	for _, lit := range core {
		inCore[e.enc.VarToIndex(lit)] = true
	}
	simplePathImplicated := inCore[e.enc.VarToIndex(assLit)]
	if simplePathImplicated {
		e.logger.Infow("completeness depended on simple-path assumption")
	}
	out := make([]AssumptionAtom, 0, len(assumptions))
	for _, a := range assumptions {
		if inCore[e.enc.VarToIndex(a.be(e.enc))] {
			out = append(out, a)
		}
	}
	return out, nil
}
