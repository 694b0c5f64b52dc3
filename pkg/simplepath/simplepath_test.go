package simplepath

import (
	"context"
	"testing"

	"github.com/rfielding/zigzagbmc/internal/idgen"
	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/fsm"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/satsolver"
	"github.com/rfielding/zigzagbmc/pkg/statevars"
	"github.com/rfielding/zigzagbmc/pkg/tableau"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
	"github.com/rfielding/zigzagbmc/pkg/unroll"
)

func newHarnessWith(t *testing.T, mkFSM func(encode.Encoder) fsm.FSM, phi *pltl.Formula) (*Engine, *tableau.Builder, *unroll.Unroller, *satsolver.Facade, encode.Encoder) {
	t.Helper()
	enc := encode.NewGiniEncoder(512)
	eng := satsolver.NewGiniEngine()
	facade, err := satsolver.NewFacade(eng, enc)
	if err != nil {
		t.Fatalf("NewFacade: %v", err)
	}
	machine := mkFSM(enc)
	reg := statevars.New()
	reg.SetPseudoVars("l", "LoopExists", "LastState")
	for _, name := range machine.StateVarNames() {
		reg.AddTransitionStateVar(name)
	}
	tb := tableau.NewBuilder(enc, reg, idgen.NewCounter(), false, true)
	tb.Prepare(phi)
	if err := tb.BaseConstraints(facade); err != nil {
		t.Fatalf("BaseConstraints: %v", err)
	}
	ur := unroll.New(enc, reg, tb, machine)
	sp := New(enc, reg, tb, ur.InLoopVar)
	return sp, tb, ur, facade, enc
}

func newHarness(t *testing.T, phi *pltl.Formula) (*Engine, *tableau.Builder, *unroll.Unroller, *satsolver.Facade, encode.Encoder) {
	return newHarnessWith(t, fsm.NewTwoStateCounter, phi)
}

func TestDistinguishIsTrivialWhenStatesDiffer(t *testing.T) {
	fb := pltl.NewBuilder()
	s := fb.Atom("s", false)
	phi := fb.Globally(s)
	sp, _, ur, facade, _ := newHarness(t, phi)

	cursor := unroll.NewCursor()
	cursor, err := ur.Extend(cursor, 0, facade)
	if err != nil {
		t.Fatalf("Extend(0): %v", err)
	}
	if _, err := ur.Extend(cursor, 1, facade); err != nil {
		t.Fatalf("Extend(1): %v", err)
	}

	if err := sp.ExtendPermanent(1, facade); err != nil {
		t.Fatalf("ExtendPermanent: %v", err)
	}

	// The two-state counter flips every step, so s_0 != s_1 always: the
	// distinguishability disjunct is a tautology, and adding it must
	// still be consistent with everything else (no over-constraint),
	// i.e. Solve stays SAT.
	verdict, err := facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.SAT {
		t.Fatalf("verdict = %v, want SAT", verdict)
	}
}

func TestExtendAssumableGatesOnAssumptionLiteral(t *testing.T) {
	// The stuttering-bit FSM allows s_1 = s_0 (the "no flip" transition),
	// unlike the two-state counter, so forcing states equal is not
	// already globally unsatisfiable — only asserting ass_SimplePath
	// alongside it should be.
	fb := pltl.NewBuilder()
	s := fb.Atom("s", false)
	phi := s
	sp, _, ur, facade, enc := newHarnessWith(t, fsm.NewStutteringBit, phi)

	cursor := unroll.NewCursor()
	cursor, err := ur.Extend(cursor, 0, facade)
	if err != nil {
		t.Fatalf("Extend(0): %v", err)
	}
	if _, err := ur.Extend(cursor, 1, facade); err != nil {
		t.Fatalf("Extend(1): %v", err)
	}

	ass, err := sp.ExtendAssumable(1, facade)
	if err != nil {
		t.Fatalf("ExtendAssumable: %v", err)
	}

	// l_1 held false keeps InLoop_1 = false, so the only live disjunct
	// in SimplePath_{0,1} is the system-state inequality.
	if err := facade.ForceTrue(enc.Not(ur.LVarAt(1))); err != nil {
		t.Fatalf("ForceTrue(!l_1): %v", err)
	}

	flipAt0 := enc.VarAt("flip", encode.Timed(timeidx.R(0)))
	equalStates := []encode.BE{enc.Not(flipAt0)}

	verdict, err := facade.SolveAssume(context.Background(), equalStates)
	if err != nil {
		t.Fatalf("SolveAssume (ass withheld): %v", err)
	}
	if verdict != satsolver.SAT {
		t.Fatalf("verdict = %v, want SAT when ass_SimplePath is not assumed", verdict)
	}

	verdict, err = facade.SolveAssume(context.Background(), append(equalStates, ass))
	if err != nil {
		t.Fatalf("SolveAssume (ass asserted): %v", err)
	}
	if verdict != satsolver.UNSAT {
		t.Fatalf("verdict = %v, want UNSAT once ass_SimplePath is assumed alongside a stutter step", verdict)
	}
}
