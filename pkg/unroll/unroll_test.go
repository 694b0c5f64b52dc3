package unroll

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
)

type harness struct {
	enc     encode.Encoder
	facade  *satsolver.Facade
	reg     *statevars.Registry
	tb      *tableau.Builder
	machine fsm.FSM
	ur      *Unroller
}

// newHarness wires one shared encoder/facade/registry: mkFSM must build
// its FSM against the supplied encoder, since BE handles from two
// different encoder instances are not interchangeable.
func newHarness(t *testing.T, mkFSM func(encode.Encoder) fsm.FSM, phi *pltl.Formula) *harness {
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
	return &harness{enc: enc, facade: facade, reg: reg, tb: tb, machine: machine, ur: New(enc, reg, tb, machine)}
}

func (h *harness) extend(t *testing.T, cursor Cursor, k int) Cursor {
	t.Helper()
	next, err := h.ur.Extend(cursor, k, h.facade)
	if err != nil {
		t.Fatalf("Extend(%d): %v", k, err)
	}
	return next
}

func TestExtendIsMonotoneAcrossBounds(t *testing.T) {
	fb := pltl.NewBuilder()
	s := fb.Atom("s", false)
	phi := fb.Globally(s)
	h := newHarness(t, fsm.NewTwoStateCounter, phi)

	cursor := NewCursor()
	cursor = h.extend(t, cursor, 0)
	if cursor.PrevK != 0 {
		t.Fatalf("cursor.PrevK = %d, want 0", cursor.PrevK)
	}
	cursor = h.extend(t, cursor, 1)
	if cursor.PrevK != 1 {
		t.Fatalf("cursor.PrevK = %d, want 1", cursor.PrevK)
	}
	cursor = h.extend(t, cursor, 3)
	if cursor.PrevK != 3 {
		t.Fatalf("cursor.PrevK = %d, want 3", cursor.PrevK)
	}
}

func TestFormulaRootIsForcedExactlyOnce(t *testing.T) {
	fb := pltl.NewBuilder()
	s := fb.Atom("s", false)
	phi := fb.Globally(s)
	h := newHarness(t, fsm.NewTwoStateCounter, phi)

	cursor := NewCursor()
	cursor = h.extend(t, cursor, 0)
	if !h.ur.rootForced {
		t.Fatalf("rootForced should be true after the first Extend")
	}
	_ = h.extend(t, cursor, 2)
	if !h.ur.rootForced {
		t.Fatalf("rootForced should remain true")
	}
}

func TestLoopSelectorZeroForcedFalse(t *testing.T) {
	fb := pltl.NewBuilder()
	s := fb.Atom("s", false)
	phi := fb.Globally(s)
	h := newHarness(t, fsm.NewTwoStateCounter, phi)

	cursor := NewCursor()
	_ = h.extend(t, cursor, 0)

	if err := h.facade.ForceTrue(h.ur.lVar(0)); err != nil {
		t.Fatalf("ForceTrue(l_0): %v", err)
	}
	verdict, err := h.facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.UNSAT {
		t.Fatalf("verdict = %v, want UNSAT (l_0 must be forced false)", verdict)
	}
}

func TestInLoopZeroEqualsLZero(t *testing.T) {
	fb := pltl.NewBuilder()
	s := fb.Atom("s", false)
	phi := fb.Globally(s)
	h := newHarness(t, fsm.NewTwoStateCounter, phi)

	cursor := NewCursor()
	_ = h.extend(t, cursor, 0)

	// l_0 is forced false, so InLoop_0 must also be false.
	if err := h.facade.ForceTrue(h.ur.inLoopVar(0)); err != nil {
		t.Fatalf("ForceTrue(InLoop_0): %v", err)
	}
	verdict, err := h.facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.UNSAT {
		t.Fatalf("verdict = %v, want UNSAT (InLoop_0 must follow l_0)", verdict)
	}
}

func TestLoopSelectorImpliesStateEquality(t *testing.T) {
	fb := pltl.NewBuilder()
	s := fb.Atom("s", false)
	phi := fb.Globally(s)
	h := newHarness(t, fsm.NewTwoStateCounter, phi)

	cursor := NewCursor()
	cursor = h.extend(t, cursor, 0)
	_ = h.extend(t, cursor, 1)

	// l_1 true must force s_0 = s_E; asserting l_1 and s_0 != s_E is
	// UNSAT.
	sAt0 := h.enc.VarAt("s", encode.Timed(timeidx.R(0)))
	sAtE := h.enc.VarAt("s", encode.Timed(timeidx.E()))
	if err := h.facade.ForceTrue(h.ur.lVar(1)); err != nil {
		t.Fatalf("ForceTrue(l_1): %v", err)
	}
	if err := h.facade.ForceTrue(h.enc.Not(h.enc.Iff(sAt0, sAtE))); err != nil {
		t.Fatalf("ForceTrue(s_0 != s_E): %v", err)
	}
	verdict, err := h.facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.UNSAT {
		t.Fatalf("verdict = %v, want UNSAT (l_1 must force s_0 = s_E)", verdict)
	}
}

func TestAntiReflexivityForbidsTwoLoopHeads(t *testing.T) {
	fb := pltl.NewBuilder()
	s := fb.Atom("s", false)
	phi := fb.Globally(s)
	h := newHarness(t, fsm.NewTwoStateCounter, phi)

	cursor := NewCursor()
	cursor = h.extend(t, cursor, 0)
	_ = h.extend(t, cursor, 2)

	if err := h.facade.ForceTrue(h.ur.lVar(1)); err != nil {
		t.Fatalf("ForceTrue(l_1): %v", err)
	}
	if err := h.facade.ForceTrue(h.ur.lVar(2)); err != nil {
		t.Fatalf("ForceTrue(l_2): %v", err)
	}
	verdict, err := h.facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.UNSAT {
		t.Fatalf("verdict = %v, want UNSAT (at most one loop head)", verdict)
	}
}

func TestEventualityWitnessBaseCaseIsFalse(t *testing.T) {
	fb := pltl.NewBuilder()
	s := fb.Atom("s", false)
	phi := fb.Future(s)
	h := newHarness(t, fsm.NewTwoStateCounter, phi)

	cursor := NewCursor()
	_ = h.extend(t, cursor, 0)

	sInfo := h.tb.Info().MustGet(s)
	auxAt0, ok := sInfo.AuxFAt(timeidx.R(0))
	if !ok {
		t.Fatalf("expected <<Fs>>_0 to be materialised")
	}
	if err := h.facade.ForceTrue(auxAt0); err != nil {
		t.Fatalf("ForceTrue(<<Fs>>_0): %v", err)
	}
	verdict, err := h.facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.UNSAT {
		t.Fatalf("verdict = %v, want UNSAT (<<Fs>>_0 must be false)", verdict)
	}
}
