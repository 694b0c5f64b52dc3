package tableau

import (
	"context"
	"testing"

	"github.com/rfielding/zigzagbmc/internal/idgen"
	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/satsolver"
	"github.com/rfielding/zigzagbmc/pkg/statevars"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

func newTestBuilder(t *testing.T, forceStateVars, virtualUnrolling bool) (*Builder, *satsolver.Facade, encode.Encoder) {
	t.Helper()
	enc := encode.NewGiniEncoder(256)
	eng := satsolver.NewGiniEngine()
	facade, err := satsolver.NewFacade(eng, enc)
	if err != nil {
		t.Fatalf("NewFacade: %v", err)
	}
	reg := statevars.New()
	reg.SetPseudoVars("l", "LoopExists", "LastState")
	b := NewBuilder(enc, reg, idgen.NewCounter(), forceStateVars, virtualUnrolling)
	return b, facade, enc
}

func TestPastDepthPrevChainsWithVirtualUnrollingOn(t *testing.T) {
	fb := pltl.NewBuilder()
	p := fb.Atom("p", false)
	yyp := fb.Prev(fb.Prev(p))
	b, _, _ := newTestBuilder(t, false, true)
	b.Prepare(yyp)
	if got := b.Info().MustGet(yyp).PastDepth; got != 2 {
		t.Fatalf("PastDepth(YYp) = %d, want 2", got)
	}
	if got := b.Info().MustGet(p).PastDepth; got != 0 {
		t.Fatalf("PastDepth(p) = %d, want 0", got)
	}
}

func TestPastDepthPropositionalNodeZeroWithVirtualUnrollingOff(t *testing.T) {
	fb := pltl.NewBuilder()
	p := fb.Atom("p", false)
	yp := fb.Prev(p)
	conj := fb.And(yp, p)
	b, _, _ := newTestBuilder(t, false, false)
	b.Prepare(conj)
	// VU off: non-past operators always report pd=0 regardless of
	// children, even though one child (Yp) itself has pd=1.
	if got := b.Info().MustGet(conj).PastDepth; got != 0 {
		t.Fatalf("PastDepth(Yp & p) = %d, want 0 with virtual unrolling off", got)
	}
	if got := b.Info().MustGet(yp).PastDepth; got != 1 {
		t.Fatalf("PastDepth(Yp) = %d, want 1", got)
	}
}

func TestPastDepthSinceIsMaxOfChildrenPlusOne(t *testing.T) {
	fb := pltl.NewBuilder()
	p := fb.Atom("p", false)
	q := fb.Atom("q", false)
	yq := fb.Prev(q)
	since := fb.Since(p, yq)
	b, _, _ := newTestBuilder(t, false, true)
	b.Prepare(since)
	if got := b.Info().MustGet(since).PastDepth; got != 2 {
		t.Fatalf("PastDepth(p S Yq) = %d, want 2", got)
	}
}

func TestPrepareAllocatesOneTransVarPerDepth(t *testing.T) {
	fb := pltl.NewBuilder()
	p := fb.Atom("p", false)
	yyp := fb.Prev(fb.Prev(p))
	b, _, _ := newTestBuilder(t, false, true)
	b.Prepare(yyp)
	fi := b.Info().MustGet(yyp)
	if !fi.HasTransVars() {
		t.Fatalf("Y(Y(p)) should have translation vars")
	}
	if len(fi.TransVars) != fi.PastDepth+1 {
		t.Fatalf("len(TransVars) = %d, want %d", len(fi.TransVars), fi.PastDepth+1)
	}
	// Atoms are purely definitional: Prepare never allocates for them
	// unless forceStateVars is set.
	if b.Info().MustGet(p).HasTransVars() {
		t.Fatalf("plain atom should not get translation vars")
	}
}

func TestPrepareForceStateVarsAllocatesForEveryNode(t *testing.T) {
	fb := pltl.NewBuilder()
	p := fb.Atom("p", false)
	q := fb.Atom("q", false)
	conj := fb.And(p, q)
	b, _, _ := newTestBuilder(t, true, true)
	b.Prepare(conj)
	for _, f := range []*pltl.Formula{p, q, conj} {
		if !b.Info().MustGet(f).HasTransVars() {
			t.Fatalf("%s should have translation vars under forceStateVars", f)
		}
	}
}

func TestEnsureCachesTheSameHandleAcrossCalls(t *testing.T) {
	fb := pltl.NewBuilder()
	p := fb.Atom("p", false)
	yp := fb.Prev(p)
	b, facade, _ := newTestBuilder(t, false, true)
	b.Prepare(yp)

	v1, err := b.Ensure(yp, 1, timeidx.R(3), facade)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	v2, err := b.Ensure(yp, 1, timeidx.R(3), facade)
	if err != nil {
		t.Fatalf("Ensure (second call): %v", err)
	}
	if v1 != v2 {
		t.Fatalf("Ensure is not idempotent: got %v then %v", v1, v2)
	}
}

func TestEnsureGloballyTerminatesViaStubThenFillCaching(t *testing.T) {
	// G(p) contains the self-referential loop-tail equation
	// [[Gp]]_t^d <=> p_t & [[Gp]]_L^{min(d+1,pd)}; without the
	// stub-then-fill cache this recurses forever because L's own body
	// calls Ensure(Gp, ..., L, ...) again.
	fb := pltl.NewBuilder()
	p := fb.Atom("p", false)
	g := fb.Globally(p)
	b, facade, _ := newTestBuilder(t, false, true)
	b.Prepare(g)

	if _, err := b.Ensure(g, 0, timeidx.R(0), facade); err != nil {
		t.Fatalf("Ensure(Gp): %v", err)
	}
}

func TestEnsureInputAtomGuardedByLastStateOrLoopExists(t *testing.T) {
	fb := pltl.NewBuilder()
	in := fb.Atom("in", true)
	b, facade, enc := newTestBuilder(t, false, true)
	b.Prepare(in)

	be, err := b.Ensure(in, 0, timeidx.R(0), facade)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	// Force the guard false (LastState at R(0) true, LoopExists false)
	// and the atom true: the conjunction must be unsatisfiable.
	lastState := enc.VarAt("LastState", encode.Timed(timeidx.R(0)))
	loopExists := enc.VarAt("LoopExists", encode.Untimed())
	if err := facade.ForceTrue(be); err != nil {
		t.Fatalf("ForceTrue(in): %v", err)
	}
	if err := facade.ForceTrue(lastState); err != nil {
		t.Fatalf("ForceTrue(LastState): %v", err)
	}
	if err := facade.ForceTrue(enc.Not(loopExists)); err != nil {
		t.Fatalf("ForceTrue(!LoopExists): %v", err)
	}
	verdict, err := facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.UNSAT {
		t.Fatalf("verdict = %v, want UNSAT (input atom guard must suppress a dangling last state)", verdict)
	}
}

func TestEnsureAtomAtLoopHeadUnguarded(t *testing.T) {
	// L/E are not real steps: the isReal guard in body() must not fire
	// there, so an input atom at L is satisfiable together with
	// LoopExists false.
	fb := pltl.NewBuilder()
	in := fb.Atom("in", true)
	b, facade, enc := newTestBuilder(t, false, true)
	b.Prepare(in)

	be, err := b.Ensure(in, 0, timeidx.L(), facade)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	loopExists := enc.VarAt("LoopExists", encode.Untimed())
	if err := facade.ForceTrue(be); err != nil {
		t.Fatalf("ForceTrue(in@L): %v", err)
	}
	if err := facade.ForceTrue(enc.Not(loopExists)); err != nil {
		t.Fatalf("ForceTrue(!LoopExists): %v", err)
	}
	verdict, err := facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.SAT {
		t.Fatalf("verdict = %v, want SAT (pseudo-states carry no real-time guard)", verdict)
	}
}

func TestBaseConstraintsForceLoopHeadFalseWithoutLoop(t *testing.T) {
	fb := pltl.NewBuilder()
	p := fb.Atom("p", false)
	yp := fb.Prev(p)
	b, facade, enc := newTestBuilder(t, false, true)
	b.Prepare(yp)
	if err := b.BaseConstraints(facade); err != nil {
		t.Fatalf("BaseConstraints: %v", err)
	}

	atL, err := b.Ensure(yp, 1, timeidx.L(), facade)
	if err != nil {
		t.Fatalf("Ensure(Yp@L): %v", err)
	}
	loopExists := enc.VarAt("LoopExists", encode.Untimed())
	if err := facade.ForceTrue(enc.Not(loopExists)); err != nil {
		t.Fatalf("ForceTrue(!LoopExists): %v", err)
	}
	if err := facade.ForceTrue(atL); err != nil {
		t.Fatalf("ForceTrue(Yp@L): %v", err)
	}
	verdict, err := facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.UNSAT {
		t.Fatalf("verdict = %v, want UNSAT ([[Yp]]_L must be forced false without a loop)", verdict)
	}
}

func TestEnsureUntilCollapsesToRightDisjunctAtBoundZero(t *testing.T) {
	// p U q at R(0) with d=0 must reduce (via loop-tail forced false by
	// BaseConstraints when no loop exists) to q alone: asserting q true
	// and the Until atom false must be UNSAT.
	fb := pltl.NewBuilder()
	p := fb.Atom("p", false)
	q := fb.Atom("q", false)
	u := fb.Until(p, q)
	b, facade, enc := newTestBuilder(t, false, true)
	b.Prepare(u)
	if err := b.BaseConstraints(facade); err != nil {
		t.Fatalf("BaseConstraints: %v", err)
	}

	loopExists := enc.VarAt("LoopExists", encode.Untimed())
	if err := facade.ForceTrue(enc.Not(loopExists)); err != nil {
		t.Fatalf("ForceTrue(!LoopExists): %v", err)
	}
	uAt0, err := b.Ensure(u, 0, timeidx.R(0), facade)
	if err != nil {
		t.Fatalf("Ensure(p U q @ R(0)): %v", err)
	}
	qAt0, err := b.Ensure(q, 0, timeidx.R(0), facade)
	if err != nil {
		t.Fatalf("Ensure(q @ R(0)): %v", err)
	}
	if err := facade.ForceTrue(qAt0); err != nil {
		t.Fatalf("ForceTrue(q): %v", err)
	}
	if err := facade.ForceTrue(enc.Not(uAt0)); err != nil {
		t.Fatalf("ForceTrue(!(p U q)): %v", err)
	}
	verdict, err := facade.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if verdict != satsolver.UNSAT {
		t.Fatalf("verdict = %v, want UNSAT (q true must force p U q true)", verdict)
	}
}
