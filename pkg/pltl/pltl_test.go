package pltl

import "testing"

func TestSharing(t *testing.T) {
	b := NewBuilder()
	p := b.Atom("p", false)
	f1 := b.Future(p)
	f2 := b.Future(b.Atom("p", false))
	if f1 != f2 {
		t.Fatalf("expected structural sharing: F(p) built twice should be the same node")
	}
}

func TestWalkBottomUp(t *testing.T) {
	b := NewBuilder()
	p := b.Atom("p", false)
	q := b.Atom("q", false)
	root := b.Until(p, b.Globally(q))

	seenBefore := make(map[*Formula]bool)
	var order []*Formula
	Walk(root, func(f *Formula) {
		if f.L != nil && !seenBefore[f.L] {
			t.Fatalf("child %s visited after parent %s", f.L, f)
		}
		if f.R != nil && !seenBefore[f.R] {
			t.Fatalf("child %s visited after parent %s", f.R, f)
		}
		seenBefore[f] = true
		order = append(order, f)
	})
	if order[len(order)-1] != root {
		t.Fatalf("root should be visited last, got order ending in %s", order[len(order)-1])
	}
}

func TestConjoinFairness(t *testing.T) {
	b := NewBuilder()
	phi := b.Atom("p", false)
	fair := b.Atom("fair", false)
	out := b.ConjoinFairness(phi, []*Formula{fair})

	if out.Op != OpAnd || out.L != phi {
		t.Fatalf("expected phi AND GF(fair), got %s", out)
	}
	if out.R.Op != OpGlobally || out.R.L.Op != OpFuture {
		t.Fatalf("expected right conjunct to be G F fair, got %s", out.R)
	}
}

func TestConjoinFairnessEmpty(t *testing.T) {
	b := NewBuilder()
	phi := b.Atom("p", false)
	if got := b.ConjoinFairness(phi, nil); got != phi {
		t.Fatalf("empty fairness list should return phi unchanged")
	}
}
