package timeidx

import "testing"

func TestIndexOrdering(t *testing.T) {
	if L().Index() != 0 || E().Index() != 1 {
		t.Fatalf("pseudo-state indices: L=%d E=%d, want 0,1", L().Index(), E().Index())
	}
	for i := 0; i < 5; i++ {
		if got, want := R(i).Index(), i+2; got != want {
			t.Fatalf("R(%d).Index() = %d, want %d", i, got, want)
		}
	}
	if !Less(L(), E()) || !Less(E(), R(0)) || !Less(R(0), R(1)) {
		t.Fatalf("expected R(i) > E > L >= 0")
	}
}

func TestTimeOf(t *testing.T) {
	if _, ok := L().TimeOf(); ok {
		t.Fatalf("L should not carry a model time")
	}
	if _, ok := E().TimeOf(); ok {
		t.Fatalf("E should not carry a model time")
	}
	for i := 0; i < 5; i++ {
		got, ok := R(i).TimeOf()
		if !ok || got != i {
			t.Fatalf("R(%d).TimeOf() = (%d,%v), want (%d,true)", i, got, ok, i)
		}
	}
}

func TestRNegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("R(-1) should panic")
		}
	}()
	R(-1)
}

func TestStringer(t *testing.T) {
	if L().String() != "L" || E().String() != "E" || R(3).String() != "3" {
		t.Fatalf("unexpected String() outputs: %q %q %q", L(), E(), R(3))
	}
}
