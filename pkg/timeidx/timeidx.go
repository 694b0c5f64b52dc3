// Package timeidx implements the time index algebra (C1): a total,
// injective linearisation of the loop pseudo-state L, the closing
// pseudo-state E, and the real unrolling steps R(0), R(1), ...
//
// The encoder (pkg/encode) treats every index uniformly; only callers
// that build TimeIdx values know which role L, E or R(i) plays.
package timeidx

import "fmt"

// Kind distinguishes the three shapes a TimeIdx can take.
type Kind int

const (
	KindLoop Kind = iota
	KindClosing
	KindReal
)

// TimeIdx is either the loop head L, the closing successor E, or a
// real step R(i) with i >= 0. The zero value is L.
type TimeIdx struct {
	kind Kind
	step int
}

// L returns the loop-head pseudo-state.
func L() TimeIdx { return TimeIdx{kind: KindLoop} }

// E returns the closing-successor pseudo-state.
func E() TimeIdx { return TimeIdx{kind: KindClosing} }

// R returns the real step i. Panics if i < 0: a negative step index is
// always a caller bug, never a legitimate model state.
func R(i int) TimeIdx {
	if i < 0 {
		panic(fmt.Sprintf("timeidx: negative real step %d", i))
	}
	return TimeIdx{kind: KindReal, step: i}
}

// Kind reports which of L, E, R(i) this index is.
func (t TimeIdx) Kind() Kind { return t.kind }

// Index returns the flat, dense, strictly monotone index used by the
// encoder: L=0, E=1, R(i)=i+2. It is the only representation exposed
// across the encoder boundary.
func (t TimeIdx) Index() int {
	switch t.kind {
	case KindLoop:
		return 0
	case KindClosing:
		return 1
	default:
		return t.step + 2
	}
}

// TimeOf returns (i, true) when t is the real step R(i), and (0,
// false) for the pseudo-states L and E, matching NuSMV's
// BeEnc_index_to_time / BeEnc_is_index_untimed split for pseudo-time
// positions.
func (t TimeIdx) TimeOf() (int, bool) {
	if t.kind != KindReal {
		return 0, false
	}
	return t.step, true
}

// IsReal reports whether t is a real step R(i).
func (t TimeIdx) IsReal() bool { return t.kind == KindReal }

func (t TimeIdx) String() string {
	switch t.kind {
	case KindLoop:
		return "L"
	case KindClosing:
		return "E"
	default:
		return fmt.Sprintf("%d", t.step)
	}
}

// Less orders indices the way Index does: R(i) > E > L >= 0, strictly
// monotone in i.
func Less(a, b TimeIdx) bool { return a.Index() < b.Index() }
