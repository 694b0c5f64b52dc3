// Package tableau implements the PLTL-to-propositional tableau: the
// Formula Info map (C3) and the Tableau Builder (C4) that computes
// past depths, allocates translation/auxiliary variables, and
// materialises per-time, per-depth state vectors.
package tableau

import (
	"fmt"

	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// FormulaInfo is the per-subformula metadata named C3. TransVars is
// nil for a node encoded purely definitionally; otherwise it holds
// exactly PastDepth+1 freshly allocated names, one per depth.
type FormulaInfo struct {
	PastDepth int
	TransVars []string

	transBEs map[timeidx.TimeIdx][]encode.BE

	AuxFNode string
	AuxGNode string
	auxFBEs  map[timeidx.TimeIdx]encode.BE
	auxGBEs  map[timeidx.TimeIdx]encode.BE
}

// HasTransVars reports whether f is encoded via fresh variables.
func (fi *FormulaInfo) HasTransVars() bool { return fi.TransVars != nil }

// TransBEAt returns the cached [[f]]_t^d handle, if any has been
// materialised yet.
func (fi *FormulaInfo) TransBEAt(t timeidx.TimeIdx, d int) (encode.BE, bool) {
	row, ok := fi.transBEs[t]
	if !ok || d < 0 || d >= len(row) {
		return encode.BE(0), false
	}
	if row[d] == encode.BE(0) {
		return encode.BE(0), false
	}
	return row[d], true
}

// setTransBE records the handle for [[f]]_t^d, lazily allocating the
// per-time row sized to PastDepth+1.
func (fi *FormulaInfo) setTransBE(t timeidx.TimeIdx, d int, be encode.BE) {
	if fi.transBEs == nil {
		fi.transBEs = make(map[timeidx.TimeIdx][]encode.BE)
	}
	row, ok := fi.transBEs[t]
	if !ok {
		row = make([]encode.BE, fi.PastDepth+1)
		fi.transBEs[t] = row
	}
	row[d] = be
}

// AuxFAt / AuxGAt return the eventuality witness BE at t, if already
// materialised.
func (fi *FormulaInfo) AuxFAt(t timeidx.TimeIdx) (encode.BE, bool) {
	be, ok := fi.auxFBEs[t]
	return be, ok
}

func (fi *FormulaInfo) AuxGAt(t timeidx.TimeIdx) (encode.BE, bool) {
	be, ok := fi.auxGBEs[t]
	return be, ok
}

func (fi *FormulaInfo) setAuxF(t timeidx.TimeIdx, be encode.BE) {
	if fi.auxFBEs == nil {
		fi.auxFBEs = make(map[timeidx.TimeIdx]encode.BE)
	}
	fi.auxFBEs[t] = be
}

func (fi *FormulaInfo) setAuxG(t timeidx.TimeIdx, be encode.BE) {
	if fi.auxGBEs == nil {
		fi.auxGBEs = make(map[timeidx.TimeIdx]encode.BE)
	}
	fi.auxGBEs[t] = be
}

// clearAt drops every cached handle recorded at t, so the next Ensure/
// EnsureAuxF/EnsureAuxG call at t materialises a fresh defining
// equation instead of returning a stale one. Used by pkg/closer, since
// E is re-entered every bound and its defining equations live in the
// volatile group that gets destroyed between bounds.
func (fi *FormulaInfo) clearAt(t timeidx.TimeIdx) {
	delete(fi.transBEs, t)
	delete(fi.auxFBEs, t)
	delete(fi.auxGBEs, t)
}

// InfoMap is the FormulaId -> FormulaInfo table keyed by the
// structurally-shared *pltl.Formula pointer (spec §9 recommends this
// over an open-addressed name table).
type InfoMap struct {
	m map[*pltl.Formula]*FormulaInfo
}

// NewInfoMap returns an empty InfoMap.
func NewInfoMap() *InfoMap {
	return &InfoMap{m: make(map[*pltl.Formula]*FormulaInfo)}
}

// Get returns f's FormulaInfo, creating an empty one on first access.
func (im *InfoMap) Get(f *pltl.Formula) *FormulaInfo {
	fi, ok := im.m[f]
	if !ok {
		fi = &FormulaInfo{}
		im.m[f] = fi
	}
	return fi
}

// MustGet returns f's FormulaInfo, panicking if Prepare has not run on
// f yet. A missing entry here is the structural-invariant violation
// spec §7.4 requires to abort rather than silently default.
func (im *InfoMap) MustGet(f *pltl.Formula) *FormulaInfo {
	fi, ok := im.m[f]
	if !ok {
		panic(fmt.Sprintf("tableau: no FormulaInfo for %s; Prepare must run before Ensure", f))
	}
	return fi
}
