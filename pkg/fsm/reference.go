package fsm

import (
	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/timeidx"
)

// genericFSM implements FSM by deferring to caller-supplied closures.
// The six seed scenarios of spec §8 are built this way: each is small
// enough that a bespoke FSM type would add nothing over a closure.
type genericFSM struct {
	enc        encode.Encoder
	stateVars  []string
	inputVars  []string
	initFn     func(enc encode.Encoder, at timeidx.TimeIdx) encode.BE
	transFn    func(enc encode.Encoder, from, to timeidx.TimeIdx) encode.BE
	fairAtoms  []string
}

func (f *genericFSM) InitPredicate(at timeidx.TimeIdx) encode.BE {
	return f.initFn(f.enc, at)
}

func (f *genericFSM) Transition(from, to timeidx.TimeIdx) encode.BE {
	return f.transFn(f.enc, from, to)
}

func (f *genericFSM) FairnessList() []encode.BE {
	out := make([]encode.BE, 0, len(f.fairAtoms))
	for _, name := range f.fairAtoms {
		out = append(out, f.enc.VarAt(name, encode.Untimed()))
	}
	return out
}

func (f *genericFSM) StateVarNames() []string { return f.stateVars }
func (f *genericFSM) InputVarNames() []string { return f.inputVars }

// NewTwoStateCounter builds scenario #1/#2/#5/#6 of spec §8: a single
// boolean s with init s=0 and the deterministic flip s' = ¬s.
func NewTwoStateCounter(enc encode.Encoder) FSM {
	return &genericFSM{
		enc:       enc,
		stateVars: []string{"s"},
		initFn: func(enc encode.Encoder, at timeidx.TimeIdx) encode.BE {
			return enc.Not(enc.VarAt("s", encode.Timed(at)))
		},
		transFn: func(enc encode.Encoder, from, to timeidx.TimeIdx) encode.BE {
			sFrom := enc.VarAt("s", encode.Timed(from))
			sTo := enc.VarAt("s", encode.Timed(to))
			return enc.Iff(sTo, enc.Not(sFrom))
		},
	}
}

// NewStutteringBit builds scenario #3: s can either flip or stutter at
// each step, s' ∈ {s, ¬s}, modelled with a free input bit "flip" that
// picks which successor is taken.
func NewStutteringBit(enc encode.Encoder) FSM {
	return &genericFSM{
		enc:       enc,
		stateVars: []string{"s"},
		inputVars: []string{"flip"},
		initFn: func(enc encode.Encoder, at timeidx.TimeIdx) encode.BE {
			return enc.Not(enc.VarAt("s", encode.Timed(at)))
		},
		transFn: func(enc encode.Encoder, from, to timeidx.TimeIdx) encode.BE {
			sFrom := enc.VarAt("s", encode.Timed(from))
			sTo := enc.VarAt("s", encode.Timed(to))
			flip := enc.VarAt("flip", encode.Timed(from))
			flipped := enc.Not(sFrom)
			return enc.Ite(flip, enc.Iff(sTo, flipped), enc.Iff(sTo, sFrom))
		},
	}
}

// NewMutex builds scenario #4: two processes, each with a 2-bit
// program counter encoding {idle=00, try=01, cs=10}, and a shared
// token bit that must be held to enter the critical section and is
// released on leaving it. Non-determinism (which process moves) comes
// from two free input bits "step1"/"step2".
func NewMutex(enc encode.Encoder) FSM {
	return &genericFSM{
		enc:       enc,
		stateVars: []string{"pc1a", "pc1b", "pc2a", "pc2b", "token"},
		inputVars: []string{"step1", "step2"},
		initFn: func(enc encode.Encoder, at timeidx.TimeIdx) encode.BE {
			idle := func(a, b string) encode.BE {
				return enc.And(enc.Not(enc.VarAt(a, encode.Timed(at))), enc.Not(enc.VarAt(b, encode.Timed(at))))
			}
			return enc.And(enc.And(idle("pc1a", "pc1b"), idle("pc2a", "pc2b")), enc.VarAt("token", encode.Timed(at)))
		},
		transFn: func(enc encode.Encoder, from, to timeidx.TimeIdx) encode.BE {
			// Each process advances idle->try->cs->idle when its step
			// input is set and the move is legal (cs requires token,
			// released back on leaving cs; if both could take it in the
			// same step, process 1 gets it); otherwise it holds. This is
			// a reference scenario FSM, not a verified mutual-exclusion
			// protocol implementation.
			token := enc.VarAt("token", encode.Timed(from))
			adv := func(aName, bName, step string, avail encode.BE) (nextA, nextB, takesToken, releasesToken encode.BE) {
				a := enc.VarAt(aName, encode.Timed(from))
				b := enc.VarAt(bName, encode.Timed(from))
				s := enc.VarAt(step, encode.Timed(from))
				idle := enc.And(enc.Not(a), enc.Not(b))
				try := enc.And(a, enc.Not(b))
				cs := enc.And(enc.Not(a), b)
				toTry := enc.And(s, idle)
				toCS := enc.And(s, enc.And(try, avail))
				toIdle := enc.And(s, cs)
				hold := enc.Not(enc.Or(toTry, enc.Or(toCS, toIdle)))
				nextA = enc.Or(toTry, enc.And(hold, a))
				nextB = enc.Or(toCS, enc.And(hold, b))
				takesToken, releasesToken = toCS, toIdle
				return
			}
			a1, b1, take1, release1 := adv("pc1a", "pc1b", "step1", token)
			a2, b2, take2, release2 := adv("pc2a", "pc2b", "step2", enc.And(token, enc.Not(take1)))
			nextToken := enc.Ite(enc.Or(release1, release2), enc.Truth(),
				enc.Ite(enc.Or(take1, take2), enc.Falsity(), token))

			eqTo := func(name string, be encode.BE) encode.BE {
				return enc.Iff(enc.VarAt(name, encode.Timed(to)), be)
			}
			return enc.And(
				enc.And(eqTo("pc1a", a1), eqTo("pc1b", b1)),
				enc.And(enc.And(eqTo("pc2a", a2), eqTo("pc2b", b2)), eqTo("token", nextToken)),
			)
		},
	}
}
