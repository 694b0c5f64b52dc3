package zigzag

import (
	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/fsm"
)

// DefaultTraceBuilder resolves a raw solver model back into named,
// timed symbols the way original_source/'s BaseEvaluator.c does,
// restricted to the FSM's own state and input variables (translation
// and loop-bookkeeping variables never appear in the external trace).
func DefaultTraceBuilder(enc encode.Encoder, machine fsm.FSM) TraceBuilder {
	relevant := make(map[string]bool)
	for _, name := range machine.StateVarNames() {
		relevant[name] = true
	}
	for _, name := range machine.InputVarNames() {
		relevant[name] = true
	}

	return func(m Model, info LoopInfo) Trace {
		states := make([]Assignment, info.K+1)
		for i := range states {
			states[i] = Assignment{}
		}
		for idx, val := range m.Values {
			name, ok := enc.IndexToName(idx)
			if !ok || !relevant[name] {
				continue
			}
			t, timed := enc.IndexToTime(idx)
			if !timed {
				continue
			}
			i, isReal := t.TimeOf()
			if !isReal || i < 0 || i > info.K {
				continue
			}
			states[i][name] = val
		}

		var trace Trace
		trace.States = states
		if info.LoopExists && info.LoopHead >= 0 {
			lb := info.LoopHead
			trace.LoopBack = &lb
		}
		return trace
	}
}
