package zigzag

// Assignment is the truth value of every state/input variable at one
// position of a trace, as spec §9's trace executor discussion
// describes: BaseTraceExecutor/CompleteTraceExecutor in
// original_source/ replay a list of (state_vars, input_vars)
// assignments plus an optional loopback index.
type Assignment map[string]bool

// Trace is the witness a SAT counter-example produces: one Assignment
// per position 0..=k, plus the loop-back position when LoopExists
// holds.
type Trace struct {
	States   []Assignment
	LoopBack *int
}

// Model is the subset of a solver model the trace builder needs: the
// truth value of each encoder variable, keyed by its raw index. The
// trace builder resolves those indices to named, timed symbols through
// the encoder's IndexToName/IndexToTime (spec §9).
type Model struct {
	Values map[int]bool // encoder variable index -> truth value
}

// LoopInfo carries the positions the driver already knows from the
// closing-constraint solve: which j is the loop head (if LoopExists
// held) and the bound k that was just closed over.
type LoopInfo struct {
	LoopExists bool
	LoopHead   int // valid only if LoopExists
	K          int
}

// TraceBuilder reconstructs an external Trace from a raw solver model
// plus the driver's loop bookkeeping. Callers may supply their own;
// DefaultTraceBuilder is wired in when none is given.
type TraceBuilder func(Model, LoopInfo) Trace
