// Command zigzagbmc is a demo CLI exercising the zigzag bounded model
// checker library against its small set of reference FSMs. It is
// scaffolding to drive the library end to end, not a product surface:
// there is no formula-string parser, only a registry of named
// scenarios (pkg/fsm's reference FSMs paired with a property).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rfielding/zigzagbmc/pkg/encode"
	"github.com/rfielding/zigzagbmc/pkg/fsm"
	"github.com/rfielding/zigzagbmc/pkg/pltl"
	"github.com/rfielding/zigzagbmc/pkg/satsolver"
	"github.com/rfielding/zigzagbmc/pkg/zigzag"
)

var (
	verbose          bool
	kMax             int
	virtualUnrolling bool
	completeness     bool
	assume           []string
	scenario         string
)

type scenarioDef struct {
	short   string
	mkFSM   func(encode.Encoder) fsm.FSM
	formula func(*pltl.Builder) *pltl.Formula
}

var scenarios = map[string]scenarioDef{
	"counter-tautology": {
		short: "two-state counter, G(s | !s) — a propositional tautology, always TRUE",
		mkFSM: fsm.NewTwoStateCounter,
		formula: func(fb *pltl.Builder) *pltl.Formula {
			s := fb.Atom("s", false)
			return fb.Globally(fb.Or(s, fb.Not(s)))
		},
	},
	"counter-eventually": {
		short: "two-state counter, G(!s) — falsified once s flips true",
		mkFSM: fsm.NewTwoStateCounter,
		formula: func(fb *pltl.Builder) *pltl.Formula {
			s := fb.Atom("s", false)
			return fb.Globally(fb.Not(s))
		},
	},
	"counter-historically": {
		short: "two-state counter, H(!s) — falsified once s flips true",
		mkFSM: fsm.NewTwoStateCounter,
		formula: func(fb *pltl.Builder) *pltl.Formula {
			s := fb.Atom("s", false)
			return fb.Historically(fb.Not(s))
		},
	},
	"stutter-recurrence": {
		short: "stuttering bit, G(O(s)) — the free flip input can always stutter, FALSE",
		mkFSM: fsm.NewStutteringBit,
		formula: func(fb *pltl.Builder) *pltl.Formula {
			s := fb.Atom("s", false)
			return fb.Globally(fb.Once(s))
		},
	},
	"mutex-exclusion": {
		short: "mutex, G!(cs1 & cs2) — the token bit enforces exclusion, TRUE under completeness",
		mkFSM: fsm.NewMutex,
		formula: func(fb *pltl.Builder) *pltl.Formula {
			inCS1 := fb.And(fb.Not(fb.Atom("pc1a", false)), fb.Atom("pc1b", false))
			inCS2 := fb.And(fb.Not(fb.Atom("pc2a", false)), fb.Atom("pc2b", false))
			return fb.Globally(fb.Not(fb.And(inCS1, inCS2)))
		},
	},
}

var rootCmd = &cobra.Command{
	Use:   "zigzagbmc",
	Short: "Incremental simple bounded model checker for full past-time LTL",
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the zigzag bound-by-bound search against a named reference scenario",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&kMax, "kmax", 5, "maximum bound to search before giving up with UNKNOWN")
	checkCmd.Flags().BoolVar(&virtualUnrolling, "virtual-unrolling", false, "let connectives inherit their children's past depth (virtual unrolling)")
	checkCmd.Flags().BoolVar(&completeness, "completeness", false, "attempt a completeness threshold check at every bound")
	checkCmd.Flags().StringSliceVar(&assume, "assume", nil, "assumption atom at t=0, e.g. \"s\" or \"!s\"; repeatable")
	checkCmd.Flags().StringVar(&scenario, "scenario", "counter-eventually", "reference scenario to check (see the list command)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "set the log level to debug (the engine logs its verdict events at info level)")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available reference scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		for name, def := range scenarios {
			fmt.Printf("%-22s %s\n", name, def.short)
		}
		return nil
	},
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Sugar(), nil
}

func parseAssumption(raw string) zigzag.AssumptionAtom {
	if len(raw) > 0 && raw[0] == '!' {
		return zigzag.AssumptionAtom{Name: raw[1:], Negated: true}
	}
	return zigzag.AssumptionAtom{Name: raw}
}

func runCheck(cmd *cobra.Command, args []string) error {
	def, ok := scenarios[scenario]
	if !ok {
		return fmt.Errorf("unknown scenario %q (run \"zigzagbmc list\" to see the available ones)", scenario)
	}

	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	enc := encode.NewGiniEncoder(4096)
	eng := satsolver.NewGiniEngine()
	facade, err := satsolver.NewFacade(eng, enc)
	if err != nil {
		return fmt.Errorf("building solver façade: %w", err)
	}

	machine := def.mkFSM(enc)
	engine := zigzag.NewEngine(enc, facade, machine, zigzag.WithLogger(logger))

	fb := pltl.NewBuilder()
	phi := def.formula(fb)

	var (
		verdict  zigzag.Verdict
		trace    zigzag.Trace
		conflict []zigzag.AssumptionAtom
		checkErr error
	)
	if len(assume) == 0 {
		verdict, trace, checkErr = engine.CheckLTL(fb, phi, nil, kMax, virtualUnrolling, completeness)
	} else {
		atoms := make([]zigzag.AssumptionAtom, 0, len(assume))
		for _, raw := range assume {
			atoms = append(atoms, parseAssumption(raw))
		}
		verdict, trace, conflict, checkErr = engine.CheckLTLAssume(fb, phi, nil, kMax, virtualUnrolling, completeness, atoms)
	}
	if checkErr != nil {
		return fmt.Errorf("check failed: %w", checkErr)
	}

	fmt.Printf("scenario: %s\nverdict:  %s\n", scenario, verdict)
	if verdict == zigzag.PropertyFalse {
		printTrace(trace)
	}
	if len(conflict) > 0 {
		fmt.Printf("conflict: %v\n", conflict)
	}

	counters := engine.Stats().Counters()
	fmt.Printf("bounds extended: %d, solves: %d\n", counters["bounds_extended"], counters["solves"])
	return nil
}

func printTrace(trace zigzag.Trace) {
	for i, state := range trace.States {
		fmt.Printf("  [%d] %v\n", i, state)
	}
	if trace.LoopBack != nil {
		fmt.Printf("  loop back to [%d]\n", *trace.LoopBack)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
