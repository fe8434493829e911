package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/cwbudde/boxgd/internal/opt"
	"github.com/cwbudde/boxgd/internal/testfn"
)

// runOptions holds the optimizer flags shared by run and resume
type runOptions struct {
	algo       string
	method     string
	adaMax     bool
	policy     string
	step       float64
	tol        float64
	iters      int
	printLevel int
	lower      []float64
	upper      []float64
	unbounded  bool

	popSize int
	seed    int64
	radius  float64

	trace   bool
	noSave  bool
	dataDir string
}

func addOptimizerFlags(cmd *cobra.Command, o *runOptions) {
	f := cmd.Flags()
	f.StringVar(&o.algo, "algo", "gd", "Optimizer: gd, mayfly")
	f.StringVar(&o.method, "method", "basic", "GD update rule: basic, momentum, nesterov, adagrad, rmsprop, adam, nadam, adadelta")
	f.BoolVar(&o.adaMax, "ada-max", false, "Use the infinity-norm variant of adam/nadam")
	f.StringVar(&o.policy, "policy", "return-false", "Failure policy: return-false, warn, keep-initial, raise")
	f.Float64Var(&o.step, "step", 0.1, "Step size")
	f.Float64Var(&o.tol, "tol", 1e-8, "Gradient norm tolerance")
	f.IntVar(&o.iters, "iters", 2000, "Max iterations")
	f.IntVar(&o.printLevel, "print-level", 0, "Per-iteration log detail (0-4)")
	f.Float64SliceVar(&o.lower, "lower", nil, "Lower bounds, comma separated (-inf for none)")
	f.Float64SliceVar(&o.upper, "upper", nil, "Upper bounds, comma separated (inf for none)")
	f.BoolVar(&o.unbounded, "unbounded", false, "Ignore the problem's own bounds")
	f.IntVar(&o.popSize, "pop", 20, "Mayfly population size")
	f.Int64Var(&o.seed, "seed", 42, "Mayfly random seed")
	f.Float64Var(&o.radius, "radius", 10, "Mayfly search radius on open bound sides")
	f.BoolVar(&o.trace, "trace", false, "Write a JSONL trace of every iteration")
	f.BoolVar(&o.noSave, "no-save", false, "Do not store the run record")
	f.StringVar(&o.dataDir, "data-dir", "./data", "Base directory for run storage")
}

// buildSettings merges the settings file, the problem's own bounds and the
// flags that were set explicitly, in that order.
func buildSettings(cmd *cobra.Command, o *runOptions, p testfn.Problem, n int) (opt.Settings, error) {
	s, err := loadSettings(configFile)
	if err != nil {
		return s, err
	}

	if p.Bounded() && !o.unbounded && n == p.Dim() {
		s.ValsBound = true
		s.LowerBounds = append([]float64(nil), p.Lower...)
		s.UpperBounds = append([]float64(nil), p.Upper...)
	}
	if o.unbounded {
		s.ValsBound = false
	}

	f := cmd.Flags()
	if f.Changed("method") {
		if s.GD.Method, err = opt.ParseMethod(o.method); err != nil {
			return s, err
		}
	}
	if f.Changed("ada-max") {
		s.GD.AdaMax = o.adaMax
	}
	if f.Changed("policy") {
		if s.FailurePolicy, err = opt.ParseFailurePolicy(o.policy); err != nil {
			return s, err
		}
	}
	if f.Changed("step") {
		s.GD.StepSize = o.step
	}
	if f.Changed("tol") {
		s.GradErrTol = o.tol
	}
	if f.Changed("iters") {
		s.IterMax = o.iters
	}
	if f.Changed("print-level") {
		s.PrintLevel = o.printLevel
	}

	if f.Changed("lower") || f.Changed("upper") {
		lower, upper := o.lower, o.upper
		if lower == nil {
			lower = fill(n, math.Inf(-1))
		}
		if upper == nil {
			upper = fill(n, math.Inf(1))
		}
		s.ValsBound = true
		s.LowerBounds = lower
		s.UpperBounds = upper
	}

	switch o.algo {
	case "gd", "mayfly":
	default:
		return s, fmt.Errorf("unknown algorithm: %s", o.algo)
	}
	return s, s.Validate(n)
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
