package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/boxgd/internal/store"
	"github.com/cwbudde/boxgd/internal/testfn"
)

var resumeOpts runOptions

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Warm-start a new run from a stored run's final point",
	Long: `Loads a stored run and starts a new optimization of the same problem from
its final point. Custom --lower/--upper bounds are not stored and must be
given again; otherwise a bounded run resumes with the problem's bounds.
Optimizer state such as momentum or Adam accumulators is not stored, so
the update rule starts fresh. Algorithm and method default to those of
the stored run; flags override them.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	addOptimizerFlags(resumeCmd, &resumeOpts)
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	runStore, err := store.NewFSStore(resumeOpts.dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	prev, err := runStore.LoadRun(args[0])
	if err != nil {
		return err
	}

	p, err := testfn.Get(prev.Config.Problem)
	if err != nil {
		return err
	}
	if err := prev.IsCompatible(store.RunConfig{Problem: p.Name, Dim: len(prev.X)}); err != nil {
		return err
	}

	inheritRunConfig(cmd, &resumeOpts, prev.Config)

	s, err := buildSettings(cmd, &resumeOpts, p, len(prev.X))
	if err != nil {
		return err
	}

	slog.Info("Resuming run", "from", prev.RunID, "value", prev.Value, "iterations", prev.Iterations)
	_, err = executeRun(cmd.Context(), cmd.OutOrStdout(), &resumeOpts, p, prev.X, s, prev.RunID)
	return err
}

// inheritRunConfig copies the stored run's choices into flags the user left
// unset. The stored method name is applied through the flag so that
// buildSettings treats it like an explicit choice.
func inheritRunConfig(cmd *cobra.Command, o *runOptions, c store.RunConfig) {
	f := cmd.Flags()
	if !f.Changed("algo") && c.Algorithm != "" {
		o.algo = c.Algorithm
	}
	if !f.Changed("method") && c.Method != "" {
		method := strings.TrimSuffix(c.Method, store.MaxSuffix)
		f.Set("method", method)
		if method != c.Method && !f.Changed("ada-max") {
			f.Set("ada-max", "true")
		}
	}
	if c.Algorithm == "mayfly" {
		if !f.Changed("pop") && c.PopSize > 0 {
			o.popSize = c.PopSize
		}
		if !f.Changed("seed") {
			o.seed = c.Seed
		}
	}
	if !f.Changed("unbounded") && !c.Bounded {
		o.unbounded = true
	}
}
