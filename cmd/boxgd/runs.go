package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/boxgd/internal/store"
)

var (
	runsDataDir   string
	keepLast      int
	olderThanDays int
	forceClean    bool
	showTrace     bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored runs",
	Long:  `List, inspect and clean stored run records and their traces.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored runs",
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old runs",
	Long: `Delete old runs based on retention policy.
You can keep only the N most recent runs or delete runs older than N days.`,
	RunE: runCleanRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(cleanRunsCmd)

	runsCmd.PersistentFlags().StringVar(&runsDataDir, "data-dir", "./data", "Base directory for run storage")

	showRunCmd.Flags().BoolVar(&showTrace, "trace", false, "Print the iteration trace")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListRuns(cmd *cobra.Command, args []string) error {
	runStore, err := store.NewFSStore(runsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tTIMESTAMP\tPROBLEM\tALGO\tITERATIONS\tVALUE\tSTATUS\tSIZE")
	fmt.Fprintln(w, "------\t---------\t-------\t----\t----------\t-----\t------\t----")

	for _, info := range infos {
		size, err := getDirSize(filepath.Join(runsDataDir, "runs", info.RunID))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		algo := info.Algorithm
		if info.Method != "" {
			algo += "/" + info.Method
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.6g\t%s\t%s\n",
			displayID(info.RunID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Problem,
			algo,
			info.Iterations,
			info.Value,
			info.Status,
			sizeStr,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal runs: %d\n", len(infos))
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	runStore, err := store.NewFSStore(runsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	record, err := runStore.LoadRun(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	fmt.Fprintln(out, string(data))

	if !showTrace {
		return nil
	}
	return printTrace(out, runsDataDir, record.RunID)
}

func printTrace(out io.Writer, dataDir, runID string) error {
	reader, err := store.NewTraceReader(dataDir, runID)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintln(out, "\nNo trace recorded for this run.")
		return nil
	} else if err != nil {
		return err
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nITERATION\tGRAD NORM\tREL CHANGE")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%.6e\t%.6e\n", e.Iteration, e.GradNorm, e.RelChange)
	}
	return w.Flush()
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	runStore, err := store.NewFSStore(runsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%s, %s)\n",
			displayID(info.RunID),
			info.Problem,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Fprint(out, "\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := runStore.DeleteRun(info.RunID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.RunID, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "run_id", info.RunID)
			deleted++
		}
	}

	fmt.Fprintf(out, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion picks runs older than olderThanDays and, beyond
// that, the oldest runs exceeding keepLast. A zero limit disables it.
func selectRunsForDeletion(infos []store.RunInfo, keepLast int, olderThanDays int, now time.Time) []store.RunInfo {
	var toDelete []store.RunInfo
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.RunInfo, len(infos))
		copy(sorted, infos)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.RunID] {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	return toDelete
}

func displayID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
