package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/boxgd/internal/server"
	"github.com/cwbudde/boxgd/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveNoSave  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Serves the job API:

  POST /api/v1/jobs              start a job
  GET  /api/v1/jobs              list jobs
  GET  /api/v1/jobs/{id}/status  job status
  GET  /api/v1/jobs/{id}/stream  progress as server-sent events
  POST /api/v1/jobs/{id}/cancel  stop a job
  GET  /api/v1/runs[/{id}]       stored runs

Finished jobs are stored under the data directory like CLI runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for run storage")
	serveCmd.Flags().BoolVar(&serveNoSave, "no-save", false, "Keep finished jobs in memory only")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var runStore *store.FSStore
	if !serveNoSave {
		var err error
		runStore, err = store.NewFSStore(serveDataDir)
		if err != nil {
			return fmt.Errorf("failed to create run store: %w", err)
		}
	}

	srv := server.NewServer(serveAddr, runStore)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
	}

	slog.Info("Received shutdown signal")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
