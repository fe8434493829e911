package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/boxgd/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	runStore   *store.FSStore
	addr       string
	server     *http.Server

	// jobs run under ctx so Shutdown can stop them
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// NewServer creates a new HTTP server. runStore may be nil, in which case
// finished jobs are only kept in memory.
func NewServer(addr string, runStore *store.FSStore) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		jobManager: NewJobManager(),
		runStore:   runStore,
		addr:       addr,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunWithID)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, cancels running jobs and waits for
// their workers to record the final state.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.cancel()

	err := s.server.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startJob runs the job's worker in the background
func (s *Server) startJob(jobID string) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.jobManager.setCancel(jobID, cancel)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer cancel()
		defer s.jobManager.clearCancel(jobID)
		runJob(ctx, s.jobManager, s.runStore, jobID)
	}()
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "", "status":
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		s.handleGetJobStatus(w, r, jobID)
	case "stream":
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		s.handleJobStream(w, r, jobID)
	case "cancel":
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		s.handleCancelJob(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	config.applyDefaults()
	if _, _, _, err := config.resolve(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(config)
	s.startJob(job.ID)

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// jobStatus is the body of GET /api/v1/jobs/:id/status
type jobStatus struct {
	*Job
	Elapsed float64 `json:"elapsed"`
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	writeJSON(w, http.StatusOK, jobStatus{Job: job, Elapsed: elapsed.Seconds()})
}

// handleCancelJob handles POST /api/v1/jobs/:id/cancel
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	err := s.jobManager.CancelJob(jobID)
	switch {
	case errors.Is(err, ErrJobNotFound):
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrJobFinished):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	job, _ := s.jobManager.GetJob(jobID)
	writeJSON(w, http.StatusAccepted, job)
}

// handleRuns handles GET /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.runStore == nil {
		writeJSON(w, http.StatusOK, []store.RunInfo{})
		return
	}

	infos, err := s.runStore.ListRuns()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list runs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleRunWithID handles GET /api/v1/runs/:id
func (s *Server) handleRunWithID(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/runs/"), "/")
	if runID == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}
	if s.runStore == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	record, err := s.runStore.LoadRun(runID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load run: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
