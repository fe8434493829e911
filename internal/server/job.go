package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/boxgd/internal/opt"
	"github.com/cwbudde/boxgd/internal/testfn"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Finished reports whether the job can no longer change
func (s JobState) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig is the request body of POST /api/v1/jobs.
//
// Settings uses the same keys as a settings file, for example
// {"iter_max": 500, "gd": {"method": "adam"}}.
type JobConfig struct {
	Problem   string                 `json:"problem"`
	Algorithm string                 `json:"algorithm,omitempty"` // gd, mayfly
	Start     []float64              `json:"start,omitempty"`
	Settings  map[string]interface{} `json:"settings,omitempty"`

	// Mayfly only
	PopSize int     `json:"popSize,omitempty"`
	Seed    int64   `json:"seed,omitempty"`
	Radius  float64 `json:"radius,omitempty"`

	// Trace writes the per-iteration trace next to the stored run.
	Trace bool `json:"trace,omitempty"`
}

func (c *JobConfig) applyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = "gd"
	}
	if c.Algorithm == "mayfly" {
		if c.PopSize <= 0 {
			c.PopSize = 20
		}
		if c.Radius <= 0 {
			c.Radius = 10
		}
	}
}

// resolve turns the request into a problem, a starting point and validated
// settings.
func (c JobConfig) resolve() (testfn.Problem, []float64, opt.Settings, error) {
	var s opt.Settings
	if c.Problem == "" {
		return testfn.Problem{}, nil, s, errors.New("problem is required")
	}
	switch c.Algorithm {
	case "gd", "mayfly":
	default:
		return testfn.Problem{}, nil, s, fmt.Errorf("unknown algorithm: %s", c.Algorithm)
	}

	p, err := testfn.Get(c.Problem)
	if err != nil {
		return p, nil, s, err
	}
	start := p.Start
	if c.Start != nil {
		start = append([]float64(nil), c.Start...)
	}
	if !p.AcceptsDim(len(start)) {
		return p, nil, s, fmt.Errorf("problem %s cannot be evaluated in %d dimensions", p.Name, len(start))
	}

	s, err = opt.DecodeSettings(c.Settings)
	if err != nil {
		return p, nil, s, fmt.Errorf("invalid settings: %w", err)
	}
	if p.Bounded() && !s.ValsBound && len(start) == p.Dim() {
		s.ValsBound = true
		s.LowerBounds = append([]float64(nil), p.Lower...)
		s.UpperBounds = append([]float64(nil), p.Upper...)
	}
	if err := s.Validate(len(start)); err != nil {
		return p, nil, s, err
	}
	return p, start, s, nil
}

func (c JobConfig) optimizer(s opt.Settings) opt.Optimizer {
	if c.Algorithm == "mayfly" {
		return opt.NewMayfly(s, c.PopSize, c.Seed, c.Radius)
	}
	return opt.NewGradientDescent(s)
}

// Job represents an optimization job. X, Value and Status are filled in
// when the optimizer returns; Iterations and GradNorm follow the run.
type Job struct {
	ID         string     `json:"id"`
	State      JobState   `json:"state"`
	Config     JobConfig  `json:"config"`
	X          []float64  `json:"x,omitempty"`
	Value      float64    `json:"value"`
	GradNorm   float64    `json:"gradNorm"`
	Iterations int        `json:"iterations"`
	Status     string     `json:"status,omitempty"`
	Success    bool       `json:"success"`
	RunID      string     `json:"runId,omitempty"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func (j *Job) snapshot() *Job {
	c := *j
	c.X = append([]float64(nil), j.X...)
	if j.EndTime != nil {
		end := *j.EndTime
		c.EndTime = &end
	}
	return &c
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]func()
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]func()),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job.snapshot()
}

// GetJob returns a copy of the job with the given ID
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.snapshot(), true
}

// publish sends the job's current state to stream subscribers and reports
// whether the job exists
func (jm *JobManager) publish(id string) bool {
	job, ok := jm.GetJob(id)
	if ok {
		jm.broadcaster.Publish(job)
	}
	return ok
}

// ListJobs returns copies of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	sortJobs(jobs)
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.snapshot())
		}
	}
	sortJobs(runningJobs)
	return runningJobs
}

// setCancel registers the function that stops the job's worker
func (jm *JobManager) setCancel(id string, cancel func()) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

func (jm *JobManager) clearCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, id)
}

// CancelJob asks the job's worker to stop. The worker records the final
// state. A pending job without a worker is cancelled directly.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	job, exists := jm.jobs[id]
	if !exists {
		jm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.State.Finished() {
		jm.mu.Unlock()
		return ErrJobFinished
	}

	cancel := jm.cancels[id]
	if cancel == nil && job.State == StatePending {
		endTime := time.Now()
		job.State = StateCancelled
		job.EndTime = &endTime
	}
	jm.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func sortJobs(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
}
