package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	keepAliveInterval = 30 * time.Second
	subscriberBuffer  = 16
)

// ProgressEvent is one server-sent event describing a job. Value and Status
// are only meaningful once the job has finished.
type ProgressEvent struct {
	JobID      string    `json:"jobId"`
	State      JobState  `json:"state"`
	Iterations int       `json:"iterations"`
	GradNorm   float64   `json:"gradNorm"`
	Value      float64   `json:"value"`
	Status     string    `json:"status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventBroadcaster fans job events out to stream subscribers and remembers
// the latest event of every job for subscribers that arrive late.
type EventBroadcaster struct {
	mu   sync.Mutex
	subs map[string]map[chan ProgressEvent]struct{}
	last map[string]ProgressEvent
}

func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		subs: make(map[string]map[chan ProgressEvent]struct{}),
		last: make(map[string]ProgressEvent),
	}
}

func newProgressEvent(job *Job) ProgressEvent {
	return ProgressEvent{
		JobID:      job.ID,
		State:      job.State,
		Iterations: job.Iterations,
		GradNorm:   job.GradNorm,
		Value:      job.Value,
		Status:     job.Status,
		Timestamp:  time.Now(),
	}
}

// Publish sends the job's current state to its subscribers
func (eb *EventBroadcaster) Publish(job *Job) {
	eb.send(newProgressEvent(job))
}

func (eb *EventBroadcaster) send(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.last[event.JobID] = event
	for ch := range eb.subs[event.JobID] {
		select {
		case ch <- event:
		default:
			slog.Warn("Dropping event for slow subscriber", "job_id", event.JobID, "state", event.State)
		}
	}
}

// Subscribe registers a subscriber for jobID. The latest event, if any, is
// already queued on the returned channel.
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, subscriberBuffer)
	if eb.subs[jobID] == nil {
		eb.subs[jobID] = make(map[chan ProgressEvent]struct{})
	}
	eb.subs[jobID][ch] = struct{}{}
	if event, ok := eb.last[jobID]; ok {
		ch <- event
	}
	return ch
}

// Unsubscribe removes and closes ch
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs, ok := eb.subs[jobID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(eb.subs, jobID)
	}
}

// handleJobStream handles GET /api/v1/jobs/:id/stream. The stream starts
// with the job's current state and ends after the event that finishes it.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, events)

	if err := writeEvent(w, rc, newProgressEvent(job)); err != nil {
		slog.Debug("Stream closed", "job_id", jobID, "error", err)
		return
	}
	if job.State.Finished() {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, event); err != nil {
				slog.Debug("Stream closed", "job_id", jobID, "error", err)
				return
			}
			if event.State.Finished() {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
