package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/boxgd/internal/server"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	s := server.NewServer(":0", nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Shutdown(context.Background())
	})
	return srv.URL
}

func TestListJobs_Empty(t *testing.T) {
	url := newTestServer(t)

	var out bytes.Buffer
	if err := listJobs(&out, url+"/api/v1/jobs"); err != nil {
		t.Fatalf("listJobs failed: %v", err)
	}
	if !strings.Contains(out.String(), "No jobs found") {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func TestGetJobStatus_NotFound(t *testing.T) {
	url := newTestServer(t)

	err := getJobStatus(&bytes.Buffer{}, url+"/api/v1/jobs/nope/status", "nope")
	if err == nil || !strings.Contains(err.Error(), "job not found") {
		t.Errorf("Expected job not found error, got %v", err)
	}
}

func TestGetJobStatus_FinishedJob(t *testing.T) {
	url := newTestServer(t)

	resp, err := http.Post(url+"/api/v1/jobs", "application/json", strings.NewReader(`{"problem": "booth"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	var job server.Job
	err = json.NewDecoder(resp.Body).Decode(&job)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("Failed to decode job: %v", err)
	}

	var out bytes.Buffer
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		out.Reset()
		if err := getJobStatus(&out, url+"/api/v1/jobs/"+job.ID+"/status", job.ID); err != nil {
			t.Fatalf("getJobStatus failed: %v", err)
		}
		if strings.Contains(out.String(), "State: completed") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	text := out.String()
	for _, want := range []string{"Problem: booth", "Algorithm: gd", "Status: GradientConverged (success: true)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Output should contain %q, got:\n%s", want, text)
		}
	}

	out.Reset()
	if err := listJobs(&out, url+"/api/v1/jobs"); err != nil {
		t.Fatalf("listJobs failed: %v", err)
	}
	if !strings.Contains(out.String(), job.ID) {
		t.Errorf("Job list should contain %s, got %q", job.ID, out.String())
	}
}
