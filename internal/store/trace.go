package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/boxgd/internal/opt"
)

// TraceEntry is one line of trace.jsonl: an optimizer trace record plus
// the time it was written.
type TraceEntry struct {
	opt.TraceRecord
	Timestamp time.Time `json:"timestamp"`
}

// TraceWriter writes trace entries to a JSONL file.
// It uses buffered I/O and is safe for concurrent use.
//
// TraceWriter implements opt.Observer, so it can be plugged into
// Settings.Observer directly.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	err    error
}

// NewTraceWriter creates a new trace writer for the given run.
// The trace file is created at <baseDir>/runs/<runID>/trace.jsonl.
// If append is true, new entries are appended to an existing file.
func NewTraceWriter(baseDir, runID string, append bool) (*TraceWriter, error) {
	dir := runDir(baseDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(dir, "trace.jsonl")

	var file *os.File
	var err error
	if append {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends a trace entry to the file.
// The entry is buffered and will be written on Flush() or Close().
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.write(entry)
}

func (tw *TraceWriter) write(entry TraceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Observe records one optimizer iteration. The record's slices are
// serialized before Observe returns. The first failure is kept and
// reported by Err; later records are dropped.
func (tw *TraceWriter) Observe(rec opt.TraceRecord) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.err != nil {
		return
	}
	tw.err = tw.write(TraceEntry{TraceRecord: rec, Timestamp: time.Now()})
}

// Err returns the first error encountered by Observe
func (tw *TraceWriter) Err() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.err
}

// Flush writes any buffered data to the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// TraceReader reads trace entries from a JSONL file.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTraceReader creates a new trace reader for the given run.
func NewTraceReader(baseDir, runID string) (*TraceReader, error) {
	path := filepath.Join(runDir(baseDir, runID), "trace.jsonl")

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	// level-4 records carry four vectors per line
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	return &TraceReader{
		file:    file,
		scanner: scanner,
	}, nil
}

// Read reads the next trace entry from the file.
// Returns io.EOF when no more entries are available.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads all remaining trace entries from the file.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close closes the trace reader.
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// DeleteTrace removes the trace file for the given run.
// Returns nil if the file doesn't exist.
func DeleteTrace(baseDir, runID string) error {
	path := filepath.Join(runDir(baseDir, runID), "trace.jsonl")

	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}
	return nil
}
