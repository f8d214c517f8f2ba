package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Journal event levels.
const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"
)

const toolEventPrefix = "tool."

// Event is one journal line describing a finished tool call. Data carries
// request_id, duration_ms and, when known, task_id, engine and error_kind.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Type    string         `json:"type"`
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// ToolEventType returns the journal event type for a tool name.
func ToolEventType(tool string) string {
	return toolEventPrefix + tool
}

// Tool returns the tool name encoded in the event type.
func (e Event) Tool() string {
	return strings.TrimPrefix(e.Type, toolEventPrefix)
}

// Failed reports whether the call returned an error to the client.
func (e Event) Failed() bool {
	return e.Level == LevelError
}

// TaskRef returns the normalized id of the task the call was about, or "".
func (e Event) TaskRef() string {
	return NormalizeTaskRef(e.str("task_id"))
}

// Engine returns the engine the call was attributed to, or "".
func (e Event) Engine() string {
	return e.str("engine")
}

func (e Event) str(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// NormalizeTaskRef is the form task ids are journaled and compared in:
// trimmed and uppercased, so TEST-1 and " test-1" name the same task.
func NormalizeTaskRef(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// EventFilter selects journal events. Zero fields match everything.
type EventFilter struct {
	Since  *time.Time
	Until  *time.Time
	Type   string
	Level  string
	TaskID string
}

func (f EventFilter) matches(e Event) bool {
	switch {
	case f.Since != nil && e.Time.Before(*f.Since):
		return false
	case f.Until != nil && e.Time.After(*f.Until):
		return false
	case f.Type != "" && e.Type != f.Type:
		return false
	case f.Level != "" && e.Level != f.Level:
		return false
	case f.TaskID != "" && e.TaskRef() != NormalizeTaskRef(f.TaskID):
		return false
	}
	return true
}

// EventLog is the call journal.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog appends one JSON object per line. Several server processes
// may append to the same file, one per connected agent, so Read orders the
// result by event time rather than by file position.
type jsonlEventLog struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewJSONLEventLog opens (creating if needed) the journal at path. The
// parent directory is created with owner-only permissions.
func NewJSONLEventLog(path string) (EventLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening call journal: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

// Write appends event as a single line. The line is written with one call
// so concurrent appenders never interleave within it.
func (l *jsonlEventLog) Write(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding journal event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("call journal is closed")
	}
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("appending to call journal: %w", err)
	}
	return nil
}

// Read returns the events matching filter in time order. Lines that do not
// decode, including a partially written last line, are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening call journal: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	r := bufio.NewReader(f)
	for {
		line, readErr := r.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			var event Event
			if json.Unmarshal(line, &event) == nil && filter.matches(event) {
				events = append(events, event)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading call journal: %w", readErr)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})
	return events, nil
}

// Close closes the journal. Later writes fail; reads still work.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("closing call journal: %w", err)
	}
	return nil
}

// nopEventLog discards writes. It is used when no journal path is configured.
type nopEventLog struct{}

// NewNopEventLog returns an EventLog that records nothing.
func NewNopEventLog() EventLog { return nopEventLog{} }

func (nopEventLog) Write(Event) error                 { return nil }
func (nopEventLog) Read(EventFilter) ([]Event, error) { return nil, nil }
func (nopEventLog) Close() error                      { return nil }
