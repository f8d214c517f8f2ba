package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TaskStatus represents the current lifecycle state of a PREQSTATION task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusBlocked    TaskStatus = "blocked"
)

// TaskStatuses lists every status in lifecycle order.
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusBlocked}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityHighest Priority = "highest"
	PriorityHigh    Priority = "high"
	PriorityMedium  Priority = "medium"
	PriorityNone    Priority = "none"
	PriorityLow     Priority = "low"
	PriorityLowest  Priority = "lowest"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityHighest, PriorityHigh, PriorityMedium, PriorityNone, PriorityLow, PriorityLowest}

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Engine identifies the automation actor working on a task.
type Engine string

const (
	EngineClaude Engine = "claude"
	EngineCodex  Engine = "codex"
	EngineGemini Engine = "gemini"
)

// Engines lists every recognized engine.
var Engines = []Engine{EngineClaude, EngineCodex, EngineGemini}

// DefaultEngine is used when no other source names an engine.
const DefaultEngine = EngineClaude

// IsValid reports whether e is one of the known engines.
func (e Engine) IsValid() bool {
	for _, known := range Engines {
		if e == known {
			return true
		}
	}
	return false
}

// Task is the remote representation of a PREQSTATION task. Only the fields
// this server reads are decoded; raw payloads are kept in TaskEnvelope.
type Task struct {
	ID                 string          `json:"id"`
	TaskKey            string          `json:"task_key,omitempty"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Status             TaskStatus      `json:"status"`
	Priority           Priority        `json:"priority,omitempty"`
	Repo               string          `json:"repo,omitempty"`
	Branch             string          `json:"branch,omitempty"`
	Assignee           string          `json:"assignee,omitempty"`
	Labels             []string        `json:"labels,omitempty"`
	AcceptanceCriteria []string        `json:"acceptance_criteria,omitempty"`
	Engine             Engine          `json:"engine,omitempty"`
	Result             json.RawMessage `json:"result,omitempty"`
	UpdatedAt          string          `json:"updated_at,omitempty"`
}

// UnmarshalJSON decodes t, accepting the id as either a JSON string or a
// JSON number.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	aux := struct {
		*plain
		ID opaqueID `json:"id"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.ID = string(aux.ID)
	return nil
}

// opaqueID is a task id as sent by the API. Numbers keep their literal text.
type opaqueID string

func (id *opaqueID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = opaqueID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task id must be a string or a number, got %s", data)
	}
	*id = opaqueID(n.String())
	return nil
}

// Key returns the human ticket key, falling back to the opaque id.
func (t *Task) Key() string {
	if strings.TrimSpace(t.TaskKey) != "" {
		return t.TaskKey
	}
	return t.ID
}

// TaskSummary is the compact view returned by list operations.
type TaskSummary struct {
	ID        string     `json:"id"`
	TaskKey   string     `json:"task_key,omitempty"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	Priority  Priority   `json:"priority,omitempty"`
	Repo      string     `json:"repo,omitempty"`
	Labels    []string   `json:"labels"`
	Engine    Engine     `json:"engine,omitempty"`
	UpdatedAt string     `json:"updated_at,omitempty"`
}

// Summary returns the compact view of t. Labels is never nil so it always
// serializes as an array.
func (t *Task) Summary() TaskSummary {
	labels := t.Labels
	if labels == nil {
		labels = []string{}
	}
	return TaskSummary{
		ID:        t.ID,
		TaskKey:   t.TaskKey,
		Title:     t.Title,
		Status:    t.Status,
		Priority:  t.Priority,
		Repo:      t.Repo,
		Labels:    labels,
		Engine:    t.Engine,
		UpdatedAt: t.UpdatedAt,
	}
}

// TaskEnvelope is a single-task API response.
type TaskEnvelope struct {
	// Raw is the response body verbatim, or "{}" when the body was empty.
	Raw json.RawMessage
	// TaskRaw is the task object inside Raw, nil when none was present.
	TaskRaw json.RawMessage
	// Task is TaskRaw decoded, nil when none was present.
	Task *Task
}

// CompletionResult is attached to a task when it is submitted for review.
type CompletionResult struct {
	Summary     string `json:"summary"`
	Tests       string `json:"tests"`
	PRURL       string `json:"pr_url"`
	Notes       string `json:"notes"`
	Engine      Engine `json:"engine"`
	CompletedAt string `json:"completed_at"`
}

// BlockResult is attached to a task when it is marked blocked.
type BlockResult struct {
	Reason    string `json:"reason"`
	Engine    Engine `json:"engine"`
	BlockedAt string `json:"blocked_at"`
}
