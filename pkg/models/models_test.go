package models

import (
	"encoding/json"
	"testing"
)

func TestTaskKey(t *testing.T) {
	if got := (&Task{ID: "a1", TaskKey: "TEST-1"}).Key(); got != "TEST-1" {
		t.Errorf("Key() = %q, want TEST-1", got)
	}
	if got := (&Task{ID: "a1", TaskKey: "  "}).Key(); got != "a1" {
		t.Errorf("Key() = %q, want fallback to id", got)
	}
}

func TestTaskSummaryLabelsNeverNil(t *testing.T) {
	s := (&Task{ID: "a1", Title: "T", Status: StatusTodo}).Summary()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if labels, ok := decoded["labels"].([]any); !ok || len(labels) != 0 {
		t.Errorf("labels = %v, want []", decoded["labels"])
	}
}

func TestEnumValidity(t *testing.T) {
	for _, s := range TaskStatuses {
		if !s.IsValid() {
			t.Errorf("status %q should be valid", s)
		}
	}
	if TaskStatus("open").IsValid() {
		t.Error("open should not be a valid status")
	}
	for _, p := range Priorities {
		if !p.IsValid() {
			t.Errorf("priority %q should be valid", p)
		}
	}
	if Priority("urgent").IsValid() {
		t.Error("urgent should not be a valid priority")
	}
	for _, e := range Engines {
		if !e.IsValid() {
			t.Errorf("engine %q should be valid", e)
		}
	}
	if Engine("Claude").IsValid() {
		t.Error("engine literals are case-sensitive")
	}
}

func TestTaskPatchOmitsUnsetFields(t *testing.T) {
	patch := TaskPatch{
		Status: Some(StatusInProgress),
		Engine: Some(EngineCodex),
		Labels: Some([]string{}),
	}
	data, err := json.Marshal(patch)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"engine":"codex","labels":[],"status":"in_progress"}` {
		t.Errorf("patch JSON = %s", data)
	}

	empty, _ := json.Marshal(TaskPatch{})
	if string(empty) != `{}` {
		t.Errorf("empty patch JSON = %s", empty)
	}
}

func TestNewTaskAlwaysSendsCoreFields(t *testing.T) {
	data, err := json.Marshal(NewTask{Title: "T", Repo: "r", Priority: PriorityNone, Engine: EngineClaude})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"engine":"claude","priority":"none","repo":"r","title":"T"}` {
		t.Errorf("new task JSON = %s", data)
	}
}

func TestConfigRedacted(t *testing.T) {
	cfg := Config{Token: "secret", APIURL: "https://preq.example.com", Alerts: AlertConfig{SlackWebhook: "https://hooks.slack.com/x"}}
	r := cfg.Redacted()
	if r.Token != "********" || r.Alerts.SlackWebhook != "********" {
		t.Errorf("Redacted = %+v", r)
	}
	if cfg.Token != "secret" {
		t.Error("Redacted must not modify the receiver")
	}
	if r.APIURL != cfg.APIURL {
		t.Error("non-secret fields should be kept")
	}
	if (Config{}).Redacted().Token != "" {
		t.Error("an empty token should stay empty")
	}
}

func TestTaskUnmarshal_OpaqueID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"string", `{"id":"a1"}`, "a1", false},
		{"integer", `{"id":42}`, "42", false},
		{"large integer", `{"id":12345678901234567890}`, "12345678901234567890", false},
		{"null", `{"id":null}`, "", false},
		{"missing", `{"title":"x"}`, "", false},
		{"bool", `{"id":true}`, "", true},
		{"object", `{"id":{"v":1}}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var task Task
			err := json.Unmarshal([]byte(tt.body), &task)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got id %q", task.ID)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if task.ID != tt.want {
				t.Errorf("ID = %q, want %q", task.ID, tt.want)
			}
		})
	}
}

func TestTaskUnmarshal_KeepsOtherFields(t *testing.T) {
	var task Task
	body := `{"id":9,"task_key":"TEST-9","title":"Ship","status":"review","labels":["a"],"engine":"codex","result":{"summary":"ok"}}`
	if err := json.Unmarshal([]byte(body), &task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "9" || task.TaskKey != "TEST-9" || task.Title != "Ship" || task.Status != StatusReview {
		t.Errorf("task = %+v", task)
	}
	if len(task.Labels) != 1 || task.Engine != EngineCodex || string(task.Result) != `{"summary":"ok"}` {
		t.Errorf("task = %+v", task)
	}
}
