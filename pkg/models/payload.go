package models

import "encoding/json"

// Optional carries a value together with an explicit presence flag so that
// write payloads only contain the fields a caller actually supplied.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// fieldSet accumulates present fields for JSON encoding.
type fieldSet map[string]any

func addField[T any](fs fieldSet, name string, o Optional[T]) {
	if o.Set {
		fs[name] = o.Value
	}
}

// TaskPatch is the body of PATCH /api/tasks/{id}. Every field is optional.
type TaskPatch struct {
	Status             Optional[TaskStatus]
	Engine             Optional[Engine]
	Description        Optional[string]
	Priority           Optional[Priority]
	Labels             Optional[[]string]
	AcceptanceCriteria Optional[[]string]
	Result             Optional[any]
}

// Fields returns the present fields keyed by their wire names.
func (p TaskPatch) Fields() map[string]any {
	fs := fieldSet{}
	addField(fs, "status", p.Status)
	addField(fs, "engine", p.Engine)
	addField(fs, "description", p.Description)
	addField(fs, "priority", p.Priority)
	addField(fs, "labels", p.Labels)
	addField(fs, "acceptance_criteria", p.AcceptanceCriteria)
	addField(fs, "result", p.Result)
	return fs
}

// MarshalJSON encodes only the present fields.
func (p TaskPatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}

// NewTask is the body of POST /api/tasks. Title, repo, priority and engine
// are always sent; status is never sent so the API applies its intake state.
type NewTask struct {
	Title              string
	Repo               string
	Priority           Priority
	Engine             Engine
	Description        Optional[string]
	Labels             Optional[[]string]
	AcceptanceCriteria Optional[[]string]
	Branch             Optional[string]
	Assignee           Optional[string]
}

// Fields returns the payload keyed by wire names.
func (n NewTask) Fields() map[string]any {
	fs := fieldSet{
		"title":    n.Title,
		"repo":     n.Repo,
		"priority": n.Priority,
		"engine":   n.Engine,
	}
	addField(fs, "description", n.Description)
	addField(fs, "labels", n.Labels)
	addField(fs, "acceptance_criteria", n.AcceptanceCriteria)
	addField(fs, "branch", n.Branch)
	addField(fs, "assignee", n.Assignee)
	return fs
}

// MarshalJSON encodes the payload with only present optional fields.
func (n NewTask) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Fields())
}

// TaskQuery holds the server-side filters of GET /api/tasks.
type TaskQuery struct {
	Status TaskStatus
	Label  string
	Engine Engine
}
