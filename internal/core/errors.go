package core

import (
	"fmt"

	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// ConfigError reports a startup configuration problem. It is always fatal.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

// ValidationError reports caller input that was rejected before any request
// was sent to the PREQSTATION API.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransitionError reports a task whose current status does not allow the
// requested move.
type TransitionError struct {
	TaskID  string
	Current models.TaskStatus
	Target  models.TaskStatus
	Require models.TaskStatus
}

func (e *TransitionError) Error() string {
	current := string(e.Current)
	if current == "" {
		current = "unknown"
	}
	return fmt.Sprintf("task %s must be %s before moving to %s (current status: %s)",
		e.TaskID, e.Require, e.Target, current)
}
