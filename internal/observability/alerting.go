package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionToolFailureRate = "tool_failure_rate"
	ConditionBlockedTooLong  = "task_blocked_too_long"
	ConditionReviewTooLong   = "review_too_long"
)

// Alert represents a triggered alert condition. Tool is set for failure-rate
// alerts and TaskID for task-state alerts.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	Tool        string        `json:"tool,omitempty"`
	TaskID      string        `json:"task_id,omitempty"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	// Window bounds the journal events considered for failure rates.
	Window time.Duration `json:"window"`
	// FailureRate is the share of failed calls per tool above which an alert
	// fires, once the tool has at least MinCalls calls in Window.
	FailureRate float64 `json:"failure_rate"`
	MinCalls    int     `json:"min_calls"`
	// BlockedHours is how long a task may stay blocked by this server.
	BlockedHours int `json:"blocked_hours"`
	// ReviewHours is how long a submitted task may wait in review.
	ReviewHours int `json:"review_hours"`
}

// DefaultAlertThresholds returns the default alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		Window:       24 * time.Hour,
		FailureRate:  0.5,
		MinCalls:     5,
		BlockedHours: 24,
		ReviewHours:  72,
	}
}

// Tool names whose successful calls move a task to a known status.
var statusByTool = map[string]string{
	"preq_plan_task":     "todo",
	"preq_start_task":    "in_progress",
	"preq_complete_task": "review",
	"preq_block_task":    "blocked",
}

// AlertEngine evaluates alert conditions against the call journal.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine over eventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate reads the journal and returns every triggered alert, most severe
// first.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()

	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("reading journal for alerts: %w", err)
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkFailureRates(events, now)...)
	alerts = append(alerts, ae.checkTaskStates(events, now)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		if severityRank(alerts[i].Severity) != severityRank(alerts[j].Severity) {
			return severityRank(alerts[i].Severity) < severityRank(alerts[j].Severity)
		}
		return alerts[i].ID < alerts[j].ID
	})
	return alerts, nil
}

// checkFailureRates alerts on tools failing more often than the threshold
// within the window.
func (ae *alertEngine) checkFailureRates(events []Event, now time.Time) []Alert {
	since := now.Add(-ae.thresholds.Window)
	calls := make(map[string]int)
	fails := make(map[string]int)
	for _, event := range events {
		if event.Time.Before(since) {
			continue
		}
		tool := event.Tool()
		calls[tool]++
		if event.Failed() {
			fails[tool]++
		}
	}

	var alerts []Alert
	for tool, n := range calls {
		if n < ae.thresholds.MinCalls || n == 0 {
			continue
		}
		rate := float64(fails[tool]) / float64(n)
		if rate > ae.thresholds.FailureRate {
			alerts = append(alerts, Alert{
				ID:          "failure-rate-" + tool,
				Condition:   ConditionToolFailureRate,
				Severity:    SeverityHigh,
				Message:     fmt.Sprintf("%s failed %d of %d calls in the last %s", tool, fails[tool], n, ae.thresholds.Window),
				Tool:        tool,
				TriggeredAt: now,
			})
		}
	}
	return alerts
}

// checkTaskStates replays successful status-changing calls and alerts on
// tasks left blocked or in review for too long.
func (ae *alertEngine) checkTaskStates(events []Event, now time.Time) []Alert {
	type taskState struct {
		status    string
		changedAt time.Time
	}
	tasks := make(map[string]*taskState)

	for _, event := range events {
		if event.Failed() {
			continue
		}
		taskID := event.TaskRef()
		status, ok := statusByTool[event.Tool()]
		if taskID == "" || !ok {
			continue
		}
		tasks[taskID] = &taskState{status: status, changedAt: event.Time}
	}

	blocked := time.Duration(ae.thresholds.BlockedHours) * time.Hour
	review := time.Duration(ae.thresholds.ReviewHours) * time.Hour

	var alerts []Alert
	for taskID, state := range tasks {
		age := now.Sub(state.changedAt)
		switch {
		case state.status == "blocked" && age > blocked:
			alerts = append(alerts, Alert{
				ID:          "blocked-" + taskID,
				Condition:   ConditionBlockedTooLong,
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("task %s has been blocked for more than %d hours", taskID, ae.thresholds.BlockedHours),
				TaskID:      taskID,
				TriggeredAt: now,
			})
		case state.status == "review" && age > review:
			alerts = append(alerts, Alert{
				ID:          "review-" + taskID,
				Condition:   ConditionReviewTooLong,
				Severity:    SeverityLow,
				Message:     fmt.Sprintf("task %s has been waiting in review for more than %d hours", taskID, ae.thresholds.ReviewHours),
				TaskID:      taskID,
				TriggeredAt: now,
			})
		}
	}
	return alerts
}

func severityRank(s AlertSeverity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}
