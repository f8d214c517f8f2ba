package observability

import (
	"fmt"
	"time"
)

// CallStats holds tool-call counts derived from the journal.
type CallStats struct {
	Calls       int            `json:"calls"`
	Failures    int            `json:"failures"`
	CallsByTool map[string]int `json:"calls_by_tool"`
	FailsByTool map[string]int `json:"failures_by_tool"`
	ByEngine    map[string]int `json:"calls_by_engine"`
	OldestEvent *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent *time.Time     `json:"newest_event,omitempty"`
}

// StatsCalculator derives call statistics from the journal.
type StatsCalculator interface {
	Calculate(filter EventFilter) (*CallStats, error)
}

// statsCalculator implements StatsCalculator by reading from an EventLog.
type statsCalculator struct {
	eventLog EventLog
}

// NewStatsCalculator creates a StatsCalculator that reads from eventLog.
func NewStatsCalculator(eventLog EventLog) StatsCalculator {
	return &statsCalculator{eventLog: eventLog}
}

// Calculate reads the matching events and aggregates them per tool and engine.
func (sc *statsCalculator) Calculate(filter EventFilter) (*CallStats, error) {
	events, err := sc.eventLog.Read(filter)
	if err != nil {
		return nil, fmt.Errorf("reading events for stats: %w", err)
	}

	s := &CallStats{
		CallsByTool: make(map[string]int),
		FailsByTool: make(map[string]int),
		ByEngine:    make(map[string]int),
	}

	for i, event := range events {
		if i == 0 {
			t := event.Time
			s.OldestEvent = &t
		}
		t := event.Time
		s.NewestEvent = &t

		tool := event.Tool()
		s.Calls++
		s.CallsByTool[tool]++
		if event.Failed() {
			s.Failures++
			s.FailsByTool[tool]++
		}
		if engine := event.Engine(); engine != "" {
			s.ByEngine[engine]++
		}
	}

	return s, nil
}
