package internal

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/preqstation-mcp/internal/cli"
	"github.com/valter-silva-au/preqstation-mcp/internal/core"
	"github.com/valter-silva-au/preqstation-mcp/internal/observability"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

func testConfig(t *testing.T) *models.Config {
	t.Helper()
	return &models.Config{
		Token:         "secret",
		APIURL:        "http://localhost:3000",
		DefaultEngine: models.EngineCodex,
		HTTP:          models.HTTPConfig{Timeout: 5 * time.Second},
		Log:           models.LogConfig{Level: "debug", Format: "json"},
	}
}

func TestNewApp_Success(t *testing.T) {
	var logs bytes.Buffer
	cfg := testConfig(t)
	cfg.EventLogPath = filepath.Join(t.TempDir(), "calls.jsonl")

	app, err := NewApp(cfg, &logs)
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	defer func() { _ = app.Close() }()

	if app.Tasks == nil || app.Client == nil || app.Stats == nil {
		t.Fatal("expected services to be wired")
	}
	if app.Resolver.Default != models.EngineCodex {
		t.Errorf("resolver default = %s, want codex", app.Resolver.Default)
	}
	if cli.TaskSvc != app.Tasks {
		t.Error("cli.TaskSvc should be wired to the app task service")
	}
	if logs.Len() == 0 {
		t.Error("expected a debug log line on startup")
	}

	if err := app.Journal.Write(observability.Event{Time: time.Now(), Level: observability.LevelInfo, Type: "tool.preq_get_task"}); err != nil {
		t.Fatalf("journal write: %v", err)
	}
	stats, err := app.Stats.Calculate(observability.EventFilter{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Calls != 1 {
		t.Errorf("calls = %d, want 1", stats.Calls)
	}
}

func TestNewApp_NoJournalPathUsesNop(t *testing.T) {
	app, err := NewApp(testConfig(t), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}

	events, err := app.Journal.Read(observability.EventFilter{})
	if err != nil || len(events) != 0 {
		t.Errorf("nop journal returned %v, %v", events, err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestNewApp_UnwritableJournalIsNonFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventLogPath = filepath.Join(t.TempDir(), "missing", "dir", "calls.jsonl")

	app, err := NewApp(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	if app.Journal == nil {
		t.Fatal("expected a fallback journal")
	}
}

func TestNewApp_InvalidLogLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Level = "verbose"

	_, err := NewApp(cfg, &bytes.Buffer{})
	var cfgErr *core.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestNewApp_NilConfig(t *testing.T) {
	if _, err := NewApp(nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewApp_SlackNotifierOnlyWhenConfigured(t *testing.T) {
	app, err := NewApp(testConfig(t), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	if app.Notifier != nil {
		t.Error("expected no notifier without a webhook")
	}

	cfg := testConfig(t)
	cfg.Alerts.SlackWebhook = "https://hooks.slack.com/services/T/B/X"
	app, err = NewApp(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	if app.Notifier == nil || app.Alerts == nil {
		t.Error("expected alert engine and notifier to be wired")
	}
}

func TestAlertThresholds(t *testing.T) {
	th := alertThresholds(models.AlertConfig{BlockedHours: 6, FailureRate: 0.25})
	def := observability.DefaultAlertThresholds()

	if th.BlockedHours != 6 || th.FailureRate != 0.25 {
		t.Errorf("configured values not applied: %+v", th)
	}
	if th.Window != def.Window || th.MinCalls != def.MinCalls || th.ReviewHours != def.ReviewHours {
		t.Errorf("unset values should keep defaults: %+v", th)
	}
}

func TestAlertThresholds_ZeroFailureRate(t *testing.T) {
	th := alertThresholds(models.AlertConfig{FailureRate: 0, MinCalls: 2})
	if th.FailureRate != 0 {
		t.Errorf("FailureRate = %g, want the configured 0", th.FailureRate)
	}
	if th.MinCalls != 2 {
		t.Errorf("MinCalls = %d, want 2", th.MinCalls)
	}
}

func TestNewApp_ZeroFailureRateAlertsOnAnyFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventLogPath = filepath.Join(t.TempDir(), "calls.jsonl")
	cfg.Alerts.FailureRate = 0
	cfg.Alerts.MinCalls = 1

	app, err := NewApp(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	defer app.Close()

	now := time.Now().UTC()
	for _, level := range []string{observability.LevelInfo, observability.LevelInfo, observability.LevelError} {
		event := observability.Event{Time: now, Level: level, Type: observability.ToolEventType("preq_get_task"), Message: "x"}
		if err := app.Journal.Write(event); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	alerts, err := app.Alerts.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Condition != "tool_failure_rate" {
		t.Errorf("alerts = %+v, want one tool_failure_rate alert", alerts)
	}
}
