package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// --- Helpers ---

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// clearEnv blanks every PREQSTATION_* variable the manager reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TOKEN", "API_URL", "ENGINE", "EVENT_LOG", "HTTP_TIMEOUT",
		"LOG_LEVEL", "LOG_FORMAT",
		"ALERTS_WINDOW", "ALERTS_FAILURE_RATE", "ALERTS_MIN_CALLS",
		"ALERTS_BLOCKED_HOURS", "ALERTS_REVIEW_HOURS", "ALERTS_SLACK_WEBHOOK",
	} {
		t.Setenv(EnvPrefix+"_"+key, "")
	}
}

func validConfig() *models.Config {
	return &models.Config{
		Token:  "tok",
		APIURL: "https://preq.example.com",
		HTTP:   models.HTTPConfig{Timeout: 30 * time.Second},
		Log:    models.LogConfig{Level: "info", Format: "text"},
		Alerts: models.AlertConfig{
			Window:       24 * time.Hour,
			FailureRate:  0.5,
			MinCalls:     5,
			BlockedHours: 24,
			ReviewHours:  72,
		},
	}
}

func assertConfigError(t *testing.T, err error, key string) {
	t.Helper()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
	if cfgErr.Key != key {
		t.Errorf("ConfigError.Key = %q, want %q", cfgErr.Key, key)
	}
}

// --- Read tests ---

func TestRead_Defaults_WhenNoFile(t *testing.T) {
	clearEnv(t)
	cm := NewConfigurationManager("", t.TempDir())

	cfg, err := cm.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Token != "" || cfg.APIURL != "" {
		t.Errorf("token/api_url should be empty, got %q/%q", cfg.Token, cfg.APIURL)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 30s", cfg.HTTP.Timeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
	if cfg.Alerts.Window != 24*time.Hour {
		t.Errorf("Alerts.Window = %v, want 24h", cfg.Alerts.Window)
	}
	if cfg.Alerts.FailureRate != 0.5 || cfg.Alerts.MinCalls != 5 {
		t.Errorf("Alerts = %+v", cfg.Alerts)
	}
	if cfg.Alerts.BlockedHours != 24 || cfg.Alerts.ReviewHours != 72 {
		t.Errorf("Alerts = %+v", cfg.Alerts)
	}
}

func TestRead_FromSearchPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "preqstation.yaml", `
token: file-token
api_url: https://preq.example.com
engine: gemini
event_log: /var/log/preq/calls.jsonl
http:
  timeout: 5s
log:
  level: DEBUG
  format: json
alerts:
  window: 12h
  failure_rate: 0.25
  min_calls: 3
  blocked_hours: 8
  review_hours: 48
  slack_webhook: https://hooks.slack.com/services/x
`)

	cfg, err := NewConfigurationManager("", dir).Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Token != "file-token" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if cfg.DefaultEngine != models.EngineGemini {
		t.Errorf("DefaultEngine = %q", cfg.DefaultEngine)
	}
	if cfg.EventLogPath != "/var/log/preq/calls.jsonl" {
		t.Errorf("EventLogPath = %q", cfg.EventLogPath)
	}
	if cfg.HTTP.Timeout != 5*time.Second {
		t.Errorf("HTTP.Timeout = %v", cfg.HTTP.Timeout)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want lowercased debug/json", cfg.Log)
	}
	want := models.AlertConfig{
		Window: 12 * time.Hour, FailureRate: 0.25, MinCalls: 3, BlockedHours: 8, ReviewHours: 48,
		SlackWebhook: "https://hooks.slack.com/services/x",
	}
	if cfg.Alerts != want {
		t.Errorf("Alerts = %+v, want %+v", cfg.Alerts, want)
	}
}

func TestRead_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", "token: file-token\napi_url: https://file.example.com\n")

	t.Setenv("PREQSTATION_TOKEN", "  env-token  ")
	t.Setenv("PREQSTATION_HTTP_TIMEOUT", "2s")
	t.Setenv("PREQSTATION_ALERTS_MIN_CALLS", "9")

	cfg, err := NewConfigurationManager(path).Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Token != "env-token" {
		t.Errorf("Token = %q, want trimmed env value", cfg.Token)
	}
	if cfg.APIURL != "https://file.example.com" {
		t.Errorf("APIURL = %q, want file value", cfg.APIURL)
	}
	if cfg.HTTP.Timeout != 2*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 2s", cfg.HTTP.Timeout)
	}
	if cfg.Alerts.MinCalls != 9 {
		t.Errorf("Alerts.MinCalls = %d, want 9", cfg.Alerts.MinCalls)
	}
}

func TestRead_ExplicitFileMissing(t *testing.T) {
	clearEnv(t)
	_, err := NewConfigurationManager(filepath.Join(t.TempDir(), "missing.yaml")).Read()
	if err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRead_MalformedFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "bad.yaml", "token: [unclosed\n")
	if _, err := NewConfigurationManager(path).Read(); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestRead_NoSearchPathsUsesEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("PREQSTATION_API_URL", "https://env.example.com")

	cfg, err := NewConfigurationManager("").Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://env.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
}

// --- Validate tests ---

func TestValidate_NormalizesValues(t *testing.T) {
	cfg := validConfig()
	cfg.APIURL = "HTTPS://Preq.Example.com/"
	cfg.DefaultEngine = " Codex "

	if err := NewConfigurationManager("").Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://preq.example.com" {
		t.Errorf("APIURL = %q, want normalized", cfg.APIURL)
	}
	if cfg.DefaultEngine != models.EngineCodex {
		t.Errorf("DefaultEngine = %q, want codex", cfg.DefaultEngine)
	}
}

func TestValidate_DefaultEngineFallback(t *testing.T) {
	cfg := validConfig()
	if err := NewConfigurationManager("").Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultEngine != models.DefaultEngine {
		t.Errorf("DefaultEngine = %q, want %q", cfg.DefaultEngine, models.DefaultEngine)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Config)
		key    string
	}{
		{"missing token", func(c *models.Config) { c.Token = "" }, "token"},
		{"missing api url", func(c *models.Config) { c.APIURL = "" }, "api_url"},
		{"plain http remote", func(c *models.Config) { c.APIURL = "http://preq.example.com" }, "api_url"},
		{"relative url", func(c *models.Config) { c.APIURL = "preq.example.com" }, "api_url"},
		{"unknown engine", func(c *models.Config) { c.DefaultEngine = "copilot" }, "engine"},
		{"zero timeout", func(c *models.Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"bad log format", func(c *models.Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero alert window", func(c *models.Config) { c.Alerts.Window = 0 }, "alerts.window"},
		{"failure rate above 1", func(c *models.Config) { c.Alerts.FailureRate = 1.5 }, "alerts.failure_rate"},
		{"negative failure rate", func(c *models.Config) { c.Alerts.FailureRate = -0.1 }, "alerts.failure_rate"},
		{"zero min calls", func(c *models.Config) { c.Alerts.MinCalls = 0 }, "alerts"},
		{"zero review hours", func(c *models.Config) { c.Alerts.ReviewHours = 0 }, "alerts"},
		{"http webhook", func(c *models.Config) { c.Alerts.SlackWebhook = "http://hooks.slack.com/x" }, "alerts.slack_webhook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := NewConfigurationManager("").Validate(cfg)
			assertConfigError(t, err, tt.key)
		})
	}
}

func TestValidate_MissingTokenMessage(t *testing.T) {
	cfg := validConfig()
	cfg.Token = ""
	err := NewConfigurationManager("").Validate(cfg)
	if err == nil || err.Error() != "PREQSTATION MCP server requires PREQSTATION_TOKEN." {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_Nil(t *testing.T) {
	assertConfigError(t, NewConfigurationManager("").Validate(nil), "")
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "preqstation.yaml", "token: t\napi_url: http://localhost:3000/\n")

	cfg, err := NewConfigurationManager("", dir).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "http://localhost:3000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}

	writeFile(t, dir, "preqstation.yaml", "api_url: http://localhost:3000/\n")
	if _, err := NewConfigurationManager("", dir).Load(); err == nil {
		t.Error("Load should validate")
	}
}

// --- NormalizeAPIURL tests ---

func TestNormalizeAPIURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://preq.example.com", "https://preq.example.com", false},
		{"https://preq.example.com/", "https://preq.example.com", false},
		{"  https://preq.example.com/api/  ", "https://preq.example.com/api", false},
		{"HTTPS://PREQ.example.com", "https://preq.example.com", false},
		{"http://localhost:3000", "http://localhost:3000", false},
		{"http://127.0.0.1:8080/", "http://127.0.0.1:8080", false},
		{"http://[::1]:8080", "http://[::1]:8080", false},
		{"http://preq.example.com", "", true},
		{"ftp://preq.example.com", "", true},
		{"not a url", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeAPIURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeAPIURL(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAPIURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
