package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(models.LogConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("tool", "preq_get_task").Msg("tool call")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "preqstation-mcp" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["tool"] != "preq_get_task" {
		t.Errorf("tool = %v", entry["tool"])
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(models.LogConfig{Level: "debug", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	logger.Debug().Msg("starting")
	if !strings.Contains(buf.String(), "starting") {
		t.Errorf("expected console output, got %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("text format should not emit JSON")
	}
}

func TestNewLogger_InvalidSettings(t *testing.T) {
	if _, err := NewLogger(models.LogConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewLogger(models.LogConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context returned %q", got)
	}

	id := NewRequestID()
	if len(id) != 36 {
		t.Errorf("request id %q is not a UUID", id)
	}
	if NewRequestID() == id {
		t.Error("request ids should be unique")
	}

	ctx := WithRequestID(context.Background(), id)
	if got := RequestIDFromContext(ctx); got != id {
		t.Errorf("RequestIDFromContext() = %q, want %q", got, id)
	}
}
