package core

import (
	"testing"

	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

func TestParseEngine(t *testing.T) {
	tests := []struct {
		in   string
		want models.Engine
		ok   bool
	}{
		{"claude", models.EngineClaude, true},
		{" Codex ", models.EngineCodex, true},
		{"GEMINI", models.EngineGemini, true},
		{"copilot", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseEngine(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseEngine(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDetectEngine(t *testing.T) {
	tests := map[string]models.Engine{
		"claude-code":      models.EngineClaude,
		"Claude Desktop":   models.EngineClaude,
		"gemini-cli-mcp":   models.EngineGemini,
		"codex-mcp-client": models.EngineCodex,
		"OpenAI Agents":    models.EngineCodex,
		"chatgpt":          models.EngineCodex,
		"cursor":           "",
		"":                 "",
	}
	for name, want := range tests {
		if got := DetectEngine(name); got != want {
			t.Errorf("DetectEngine(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestNewEngineResolver_InvalidDefault(t *testing.T) {
	if r := NewEngineResolver("copilot"); r.Default != models.DefaultEngine {
		t.Errorf("Default = %q, want %q", r.Default, models.DefaultEngine)
	}
	if r := NewEngineResolver("Gemini"); r.Default != models.EngineGemini {
		t.Errorf("Default = %q, want gemini", r.Default)
	}
}

func TestEngineResolver_Precedence(t *testing.T) {
	r := NewEngineResolver(models.EngineGemini)

	tests := []struct {
		name     string
		explicit string
		fallback string
		detected models.Engine
		want     models.Engine
	}{
		{"explicit first", "codex", "claude", models.EngineGemini, models.EngineCodex},
		{"task engine second", "", "claude", models.EngineCodex, models.EngineClaude},
		{"detected third", "", "", models.EngineCodex, models.EngineCodex},
		{"configured default last", "", "", "", models.EngineGemini},
		{"invalid explicit falls through to task engine", "nope", "Codex", models.EngineClaude, models.EngineCodex},
		{"invalid candidates skipped", "nope", "also-nope", "", models.EngineGemini},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.explicit, tt.fallback, tt.detected); got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}
