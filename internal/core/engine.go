package core

import (
	"strings"

	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// ParseEngine returns the engine named by s, ignoring case and surrounding
// whitespace.
func ParseEngine(s string) (models.Engine, bool) {
	e := models.Engine(strings.ToLower(strings.TrimSpace(s)))
	if !e.IsValid() {
		return "", false
	}
	return e, true
}

// DetectEngine infers the engine from an MCP client's self-reported name.
// It returns "" when the name matches no known engine.
func DetectEngine(clientName string) models.Engine {
	name := strings.ToLower(clientName)
	switch {
	case strings.Contains(name, "claude"):
		return models.EngineClaude
	case strings.Contains(name, "gemini"):
		return models.EngineGemini
	case strings.Contains(name, "codex"),
		strings.Contains(name, "openai"),
		strings.Contains(name, "chatgpt"):
		return models.EngineCodex
	default:
		return ""
	}
}

// EngineResolver picks the engine acting on a task.
type EngineResolver struct {
	// Default is the configured fallback. An invalid value is replaced by
	// models.DefaultEngine.
	Default models.Engine
}

// NewEngineResolver creates a resolver with the given configured default.
func NewEngineResolver(defaultEngine models.Engine) EngineResolver {
	if e, ok := ParseEngine(string(defaultEngine)); ok {
		return EngineResolver{Default: e}
	}
	return EngineResolver{Default: models.DefaultEngine}
}

// Resolve returns the first valid engine among explicit, fallback and the
// engine detected for the current session, then the configured default.
// Invalid candidates are skipped, so the result is always a valid engine.
func (r EngineResolver) Resolve(explicit, fallback string, detected models.Engine) models.Engine {
	for _, candidate := range []string{explicit, fallback, string(detected), string(r.Default)} {
		if e, ok := ParseEngine(candidate); ok {
			return e
		}
	}
	return models.DefaultEngine
}

func engineList() string {
	names := make([]string, len(models.Engines))
	for i, e := range models.Engines {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}
