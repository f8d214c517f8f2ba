package core

import (
	"regexp"
	"strings"

	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// projectKeyPattern matches 1-20 uppercase alphanumerics, underscores or
// hyphens, starting with a letter or digit.
var projectKeyPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{0,19}$`)

// NormalizeProjectKey trims and uppercases key and checks it against the
// project key format.
func NormalizeProjectKey(key string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(key))
	if normalized == "" {
		return "", invalid("projectKey", "project key is required")
	}
	if !projectKeyPattern.MatchString(normalized) {
		return "", invalid("projectKey", "%q must be 1-20 characters of A-Z, 0-9, _ or - and start with a letter or digit", normalized)
	}
	return normalized, nil
}

// BelongsToProjectKey reports whether the task's ticket key (or id when no
// key is set) falls under projectKey, e.g. TEST-4 under TEST.
func BelongsToProjectKey(task *models.Task, projectKey string) bool {
	if task == nil || projectKey == "" {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(task.Key()), projectKey+"-")
}
