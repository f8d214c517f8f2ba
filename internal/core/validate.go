package core

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// Field length caps applied before any request is sent.
const (
	MaxTaskIDLen      = 200
	MaxTitleLen       = 180
	MaxRepoLen        = 300
	MaxBranchLen      = 200
	MaxAssigneeLen    = 120
	MaxDescriptionLen = 50000
	MaxNotesLen       = 8000
	MaxSummaryLen     = 4000
	MaxLabelLen       = 40
	MaxLabels         = 20
	MaxCriterionLen   = 200
	MaxCriteria       = 50
	MinListLimit      = 1
	MaxListLimit      = 200
)

// requiredText trims v and requires 1..max characters.
func requiredText(field, v string, max int) (string, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", invalid(field, "must not be empty")
	}
	if utf8.RuneCountInString(s) > max {
		return "", invalid(field, "must be at most %d characters", max)
	}
	return s, nil
}

// optionalText trims v and returns an unset Optional when it is empty.
func optionalText(field, v string, max int) (models.Optional[string], error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return models.Optional[string]{}, nil
	}
	if utf8.RuneCountInString(s) > max {
		return models.Optional[string]{}, invalid(field, "must be at most %d characters", max)
	}
	return models.Some(s), nil
}

// stringList trims every entry and enforces per-entry and count caps. A nil
// input stays unset; an explicitly empty list is sent as [].
func stringList(field string, items []string, maxItems, maxLen int) (models.Optional[[]string], error) {
	if items == nil {
		return models.Optional[[]string]{}, nil
	}
	if len(items) > maxItems {
		return models.Optional[[]string]{}, invalid(field, "must contain at most %d entries", maxItems)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s := strings.TrimSpace(item)
		if s == "" {
			return models.Optional[[]string]{}, invalid(field, "entries must not be empty")
		}
		if utf8.RuneCountInString(s) > maxLen {
			return models.Optional[[]string]{}, invalid(field, "entries must be at most %d characters", maxLen)
		}
		out = append(out, s)
	}
	return models.Some(out), nil
}

func normalizeTaskID(v string) (string, error) {
	return requiredText("taskId", v, MaxTaskIDLen)
}

func parseStatus(v string) (models.TaskStatus, error) {
	s := models.TaskStatus(strings.TrimSpace(v))
	if s == "" {
		return "", nil
	}
	if !s.IsValid() {
		return "", invalid("status", "%q is not one of todo, in_progress, review, done, blocked", s)
	}
	return s, nil
}

func parsePriority(v string) (models.Optional[models.Priority], error) {
	p := models.Priority(strings.ToLower(strings.TrimSpace(v)))
	if p == "" {
		return models.Optional[models.Priority]{}, nil
	}
	if !p.IsValid() {
		return models.Optional[models.Priority]{}, invalid("priority", "%q is not one of highest, high, medium, none, low, lowest", p)
	}
	return models.Some(p), nil
}

// parseExplicitEngine rejects engine literals that are not recognized rather
// than letting the resolver skip them silently.
func parseExplicitEngine(v string) (string, error) {
	if strings.TrimSpace(v) == "" {
		return "", nil
	}
	e, ok := ParseEngine(v)
	if !ok {
		return "", invalid("engine", "%q is not one of %s", strings.TrimSpace(v), engineList())
	}
	return string(e), nil
}

func parsePRURL(v string) (string, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", nil
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", invalid("prUrl", "%q must be an absolute http(s) URL", s)
	}
	return s, nil
}
