package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/valter-silva-au/preqstation-mcp/internal/observability"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// Style definitions shared by the table commands and the dashboard.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	statusTodo       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusReview     = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusBlocked    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
)

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusTodo:
		return statusTodo
	case models.StatusInProgress:
		return statusInProgress
	case models.StatusReview:
		return statusReview
	case models.StatusDone:
		return statusDone
	case models.StatusBlocked:
		return statusBlocked
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity observability.AlertSeverity) lipgloss.Style {
	switch severity {
	case observability.SeverityHigh:
		return severityHigh
	case observability.SeverityMedium:
		return severityMedium
	case observability.SeverityLow:
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func severityTag(severity observability.AlertSeverity) string {
	return styleForSeverity(severity).Render("[" + strings.ToUpper(string(severity)) + "]")
}
