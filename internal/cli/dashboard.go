package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/preqstation-mcp/internal/observability"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// Dashboard panel indices.
const (
	panelTasks = iota
	panelCalls
	panelAlerts
	panelCount
)

// dashboardRefresh is the interval between automatic reloads.
const dashboardRefresh = 30 * time.Second

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	taskCounts map[models.TaskStatus]int
	calls      *callsSnapshot
	alerts     []observability.Alert
	loadedAt   time.Time

	// State.
	loading bool
	err     error
}

type callsSnapshot struct {
	calls    int
	failures int
	byEngine map[string]int
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	taskCounts map[models.TaskStatus]int
	calls      *callsSnapshot
	alerts     []observability.Alert
	err        error
}

type tickMsg time.Time

var (
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelTasks,
		loading:     true,
		taskCounts:  make(map[models.TaskStatus]int),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(loadData, tick())
}

func tick() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(loadData, tick())

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.taskCounts = msg.taskCounts
		m.calls = msg.calls
		m.alerts = msg.alerts
		m.loadedAt = time.Now()
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" PREQSTATION ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	panels := []string{m.renderTasksPanel(), m.renderCallsPanel(), m.renderAlertsPanel()}

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / panelCount
		for i := range panels {
			panels[i] = m.applyPanelStyle(i, panels[i], colWidth-4)
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, panels...)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		for i := range panels {
			panels[i] = m.applyPanelStyle(i, panels[i], panelWidth)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, panels...)
	}

	if !m.loadedAt.IsZero() {
		help = helpStyle.Render("updated "+m.loadedAt.Format("15:04:05")+" | ") + help
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderTasksPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Tasks"))
	b.WriteString("\n\n")

	total := 0
	for _, c := range m.taskCounts {
		total += c
	}
	if total == 0 {
		b.WriteString("  No tasks found.")
		return b.String()
	}

	for _, status := range models.TaskStatuses {
		count := m.taskCounts[status]
		if count == 0 {
			continue
		}
		label := fmt.Sprintf("  %-14s %d", status, count)
		b.WriteString(styleForStatus(status).Render(label))
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d", total))

	return b.String()
}

func (m dashboardModel) renderCallsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Tool calls (24h)"))
	b.WriteString("\n\n")

	if m.calls == nil {
		b.WriteString("  Call journal disabled.")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Calls", m.calls.calls))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Failures", m.calls.failures))
	for _, engine := range sortedKeys(m.calls.byEngine) {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", engine, m.calls.byEngine[engine]))
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		b.WriteString(fmt.Sprintf("  %s %s\n", severityTag(a.Severity), a.Message))
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func loadData() tea.Msg {
	result := dataLoadedMsg{
		taskCounts: make(map[models.TaskStatus]int),
	}

	if TaskAPI != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		tasks, err := TaskAPI.ListTasks(ctx, models.TaskQuery{})
		if err != nil {
			result.err = fmt.Errorf("loading tasks: %w", err)
			return result
		}
		for _, t := range tasks {
			result.taskCounts[t.Status]++
		}
	}

	if StatsCalc != nil && Config != nil && Config.EventLogPath != "" {
		since := time.Now().UTC().Add(-24 * time.Hour)
		stats, err := StatsCalc.Calculate(observability.EventFilter{Since: &since})
		if err != nil {
			result.err = fmt.Errorf("loading call stats: %w", err)
			return result
		}
		result.calls = &callsSnapshot{
			calls:    stats.Calls,
			failures: stats.Failures,
			byEngine: stats.ByEngine,
		}
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		result.alerts = alerts
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI showing tasks, tool calls and alerts",
	Long: `Launch an interactive terminal dashboard with task counts by status from the
PREQSTATION API, tool-call counts from the call journal and active alerts.

The view refreshes every 30 seconds. Navigate between panels with Tab,
refresh with r, quit with q.`,
	Annotations: map[string]string{initAnnotation: initValidated},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskAPI == nil {
			return fmt.Errorf("task API client not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
