package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/preqstation-mcp/internal/core"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

var (
	tasksStatus  string
	tasksLabel   string
	tasksProject string
	tasksEngine  string
	tasksLimit   int
	tasksJSON    bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect PREQSTATION tasks from the terminal",
	Long: `Query the PREQSTATION task API with the same validation and filtering the
MCP tools use. Useful for checking what an agent will see.`,
}

var tasksListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List tasks",
	Annotations: map[string]string{initAnnotation: initValidated},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return fmt.Errorf("task service not initialized")
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		result, err := TaskSvc.ListTasks(ctx, core.Session{}, core.ListTasksOpts{
			Status:     tasksStatus,
			Label:      tasksLabel,
			ProjectKey: tasksProject,
			Engine:     tasksEngine,
			Limit:      tasksLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if tasksJSON {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting tasks as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if result.Count == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}

		writeTaskTable(out, result.Tasks)

		summary := fmt.Sprintf("\n%d shown, %d matched, %d total", result.Count, result.Matched, result.Total)
		if result.ProjectKey != "" {
			summary += " (project " + result.ProjectKey + ")"
		}
		fmt.Fprintln(out, helpStyle.Render(summary))
		return nil
	},
}

// writeTaskTable prints tasks as a borderless table. Column widths are
// measured without color escapes, so styled status cells stay aligned.
func writeTaskTable(out io.Writer, tasks []models.TaskSummary) {
	cell := lipgloss.NewStyle().PaddingRight(2)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers("KEY", "STATUS", "PRIORITY", "ENGINE", "TITLE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow || col != 1 {
				return cell
			}
			return styleForStatus(tasks[row].Status).PaddingRight(2)
		})

	for _, task := range tasks {
		key := task.TaskKey
		if key == "" {
			key = task.ID
		}
		t.Row(key, string(task.Status), string(task.Priority), string(task.Engine), task.Title)
	}
	fmt.Fprintln(out, t.Render())
}

var tasksGetCmd = &cobra.Command{
	Use:         "get <task-id>",
	Short:       "Show the full payload of one task",
	Annotations: map[string]string{initAnnotation: initValidated},
	Args:        cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return fmt.Errorf("task service not initialized")
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		raw, err := TaskSvc.GetTask(ctx, core.Session{}, args[0])
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			buf.Reset()
			buf.Write(raw)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(buf.String()))
		return nil
	},
}

func init() {
	tasksListCmd.Flags().StringVar(&tasksStatus, "status", "", "Filter by status (todo, in_progress, review, done, blocked)")
	tasksListCmd.Flags().StringVar(&tasksLabel, "label", "", "Filter by label")
	tasksListCmd.Flags().StringVar(&tasksProject, "project", "", "Only tasks under this project key, e.g. TEST")
	tasksListCmd.Flags().StringVar(&tasksEngine, "engine", "", "Filter by engine (claude, codex, gemini)")
	tasksListCmd.Flags().IntVar(&tasksLimit, "limit", 0, "Maximum number of tasks to show (1-200)")
	tasksListCmd.Flags().BoolVar(&tasksJSON, "json", false, "Output as JSON")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksGetCmd)
	rootCmd.AddCommand(tasksCmd)
}
