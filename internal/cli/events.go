package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/preqstation-mcp/internal/observability"
)

var (
	eventsSince  string
	eventsTool   string
	eventsTask   string
	eventsErrors bool
	eventsStats  bool
	eventsJSON   bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recorded MCP tool calls",
	Long: `Read the call journal written by the MCP server when PREQSTATION_EVENT_LOG
is set. Each entry records the tool, outcome, task id, engine, duration and
request id of one call.

Use --task to follow one ticket across tools and --stats for per-tool and
per-engine counts instead of the entries.`,
	Annotations: map[string]string{initAnnotation: initLenient},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if EventLog == nil || StatsCalc == nil {
			return fmt.Errorf("call journal not initialized")
		}
		if Config != nil && Config.EventLogPath == "" {
			return fmt.Errorf("call journal disabled: set PREQSTATION_EVENT_LOG or event_log in the config file")
		}

		since, err := parseSinceDuration(eventsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		filter := observability.EventFilter{Since: &since}
		if eventsTool != "" {
			filter.Type = observability.ToolEventType(eventsTool)
		}
		if eventsTask != "" {
			filter.TaskID = eventsTask
		}
		if eventsErrors {
			filter.Level = observability.LevelError
		}

		out := cmd.OutOrStdout()

		if eventsStats {
			stats, err := StatsCalc.Calculate(filter)
			if err != nil {
				return fmt.Errorf("calculating call stats: %w", err)
			}
			if eventsJSON {
				return printJSON(cmd, stats)
			}
			printStats(cmd, since, stats)
			return nil
		}

		events, err := EventLog.Read(filter)
		if err != nil {
			return fmt.Errorf("reading call journal: %w", err)
		}
		if eventsJSON {
			if events == nil {
				events = []observability.Event{}
			}
			return printJSON(cmd, events)
		}

		if len(events) == 0 {
			fmt.Fprintf(out, "No calls recorded since %s.\n", since.Format(time.RFC3339))
			return nil
		}
		for _, e := range events {
			outcome := okStyle.Render("ok")
			if e.Failed() {
				outcome = failStyle.Render("error") + " " + e.Message
			}
			fmt.Fprintf(out, "%s  %-20s %-10s %-8s %s\n",
				e.Time.Local().Format("2006-01-02 15:04:05"), e.Tool(), e.TaskRef(), e.Engine(), outcome)
		}
		return nil
	},
}

func printStats(cmd *cobra.Command, since time.Time, stats *observability.CallStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Tool calls (since %s)\n\n", since.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "  %-24s %d\n", "Calls:", stats.Calls)
	fmt.Fprintf(out, "  %-24s %d\n", "Failures:", stats.Failures)

	if len(stats.CallsByTool) > 0 {
		fmt.Fprintln(out, "\n  By tool:")
		for _, tool := range sortedKeys(stats.CallsByTool) {
			fmt.Fprintf(out, "    %-22s %d calls, %d failed\n", tool+":", stats.CallsByTool[tool], stats.FailsByTool[tool])
		}
	}
	if len(stats.ByEngine) > 0 {
		fmt.Fprintln(out, "\n  By engine:")
		for _, engine := range sortedKeys(stats.ByEngine) {
			fmt.Fprintf(out, "    %-22s %d\n", engine+":", stats.ByEngine[engine])
		}
	}
	if stats.OldestEvent != nil {
		fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest call:", stats.OldestEvent.Format(time.RFC3339))
	}
	if stats.NewestEvent != nil {
		fmt.Fprintf(out, "  %-24s %s\n", "Newest call:", stats.NewestEvent.Format(time.RFC3339))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting as JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// "24h" or "90m" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Add(-24 * time.Hour), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 0 {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 24h, 90m)", s)
	}
	return now.Add(-d), nil
}

func init() {
	eventsCmd.Flags().StringVar(&eventsSince, "since", "24h", "Time window (e.g. 7d, 24h, 90m)")
	eventsCmd.Flags().StringVar(&eventsTool, "tool", "", "Only calls of this tool, e.g. preq_complete_task")
	eventsCmd.Flags().StringVar(&eventsTask, "task", "", "Only calls about this task, e.g. TEST-4 (case-insensitive)")
	eventsCmd.Flags().BoolVar(&eventsErrors, "errors", false, "Only failed calls")
	eventsCmd.Flags().BoolVar(&eventsStats, "stats", false, "Show aggregated counts instead of entries")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(eventsCmd)
}
