package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/preqstation-mcp/internal/observability"
)

var (
	alertsNotify bool
	alertsJSON   bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show alerts derived from the call journal",
	Long: `Evaluate alert conditions against the call journal and display any triggered
alerts.

Alerts fire for tools failing above the configured rate, tasks this server
blocked that stayed blocked too long, and tasks submitted for review that were
not picked up. With --notify the alerts are also posted to the configured
Slack webhook (alerts.slack_webhook).`,
	Annotations: map[string]string{initAnnotation: initLenient},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		out := cmd.OutOrStdout()
		if alertsJSON {
			if alerts == nil {
				alerts = []observability.Alert{}
			}
			if err := printJSON(cmd, alerts); err != nil {
				return err
			}
		} else if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
		} else {
			fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
			for _, alert := range alerts {
				fmt.Fprintf(out, "  %s %s\n", severityTag(alert.Severity), alert.Message)
				fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
			}
		}

		if alertsNotify {
			if Notifier == nil {
				return fmt.Errorf("notifier not configured: set alerts.slack_webhook")
			}
			if err := Notifier.Notify(alerts); err != nil {
				return fmt.Errorf("sending notification: %w", err)
			}
			if len(alerts) > 0 {
				fmt.Fprintf(out, "Sent %d alert(s) to Slack.\n", len(alerts))
			}
		}

		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post the alerts to the configured Slack webhook")
	alertsCmd.Flags().BoolVar(&alertsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(alertsCmd)
}
