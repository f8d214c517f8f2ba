package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and test the PREQSTATION API connection",
	Long: `Validate the configuration the MCP server would start with, then call
GET /api/tasks once to confirm the API URL and token are accepted.

Exits non-zero when any check fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := loadConfig(true)
		if err != nil {
			report(out, false, "configuration", err.Error())
			return errors.New("check failed")
		}
		report(out, true, "configuration", fmt.Sprintf("api %s, default engine %s", cfg.APIURL, cfg.DefaultEngine))

		if TaskAPI == nil {
			if AppInitializer == nil {
				return errors.New("app initializer not set")
			}
			closer, err := AppInitializer(cfg)
			if err != nil {
				report(out, false, "services", err.Error())
				return errors.New("check failed")
			}
			defer func() { _ = closer.Close() }()
		}

		count, elapsed, err := pingAPI(cmd.Context())
		if err != nil {
			report(out, false, "api", err.Error())
			return errors.New("check failed")
		}
		report(out, true, "api", fmt.Sprintf("%d task(s) visible, %s", count, elapsed.Round(time.Millisecond)))

		if cfg.EventLogPath != "" {
			report(out, true, "call journal", cfg.EventLogPath)
		} else {
			report(out, true, "call journal", "disabled")
		}
		return nil
	},
}

// pingAPI lists tasks once and reports how many are visible to the token.
func pingAPI(ctx context.Context) (int, time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	tasks, err := TaskAPI.ListTasks(ctx, models.TaskQuery{})
	if err != nil {
		return 0, 0, err
	}
	return len(tasks), time.Since(start), nil
}

func report(w io.Writer, ok bool, name, detail string) {
	tag := okStyle.Render("OK  ")
	if !ok {
		tag = failStyle.Render("FAIL")
	}
	fmt.Fprintf(w, "%s %-14s %s\n", tag, name, detail)
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "Timeout for the API connection check")
	rootCmd.AddCommand(checkCmd)
}
