package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	preqmcp "github.com/valter-silva-au/preqstation-mcp/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the PREQSTATION MCP server on stdio transport.

The server exposes these tools: preq_list_tasks, preq_get_task,
preq_plan_task, preq_create_task, preq_start_task, preq_complete_task and
preq_block_task. Stdout carries the MCP stream; logs go to stderr.`,
	Annotations: map[string]string{initAnnotation: initValidated},
	Args:        cobra.NoArgs,
	RunE:        runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if TaskSvc == nil {
		return fmt.Errorf("task service not initialized")
	}

	srv := preqmcp.NewServer(TaskSvc, EventLog, Logger, appVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	Logger.Info().Str("version", appVersion).Msg("serving MCP on stdio")
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("running MCP server: %w", err)
	}
	Logger.Info().Msg("MCP server stopped")

	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
