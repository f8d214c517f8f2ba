// Package internal provides the App struct that wires the components of the
// PREQSTATION MCP server together and hands them to the CLI layer.
package internal

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/valter-silva-au/preqstation-mcp/internal/cli"
	"github.com/valter-silva-au/preqstation-mcp/internal/core"
	"github.com/valter-silva-au/preqstation-mcp/internal/integration"
	"github.com/valter-silva-au/preqstation-mcp/internal/observability"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// App holds all service dependencies of the server.
type App struct {
	Config *models.Config
	Logger zerolog.Logger

	// Integration services
	Client *integration.PreqClient

	// Core services
	Resolver core.EngineResolver
	Tasks    core.TaskService

	// Observability
	Journal  observability.EventLog
	Stats    observability.StatsCalculator
	Alerts   observability.AlertEngine
	Notifier observability.Notifier
}

// NewApp creates and wires all components from a validated configuration.
// Logs are written to logOut, which must not be the MCP stdio stream.
func NewApp(cfg *models.Config, logOut io.Writer) (*App, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	app := &App{Config: cfg}

	// --- Observability ---
	logger, err := observability.NewLogger(cfg.Log, logOut)
	if err != nil {
		return nil, &core.ConfigError{Key: "log", Msg: err.Error()}
	}
	app.Logger = logger

	if cfg.EventLogPath != "" {
		app.Journal, err = observability.NewJSONLEventLog(cfg.EventLogPath)
		if err != nil {
			// Non-fatal: tool calls still work without a journal.
			logger.Warn().Err(err).Str("path", cfg.EventLogPath).Msg("call journal disabled")
			app.Journal = nil
		}
	}
	if app.Journal == nil {
		app.Journal = observability.NewNopEventLog()
	}
	app.Stats = observability.NewStatsCalculator(app.Journal)
	app.Alerts = observability.NewAlertEngine(app.Journal, alertThresholds(cfg.Alerts))
	if cfg.Alerts.SlackWebhook != "" {
		app.Notifier = observability.NewSlackNotifier(observability.SlackConfig{
			WebhookURL: cfg.Alerts.SlackWebhook,
			APIURL:     cfg.APIURL,
			Timeout:    cfg.HTTP.Timeout,
		})
	}

	// --- Integration services ---
	app.Client = integration.NewPreqClient(cfg.APIURL, cfg.Token, cfg.HTTP.Timeout)

	// --- Core services ---
	app.Resolver = core.NewEngineResolver(cfg.DefaultEngine)
	app.Tasks = core.NewTaskService(app.Client, app.Resolver)

	// --- Wire CLI package-level variables ---
	cli.Logger = app.Logger
	cli.TaskSvc = app.Tasks
	cli.TaskAPI = app.Client
	cli.EventLog = app.Journal
	cli.StatsCalc = app.Stats
	cli.AlertEngine = app.Alerts
	cli.Notifier = app.Notifier

	logger.Debug().
		Str("api_url", cfg.APIURL).
		Str("default_engine", string(cfg.DefaultEngine)).
		Dur("http_timeout", cfg.HTTP.Timeout).
		Msg("app initialized")

	return app, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a.Journal == nil {
		return nil
	}
	if err := a.Journal.Close(); err != nil {
		return fmt.Errorf("closing call journal: %w", err)
	}
	return nil
}

// alertThresholds maps the alert settings onto the engine thresholds,
// keeping the defaults for unset counts and durations. The failure rate is
// taken as configured since 0 is a valid setting that alerts on any failure.
func alertThresholds(a models.AlertConfig) observability.AlertThresholds {
	th := observability.DefaultAlertThresholds()
	th.FailureRate = a.FailureRate
	if a.Window > 0 {
		th.Window = a.Window
	}
	if a.MinCalls > 0 {
		th.MinCalls = a.MinCalls
	}
	if a.BlockedHours > 0 {
		th.BlockedHours = a.BlockedHours
	}
	if a.ReviewHours > 0 {
		th.ReviewHours = a.ReviewHours
	}
	return th
}
