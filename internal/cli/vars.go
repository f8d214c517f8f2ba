package cli

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/valter-silva-au/preqstation-mcp/internal/core"
	"github.com/valter-silva-au/preqstation-mcp/internal/observability"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// AppInitializer builds the services from a loaded configuration and assigns
// the variables below. It is set by main.
var AppInitializer func(cfg *models.Config) (io.Closer, error)

// Config is the configuration the services were built from.
var Config *models.Config

// Service instances, set during app initialization in app.go.
var (
	Logger  = zerolog.Nop()
	TaskSvc core.TaskService
	TaskAPI core.TaskAPI
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	StatsCalc   observability.StatsCalculator
	AlertEngine observability.AlertEngine
	Notifier    observability.Notifier
)
