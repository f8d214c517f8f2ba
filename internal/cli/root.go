package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/preqstation-mcp/internal/core"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Global flags.
var (
	configFile string
	logLevel   string
	logFormat  string
)

// initAnnotation on a command selects how services are initialized before
// it runs. Commands without it initialize nothing.
const initAnnotation = "preqstation.init"

const (
	// initValidated requires a complete configuration (token and API URL).
	initValidated = "validated"
	// initLenient skips validation; used by commands that only read the
	// local call journal.
	initLenient = "lenient"
)

var appCloser io.Closer

var rootCmd = &cobra.Command{
	Use:   "preqstation-mcp",
	Short: "PREQSTATION MCP server for AI coding agents",
	Long: `preqstation-mcp exposes the PREQSTATION task API as MCP tools over stdio,
so coding agents such as Claude Code, Codex and Gemini CLI can list, plan,
start, complete and block tasks.

Configuration is read from PREQSTATION_* environment variables and an optional
preqstation.yaml file. Without a subcommand the MCP server is started.`,
	Annotations:       map[string]string{initAnnotation: initValidated},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initServices,
	Args:              cobra.NoArgs,
	RunE:              runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "preqstation-mcp %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file (default: ./preqstation.yaml or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides PREQSTATION_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides PREQSTATION_LOG_FORMAT)")
	rootCmd.AddCommand(versionCmd)
}

// configSearchPaths lists the directories searched for preqstation.yaml
// when --config is not given.
func configSearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "preqstation"))
	}
	return paths
}

// loadConfig reads the configuration and applies flag overrides. When
// validate is set the result is checked and normalized.
func loadConfig(validate bool) (*models.Config, error) {
	mgr := core.NewConfigurationManager(configFile, configSearchPaths()...)
	cfg, err := mgr.Read()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(logLevel))
	}
	if logFormat != "" {
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(logFormat))
	}
	if validate {
		if err := mgr.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// initServices builds the services for commands annotated with
// initAnnotation.
func initServices(cmd *cobra.Command, _ []string) error {
	mode := cmd.Annotations[initAnnotation]
	if mode == "" {
		return nil
	}
	if AppInitializer == nil {
		return errors.New("app initializer not set")
	}

	cfg, err := loadConfig(mode == initValidated)
	if err != nil {
		return err
	}
	Config = cfg

	closer, err := AppInitializer(cfg)
	if err != nil {
		return err
	}
	appCloser = closer
	return nil
}

// Execute runs the root command and releases initialized services.
func Execute() error {
	err := rootCmd.Execute()
	if appCloser != nil {
		if closeErr := appCloser.Close(); err == nil {
			err = closeErr
		}
		appCloser = nil
	}
	return err
}
