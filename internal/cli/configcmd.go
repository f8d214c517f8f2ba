package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/preqstation-mcp/internal/core"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration resolved from defaults, the config file and
PREQSTATION_* environment variables. Secrets are masked.

The output is printed even when the configuration is invalid; the command
then exits non-zero with the validation error.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return fmt.Errorf("formatting config as YAML: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))

		mgr := core.NewConfigurationManager(configFile, configSearchPaths()...)
		if err := mgr.Validate(cfg); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
