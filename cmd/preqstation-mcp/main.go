package main

import (
	"fmt"
	"io"
	"os"

	app "github.com/valter-silva-au/preqstation-mcp/internal"
	"github.com/valter-silva-au/preqstation-mcp/internal/cli"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)

	// Logs go to stderr; stdout carries the MCP stream.
	cli.AppInitializer = func(cfg *models.Config) (io.Closer, error) {
		a, err := app.NewApp(cfg, os.Stderr)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
