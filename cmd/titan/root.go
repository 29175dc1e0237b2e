package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/TitanMedia/internal/config"
)

// EnvConfig names the studio.yaml used when --config is not given.
const EnvConfig = "TITAN_CONFIG"

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "titan",
		Short: "Titan studio core",
		Long: `Titan drives a compositing engine for live production: scenes and
sources, Program/Preview switching, persistence, metering, and the
streaming platform integration, all behind an HTTP control API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", os.Getenv(EnvConfig),
		"path to studio.yaml (defaults apply when empty)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newEventsCommand(opts))
	cmd.AddCommand(newEngineSimCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// load reads the configured studio.yaml, or the defaults.
func (o *rootOptions) load() (*config.StudioConfig, error) {
	if o.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.LoadStudioConfig(o.ConfigPath)
}
