package cmd

import (
	"github.com/spf13/cobra"

	"github.com/llehouerou/bpmdata/cmd/createtables"
	"github.com/llehouerou/bpmdata/cmd/enrich"
	"github.com/llehouerou/bpmdata/cmd/promote"
	"github.com/llehouerou/bpmdata/cmd/scan"
	"github.com/llehouerou/bpmdata/cmd/serve"
	"github.com/llehouerou/bpmdata/internal/app"
)

// RootCommand creates and returns the root command
func RootCommand(actx *app.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bpmdata",
		Short:         "Fingerprint, tag and tempo-analyse a music library",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, actx)

	rootCmd.AddCommand(
		scan.Command(actx),
		createtables.Command(actx),
		promote.Command(actx),
		enrich.Command(actx),
		serve.Command(actx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return actx.Init()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, actx *app.Context) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&actx.ConfigPath, "config", "", "Path to a config file loaded after the default locations")
	flags.StringVar(&actx.Overrides.DatabaseDriver, "db-driver", "", "Database driver: sqlite or mysql")
	flags.StringVar(&actx.Overrides.DatabaseDSN, "db-dsn", "", "SQLite file path or MySQL DSN")
	flags.StringVar(&actx.Overrides.LogFile, "log-file", "", "Append-only log file")
	flags.StringVar(&actx.Overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVarP(&actx.Overrides.Debug, "debug", "d", false, "Enable debug output")
}
