package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"blackbox-operator/internal/app"
)

// runCmd starts the long-running operator.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the operator until interrupted",
	Long: `Runs the operator in the foreground. It watches the option store and the
supervisor socket, reconciles the exporter service on every change, serves
metrics when metrics.address is set and publishes the scrape target when
scrape.relationDataPath is set.

The process stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(app.NewConfig(debug, configPath))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	return application.Run(cmd.Context())
}

func init() {
	rootCmd.AddCommand(runCmd)
}
