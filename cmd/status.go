package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"blackbox-operator/internal/cli"
	"blackbox-operator/internal/config"
	"blackbox-operator/internal/reconciler"
)

var (
	statusOutput    string
	statusNoHeaders bool
)

// statusCmd shows the status persisted by the running operator.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the unit status recorded by the operator",
	Long: `Reads the status file written by the operator and prints it. A unit that
has never been reconciled is shown as waiting.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := cli.ValidateOutputFormat(statusOutput); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Status.Path == "" {
		return fmt.Errorf("status.path is not configured, the operator keeps its status in memory")
	}

	record, err := reconciler.ReadStatusFile(cfg.Status.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	view := cli.NewStatusView(cfg.Workload.Container, cfg.Workload.Service, record)
	return cli.WriteStatus(cmd.OutOrStdout(), cli.OutputFormat(statusOutput), view, statusNoHeaders)
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table, json, yaml)")
	statusCmd.Flags().BoolVar(&statusNoHeaders, "no-headers", false, "Suppress header row in table output")
}
