package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"blackbox-operator/internal/cli"
	"blackbox-operator/internal/config"
	"blackbox-operator/internal/scrape"
)

var (
	publishBindAddress string
	publishPath        string
)

// publishTargetsCmd announces the exporter's scrape target.
var publishTargetsCmd = &cobra.Command{
	Use:   "publish-targets",
	Short: "Publish the exporter scrape target into the relation data",
	Long: `Writes the exporter's scrape target, <bind-address>:<scrape.port>, as the
JSON "targets" list of the relation-data file consumed by Prometheus.

--bind-address and --path default to scrape.bindAddress and
scrape.relationDataPath from the configuration.`,
	Args: cobra.NoArgs,
	RunE: runPublishTargets,
}

func runPublishTargets(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	bindAddress := publishBindAddress
	if bindAddress == "" {
		bindAddress = cfg.Scrape.BindAddress
	}
	path := publishPath
	if path == "" {
		path = cfg.Scrape.RelationDataPath
	}
	if bindAddress == "" || path == "" {
		return fmt.Errorf("both a bind address and a relation data path are required")
	}

	if _, err := scrape.NewProvider(path, cfg.Scrape.Port).Publish(bindAddress); err != nil {
		return err
	}

	targets, err := scrape.Targets(path)
	if err != nil {
		return err
	}
	cli.WriteTargets(cmd.OutOrStdout(), targets)
	return nil
}

func init() {
	rootCmd.AddCommand(publishTargetsCmd)
	publishTargetsCmd.Flags().StringVar(&publishBindAddress, "bind-address", "", "IP address the exporter is reachable on")
	publishTargetsCmd.Flags().StringVar(&publishPath, "path", "", "Relation data file to write")
}
