package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"blackbox-operator/internal/config"
	"blackbox-operator/internal/render"
)

// renderCmd prints the exporter config that would be pushed.
var renderCmd = &cobra.Command{
	Use:   "render [FILE]",
	Short: "Render modules text into the exporter config",
	Long: `Renders modules text into the blackbox exporter config document and prints
it. FILE holds the modules text; use - to read it from stdin. Without FILE
the modules option is read from the configured option store.

Invalid YAML is reported with the same message the unit would be blocked
with.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	raw, err := readModules(cmd, args)
	if err != nil {
		return err
	}

	rendered, err := render.Render(raw)
	if err != nil {
		return err
	}
	if len(rendered.Dropped) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: ignoring top-level keys %v next to %s\n", rendered.Dropped, render.ModulesKey)
	}

	_, err = cmd.OutOrStdout().Write(rendered.Bytes())
	return err
}

func readModules(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		if args[0] == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return "", fmt.Errorf("failed to read modules from stdin: %w", err)
			}
			return string(data), nil
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read modules: %w", err)
		}
		return string(data), nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return "", err
	}
	return config.NewFileStore(cfg.Store.Path).Get(cfg.Store.Key)
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
