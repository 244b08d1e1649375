package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"blackbox-operator/internal/app"
	"blackbox-operator/internal/cli"
	"blackbox-operator/internal/reconciler"
)

// reconcileTrigger names the trigger to simulate.
var reconcileTrigger string

// reconcileCmd runs a single reconcile attempt.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconcile attempt and print the resulting status",
	Long: `Runs a single reconcile attempt as if the given trigger had fired, then
prints the unit status.

Exit codes:
  0  the attempt completed (status active or waiting)
  1  the attempt failed
  2  the unit is blocked`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	trigger, err := parseTrigger(reconcileTrigger)
	if err != nil {
		return err
	}

	application, err := app.NewApplication(app.NewConfig(debug, configPath))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	status, err := application.ReconcileOnce(cmd.Context(), trigger)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), status.String())
	if status.State == reconciler.StateBlocked {
		return &cli.BlockedError{Message: status.Message}
	}
	return nil
}

func parseTrigger(s string) (reconciler.Trigger, error) {
	switch reconciler.Trigger(s) {
	case reconciler.TriggerContainerReady, reconciler.TriggerConfigChanged:
		return reconciler.Trigger(s), nil
	default:
		return "", fmt.Errorf("unknown trigger %q (valid: %s, %s)", s, reconciler.TriggerContainerReady, reconciler.TriggerConfigChanged)
	}
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringVar(&reconcileTrigger, "trigger", string(reconciler.TriggerConfigChanged), "Trigger to simulate (containerReady, configChanged)")
}
