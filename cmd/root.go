package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"blackbox-operator/internal/cli"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeBlocked indicates the command completed but the unit is Blocked.
	ExitCodeBlocked = 2
)

// defaultConfigPath is where the operator looks for config.yaml.
const defaultConfigPath = "/etc/blackbox-operator"

// configPath is a config file or a directory containing config.yaml.
var configPath string

// debug enables verbose logging across the application.
var debug bool

// rootCmd represents the base command for the operator.
var rootCmd = &cobra.Command{
	Use:   "blackbox-operator",
	Short: "Run the Prometheus blackbox exporter as a managed sidecar",
	Long: `blackbox-operator keeps a blackbox exporter sidecar in line with its
declared probe modules. It installs the exporter service into the container's
process supervisor, renders the modules option into the exporter config file
and restarts the service whenever the container becomes ready or the option
changes.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "blackbox-operator version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var blocked *cli.BlockedError
	if errors.As(err, &blocked) {
		return ExitCodeBlocked
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", defaultConfigPath, "Configuration file or directory containing config.yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
}
