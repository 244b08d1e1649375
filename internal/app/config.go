package app

import (
	"io"

	"blackbox-operator/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// ConfigPath is a config file or a directory holding config.yaml.
	ConfigPath string

	// LogOutput receives log output. Defaults to stderr.
	LogOutput io.Writer

	// OperatorConfig is loaded from ConfigPath when nil.
	OperatorConfig *config.OperatorConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
