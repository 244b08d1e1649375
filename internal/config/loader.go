package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"blackbox-operator/pkg/logging"
)

const configFileName = "config.yaml"

// LoadConfig loads configuration from configPath. configPath may be a
// directory containing config.yaml or the path of a YAML file. A missing file
// yields the defaults.
func LoadConfig(configPath string) (OperatorConfig, error) {
	configFilePath := configPath
	if info, err := os.Stat(configPath); err == nil && info.IsDir() {
		configFilePath = filepath.Join(configPath, configFileName)
	}
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config file found at %s, using defaults", configFilePath)
			return config, Validate(config, configFilePath)
		}
		return OperatorConfig{}, ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: ErrorTypeIO,
			Message:   err.Error(),
		}
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return OperatorConfig{}, ConfigurationError{
			FilePath:    configFilePath,
			ErrorType:   ErrorTypeParse,
			Message:     err.Error(),
			Suggestions: []string{"check the file is valid YAML and durations are written like 30s"},
		}
	}

	if err := Validate(config, configFilePath); err != nil {
		return OperatorConfig{}, err
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}
