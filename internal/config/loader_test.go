package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
supervisor:
  type: local
  rootDir: /tmp/root
  stateDir: /tmp/state
reconcile:
  handleExceptions: false
  debounce: 2s
logging:
  level: debug
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Supervisor.Type)
	assert.Equal(t, "/tmp/root", cfg.Supervisor.RootDir)
	assert.False(t, cfg.Reconcile.HandleExceptions)
	assert.Equal(t, 2*time.Second, cfg.Reconcile.Debounce)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultConfigPath, cfg.Workload.ConfigPath)
	assert.Equal(t, DefaultScrapePort, cfg.Scrape.Port)
}

func TestLoadConfig_AcceptsFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operator.yaml")
	writeFile(t, path, "workload:\n  binary: /usr/local/bin/blackbox_exporter\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/blackbox_exporter", cfg.Workload.Binary)
}

func TestLoadConfig_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "workload: [\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var cfgErr ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrorTypeParse, cfgErr.ErrorType)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
supervisor:
  type: local
workload:
  configPath: etc/config.yaml
logging:
  format: xml
metrics:
  address: nope
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var collection *ConfigurationErrorCollection
	require.True(t, errors.As(err, &collection))

	fields := map[string]string{}
	for _, e := range collection.Errors {
		fields[e.Field] = e.Message
		assert.Equal(t, ErrorTypeValidation, e.ErrorType)
	}
	assert.Contains(t, fields, "supervisor.rootDir")
	assert.Contains(t, fields, "supervisor.stateDir")
	assert.Contains(t, fields, "workload.configPath")
	assert.Contains(t, fields, "logging.format")
	assert.Contains(t, fields, "metrics.address")
	assert.Contains(t, collection.GetDetailedReport(), "Suggestions:")
}

func TestValidate_PebbleNeedsSocket(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Supervisor.Socket = ""

	err := Validate(cfg, "config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supervisor.socket")
}
