package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackbox-operator/internal/config"
	"blackbox-operator/internal/reconciler"
	"blackbox-operator/internal/scrape"
)

// localConfig returns a configuration using the local backend under a
// temporary directory, running "sleep 60" in place of the exporter.
func localConfig(t *testing.T) *config.OperatorConfig {
	t.Helper()
	dir := t.TempDir()

	cfg := config.GetDefaultConfig()
	cfg.Supervisor = config.SupervisorConfig{
		Type:     "local",
		RootDir:  filepath.Join(dir, "root"),
		StateDir: filepath.Join(dir, "state"),
	}
	cfg.Workload.Binary = "sleep"
	cfg.Workload.CommandTemplate = "{{ .Binary }} 60"
	cfg.Store.Path = filepath.Join(dir, "options.yaml")
	cfg.Status.Path = filepath.Join(dir, "status.yaml")
	require.NoError(t, os.MkdirAll(cfg.Supervisor.RootDir, 0o755))
	return &cfg
}

func newTestApplication(t *testing.T, cfg *config.OperatorConfig) *Application {
	t.Helper()
	application, err := NewApplication(&Config{OperatorConfig: cfg, LogOutput: &bytes.Buffer{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	return application
}

func TestReconcileOnceWithLocalBackend(t *testing.T) {
	cfg := localConfig(t)
	require.NoError(t, os.WriteFile(cfg.Store.Path, []byte("modules: |\n  icmp:\n    prober: icmp\n"), 0o644))

	application := newTestApplication(t, cfg)

	status, err := application.ReconcileOnce(context.Background(), reconciler.TriggerContainerReady)
	require.NoError(t, err)
	assert.Equal(t, reconciler.ActiveStatus(), status)

	pushed, err := os.ReadFile(filepath.Join(cfg.Supervisor.RootDir, cfg.Workload.ConfigPath))
	require.NoError(t, err)
	assert.Equal(t, "modules:\n  icmp:\n    prober: icmp\n", string(pushed))

	record, err := reconciler.ReadStatusFile(cfg.Status.Path)
	require.NoError(t, err)
	assert.Equal(t, reconciler.StateActive, record.State)
}

func TestReconcileOnceBlockedOnInvalidModules(t *testing.T) {
	cfg := localConfig(t)
	require.NoError(t, os.WriteFile(cfg.Store.Path, []byte("modules: \"not: valid: yaml: at: all:\"\n"), 0o644))

	application := newTestApplication(t, cfg)

	status, err := application.ReconcileOnce(context.Background(), reconciler.TriggerConfigChanged)
	require.NoError(t, err)
	assert.Equal(t, reconciler.StateBlocked, status.State)
}

func TestReconcileOnceContainerNotReady(t *testing.T) {
	cfg := localConfig(t)
	require.NoError(t, os.RemoveAll(cfg.Supervisor.RootDir))

	application := newTestApplication(t, cfg)

	status, err := application.ReconcileOnce(context.Background(), reconciler.TriggerConfigChanged)
	require.NoError(t, err)
	assert.Equal(t, reconciler.StateWaiting, status.State)
}

func TestNewApplicationRejectsBadLogLevel(t *testing.T) {
	cfg := localConfig(t)
	cfg.Logging.Level = "chatty"

	_, err := NewApplication(&Config{OperatorConfig: cfg, LogOutput: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestNewApplicationLoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	require.NoError(t, os.MkdirAll(root, 0o755))

	content := strings.Join([]string{
		"supervisor:",
		"  type: local",
		"  rootDir: " + root,
		"  stateDir: " + filepath.Join(dir, "state"),
		"status:",
		"  path: \"\"",
		"store:",
		"  path: " + filepath.Join(dir, "options.yaml"),
		"  key: modules",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	application, err := NewApplication(&Config{ConfigPath: dir, LogOutput: &bytes.Buffer{}})
	require.NoError(t, err)
	defer application.Close()

	_, inMemory := application.Services().Status.(*reconciler.MemorySink)
	assert.True(t, inMemory, "empty status path keeps the status in memory")
}

func TestRunPublishesTargetsAndStopsOnCancel(t *testing.T) {
	cfg := localConfig(t)
	cfg.Scrape.BindAddress = "10.0.0.7"
	cfg.Scrape.RelationDataPath = filepath.Join(t.TempDir(), "relation.yaml")

	application := newTestApplication(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, application.Run(ctx))

	targets, err := scrape.Targets(cfg.Scrape.RelationDataPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.7:9115"}, targets)
}

func TestMetricsHandler(t *testing.T) {
	cfg := localConfig(t)
	application := newTestApplication(t, cfg)
	services := application.Services()

	_, err := application.ReconcileOnce(context.Background(), reconciler.TriggerConfigChanged)
	require.NoError(t, err)

	handler := metricsHandler(services)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `blackbox_operator_reconcile_attempts_total{trigger="configChanged"} 1`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "active\n", rec.Body.String())
}
