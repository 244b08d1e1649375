package supervisor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackbox-operator/internal/layer"
)

func newTestLocal(t *testing.T) (*LocalClient, LocalConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := LocalConfig{
		Container:   "blackbox-exporter",
		RootDir:     filepath.Join(dir, "root"),
		StateDir:    filepath.Join(dir, "state"),
		StopTimeout: 2 * time.Second,
		OkayDelay:   50 * time.Millisecond,
	}
	require.NoError(t, os.MkdirAll(cfg.RootDir, 0o755))

	c, err := NewLocalClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, cfg
}

func serviceLayer(command string) *layer.Layer {
	return &layer.Layer{Services: map[string]*layer.Service{
		"blackbox-exporter": {Override: layer.OverrideReplace, Command: command, Startup: layer.StartupDisabled},
	}}
}

func requireSleep(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX sleep binary")
	}
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep binary not available")
	}
	return path
}

func TestLocalClient_NotReadyWithoutRootDir(t *testing.T) {
	c, cfg := newTestLocal(t)
	require.NoError(t, os.RemoveAll(cfg.RootDir))

	_, err := c.Services(context.Background())
	assert.True(t, IsNotReady(err))

	err = c.Push(context.Background(), "/etc/x", []byte("x"))
	assert.True(t, IsNotReady(err))
}

func TestLocalClient_LockIsExclusive(t *testing.T) {
	_, cfg := newTestLocal(t)

	_, err := NewLocalClient(cfg)
	assert.Error(t, err)
}

func TestLocalClient_AddLayerCombine(t *testing.T) {
	c, cfg := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, c.AddLayer(ctx, "blackbox_exporter", serviceLayer("/bin/true"), true))
	require.NoError(t, c.AddLayer(ctx, "blackbox_exporter", serviceLayer("/bin/true"), true))

	services, err := c.Services(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]ServiceStatus{"blackbox-exporter": StatusInactive}, services)

	err = c.AddLayer(ctx, "blackbox_exporter", serviceLayer("/bin/true"), false)
	assert.Error(t, err)

	// Layers survive a restart of the client.
	require.NoError(t, c.Close())
	again, err := NewLocalClient(cfg)
	require.NoError(t, err)
	defer again.Close()

	services, err = again.Services(ctx)
	require.NoError(t, err)
	assert.Contains(t, services, "blackbox-exporter")
}

func TestLocalClient_PushUnderRoot(t *testing.T) {
	c, cfg := newTestLocal(t)

	require.NoError(t, c.Push(context.Background(), "/etc/blackbox_exporter/config.yaml", []byte("modules: {}\n")))

	data, err := os.ReadFile(filepath.Join(cfg.RootDir, "etc", "blackbox_exporter", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "modules: {}\n", string(data))

	// Paths cannot escape the root.
	require.NoError(t, c.Push(context.Background(), "../../outside.yaml", []byte("x")))
	_, err = os.Stat(filepath.Join(cfg.RootDir, "outside.yaml"))
	assert.NoError(t, err)
}

func TestLocalClient_StartStop(t *testing.T) {
	sleep := requireSleep(t)
	c, _ := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, c.AddLayer(ctx, "blackbox_exporter", serviceLayer(sleep+" 60"), true))
	require.NoError(t, c.Start(ctx, "blackbox-exporter"))

	services, err := c.Services(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, services["blackbox-exporter"])

	// Starting an active service is a no-op.
	require.NoError(t, c.Start(ctx, "blackbox-exporter"))

	require.NoError(t, c.Stop(ctx, "blackbox-exporter"))
	services, err = c.Services(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, services["blackbox-exporter"])

	// Stopping an inactive service is a no-op.
	require.NoError(t, c.Stop(ctx, "blackbox-exporter"))
}

func TestLocalClient_StartCancelledKillsChild(t *testing.T) {
	sleep := requireSleep(t)
	c, _ := newTestLocal(t)
	c.config.OkayDelay = 5 * time.Second

	require.NoError(t, c.AddLayer(context.Background(), "blackbox_exporter", serviceLayer(sleep+" 60"), true))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	err := c.Start(ctx, "blackbox-exporter")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 3*time.Second)

	services, err := c.Services(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, services["blackbox-exporter"])

	c.mu.Lock()
	proc := c.procs["blackbox-exporter"]
	c.mu.Unlock()
	require.NotNil(t, proc)
	assert.False(t, proc.running())
}

func TestLocalClient_StartFailures(t *testing.T) {
	c, _ := newTestLocal(t)
	ctx := context.Background()

	err := c.Start(ctx, "blackbox-exporter")
	assert.ErrorContains(t, err, "not found in plan")

	require.NoError(t, c.AddLayer(ctx, "blackbox_exporter", serviceLayer("/nonexistent/blackbox_exporter"), true))
	err = c.Start(ctx, "blackbox-exporter")
	assert.Error(t, err)
	assert.False(t, IsNotReady(err))
}
