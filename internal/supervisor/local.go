package supervisor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"blackbox-operator/internal/layer"
	"blackbox-operator/pkg/logging"
)

const localSubsystem = "LocalSupervisor"

const (
	layersFileName = "layers.yaml"
	lockFileName   = "supervisor.lock"
)

// DefaultStopTimeout is the time a stopping service gets to exit after
// SIGTERM before it is killed.
var DefaultStopTimeout = 10 * time.Second

// DefaultOkayDelay is how long a started service must stay up for Start to
// report success.
var DefaultOkayDelay = time.Second

// LocalConfig configures a LocalClient.
type LocalConfig struct {
	// Container names the pseudo-container, used in messages.
	Container string

	// RootDir is the directory pushed paths are resolved against. The client
	// reports ErrNotReady while it does not exist.
	RootDir string

	// StateDir holds the persisted layers and the lock file.
	StateDir string

	StopTimeout time.Duration
	OkayDelay   time.Duration
}

type labeledLayer struct {
	Label string       `yaml:"label"`
	Layer *layer.Layer `yaml:"layer"`
}

type localProcess struct {
	cmd     *exec.Cmd
	done    chan struct{}
	exitErr error
	stopped bool
}

func (p *localProcess) running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// LocalClient implements Client by running services as child processes of
// the operator. Only one LocalClient can own a state directory at a time.
type LocalClient struct {
	config LocalConfig
	lock   *flock.Flock

	mu     sync.Mutex
	layers []labeledLayer
	plan   *layer.Layer
	procs  map[string]*localProcess
}

// NewLocalClient locks config.StateDir and loads any layers persisted there.
// Close must be called to release the lock.
func NewLocalClient(config LocalConfig) (*LocalClient, error) {
	if config.RootDir == "" || config.StateDir == "" {
		return nil, errors.New("local supervisor needs a root and a state directory")
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = DefaultStopTimeout
	}
	if config.OkayDelay <= 0 {
		config.OkayDelay = DefaultOkayDelay
	}

	if err := os.MkdirAll(config.StateDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create state directory")
	}

	lock := flock.New(filepath.Join(config.StateDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock state directory")
	}
	if !locked {
		return nil, errors.Errorf("state directory %s is in use by another supervisor", config.StateDir)
	}

	c := &LocalClient{
		config: config,
		lock:   lock,
		procs:  make(map[string]*localProcess),
	}
	if err := c.load(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return c, nil
}

// Close stops every running service and releases the state directory.
func (c *LocalClient) Close() error {
	c.mu.Lock()
	names := make([]string, 0, len(c.procs))
	for name := range c.procs {
		names = append(names, name)
	}
	c.mu.Unlock()

	for _, name := range names {
		if err := c.Stop(context.Background(), name); err != nil {
			logging.Warn(localSubsystem, "Failed to stop %s on close: %v", name, err)
		}
	}
	return c.lock.Unlock()
}

// AddLayer implements Client.
func (c *LocalClient) AddLayer(ctx context.Context, label string, l *layer.Layer, combine bool) error {
	if err := c.ready(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	layers := make([]labeledLayer, len(c.layers))
	copy(layers, c.layers)

	found := false
	for i := range layers {
		if layers[i].Label != label {
			continue
		}
		if !combine {
			return errors.Errorf("layer %q already exists", label)
		}
		merged, err := layer.Combine(layers[i].Layer, l)
		if err != nil {
			return err
		}
		layers[i].Layer = merged
		found = true
	}
	if !found {
		merged, err := layer.Combine(nil, l)
		if err != nil {
			return err
		}
		layers = append(layers, labeledLayer{Label: label, Layer: merged})
	}

	plan, err := flatten(layers)
	if err != nil {
		return err
	}
	if err := c.persist(layers); err != nil {
		return err
	}
	c.layers = layers
	c.plan = plan
	logging.Debug(localSubsystem, "Layer %s added, plan has %d services", label, len(plan.Services))
	return nil
}

// Services implements Client.
func (c *LocalClient) Services(ctx context.Context) (map[string]ServiceStatus, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	services := make(map[string]ServiceStatus, len(c.plan.Services))
	for name := range c.plan.Services {
		services[name] = c.statusLocked(name)
	}
	return services, nil
}

func (c *LocalClient) statusLocked(name string) ServiceStatus {
	proc, ok := c.procs[name]
	switch {
	case !ok:
		return StatusInactive
	case proc.running():
		return StatusActive
	case proc.stopped:
		return StatusInactive
	default:
		return StatusError
	}
}

// Start implements Client. The service must stay up for OkayDelay to count
// as started. If ctx is done before that, the child is killed.
func (c *LocalClient) Start(ctx context.Context, name string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	svc, ok := c.plan.Services[name]
	if !ok {
		c.mu.Unlock()
		return errors.Errorf("service %q not found in plan", name)
	}
	if proc, ok := c.procs[name]; ok && proc.running() {
		c.mu.Unlock()
		return nil
	}

	argv := strings.Fields(svc.Command)
	if len(argv) == 0 {
		c.mu.Unlock()
		return errors.Errorf("service %q has no command", name)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = c.config.RootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return errors.Wrapf(err, "cannot start service %q", name)
	}

	proc := &localProcess{cmd: cmd, done: make(chan struct{})}
	c.procs[name] = proc
	c.mu.Unlock()

	go func() {
		err := cmd.Wait()
		c.mu.Lock()
		proc.exitErr = err
		c.mu.Unlock()
		close(proc.done)
	}()

	logging.Info(localSubsystem, "Started service %s (pid %d)", name, cmd.Process.Pid)

	select {
	case <-proc.done:
		c.mu.Lock()
		exitErr := proc.exitErr
		c.mu.Unlock()
		if exitErr == nil {
			exitErr = errors.New("exit status 0")
		}
		return errors.Wrapf(exitErr, "cannot start service %q: exited quickly", name)
	case <-time.After(c.config.OkayDelay):
		return nil
	case <-ctx.Done():
		// A start that was abandoned must not leave the child behind.
		c.mu.Lock()
		proc.stopped = true
		c.mu.Unlock()
		_ = cmd.Process.Kill()
		<-proc.done
		return errors.Wrapf(ctx.Err(), "start of service %q cancelled", name)
	}
}

// Stop implements Client.
func (c *LocalClient) Stop(ctx context.Context, name string) error {
	c.mu.Lock()
	proc, ok := c.procs[name]
	if !ok || !proc.running() {
		c.mu.Unlock()
		return nil
	}
	proc.stopped = true
	c.mu.Unlock()

	if err := proc.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logging.Debug(localSubsystem, "SIGTERM to %s failed, killing: %v", name, err)
		_ = proc.cmd.Process.Kill()
	}

	select {
	case <-proc.done:
	case <-time.After(c.config.StopTimeout):
		logging.Warn(localSubsystem, "Service %s did not exit within %s, killing", name, c.config.StopTimeout)
		if err := proc.cmd.Process.Kill(); err != nil {
			return errors.Wrapf(err, "cannot kill service %q", name)
		}
		<-proc.done
	case <-ctx.Done():
		return ctx.Err()
	}

	logging.Info(localSubsystem, "Stopped service %s", name)
	return nil
}

// Push implements Client. path is interpreted relative to RootDir.
func (c *LocalClient) Push(ctx context.Context, path string, content []byte) error {
	if err := c.ready(ctx); err != nil {
		return err
	}

	target := c.resolve(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "cannot create parent directory of %s", path)
	}
	if err := writeFileAtomic(target, content, 0o644); err != nil {
		return errors.Wrapf(err, "cannot write %s", path)
	}
	return nil
}

func (c *LocalClient) resolve(path string) string {
	return filepath.Join(c.config.RootDir, filepath.Clean("/"+path))
}

func (c *LocalClient) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(c.config.RootDir)
	if err != nil {
		return &NotReadyError{Container: c.config.Container, Err: err}
	}
	if !info.IsDir() {
		return &NotReadyError{Container: c.config.Container, Err: errors.Errorf("%s is not a directory", c.config.RootDir)}
	}
	return nil
}

func (c *LocalClient) load() error {
	data, err := os.ReadFile(filepath.Join(c.config.StateDir, layersFileName))
	if errors.Is(err, os.ErrNotExist) {
		c.plan = &layer.Layer{Services: map[string]*layer.Service{}}
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "cannot read persisted layers")
	}

	var layers []labeledLayer
	if err := yaml.Unmarshal(data, &layers); err != nil {
		return errors.Wrap(err, "cannot parse persisted layers")
	}
	plan, err := flatten(layers)
	if err != nil {
		return err
	}
	c.layers = layers
	c.plan = plan
	return nil
}

func (c *LocalClient) persist(layers []labeledLayer) error {
	data, err := yaml.Marshal(layers)
	if err != nil {
		return errors.Wrap(err, "cannot encode layers")
	}
	return writeFileAtomic(filepath.Join(c.config.StateDir, layersFileName), data, 0o644)
}

func flatten(layers []labeledLayer) (*layer.Layer, error) {
	var plan *layer.Layer
	for _, l := range layers {
		var err error
		plan, err = layer.Combine(plan, l.Layer)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot apply layer %q", l.Label)
		}
	}
	if plan == nil {
		plan = &layer.Layer{Services: map[string]*layer.Service{}}
	}
	return plan, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
