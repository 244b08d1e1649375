package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/canonical/pebble/client"

	"blackbox-operator/internal/layer"
	"blackbox-operator/pkg/logging"
)

const pebbleSubsystem = "Pebble"

// DefaultChangeTimeout bounds how long Start and Stop wait for Pebble to
// finish the change they submit.
const DefaultChangeTimeout = 30 * time.Second

// pebbleAPI is the subset of *client.Client used by PebbleClient.
type pebbleAPI interface {
	AddLayer(opts *client.AddLayerOptions) error
	Services(opts *client.ServicesOptions) ([]*client.ServiceInfo, error)
	Start(opts *client.ServiceOptions) (changeID string, err error)
	Stop(opts *client.ServiceOptions) (changeID string, err error)
	WaitChange(id string, opts *client.WaitChangeOptions) (*client.Change, error)
	Push(opts *client.PushOptions) error
}

// PebbleConfig configures a PebbleClient.
type PebbleConfig struct {
	// Container is the workload container name, used in messages.
	Container string

	// Socket is the path of the Pebble unix socket.
	Socket string

	// ChangeTimeout bounds waits on start/stop changes.
	ChangeTimeout time.Duration
}

// PebbleClient implements Client against a Pebble daemon.
type PebbleClient struct {
	config PebbleConfig
	api    pebbleAPI
}

// NewPebbleClient creates a client for the Pebble socket in config. The socket
// does not have to exist yet; calls made before it appears fail with
// ErrNotReady.
func NewPebbleClient(config PebbleConfig) (*PebbleClient, error) {
	if config.Socket == "" {
		return nil, fmt.Errorf("pebble socket path is required")
	}
	if config.ChangeTimeout <= 0 {
		config.ChangeTimeout = DefaultChangeTimeout
	}

	api, err := client.New(&client.Config{Socket: config.Socket})
	if err != nil {
		return nil, fmt.Errorf("failed to create pebble client: %w", err)
	}
	return &PebbleClient{config: config, api: api}, nil
}

func newPebbleClientWithAPI(config PebbleConfig, api pebbleAPI) *PebbleClient {
	if config.ChangeTimeout <= 0 {
		config.ChangeTimeout = DefaultChangeTimeout
	}
	return &PebbleClient{config: config, api: api}
}

// AddLayer implements Client.
func (p *PebbleClient) AddLayer(ctx context.Context, label string, l *layer.Layer, combine bool) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	data, err := l.Marshal()
	if err != nil {
		return err
	}

	logging.Debug(pebbleSubsystem, "Adding layer %s (combine=%t)", label, combine)
	err = p.api.AddLayer(&client.AddLayerOptions{
		Combine:   combine,
		Label:     label,
		LayerData: data,
	})
	if err != nil {
		return p.classify(fmt.Errorf("failed to add layer %s: %w", label, err))
	}
	return nil
}

// Services implements Client.
func (p *PebbleClient) Services(ctx context.Context) (map[string]ServiceStatus, error) {
	if err := p.ready(ctx); err != nil {
		return nil, err
	}

	infos, err := p.api.Services(&client.ServicesOptions{})
	if err != nil {
		return nil, p.classify(fmt.Errorf("failed to list services: %w", err))
	}

	services := make(map[string]ServiceStatus, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		services[info.Name] = mapPebbleStatus(info.Current)
	}
	return services, nil
}

// Start implements Client.
func (p *PebbleClient) Start(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	changeID, err := p.api.Start(&client.ServiceOptions{Names: []string{name}})
	if err != nil {
		return fmt.Errorf("failed to start service %s: %w", name, err)
	}
	return p.wait(changeID, "start", name)
}

// Stop implements Client.
func (p *PebbleClient) Stop(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	changeID, err := p.api.Stop(&client.ServiceOptions{Names: []string{name}})
	if err != nil {
		return fmt.Errorf("failed to stop service %s: %w", name, err)
	}
	return p.wait(changeID, "stop", name)
}

// Push implements Client.
func (p *PebbleClient) Push(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.api.Push(&client.PushOptions{
		Source:      bytes.NewReader(content),
		Path:        path,
		MakeDirs:    true,
		Permissions: 0o644,
	})
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", path, err)
	}
	return nil
}

func (p *PebbleClient) wait(changeID, action, name string) error {
	logging.Debug(pebbleSubsystem, "Waiting for %s change %s of service %s", action, changeID, name)
	change, err := p.api.WaitChange(changeID, &client.WaitChangeOptions{Timeout: p.config.ChangeTimeout})
	if err != nil {
		return fmt.Errorf("failed waiting for %s of service %s: %w", action, name, err)
	}
	if change != nil && change.Err != "" {
		return fmt.Errorf("%s of service %s failed: %s", action, name, change.Err)
	}
	return nil
}

// ready reports ErrNotReady while the socket is absent.
func (p *PebbleClient) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(p.config.Socket); err != nil {
		return &NotReadyError{Container: p.config.Container, Err: err}
	}
	return nil
}

// classify turns transport failures into NotReadyError. Errors returned by the
// Pebble API itself mean the daemon is up and are passed through.
func (p *PebbleClient) classify(err error) error {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		return err
	}
	return &NotReadyError{Container: p.config.Container, Err: err}
}

func mapPebbleStatus(status client.ServiceStatus) ServiceStatus {
	switch status {
	case client.StatusActive:
		return StatusActive
	case client.StatusError, client.StatusBackoff:
		return StatusError
	default:
		return StatusInactive
	}
}
