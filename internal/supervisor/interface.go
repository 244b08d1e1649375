package supervisor

import (
	"context"

	"blackbox-operator/internal/layer"
)

// ServiceStatus is the supervisor-reported state of a service.
type ServiceStatus string

const (
	StatusInactive ServiceStatus = "inactive"
	StatusActive   ServiceStatus = "active"
	StatusError    ServiceStatus = "error"
)

// Client is the process-supervisor surface used by the reconciler.
type Client interface {
	// AddLayer installs l under label. With combine set, an existing layer with
	// the same label is merged rather than rejected.
	AddLayer(ctx context.Context, label string, l *layer.Layer, combine bool) error

	// Services returns the status of every service the supervisor knows about.
	Services(ctx context.Context) (map[string]ServiceStatus, error)

	// Start starts the named service and waits for it to come up.
	Start(ctx context.Context, name string) error

	// Stop stops the named service and waits for it to exit.
	Stop(ctx context.Context, name string) error

	// Push writes content to path inside the container, creating parent
	// directories as needed.
	Push(ctx context.Context, path string, content []byte) error
}
