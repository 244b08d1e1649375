package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"blackbox-operator/internal/config"
	"blackbox-operator/internal/layer"
	"blackbox-operator/internal/render"
	"blackbox-operator/internal/supervisor"
	"blackbox-operator/pkg/logging"
)

const subsystem = "Reconciler"

// Section labels the single guarded section every attempt runs in.
const Section = "update modules config"

// SidecarConfig names the managed container, service and files.
type SidecarConfig struct {
	Container  string
	Service    string
	LayerLabel string
	ConfigPath string

	// OptionKey is the store key holding the modules text.
	OptionKey string

	// Layer is the service definition installed on every attempt.
	Layer *layer.Layer

	// HandleExceptions downgrades unclassified failures to Blocked instead
	// of returning them.
	HandleExceptions bool
}

// SidecarReconciler drives the exporter service towards the configured
// state. Calls must be serialized by the caller.
type SidecarReconciler struct {
	config     SidecarConfig
	supervisor supervisor.Client
	store      config.Store
	status     StatusSink
	metrics    *Metrics
}

// NewSidecarReconciler creates a reconciler for the single exporter service.
func NewSidecarReconciler(cfg SidecarConfig, sup supervisor.Client, store config.Store, status StatusSink) *SidecarReconciler {
	if cfg.OptionKey == "" {
		cfg.OptionKey = config.DefaultModulesKey
	}
	return &SidecarReconciler{
		config:     cfg,
		supervisor: sup,
		store:      store,
		status:     status,
	}
}

// WithMetrics records attempt outcomes in m.
func (r *SidecarReconciler) WithMetrics(m *Metrics) *SidecarReconciler {
	r.metrics = m
	return r
}

// ContainerReady handles the containerReady trigger.
func (r *SidecarReconciler) ContainerReady(ctx context.Context) error {
	return r.Reconcile(ctx, TriggerContainerReady)
}

// ConfigChanged handles the configChanged trigger.
func (r *SidecarReconciler) ConfigChanged(ctx context.Context) error {
	return r.Reconcile(ctx, TriggerConfigChanged)
}

// Reconcile runs one attempt: install the layer, stop the service if it is
// active, push the rendered config and start the service again. The returned
// error is non-nil only for failures that should fail the trigger.
func (r *SidecarReconciler) Reconcile(ctx context.Context, trigger Trigger) error {
	log := logging.With(subsystem, "attempt", uuid.NewString(), "trigger", string(trigger))
	start := time.Now()

	outcome, err := guard(ctx, log, r.status, Section, r.config.HandleExceptions, func(ctx context.Context) error {
		if err := r.ensureLayer(ctx, log); err != nil {
			return err
		}
		services, err := r.services(ctx, "query services")
		if err != nil {
			return err
		}
		if err := r.ensureStopped(ctx, log, services); err != nil {
			return err
		}
		if err := r.updateConfig(ctx, log); err != nil {
			return err
		}
		if err := r.ensureStarted(ctx, log); err != nil {
			return err
		}
		setStatus(log, r.status, ActiveStatus())
		return nil
	})

	r.metrics.observe(trigger, outcome, time.Since(start))
	return err
}

func (r *SidecarReconciler) ensureLayer(ctx context.Context, log *logging.Logger) error {
	log.Debug("Adding %s layer", r.config.LayerLabel)
	err := r.supervisor.AddLayer(ctx, r.config.LayerLabel, r.config.Layer, true)
	switch {
	case err == nil:
		return nil
	case supervisor.IsNotReady(err):
		return earlyExit(err)
	default:
		return fatal(fmt.Sprintf("Failed to add layer %s", r.config.LayerLabel), err)
	}
}

func (r *SidecarReconciler) services(ctx context.Context, action string) (map[string]supervisor.ServiceStatus, error) {
	services, err := r.supervisor.Services(ctx)
	switch {
	case err == nil:
		return services, nil
	case supervisor.IsNotReady(err):
		return nil, earlyExit(err)
	default:
		return nil, blocked(fmt.Sprintf("Failed to %s in container %s: %v", action, r.config.Container, err), err)
	}
}

// ensureStopped stops the service only if the supervisor reports it active.
func (r *SidecarReconciler) ensureStopped(ctx context.Context, log *logging.Logger, services map[string]supervisor.ServiceStatus) error {
	status, ok := services[r.config.Service]
	if !ok {
		log.Debug("Service %s does not exist yet, nothing to stop", r.config.Service)
		return nil
	}
	if status != supervisor.StatusActive {
		log.Debug("Service %s is %s, nothing to stop", r.config.Service, status)
		return nil
	}

	log.Info("Stopping service %s", r.config.Service)
	if err := r.supervisor.Stop(ctx, r.config.Service); err != nil {
		return blocked(fmt.Sprintf("Failed to stop service %s: %v", r.config.Service, err), err)
	}
	return nil
}

// updateConfig renders the modules option and pushes it to the container.
func (r *SidecarReconciler) updateConfig(ctx context.Context, log *logging.Logger) error {
	raw, err := r.store.Get(r.config.OptionKey)
	if err != nil {
		return blocked(fmt.Sprintf("Failed to read %s option: %v", r.config.OptionKey, err), err)
	}

	rendered, err := render.Render(raw)
	if err != nil {
		var vErr *render.ValidationError
		if errors.As(err, &vErr) {
			return blocked(vErr.Error(), err)
		}
		return err
	}
	if len(rendered.Dropped) > 0 {
		log.Warn("Ignoring top-level keys %v next to %s", rendered.Dropped, render.ModulesKey)
	}

	log.Debug("Pushing config to %s (sha256 %s)", r.config.ConfigPath, rendered.Hash())
	if err := r.supervisor.Push(ctx, r.config.ConfigPath, rendered.Bytes()); err != nil {
		return blocked(fmt.Sprintf("Failed to push config to %s on container %s: %v", r.config.ConfigPath, r.config.Container, err), err)
	}
	return nil
}

// ensureStarted re-queries the supervisor and starts the service unless it is
// already active. A start failure is fatal.
func (r *SidecarReconciler) ensureStarted(ctx context.Context, log *logging.Logger) error {
	services, err := r.services(ctx, "query services before start")
	if err != nil {
		return err
	}

	status, ok := services[r.config.Service]
	if !ok {
		log.Warn("Service %s is missing from container %s although its layer was added", r.config.Service, r.config.Container)
		return blocked(fmt.Sprintf("Service %s in container %s is not available to start", r.config.Service, r.config.Container), ErrServiceUnavailable)
	}
	if status == supervisor.StatusActive {
		return nil
	}

	log.Info("Starting service %s", r.config.Service)
	if err := r.supervisor.Start(ctx, r.config.Service); err != nil {
		log.Error(err, "Service %s on container %s didn't start", r.config.Service, r.config.Container)
		return fatal(fmt.Sprintf("Failed to start service %s", r.config.Service), err)
	}
	return nil
}
