package app

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"blackbox-operator/internal/config"
	"blackbox-operator/internal/layer"
	"blackbox-operator/internal/reconciler"
	"blackbox-operator/internal/scrape"
	"blackbox-operator/internal/supervisor"
	"blackbox-operator/pkg/logging"
)

// Services holds the initialized collaborators of the operator.
type Services struct {
	Supervisor supervisor.Client
	Store      config.Store
	Status     reconciler.StatusSink
	Reconciler *reconciler.SidecarReconciler
	Manager    *reconciler.Manager

	// Registry holds the operator's Prometheus metrics.
	Registry *prometheus.Registry

	// Scrape is nil when no relation-data path is configured.
	Scrape *scrape.Provider

	closer io.Closer
}

// InitializeServices builds every collaborator from cfg.
func InitializeServices(cfg *config.OperatorConfig) (*Services, error) {
	sup, closer, err := supervisor.New(supervisorOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s supervisor client: %w", cfg.Supervisor.Type, err)
	}
	logging.Info("Bootstrap", "Using %s supervisor for container %s", cfg.Supervisor.Type, cfg.Workload.Container)

	services := &Services{
		Supervisor: sup,
		Store:      config.NewFileStore(cfg.Store.Path),
		Registry:   prometheus.NewRegistry(),
		closer:     closer,
	}

	services.Status, err = newStatusSink(cfg.Status.Path)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	l, err := layer.New(layer.Params{
		ServiceName:     cfg.Workload.Service,
		Binary:          cfg.Workload.Binary,
		ConfigPath:      cfg.Workload.ConfigPath,
		CommandTemplate: cfg.Workload.CommandTemplate,
	})
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to build service layer: %w", err)
	}

	services.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	services.Reconciler = reconciler.NewSidecarReconciler(reconciler.SidecarConfig{
		Container:        cfg.Workload.Container,
		Service:          cfg.Workload.Service,
		LayerLabel:       cfg.Workload.LayerLabel,
		ConfigPath:       cfg.Workload.ConfigPath,
		OptionKey:        cfg.Store.Key,
		Layer:            l,
		HandleExceptions: cfg.Reconcile.HandleExceptions,
	}, services.Supervisor, services.Store, services.Status).
		WithMetrics(reconciler.NewMetrics(services.Registry))

	services.Manager, err = reconciler.NewManager(reconciler.ManagerConfig{
		Handler:         services.Reconciler,
		Detector:        reconciler.NewFilesystemDetector(cfg.Store.Path, readyPath(cfg), cfg.Reconcile.Debounce),
		InitialTriggers: []reconciler.Trigger{reconciler.TriggerConfigChanged},
		MaxRetries:      cfg.Reconcile.MaxRetries,
		InitialBackoff:  cfg.Reconcile.InitialBackoff,
		MaxBackoff:      cfg.Reconcile.MaxBackoff,
	})
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	if cfg.Scrape.RelationDataPath != "" {
		services.Scrape = scrape.NewProvider(cfg.Scrape.RelationDataPath, cfg.Scrape.Port)
	}

	return services, nil
}

// Close releases the supervisor backend.
func (s *Services) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func supervisorOptions(cfg *config.OperatorConfig) supervisor.Options {
	return supervisor.Options{
		Type: supervisor.BackendType(cfg.Supervisor.Type),
		Pebble: supervisor.PebbleConfig{
			Container:     cfg.Workload.Container,
			Socket:        cfg.Supervisor.Socket,
			ChangeTimeout: cfg.Supervisor.ChangeTimeout,
		},
		Local: supervisor.LocalConfig{
			Container: cfg.Workload.Container,
			RootDir:   cfg.Supervisor.RootDir,
			StateDir:  cfg.Supervisor.StateDir,
		},
	}
}

// readyPath is the path whose appearance means the container can be reached.
func readyPath(cfg *config.OperatorConfig) string {
	if supervisor.BackendType(cfg.Supervisor.Type) == supervisor.BackendLocal {
		return cfg.Supervisor.RootDir
	}
	return cfg.Supervisor.Socket
}

func newStatusSink(path string) (reconciler.StatusSink, error) {
	if path == "" {
		return reconciler.NewMemorySink(), nil
	}
	sink, err := reconciler.NewFileSink(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open status file %s: %w", path, err)
	}
	return sink, nil
}
