package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"blackbox-operator/internal/config"
	"blackbox-operator/internal/reconciler"
	"blackbox-operator/pkg/logging"
)

// Application bootstraps and runs the operator.
//
// Example usage:
//
//	app, err := app.NewApplication(app.NewConfig(false, "/etc/blackbox-operator"))
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer app.Close()
//	return app.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration, initializes logging and builds
// every service. The caller must Close the application.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.OperatorConfig == nil {
		operatorCfg, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.OperatorConfig = &operatorCfg
	}

	if err := initLogging(cfg); err != nil {
		return nil, err
	}

	services, err := InitializeServices(cfg.OperatorConfig)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func initLogging(cfg *Config) error {
	level, err := logging.ParseLevel(cfg.OperatorConfig.Logging.Level)
	if err != nil {
		return err
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}

	var output io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		output = cfg.LogOutput
	}
	logging.Init(level, logging.Format(cfg.OperatorConfig.Logging.Format), output)
	return nil
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run executes the operator until ctx is cancelled or a termination signal
// arrives.
func (a *Application) Run(ctx context.Context) error {
	return runDaemon(ctx, a.config.OperatorConfig, a.services)
}

// ReconcileOnce runs a single reconcile attempt for trigger and returns the
// resulting unit status.
func (a *Application) ReconcileOnce(ctx context.Context, trigger reconciler.Trigger) (reconciler.Status, error) {
	err := a.services.Reconciler.Reconcile(ctx, trigger)
	return a.services.Status.Status(), err
}

// Close releases the services.
func (a *Application) Close() error {
	return a.services.Close()
}
