package config

import "time"

// OperatorConfig is the top-level configuration structure for the operator.
type OperatorConfig struct {
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Workload   WorkloadConfig   `yaml:"workload"`
	Store      StoreConfig      `yaml:"store"`
	Status     StatusConfig     `yaml:"status"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Scrape     ScrapeConfig     `yaml:"scrape"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SupervisorConfig selects and configures the process-supervisor backend.
type SupervisorConfig struct {
	Type          string        `yaml:"type" validate:"oneof=pebble local"`
	Socket        string        `yaml:"socket,omitempty" validate:"required_if=Type pebble"`  // Pebble unix socket
	RootDir       string        `yaml:"rootDir,omitempty" validate:"required_if=Type local"`  // local backend filesystem root
	StateDir      string        `yaml:"stateDir,omitempty" validate:"required_if=Type local"` // local backend layers and lock
	ChangeTimeout time.Duration `yaml:"changeTimeout,omitempty" validate:"gte=0"`
}

// WorkloadConfig describes the single managed sidecar service.
type WorkloadConfig struct {
	Container       string `yaml:"container" validate:"required"`
	Service         string `yaml:"service" validate:"required"`
	LayerLabel      string `yaml:"layerLabel" validate:"required"`
	Binary          string `yaml:"binary" validate:"required"`
	ConfigPath      string `yaml:"configPath" validate:"required,startswith=/"`
	CommandTemplate string `yaml:"commandTemplate,omitempty"`
}

// StoreConfig points at the declarative option store.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
	Key  string `yaml:"key" validate:"required"`
}

// StatusConfig controls where the unit status is persisted. An empty path
// keeps it in memory only.
type StatusConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ReconcileConfig tunes the reconciler and its trigger manager.
type ReconcileConfig struct {
	// HandleExceptions downgrades unclassified failures to a Blocked status.
	// When false they are returned to the caller instead.
	HandleExceptions bool          `yaml:"handleExceptions"`
	Debounce         time.Duration `yaml:"debounce,omitempty" validate:"gte=0"`
	MaxRetries       int           `yaml:"maxRetries" validate:"gte=0"`
	InitialBackoff   time.Duration `yaml:"initialBackoff,omitempty" validate:"gte=0"`
	MaxBackoff       time.Duration `yaml:"maxBackoff,omitempty" validate:"gte=0"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `yaml:"address,omitempty" validate:"omitempty,hostname_port"`
}

// ScrapeConfig configures publication of the exporter's scrape target.
type ScrapeConfig struct {
	BindAddress      string `yaml:"bindAddress,omitempty" validate:"omitempty,ip"`
	Port             int    `yaml:"port" validate:"gte=1,lte=65535"`
	RelationDataPath string `yaml:"relationDataPath,omitempty"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}
