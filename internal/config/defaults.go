package config

import "time"

const (
	// DefaultContainerName is the workload container managed by the operator.
	DefaultContainerName = "blackbox-exporter"

	// DefaultServiceName is the supervisor service running the exporter.
	DefaultServiceName = "blackbox-exporter"

	// DefaultLayerLabel labels the layer installed into the supervisor.
	DefaultLayerLabel = "blackbox_exporter"

	// DefaultConfigPath is where the rendered modules config is pushed. The
	// layer command reads from the same path.
	DefaultConfigPath = "/etc/blackbox_exporter/config.yaml"

	// DefaultModulesKey is the option holding the modules text.
	DefaultModulesKey = "modules"

	// DefaultScrapePort is the exporter's listen port.
	DefaultScrapePort = 9115
)

// DefaultModules is used when the modules option has never been set.
const DefaultModules = `http_2xx:
  prober: http
  timeout: 5s
`

// GetDefaultConfig returns the default configuration, suitable for a Pebble
// sidecar deployment.
func GetDefaultConfig() OperatorConfig {
	return OperatorConfig{
		Supervisor: SupervisorConfig{
			Type:          "pebble",
			Socket:        "/charm/containers/" + DefaultContainerName + "/pebble.socket",
			ChangeTimeout: 30 * time.Second,
		},
		Workload: WorkloadConfig{
			Container:  DefaultContainerName,
			Service:    DefaultServiceName,
			LayerLabel: DefaultLayerLabel,
			Binary:     "/bin/blackbox_exporter",
			ConfigPath: DefaultConfigPath,
		},
		Store: StoreConfig{
			Path: "/var/lib/blackbox-operator/options.yaml",
			Key:  DefaultModulesKey,
		},
		Status: StatusConfig{
			Path: "/var/lib/blackbox-operator/status.yaml",
		},
		Reconcile: ReconcileConfig{
			HandleExceptions: true,
			Debounce:         500 * time.Millisecond,
			MaxRetries:       5,
			InitialBackoff:   time.Second,
			MaxBackoff:       5 * time.Minute,
		},
		Scrape: ScrapeConfig{
			Port: DefaultScrapePort,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
