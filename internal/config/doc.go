// Package config loads the operator's own configuration and provides the
// declarative option store the reconciler reads the modules text from.
//
// The operator configuration is a single config.yaml. Loading starts from
// GetDefaultConfig, overlays the file when present, and validates the result:
//
//	cfg, err := config.LoadConfig("/etc/blackbox-operator")
//	if err != nil {
//	    return err
//	}
//
// The option store is separate from the operator configuration: it holds the
// user-facing options (currently only modules) and is re-read on every
// reconcile so edits are picked up without a restart.
package config
