// Package app wires the operator together.
//
// NewApplication loads the operator configuration, initializes logging and
// builds the collaborators in dependency order:
//
//  1. The supervisor backend (Pebble or local) from the supervisor section.
//  2. The option store and the status sink.
//  3. The exporter layer and the sidecar reconciler, with metrics.
//  4. The trigger manager and its filesystem detector.
//
// Run publishes the scrape target if one is configured, then runs the
// trigger manager and the optional metrics endpoint until the context is
// cancelled or SIGINT/SIGTERM arrives. ReconcileOnce runs a single attempt
// without the manager, for the one-shot reconcile command.
package app
