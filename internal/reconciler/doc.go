// Package reconciler keeps the blackbox exporter sidecar in line with the
// configured probe modules.
//
// # Overview
//
// A reconcile attempt is started by one of two triggers, containerReady or
// configChanged, and both run the same routine:
//
//  1. Install the exporter layer into the process supervisor.
//  2. Stop the exporter service if it is active.
//  3. Render the modules option and push it into the container.
//  4. Start the service again.
//
// The attempt runs inside a single guarded section that ends in exactly one
// outcome. A supervisor that is not reachable yet ends the attempt quietly;
// the next containerReady retries. Invalid modules and supervisor I/O
// failures put the unit in a Blocked status. Failures to install the layer or
// to start the service are returned to the caller.
//
// # Triggers
//
// The Manager feeds attempts from a FilesystemDetector, which watches the
// option store and the supervisor socket, and from explicit Trigger calls.
// One worker drains a queue that deduplicates pending triggers, so attempts
// never overlap.
//
// # Status
//
// The unit status is written to a StatusSink. MemorySink keeps it in memory;
// FileSink persists it for the status command.
package reconciler
