// Package supervisor provides clients for the in-container process supervisor
// that runs the blackbox exporter.
//
// The Client interface is the only view the reconciler has of the container:
// it installs a layer, lists services, starts and stops them, and writes
// files. Two backends are available:
//
//   - PebbleClient talks to Pebble over its unix socket.
//   - LocalClient runs the service as a child process and writes files under
//     a root directory, for development hosts without Pebble.
//
// A backend that cannot reach the container reports an error matching
// ErrNotReady, which the reconciler treats as "try again on the next trigger"
// rather than as a failure.
package supervisor
