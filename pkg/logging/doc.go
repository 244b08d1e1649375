// Package logging provides structured logging for blackbox-operator, built on
// the standard slog package.
//
// Every entry carries a subsystem attribute naming the component that wrote it,
// and an error attribute when one is passed to Error.
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Reconciler", "Entering guarded section: '%s'", section)
//	logging.Error("Supervisor", err, "Service %s didn't start", name)
//
// Loggers bound to a subsystem and extra attributes are created with With:
//
//	log := logging.With("Reconciler", "attempt", id)
//	log.Warn("Unit is blocked: %s", msg)
//
// Calls made before Init drop Debug and Info entries and write Warn and Error
// entries to stderr.
package logging
