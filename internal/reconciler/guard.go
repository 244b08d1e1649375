package reconciler

import (
	"context"
	"time"

	"blackbox-operator/pkg/logging"
)

// Outcome is the terminal result of a guarded section.
type Outcome string

const (
	OutcomeActive       Outcome = "active"
	OutcomeEarlyExit    Outcome = "early_exit"
	OutcomeBlocked      Outcome = "blocked"
	OutcomeFatal        Outcome = "fatal"
	OutcomeUnclassified Outcome = "unclassified"
)

// unclassifiedMessage is the Blocked message for failures nobody labelled.
// Details only go to the logs.
const unclassifiedMessage = "Error in operator (see logs)"

// guard runs fn as the section named section and turns its error into
// exactly one outcome:
//
//   - nil: fn completed; fn is responsible for the Active status.
//   - early exit: logged at info, status unchanged, nil returned.
//   - blocked: status set to Blocked with the step message, nil returned.
//   - fatal: logged, status unchanged, error returned.
//   - unclassified: logged with detail, status set to a generic Blocked,
//     error returned only when handleExceptions is false.
func guard(ctx context.Context, log *logging.Logger, sink StatusSink, section string, handleExceptions bool, fn func(ctx context.Context) error) (Outcome, error) {
	log.Info("Entering guarded section: '%s'", section)
	start := time.Now()

	err := fn(ctx)
	if err == nil {
		log.Info("Completed guarded section fully: '%s' in %s", section, time.Since(start).Round(time.Millisecond))
		return OutcomeActive, nil
	}

	switch classify(err) {
	case KindEarlyExit:
		log.Info("Guarded section: Early exit from '%s' due to '%v'", section, err)
		return OutcomeEarlyExit, nil

	case KindBlocked:
		msg := statusMessage(err)
		log.Warn("Unit is blocked in section '%s' due to '%s'", section, msg)
		setStatus(log, sink, BlockedStatus(msg))
		return OutcomeBlocked, nil

	case KindFatal:
		log.Error(err, "Unrecoverable failure in section '%s'", section)
		return OutcomeFatal, err

	default:
		log.Error(err, "Unexpected error in section '%s': %+v", section, err)
		setStatus(log, sink, BlockedStatus(unclassifiedMessage))
		if handleExceptions {
			return OutcomeUnclassified, nil
		}
		return OutcomeUnclassified, err
	}
}

func setStatus(log *logging.Logger, sink StatusSink, status Status) {
	if err := sink.SetStatus(status); err != nil {
		log.Error(err, "Failed to record unit status %q", status.String())
	}
}
