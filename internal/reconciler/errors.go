package reconciler

import (
	"errors"
	"fmt"

	"blackbox-operator/internal/supervisor"
)

// ErrServiceUnavailable is reported when the supervisor does not know the
// exporter service at start time although its layer was installed.
var ErrServiceUnavailable = errors.New("service not available to start")

// Kind classifies a step failure into the outcome the guard applies.
type Kind int

const (
	// KindUnclassified is any failure no step labelled.
	KindUnclassified Kind = iota

	// KindEarlyExit ends the attempt quietly, leaving the status alone.
	KindEarlyExit

	// KindBlocked sets a Blocked status with the step's message.
	KindBlocked

	// KindFatal is returned to the caller without touching the status.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindEarlyExit:
		return "early_exit"
	case KindBlocked:
		return "blocked"
	case KindFatal:
		return "fatal"
	default:
		return "unclassified"
	}
}

// StepError is a failure of one reconcile step, labelled with its Kind.
type StepError struct {
	Kind Kind

	// Message is the short text shown in a Blocked status.
	Message string

	Err error
}

func (e *StepError) Error() string {
	switch {
	case e.Message == "":
		return e.Err.Error()
	case e.Err == nil:
		return e.Message
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func earlyExit(err error) error {
	return &StepError{Kind: KindEarlyExit, Err: err}
}

// blocked builds a KindBlocked error. msg is shown to operators as-is, so it
// should already carry whatever cause detail they need.
func blocked(msg string, err error) error {
	return &StepError{Kind: KindBlocked, Message: msg, Err: err}
}

func fatal(msg string, err error) error {
	return &StepError{Kind: KindFatal, Message: msg, Err: err}
}

// classify returns the Kind of err. Unlabelled not-ready errors count as an
// early exit.
func classify(err error) Kind {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind
	}
	if supervisor.IsNotReady(err) {
		return KindEarlyExit
	}
	return KindUnclassified
}

// statusMessage is the Blocked message for a KindBlocked err.
func statusMessage(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Message != "" {
		return stepErr.Message
	}
	return err.Error()
}
