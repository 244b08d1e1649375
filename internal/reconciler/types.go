package reconciler

import (
	"context"
	"time"
)

// Trigger names the lifecycle event that caused a reconcile attempt.
type Trigger string

const (
	// TriggerContainerReady fires once per start of the workload container,
	// when its process supervisor becomes reachable.
	TriggerContainerReady Trigger = "containerReady"

	// TriggerConfigChanged fires whenever the option store changes.
	TriggerConfigChanged Trigger = "configChanged"
)

// State is the externally visible unit state.
type State string

const (
	// StateWaiting means no attempt has completed yet.
	StateWaiting State = "waiting"

	// StateActive means the exporter is running with the current config.
	StateActive State = "active"

	// StateBlocked means operator intervention is needed; Message says why.
	StateBlocked State = "blocked"
)

// Status is the outcome of the last reconcile attempt as shown to operators.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// ActiveStatus returns the Active status.
func ActiveStatus() Status {
	return Status{State: StateActive}
}

// BlockedStatus returns a Blocked status carrying msg.
func BlockedStatus(msg string) Status {
	return Status{State: StateBlocked, Message: msg}
}

// WaitingStatus returns a Waiting status carrying msg.
func WaitingStatus(msg string) Status {
	return Status{State: StateWaiting, Message: msg}
}

// String renders the status the way dashboards show it, e.g. "blocked: bad yaml".
func (s Status) String() string {
	if s.Message == "" {
		return string(s.State)
	}
	return string(s.State) + ": " + s.Message
}

// StatusSink receives the unit status. The last write wins.
type StatusSink interface {
	SetStatus(status Status) error
	Status() Status
}

// Handler runs one reconcile attempt for a trigger.
type Handler interface {
	Reconcile(ctx context.Context, trigger Trigger) error
}

// ChangeEvent is a trigger detected by a ChangeDetector.
type ChangeEvent struct {
	Trigger Trigger

	// Path is the file whose change produced the event, if any.
	Path string

	Timestamp time.Time
}

// ChangeDetector watches for conditions that should trigger a reconcile.
type ChangeDetector interface {
	// Start begins watching and sends events to changes until ctx is done or
	// Stop is called.
	Start(ctx context.Context, changes chan<- ChangeEvent) error

	// Stop gracefully stops the change detector.
	Stop() error
}
