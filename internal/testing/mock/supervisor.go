package mock

import (
	"context"
	"fmt"
	"sync"

	"blackbox-operator/internal/layer"
	"blackbox-operator/internal/supervisor"
)

// Call is one recorded supervisor call.
type Call struct {
	Method string
	Arg    string
}

func (c Call) String() string {
	if c.Arg == "" {
		return c.Method
	}
	return c.Method + "(" + c.Arg + ")"
}

// Supervisor is an in-memory supervisor.Client that records every call.
//
// Services reports ServiceStatus as configured in Statuses. Start and Stop
// update it, and AddLayer registers any service of the layer as inactive.
// Each method fails with the matching *Err field when set.
type Supervisor struct {
	mu sync.Mutex

	Statuses map[string]supervisor.ServiceStatus
	Layers   map[string]*layer.Layer
	Files    map[string][]byte

	AddLayerErr error
	ServicesErr error
	StartErr    error
	StopErr     error
	PushErr     error

	// ServicesErrAfter makes Services fail with ServicesErr only from the
	// given call number on (1-based). Zero fails every call.
	ServicesErrAfter int

	// KeepServicesHidden stops AddLayer from registering services, to mimic a
	// supervisor that drops them.
	KeepServicesHidden bool

	calls         []Call
	servicesCalls int
}

// NewSupervisor returns a ready supervisor with no services.
func NewSupervisor() *Supervisor {
	return &Supervisor{
		Statuses: make(map[string]supervisor.ServiceStatus),
		Layers:   make(map[string]*layer.Layer),
		Files:    make(map[string][]byte),
	}
}

func (s *Supervisor) record(method, arg string) {
	s.calls = append(s.calls, Call{Method: method, Arg: arg})
}

// AddLayer implements supervisor.Client.
func (s *Supervisor) AddLayer(_ context.Context, label string, l *layer.Layer, combine bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("AddLayer", label)
	if s.AddLayerErr != nil {
		return s.AddLayerErr
	}
	if existing, ok := s.Layers[label]; ok {
		if !combine {
			return fmt.Errorf("layer %q already exists", label)
		}
		merged, err := layer.Combine(existing, l)
		if err != nil {
			return err
		}
		l = merged
	}
	s.Layers[label] = l

	if !s.KeepServicesHidden {
		for name := range l.Services {
			if _, ok := s.Statuses[name]; !ok {
				s.Statuses[name] = supervisor.StatusInactive
			}
		}
	}
	return nil
}

// Services implements supervisor.Client.
func (s *Supervisor) Services(_ context.Context) (map[string]supervisor.ServiceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("Services", "")
	s.servicesCalls++
	if s.ServicesErr != nil && s.servicesCalls >= s.ServicesErrAfter {
		return nil, s.ServicesErr
	}

	out := make(map[string]supervisor.ServiceStatus, len(s.Statuses))
	for name, status := range s.Statuses {
		out[name] = status
	}
	return out, nil
}

// Start implements supervisor.Client.
func (s *Supervisor) Start(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("Start", name)
	if s.StartErr != nil {
		return s.StartErr
	}
	if _, ok := s.Statuses[name]; !ok {
		return fmt.Errorf("service %q not found", name)
	}
	s.Statuses[name] = supervisor.StatusActive
	return nil
}

// Stop implements supervisor.Client.
func (s *Supervisor) Stop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("Stop", name)
	if s.StopErr != nil {
		return s.StopErr
	}
	s.Statuses[name] = supervisor.StatusInactive
	return nil
}

// Push implements supervisor.Client.
func (s *Supervisor) Push(_ context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("Push", path)
	if s.PushErr != nil {
		return s.PushErr
	}
	s.Files[path] = append([]byte(nil), content...)
	return nil
}

// Calls returns the recorded calls in order.
func (s *Supervisor) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Methods returns the recorded calls rendered as strings, e.g. "Stop(svc)".
func (s *Supervisor) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.String()
	}
	return out
}

// File returns the content pushed to path.
func (s *Supervisor) File(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.Files[path]
	return data, ok
}

// SetStatus sets the reported status of a service.
func (s *Supervisor) SetStatus(name string, status supervisor.ServiceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Statuses[name] = status
}

// Reset forgets recorded calls.
func (s *Supervisor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.servicesCalls = 0
}

var _ supervisor.Client = (*Supervisor)(nil)
