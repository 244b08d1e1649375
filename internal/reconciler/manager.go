package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"blackbox-operator/pkg/logging"
)

const managerSubsystem = "ReconcileManager"

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Handler runs each attempt. Required.
	Handler Handler

	// Detector feeds triggers into the queue. Optional; without one triggers
	// only arrive through Trigger and InitialTriggers.
	Detector ChangeDetector

	// InitialTriggers are queued when the manager starts.
	InitialTriggers []Trigger

	// MaxRetries bounds how often a failed trigger is retried.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Manager serializes reconcile attempts: one worker drains a queue that
// deduplicates pending triggers, and failed attempts are requeued with
// exponential backoff.
type Manager struct {
	mu sync.RWMutex

	config ManagerConfig
	queue  *workQueue

	changeChan chan ChangeEvent

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	running    bool

	lastErr error
}

// NewManager creates a new trigger manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("reconcile handler is required")
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 5
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 5 * time.Minute
	}

	return &Manager{
		config:     config,
		queue:      newWorkQueue(),
		changeChan: make(chan ChangeEvent, 16),
	}, nil
}

// Start starts the detector and the worker.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.ctx, m.cancelFunc = context.WithCancel(ctx)
	m.running = true
	m.mu.Unlock()

	if m.config.Detector != nil {
		if err := m.config.Detector.Start(m.ctx, m.changeChan); err != nil {
			m.mu.Lock()
			m.running = false
			m.cancelFunc()
			m.mu.Unlock()
			return fmt.Errorf("failed to start change detector: %w", err)
		}
	}

	for _, trigger := range m.config.InitialTriggers {
		m.Trigger(trigger)
	}

	m.wg.Add(2)
	go m.processChangeEvents()
	go m.worker()

	logging.Info(managerSubsystem, "Started")
	return nil
}

// Run starts the manager and blocks until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return m.Stop()
}

// Trigger queues a reconcile for trigger.
func (m *Manager) Trigger(trigger Trigger) {
	logging.Debug(managerSubsystem, "Queueing %s", trigger)
	m.queue.Add(ReconcileRequest{Trigger: trigger, Attempt: 1})
}

func (m *Manager) processChangeEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case event := <-m.changeChan:
			logging.Debug(managerSubsystem, "Handling change event %s from %s", event.Trigger, event.Path)
			m.Trigger(event.Trigger)
		}
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		req, ok := m.queue.Get(m.ctx)
		if !ok {
			logging.Debug(managerSubsystem, "Worker shutting down")
			return
		}

		m.processRequest(req)
		m.queue.Done(req)
	}
}

func (m *Manager) processRequest(req ReconcileRequest) {
	logging.Debug(managerSubsystem, "Reconciling %s (attempt %d)", req.Trigger, req.Attempt)

	err := m.config.Handler.Reconcile(m.ctx, req.Trigger)

	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()

	if err == nil {
		return
	}
	if m.ctx.Err() != nil {
		return
	}

	if req.Attempt >= m.config.MaxRetries {
		logging.Error(managerSubsystem, err, "Max retries exceeded for %s", req.Trigger)
		return
	}

	backoff := m.calculateBackoff(req.Attempt)
	logging.Warn(managerSubsystem, "Reconcile for %s failed, retrying in %v (attempt %d): %v",
		req.Trigger, backoff, req.Attempt+1, err)

	req.Attempt++
	req.LastError = err
	m.queue.AddAfter(req, backoff)
}

// calculateBackoff returns initial * 2^(attempt-1), capped at MaxBackoff.
func (m *Manager) calculateBackoff(attempt int) time.Duration {
	backoff := m.config.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= m.config.MaxBackoff {
			return m.config.MaxBackoff
		}
	}
	if backoff > m.config.MaxBackoff {
		backoff = m.config.MaxBackoff
	}
	return backoff
}

// Stop shuts down the detector and the worker, waiting for an attempt in
// progress to finish.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	logging.Info(managerSubsystem, "Stopping trigger manager...")

	m.cancelFunc()

	if m.config.Detector != nil {
		if err := m.config.Detector.Stop(); err != nil {
			logging.Error(managerSubsystem, err, "Error stopping change detector")
		}
	}

	m.queue.Shutdown()
	m.wg.Wait()

	logging.Info(managerSubsystem, "Trigger manager stopped")
	return nil
}

// IsRunning returns whether the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// QueueLength returns the number of queued triggers.
func (m *Manager) QueueLength() int {
	return m.queue.Len()
}

// LastError returns the error of the most recent attempt.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
