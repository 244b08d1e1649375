package reconciler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sigs.k8s.io/yaml"
)

// MemorySink keeps the status in memory.
type MemorySink struct {
	mu      sync.RWMutex
	current Status
	writes  int
}

// NewMemorySink returns a sink that starts out Waiting.
func NewMemorySink() *MemorySink {
	return &MemorySink{current: WaitingStatus("waiting for container")}
}

// SetStatus implements StatusSink.
func (s *MemorySink) SetStatus(status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = status
	s.writes++
	return nil
}

// Status implements StatusSink.
func (s *MemorySink) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Writes returns how many times SetStatus was called.
func (s *MemorySink) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// StatusRecord is the on-disk form written by FileSink.
type StatusRecord struct {
	Status  `json:",inline"`
	Updated time.Time `json:"updated"`
}

// FileSink persists the status as YAML so other processes, such as the
// status command, can read it.
type FileSink struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	current Status
}

// NewFileSink opens a sink at path, starting from the status already stored
// there if any.
func NewFileSink(path string) (*FileSink, error) {
	s := &FileSink{path: path, now: time.Now, current: WaitingStatus("waiting for container")}

	record, err := ReadStatusFile(path)
	switch {
	case err == nil:
		s.current = record.Status
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	return s, nil
}

// SetStatus implements StatusSink. The file is replaced atomically.
func (s *FileSink) SetStatus(status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(StatusRecord{Status: status, Updated: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	s.current = status
	return nil
}

// Status implements StatusSink.
func (s *FileSink) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ReadStatusFile reads a status file written by FileSink.
func ReadStatusFile(path string) (*StatusRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record StatusRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse status file %s: %w", path, err)
	}
	return &record, nil
}
