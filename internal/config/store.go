package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrOptionNotSet is returned by a Store for an option that has no value.
var ErrOptionNotSet = errors.New("option not set")

// Store is the declarative configuration store. Implementations must return
// the latest value on every call.
type Store interface {
	Get(key string) (string, error)
}

// FileStore reads options from a YAML mapping file on every Get. Values that
// are not strings are returned as their YAML text, so both
//
//	modules: |
//	  http_2xx: {prober: http}
//
// and
//
//	modules:
//	  http_2xx: {prober: http}
//
// yield the same option text.
type FileStore struct {
	Path string

	// Defaults are returned for options absent from the file.
	Defaults map[string]string
}

// NewFileStore creates a FileStore for path with the default modules option.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		Path:     path,
		Defaults: map[string]string{DefaultModulesKey: DefaultModules},
	}
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, error) {
	options, err := s.read()
	if err != nil {
		return "", err
	}

	if value, ok := options[key]; ok && value != nil {
		switch v := value.(type) {
		case string:
			return v, nil
		default:
			data, err := yaml.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("option %s: %w", key, err)
			}
			return string(data), nil
		}
	}

	if def, ok := s.Defaults[key]; ok {
		return def, nil
	}
	return "", fmt.Errorf("option %s: %w", key, ErrOptionNotSet)
}

func (s *FileStore) read() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read options from %s: %w", s.Path, err)
	}

	var options map[string]interface{}
	if err := yaml.Unmarshal(data, &options); err != nil {
		return nil, fmt.Errorf("failed to parse options in %s: %w", s.Path, err)
	}
	return options, nil
}

// MapStore is an in-memory Store.
type MapStore struct {
	mu      sync.RWMutex
	options map[string]string
}

// NewMapStore returns a MapStore seeded with options.
func NewMapStore(options map[string]string) *MapStore {
	s := &MapStore{options: make(map[string]string, len(options))}
	for k, v := range options {
		s.options[k] = v
	}
	return s
}

// Get implements Store.
func (s *MapStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.options[key]
	if !ok {
		return "", fmt.Errorf("option %s: %w", key, ErrOptionNotSet)
	}
	return v, nil
}

// Set changes an option.
func (s *MapStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[key] = value
}
