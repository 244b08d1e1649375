package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var errMultipleDocuments = errors.New("multiple YAML documents in modules config")

// ModulesKey is the single top-level key of a rendered document.
const ModulesKey = "modules"

// Config is a canonical rendered configuration document.
type Config struct {
	// Modules is the value stored under the modules key.
	Modules interface{}

	// Dropped lists top-level keys of the input that were discarded because
	// they sat next to an explicit modules key.
	Dropped []string

	data []byte
}

// Render parses raw and returns the canonical document. A parse failure yields
// a *ValidationError and no Config.
func Render(raw string) (*Config, error) {
	var parsed interface{}
	dec := yaml.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&parsed); err != nil && err != io.EOF {
		return nil, &ValidationError{Message: err.Error(), Err: err}
	}
	var extra interface{}
	switch err := dec.Decode(&extra); {
	case err == nil:
		return nil, &ValidationError{Message: errMultipleDocuments.Error(), Err: errMultipleDocuments}
	case err != io.EOF:
		return nil, &ValidationError{Message: err.Error(), Err: err}
	}

	cfg := &Config{}
	switch v := parsed.(type) {
	case nil:
		cfg.Modules = map[string]interface{}{}
	case map[string]interface{}:
		if modules, ok := v[ModulesKey]; ok {
			cfg.Modules = modules
			for k := range v {
				if k != ModulesKey {
					cfg.Dropped = append(cfg.Dropped, k)
				}
			}
			sort.Strings(cfg.Dropped)
		} else {
			cfg.Modules = v
		}
	case map[interface{}]interface{}:
		// yaml.v3 falls back to this type when any key is not a string.
		if modules, ok := v[ModulesKey]; ok {
			cfg.Modules = modules
			for k := range v {
				if k != ModulesKey {
					cfg.Dropped = append(cfg.Dropped, fmt.Sprint(k))
				}
			}
			sort.Strings(cfg.Dropped)
		} else {
			cfg.Modules = v
		}
	default:
		cfg.Modules = v
	}
	// A null modules value renders as an empty mapping, never as null.
	if cfg.Modules == nil {
		cfg.Modules = map[string]interface{}{}
	}

	data, err := encode(map[string]interface{}{ModulesKey: cfg.Modules})
	if err != nil {
		return nil, &ValidationError{Message: err.Error(), Err: err}
	}
	cfg.data = data
	return cfg, nil
}

// Bytes returns the serialized document.
func (c *Config) Bytes() []byte {
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out
}

// String returns the serialized document.
func (c *Config) String() string {
	return string(c.data)
}

// Hash returns the hex SHA-256 digest of the serialized document.
func (c *Config) Hash() string {
	sum := sha256.Sum256(c.data)
	return hex.EncodeToString(sum[:])
}

// encode writes block-style YAML with two-space indentation. yaml.v3 sorts
// map keys, which keeps the output independent of parse order.
func encode(doc interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode modules config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode modules config: %w", err)
	}
	return buf.Bytes(), nil
}
