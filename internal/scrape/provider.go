package scrape

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"sigs.k8s.io/yaml"

	"blackbox-operator/pkg/logging"
)

// TargetsKey is the relation-data key holding the JSON target list.
const TargetsKey = "targets"

// Provider writes the exporter's scrape target into a relation-data file.
type Provider struct {
	// Path is the relation-data file.
	Path string

	// Port is the exporter's listen port.
	Port int
}

// NewProvider creates a provider writing to path.
func NewProvider(path string, port int) *Provider {
	return &Provider{Path: path, Port: port}
}

// Publish records bindAddress:Port as the only scrape target and returns it.
func (p *Provider) Publish(bindAddress string) (string, error) {
	ip := net.ParseIP(bindAddress)
	if ip == nil {
		return "", fmt.Errorf("invalid bind address %q", bindAddress)
	}
	if p.Port < 1 || p.Port > 65535 {
		return "", fmt.Errorf("invalid scrape port %d", p.Port)
	}

	target := net.JoinHostPort(ip.String(), strconv.Itoa(p.Port))
	encoded, err := json.Marshal([]string{target})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create relation data directory: %w", err)
	}

	lock := flock.New(p.Path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("failed to lock relation data %s: %w", p.Path, err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := readData(p.Path)
	if err != nil {
		return "", err
	}
	data[TargetsKey] = string(encoded)

	if err := writeData(p.Path, data); err != nil {
		return "", err
	}

	logging.Info("Scrape", "Provided %s on %s", target, p.Path)
	return target, nil
}

// Targets returns the targets currently published in the file at path.
func Targets(path string) ([]string, error) {
	data, err := readData(path)
	if err != nil {
		return nil, err
	}
	raw, ok := data[TargetsKey]
	if !ok {
		return nil, nil
	}
	var targets []string
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return nil, fmt.Errorf("invalid %s value in %s: %w", TargetsKey, path, err)
	}
	return targets, nil
}

func readData(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read relation data %s: %w", path, err)
	}

	data := map[string]string{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to parse relation data %s: %w", path, err)
	}
	if data == nil {
		data = map[string]string{}
	}
	return data, nil
}

func writeData(path string, data map[string]string) error {
	content, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("failed to write relation data %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}
