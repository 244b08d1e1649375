package supervisor

import (
	"fmt"
	"io"
	"strings"
)

// BackendType selects a supervisor backend.
type BackendType string

const (
	BackendPebble BackendType = "pebble"
	BackendLocal  BackendType = "local"
)

// Options carries the settings for every backend; only the block matching
// Type is used.
type Options struct {
	Type   BackendType
	Pebble PebbleConfig
	Local  LocalConfig
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates the backend selected by opts.Type. The returned io.Closer
// releases backend resources and must be called on shutdown.
func New(opts Options) (Client, io.Closer, error) {
	switch BackendType(strings.ToLower(string(opts.Type))) {
	case BackendPebble, "":
		c, err := NewPebbleClient(opts.Pebble)
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil
	case BackendLocal:
		c, err := NewLocalClient(opts.Local)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unsupported supervisor backend: %s", opts.Type)
	}
}
