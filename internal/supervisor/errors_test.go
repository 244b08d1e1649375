package supervisor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotReady(t *testing.T) {
	cause := errors.New("dial unix /charm/containers/blackbox-exporter/pebble.socket: connect: no such file or directory")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "sentinel", err: ErrNotReady, want: true},
		{name: "typed", err: &NotReadyError{Container: "blackbox-exporter", Err: cause}, want: true},
		{name: "wrapped typed", err: fmt.Errorf("list services: %w", &NotReadyError{Container: "c"}), want: true},
		{name: "other", err: cause, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotReady(tt.err))
		})
	}
}

func TestNotReadyError_Message(t *testing.T) {
	err := &NotReadyError{Container: "blackbox-exporter", Err: errors.New("connection refused")}
	assert.Equal(t, "container blackbox-exporter not available: connection refused", err.Error())
	assert.Equal(t, "container c not available", (&NotReadyError{Container: "c"}).Error())
}
