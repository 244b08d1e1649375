package cli

import "fmt"

// BlockedError reports that a command finished but left the unit Blocked.
type BlockedError struct {
	Message string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("unit is blocked: %s", e.Message)
}
