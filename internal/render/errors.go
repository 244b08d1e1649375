package render

import "fmt"

// ValidationError is returned when the configuration text cannot be parsed.
type ValidationError struct {
	// Message is the parser's description of the failure.
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Failed to load modules config, invalid YAML?: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
