package rfm69

import (
	"errors"
	"fmt"
)

var (
	// ErrModeTimeout is reported when the radio does not signal ModeReady in time
	ErrModeTimeout = errors.New("timed out waiting for mode ready")

	// ErrInvalidConfiguration wraps configuration values the radio cannot represent
	ErrInvalidConfiguration = errors.New("invalid radio configuration")
)

// ConfigError reports a failure while programming the radio. Register is the
// zero value when the failure is not tied to a register write. The device is
// left in an unknown state and must be configured from scratch before use.
type ConfigError struct {
	Register Register
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Register.Label == "" {
		return fmt.Sprintf("configuration failed: %v", e.Err)
	}
	return fmt.Sprintf("configuration failed writing %s: %v", e.Register, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ReadError reports a failed register read during inspection
type ReadError struct {
	Register Register
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Register, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
