package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors for the Agent protocol.
var (
	// ErrConnectionFailed is returned when the channel cannot be opened or a write fails.
	ErrConnectionFailed = errors.New("agent: connection failed")

	// ErrNotConnected is returned by Send before Connect succeeds.
	ErrNotConnected = errors.New("agent: not connected")

	// ErrTimeout is returned when no correlated reply arrives in time.
	ErrTimeout = errors.New("agent: command timed out")

	// ErrCommandFailed is wrapped by CommandError.
	ErrCommandFailed = errors.New("agent: command failed")

	// ErrClosed is returned for commands in flight when the channel closes.
	ErrClosed = errors.New("agent: connection closed")
)

// CommandError is returned when the Agent replies with ok:false.
type CommandError struct {
	Action  string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("agent: %s failed: %s", e.Action, e.Message)
}

// Unwrap lets errors.Is match ErrCommandFailed.
func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}
