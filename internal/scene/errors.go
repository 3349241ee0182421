package scene

import "errors"

// Domain errors for scene loading.
var (
	// ErrInvalidAction is returned when a sequence item is neither a bare kind
	// nor a single-key mapping.
	ErrInvalidAction = errors.New("scene: invalid action")

	// ErrInvalidDuration is returned for wait expressions that cannot be parsed.
	ErrInvalidDuration = errors.New("scene: invalid duration")

	// ErrUnknownSequence is returned when a use action names a sequence that
	// does not exist or nesting is too deep.
	ErrUnknownSequence = errors.New("scene: unknown sequence")

	// ErrEmptySequence is returned when a scene has nothing to run.
	ErrEmptySequence = errors.New("scene: sequence is empty")
)
