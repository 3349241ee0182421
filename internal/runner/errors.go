package runner

import "errors"

var (
	// ErrBusy is returned when Run is called while another run is in progress.
	ErrBusy = errors.New("runner: a scene is already running")

	// ErrNoScene is returned when Run is given a nil scene.
	ErrNoScene = errors.New("runner: no scene")

	// ErrUseDepth is returned when "use" nests sequences too deeply.
	ErrUseDepth = errors.New("runner: sequence nesting too deep")

	// ErrUnknownLabel is returned when a label name is not in the scene's registry.
	ErrUnknownLabel = errors.New("runner: unknown label")

	// ErrRecording is returned for invalid record transitions.
	ErrRecording = errors.New("runner: invalid recording state")
)
