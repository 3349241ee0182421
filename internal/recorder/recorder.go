package recorder

import (
	"context"
	"errors"
	"strconv"
)

var (
	// ErrAlreadyRecording is returned by Start while a capture is running.
	ErrAlreadyRecording = errors.New("recorder: already recording")

	// ErrNotRecording is returned by Stop when nothing is being captured.
	ErrNotRecording = errors.New("recorder: not recording")
)

// Region is a screen rectangle in pixels.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Options configures one recording.
type Options struct {
	// Output is the file the capture is written to.
	Output string

	// Region crops the capture. Nil records the whole screen.
	Region *Region

	// Audio keeps the capture device's audio track.
	Audio bool
}

// Recorder is the screen-capture contract used by the runner.
type Recorder interface {
	Start(ctx context.Context, opts Options) error
	Stop(ctx context.Context) (string, error)
	ForceStop() error
	IsRecording() bool

	SetOnStarted(fn func(output string))
	SetOnStopped(fn func(output string))
	SetOnError(fn func(err error))
}

// BuildArgs returns the capture arguments for opts.
//
// Layout: <input args> [-vf crop=w:h:x:y] [-an] -y <output>
func BuildArgs(inputArgs []string, opts Options) []string {
	args := make([]string, 0, len(inputArgs)+6)
	args = append(args, inputArgs...)

	if r := opts.Region; r != nil && r.Width > 0 && r.Height > 0 {
		// Even dimensions keep yuv420p encoders happy.
		w, h := r.Width&^1, r.Height&^1
		args = append(args, "-vf", "crop="+strconv.Itoa(w)+":"+strconv.Itoa(h)+":"+strconv.Itoa(r.X)+":"+strconv.Itoa(r.Y))
	}
	if !opts.Audio {
		args = append(args, "-an")
	}
	return append(args, "-y", opts.Output)
}

// Nop records nothing. Stop returns the output path given to Start.
type Nop struct {
	output    string
	recording bool

	onStarted func(string)
	onStopped func(string)
}

// Start marks the recorder as recording.
func (n *Nop) Start(_ context.Context, opts Options) error {
	if n.recording {
		return ErrAlreadyRecording
	}
	n.output = opts.Output
	n.recording = true
	if n.onStarted != nil {
		n.onStarted(opts.Output)
	}
	return nil
}

// Stop ends the pretend recording.
func (n *Nop) Stop(_ context.Context) (string, error) {
	if !n.recording {
		return "", ErrNotRecording
	}
	n.recording = false
	if n.onStopped != nil {
		n.onStopped(n.output)
	}
	return n.output, nil
}

// ForceStop clears the recording state.
func (n *Nop) ForceStop() error {
	n.recording = false
	return nil
}

// IsRecording reports whether Start was called without a matching Stop.
func (n *Nop) IsRecording() bool { return n.recording }

// SetOnStarted sets the started callback.
func (n *Nop) SetOnStarted(fn func(string)) { n.onStarted = fn }

// SetOnStopped sets the stopped callback.
func (n *Nop) SetOnStopped(fn func(string)) { n.onStopped = fn }

// SetOnError is a no-op; Nop never fails.
func (n *Nop) SetOnError(func(error)) {}
