package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrProbeFailed is returned when ffprobe output cannot be interpreted.
var ErrProbeFailed = errors.New("media: probe failed")

// maxErrorOutput limits how much tool output is carried in an error.
const maxErrorOutput = 2048

// runFunc executes a binary and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // binaries come from config
}

// FFmpeg runs ffmpeg/ffprobe.
type FFmpeg struct {
	Binary      string
	ProbeBinary string

	run runFunc
}

// New creates an FFmpeg using the given binaries, defaulting to "ffmpeg"
// and "ffprobe" on PATH.
func New(binary, probeBinary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if probeBinary == "" {
		probeBinary = "ffprobe"
	}
	return &FFmpeg{Binary: binary, ProbeBinary: probeBinary, run: execRun}
}

// Duration returns the clip length in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	out, err := f.run(ctx, f.ProbeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probing %s: %w: %s", path, err, tail(out))
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: duration %q", ErrProbeFailed, path, strings.TrimSpace(string(out)))
	}
	return secs, nil
}

// HasAudio reports whether the file contains at least one audio stream.
func (f *FFmpeg) HasAudio(ctx context.Context, path string) (bool, error) {
	out, err := f.run(ctx, f.ProbeBinary,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return false, fmt.Errorf("probing %s: %w: %s", path, err, tail(out))
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// Mix renders req.Output from the video in req.Video and the audio tracks.
func (f *FFmpeg) Mix(ctx context.Context, req MixRequest) error {
	if len(req.Tracks) == 0 {
		return fmt.Errorf("media: mix %s: no tracks", req.Output)
	}
	out, err := f.run(ctx, f.Binary, BuildMixArgs(req)...)
	if err != nil {
		return fmt.Errorf("ffmpeg mix %s: %w: %s", req.Output, err, tail(out))
	}
	return nil
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxErrorOutput {
		return "..." + s[len(s)-maxErrorOutput:]
	}
	return s
}
