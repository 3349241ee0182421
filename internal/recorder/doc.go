// Package recorder captures the screen to a video file while a scene runs.
//
// Capture drives one ffmpeg subprocess per recording. It is started in its
// own process group so that stopping it reaches every child, and it is
// stopped with SIGINT so ffmpeg can finalise the container before exiting.
// If that does not happen within the graceful timeout the group is killed.
//
// ForceStop is the safety net used after teardown: it kills the capture
// process tree without waiting.
//
// Nop satisfies the same interface without starting anything and is used
// for dry runs.
//
// Example usage:
//
//	rec := recorder.NewCapture(recorder.Config{
//	    Binary:    "ffmpeg",
//	    InputArgs: []string{"-f", "avfoundation", "-i", "1:none"},
//	})
//	if err := rec.Start(ctx, recorder.Options{Output: "out.mp4"}); err != nil {
//	    return err
//	}
//	path, err := rec.Stop(ctx)
package recorder
