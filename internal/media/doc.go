// Package media wraps the ffmpeg and ffprobe binaries used to probe audio
// clips and mix a scene's audio timeline onto the raw screen capture.
//
// Usage:
//
//	ff := media.New("ffmpeg", "ffprobe")
//	secs, err := ff.Duration(ctx, "vo/intro.mp3")
package media
