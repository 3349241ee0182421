package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Track is one clip placed on the recording timeline. Times are seconds.
type Track struct {
	File string

	// Start is when playback began, relative to the recording start.
	Start float64

	// End is when playback was stopped; zero plays to the clip's end.
	End float64

	// ClipOffset skips into the clip before playing.
	ClipOffset float64

	FadeIn  float64
	FadeOut float64
	Volume  float64
	Loop    bool

	// Ramps are volume changes relative to Start.
	Ramps []Ramp
}

// Ramp moves the volume linearly to To over Duration seconds from At.
type Ramp struct {
	At       float64
	To       float64
	Duration float64
}

// MixRequest describes a final mix.
type MixRequest struct {
	Video  string
	Output string
	Tracks []Track

	// KeepVideoAudio mixes the capture's own audio (e.g. a live mic) with the tracks.
	KeepVideoAudio bool
}

// BuildMixArgs returns the ffmpeg arguments for req.
//
// Each track is trimmed, faded, volume-shaped and delayed to its start
// offset, then all are combined with amix. Video is stream-copied.
func BuildMixArgs(req MixRequest) []string {
	args := []string{"-y", "-i", req.Video}
	for _, t := range req.Tracks {
		if t.Loop {
			args = append(args, "-stream_loop", "-1")
		}
		args = append(args, "-i", t.File)
	}

	var graph strings.Builder
	var labels []string
	if req.KeepVideoAudio {
		labels = append(labels, "[0:a]")
	}
	for i, t := range req.Tracks {
		label := fmt.Sprintf("[a%d]", i)
		fmt.Fprintf(&graph, "[%d:a]%s%s;", i+1, trackFilters(t), label)
		labels = append(labels, label)
	}
	fmt.Fprintf(&graph, "%samix=inputs=%d:duration=longest:dropout_transition=0:normalize=0[aout]",
		strings.Join(labels, ""), len(labels))

	return append(args,
		"-filter_complex", graph.String(),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		req.Output,
	)
}

// trackFilters builds the filter chain for one track.
func trackFilters(t Track) string {
	var chain []string

	trim := "atrim=start=" + num(t.ClipOffset)
	length := 0.0
	if t.End > t.Start {
		length = t.End - t.Start
		trim += ":duration=" + num(length)
	}
	chain = append(chain, trim, "asetpts=PTS-STARTPTS")

	if t.FadeIn > 0 {
		chain = append(chain, fmt.Sprintf("afade=t=in:st=0:d=%s", num(t.FadeIn)))
	}
	if t.FadeOut > 0 && length > 0 {
		st := length - t.FadeOut
		if st < 0 {
			st = 0
		}
		chain = append(chain, fmt.Sprintf("afade=t=out:st=%s:d=%s", num(st), num(t.FadeOut)))
	}

	chain = append(chain, fmt.Sprintf("volume='%s':eval=frame", VolumeExpr(t.Volume, t.Ramps)))

	delay := int64(t.Start * 1000)
	if delay > 0 {
		chain = append(chain, fmt.Sprintf("adelay=%d|%d", delay, delay))
	}
	return strings.Join(chain, ",")
}

// VolumeExpr builds a piecewise-linear ffmpeg volume expression in t
// starting at base and following ramps in order.
func VolumeExpr(base float64, ramps []Ramp) string {
	var build func(i int, from float64) string
	build = func(i int, from float64) string {
		if i == len(ramps) {
			return num(from)
		}
		r := ramps[i]
		if r.Duration <= 0 {
			return fmt.Sprintf("if(lt(t,%s),%s,%s)", num(r.At), num(from), build(i+1, r.To))
		}
		return fmt.Sprintf("if(lt(t,%s),%s,if(lt(t,%s),%s+(%s)*(t-%s)/%s,%s))",
			num(r.At), num(from),
			num(r.At+r.Duration), num(from), num(r.To-from), num(r.At), num(r.Duration),
			build(i+1, r.To))
	}
	return build(0, base)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
