package media

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type recordedRun struct {
	name string
	args []string
}

func fakeFFmpeg(out string, err error, calls *[]recordedRun) *FFmpeg {
	f := New("", "")
	f.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedRun{name: name, args: args})
		return []byte(out), err
	}
	return f
}

func TestDuration(t *testing.T) {
	var calls []recordedRun
	f := fakeFFmpeg("12.345000\n", nil, &calls)

	got, err := f.Duration(context.Background(), "vo/intro.mp3")
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if got != 12.345 {
		t.Errorf("Duration() = %v, want 12.345", got)
	}
	want := []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", "vo/intro.mp3"}
	if calls[0].name != "ffprobe" || !reflect.DeepEqual(calls[0].args, want) {
		t.Errorf("ran %s %v", calls[0].name, calls[0].args)
	}
}

func TestDuration_Errors(t *testing.T) {
	var calls []recordedRun
	if _, err := fakeFFmpeg("N/A", nil, &calls).Duration(context.Background(), "x.mp3"); !errors.Is(err, ErrProbeFailed) {
		t.Errorf("Duration() error = %v, want ErrProbeFailed", err)
	}
	if _, err := fakeFFmpeg("No such file", errors.New("exit status 1"), &calls).Duration(context.Background(), "x.mp3"); err == nil || !strings.Contains(err.Error(), "No such file") {
		t.Errorf("Duration() error = %v, want tool output", err)
	}
}

func TestHasAudio(t *testing.T) {
	var calls []recordedRun
	has, err := fakeFFmpeg("1\n", nil, &calls).HasAudio(context.Background(), "raw.mp4")
	if err != nil || !has {
		t.Errorf("HasAudio() = %v, %v; want true", has, err)
	}
	has, err = fakeFFmpeg("", nil, &calls).HasAudio(context.Background(), "raw.mp4")
	if err != nil || has {
		t.Errorf("HasAudio() = %v, %v; want false", has, err)
	}
}

func TestMix_NoTracks(t *testing.T) {
	var calls []recordedRun
	if err := fakeFFmpeg("", nil, &calls).Mix(context.Background(), MixRequest{Video: "a.mp4", Output: "b.mp4"}); err == nil {
		t.Error("Mix() with no tracks should fail")
	}
	if len(calls) != 0 {
		t.Errorf("ffmpeg ran %d times, want 0", len(calls))
	}
}

func TestBuildMixArgs(t *testing.T) {
	req := MixRequest{
		Video:  "raw.mp4",
		Output: "raw-final.mp4",
		Tracks: []Track{
			{File: "vo.mp3", Start: 1.5, Volume: 1},
			{File: "bed.mp3", Start: 0, End: 10, FadeIn: 2, FadeOut: 3, Volume: 0.3, Loop: true, ClipOffset: 4},
		},
	}

	args := BuildMixArgs(req)
	joined := strings.Join(args, " ")

	if !strings.HasPrefix(joined, "-y -i raw.mp4 -i vo.mp3 -stream_loop -1 -i bed.mp3 -filter_complex ") {
		t.Errorf("inputs wrong: %s", joined)
	}

	graph := args[indexOf(args, "-filter_complex")+1]
	for _, want := range []string{
		"[1:a]atrim=start=0,asetpts=PTS-STARTPTS,volume='1':eval=frame,adelay=1500|1500[a0]",
		"[2:a]atrim=start=4:duration=10,asetpts=PTS-STARTPTS,afade=t=in:st=0:d=2,afade=t=out:st=7:d=3,volume='0.3':eval=frame[a1]",
		"[a0][a1]amix=inputs=2:duration=longest:dropout_transition=0:normalize=0[aout]",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph %q missing %q", graph, want)
		}
	}

	if !strings.HasSuffix(joined, "-map 0:v -map [aout] -c:v copy -c:a aac -shortest raw-final.mp4") {
		t.Errorf("outputs wrong: %s", joined)
	}
}

func TestBuildMixArgs_KeepVideoAudio(t *testing.T) {
	args := BuildMixArgs(MixRequest{
		Video: "raw.mp4", Output: "out.mp4", KeepVideoAudio: true,
		Tracks: []Track{{File: "vo.mp3", Volume: 1}},
	})
	graph := args[indexOf(args, "-filter_complex")+1]
	if !strings.Contains(graph, "[0:a][a0]amix=inputs=2") {
		t.Errorf("graph %q does not mix capture audio", graph)
	}
}

func TestVolumeExpr(t *testing.T) {
	tests := []struct {
		name  string
		base  float64
		ramps []Ramp
		want  string
	}{
		{"constant", 0.5, nil, "0.5"},
		{"step", 1, []Ramp{{At: 2, To: 0.2}}, "if(lt(t,2),1,0.2)"},
		{"ramp", 1, []Ramp{{At: 2, To: 0.5, Duration: 1}}, "if(lt(t,2),1,if(lt(t,3),1+(-0.5)*(t-2)/1,0.5))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VolumeExpr(tt.base, tt.ramps); got != tt.want {
				t.Errorf("VolumeExpr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}
