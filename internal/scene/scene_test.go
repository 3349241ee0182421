package scene

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const notesScene = `
name: notes-demo
app:
  name: Notes
  window: {width: 1200, height: 800}
  offset: {x: 0, y: -28}
stage:
  backdrop: true
  viewport: {padding: 10}
views:
  sidebar:
    items:
      home: {x: 40, y: 120}
    positions:
      search: {x: "50%", y: 24}
labels:
  intro: {text: "Meet Notes", position: top}
sequences:
  open-home:
    - click: sidebar.home
    - voice.play: vo/home.mp3
sequence:
  - cursor.show
  - click: {x: 100, y: 100}
  - wait: 1s
  - record: start
  - label: intro
  - typer.type: {text: hello, delay: 40}
  - input.keys: cmd+s
  - audio.play: {file: music/bed.mp3, channel: 2, volume: 0.3}
  - use: open-home
  - zoom: {level: 2, x: 300, y: 200}
  - sparkle: {intensity: 3}
  - wait: 2
  - record: stop
`

func TestParse_NotesScene(t *testing.T) {
	s, err := Parse([]byte(notesScene))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if s.Name != "notes-demo" || s.Mode != ModeDraft {
		t.Errorf("Name/Mode = %q/%q", s.Name, s.Mode)
	}
	if s.App == nil || s.App.Window.Width != 1200 || s.App.Offset.Y != -28 {
		t.Errorf("App = %+v", s.App)
	}
	if !s.Stage.Backdrop || s.Stage.Viewport == nil || s.Stage.Viewport.Padding != 10 {
		t.Errorf("Stage = %+v", s.Stage)
	}
	if got := s.Views["sidebar"].Positions["search"].X; !got.Percent || got.Value != 50 {
		t.Errorf("search.x = %+v, want 50%%", got)
	}

	wantKinds := []Kind{
		KindCursorShow, KindClick, KindWait, KindRecord, KindLabel, KindTyperType,
		KindInputKeys, KindAudioPlay, KindUse, KindZoom, Kind("sparkle"), KindWait, KindRecord,
	}
	if len(s.Sequence) != len(wantKinds) {
		t.Fatalf("len(Sequence) = %d, want %d", len(s.Sequence), len(wantKinds))
	}
	for i, k := range wantKinds {
		if s.Sequence[i].Kind != k {
			t.Errorf("Sequence[%d].Kind = %q, want %q", i, s.Sequence[i].Kind, k)
		}
	}

	click := s.Sequence[1].Click
	if click == nil || !click.HasPoint() || *click.X != 100 {
		t.Errorf("click = %+v", click)
	}
	if s.Sequence[4].Label.Name != "intro" {
		t.Errorf("label name = %q", s.Sequence[4].Label.Name)
	}
	if tt := s.Sequence[5].TyperType; tt.Text != "hello" || tt.Delay != 40 {
		t.Errorf("typer = %+v", tt)
	}
	if k := s.Sequence[6].InputKeys; !reflect.DeepEqual(k.Keys, []string{"cmd", "s"}) || !k.Show {
		t.Errorf("keys = %+v", k)
	}
	if p := s.Sequence[7].AudioPlay; p.Channel != 2 || p.Volume == nil || *p.Volume != 0.3 {
		t.Errorf("audio.play = %+v", p)
	}
	if s.Sequence[10].Kind.Known() {
		t.Error("sparkle reported as known")
	}
	if s.Sequence[10].Raw == nil {
		t.Error("unknown kind lost its payload")
	}

	home := s.Sequences["open-home"]
	if len(home) != 2 || home[0].Click.Target != "sidebar.home" || home[1].VoicePlay.File != "vo/home.mp3" {
		t.Errorf("sequences[open-home] = %+v", home)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"empty sequence", "name: x\n", ErrEmptySequence},
		{"two keys", "sequence:\n  - {click: a, wait: 1s}\n", ErrInvalidAction},
		{"bad wait", "sequence:\n  - wait: soon\n", ErrInvalidAction},
		{"bad record", "sequence:\n  - record: pause\n", ErrInvalidAction},
		{"unknown use", "sequence:\n  - use: missing\n", ErrUnknownSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidMode(t *testing.T) {
	if _, err := Parse([]byte("mode: rough\nsequence:\n  - cursor.show\n")); err == nil {
		t.Error("Parse() expected error for invalid mode")
	}
}

func TestInputKeys_MapForm(t *testing.T) {
	s, err := Parse([]byte("sequence:\n  - input.keys: {keys: [cmd, shift, p], show: false}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	k := s.Sequence[0].InputKeys
	if !reflect.DeepEqual(k.Keys, []string{"cmd", "shift", "p"}) || k.Show {
		t.Errorf("keys = %+v", k)
	}
}

func TestInputKeys_ListForm(t *testing.T) {
	s, err := Parse([]byte("sequence:\n  - input.keys: [cmd, s]\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	k := s.Sequence[0].InputKeys
	if !reflect.DeepEqual(k.Keys, []string{"cmd", "s"}) || !k.Show {
		t.Errorf("keys = %+v", k)
	}
}

func TestLoad_DefaultsNameFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launch-video.yaml")
	if err := os.WriteFile(path, []byte("sequence:\n  - cursor.show\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Name != "launch-video" {
		t.Errorf("Name = %q, want launch-video", s.Name)
	}
}

func TestAudioFiles(t *testing.T) {
	s, err := Parse([]byte(notesScene))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []string{"music/bed.mp3", "vo/home.mp3"}
	if got := s.AudioFiles(); !reflect.DeepEqual(got, want) {
		t.Errorf("AudioFiles() = %v, want %v", got, want)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1s", time.Second, false},
		{"500ms", 500 * time.Millisecond, false},
		{"1.5s", 1500 * time.Millisecond, false},
		{"2m", 2 * time.Minute, false},
		{"2", 2 * time.Second, false},
		{" 0.25 ", 250 * time.Millisecond, false},
		{"", 0, true},
		{"-1s", 0, true},
		{"-3", 0, true},
		{"later", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDuration) {
				t.Errorf("error %v does not wrap ErrInvalidDuration", err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoordResolve(t *testing.T) {
	if got := (Coord{Value: 25, Percent: true}).Resolve(800); got != 200 {
		t.Errorf("25%% of 800 = %v, want 200", got)
	}
	if got := (Coord{Value: 42}).Resolve(800); got != 42 {
		t.Errorf("absolute = %v, want 42", got)
	}
}
