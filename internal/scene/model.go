package scene

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recording modes. The mode selects the output subdirectory.
const (
	ModeDraft = "draft"
	ModeFinal = "final"
)

// Scene is a parsed scene, read-only once loaded.
type Scene struct {
	Name   string `yaml:"name"`
	Mode   string `yaml:"mode"`
	Output string `yaml:"output"`

	App    *App             `yaml:"app"`
	Stage  Stage            `yaml:"stage"`
	Views  map[string]View  `yaml:"views"`
	Labels map[string]Label `yaml:"labels"`
	Audio  AudioConfig      `yaml:"audio"`
	Camera *Camera          `yaml:"camera"`

	// Sequences are named action lists run inline by "use".
	Sequences map[string][]Action `yaml:"sequences"`
	Sequence  []Action            `yaml:"sequence"`
}

// App describes the target application window.
type App struct {
	Name   string `yaml:"name"`
	Window Size   `yaml:"window"`

	// Offset corrects skew between the automation coordinate space and the app's.
	Offset Point `yaml:"offset"`
}

// Size is a width/height pair in screen points.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Point is an x/y pair in screen points.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Stage configures the backdrop and the recording viewport.
type Stage struct {
	Backdrop bool      `yaml:"backdrop"`
	Viewport *Viewport `yaml:"viewport"`
}

// Viewport pads the app bounds to form the recorded region.
type Viewport struct {
	Padding int `yaml:"padding"`
}

// View is a named region of the app with clickable items.
// Items are window-relative points; Positions may use percentages.
type View struct {
	Items     map[string]Point    `yaml:"items"`
	Positions map[string]Position `yaml:"positions"`
}

// Position is a point whose components may be percentages of the window.
type Position struct {
	X Coord `yaml:"x"`
	Y Coord `yaml:"y"`
}

// Coord is a number or a percentage string such as "50%".
type Coord struct {
	Value   float64
	Percent bool
}

// UnmarshalYAML accepts 120, 12.5 and "50%".
func (c *Coord) UnmarshalYAML(node *yaml.Node) error {
	s := strings.TrimSpace(node.Value)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid percentage %q", node.Line, node.Value)
		}
		*c = Coord{Value: v, Percent: true}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid coordinate %q", node.Line, node.Value)
	}
	*c = Coord{Value: v}
	return nil
}

// Resolve returns the coordinate in points, taking percentages of extent.
func (c Coord) Resolve(extent float64) float64 {
	if c.Percent {
		return c.Value / 100 * extent
	}
	return c.Value
}

// Label is a predefined on-screen caption.
type Label struct {
	Text     string   `yaml:"text"`
	Position string   `yaml:"position"`
	X        *float64 `yaml:"x"`
	Y        *float64 `yaml:"y"`
}

// AudioConfig holds per-channel defaults.
type AudioConfig struct {
	Channels map[int]ChannelConfig `yaml:"channels"`
}

// ChannelConfig configures one audio channel.
type ChannelConfig struct {
	Name   string   `yaml:"name"`
	Volume *float64 `yaml:"volume"`
}

// Camera is the presenter overlay shown during setup.
type Camera struct {
	Position string `yaml:"position"`
	Size     int    `yaml:"size"`
}

// Validate checks the scene is runnable.
func (s *Scene) Validate() error {
	if len(s.Sequence) == 0 {
		return ErrEmptySequence
	}
	if s.Mode != "" && s.Mode != ModeDraft && s.Mode != ModeFinal {
		return fmt.Errorf("scene: mode must be %q or %q, got %q", ModeDraft, ModeFinal, s.Mode)
	}
	for _, a := range s.Sequence {
		if a.Kind == KindUse {
			if _, ok := s.Sequences[a.Use]; !ok {
				return fmt.Errorf("%w: %q", ErrUnknownSequence, a.Use)
			}
		}
	}
	return nil
}

// AudioFiles lists every clip referenced by the main sequence and named
// sequences, sorted and without duplicates.
func (s *Scene) AudioFiles() []string {
	seen := make(map[string]struct{})
	collect := func(actions []Action) {
		for _, a := range actions {
			var file string
			switch {
			case a.AudioPlay != nil:
				file = a.AudioPlay.File
			case a.VoicePlay != nil:
				file = a.VoicePlay.File
			}
			if file != "" {
				seen[file] = struct{}{}
			}
		}
	}

	collect(s.Sequence)
	for _, seq := range s.Sequences {
		collect(seq)
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
