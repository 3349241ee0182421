package scene

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the action discriminant.
type Kind string

// Known action kinds.
const (
	KindCursorShow   Kind = "cursor.show"
	KindCursorHide   Kind = "cursor.hide"
	KindCursorMoveTo Kind = "cursor.moveTo"
	KindClick        Kind = "click"
	KindWait         Kind = "wait"
	KindRecord       Kind = "record"
	KindNavigate     Kind = "navigate"
	KindLabel        Kind = "label"
	KindLabelUpdate  Kind = "label.update"
	KindLabelHide    Kind = "label.hide"
	KindTyperType    Kind = "typer.type"
	KindTyperClear   Kind = "typer.clear"
	KindTyperHide    Kind = "typer.hide"
	KindInputType    Kind = "input.type"
	KindInputKeys    Kind = "input.keys"
	KindAudioPlay    Kind = "audio.play"
	KindAudioStop    Kind = "audio.stop"
	KindAudioVolume  Kind = "audio.volume"
	KindVoicePlay    Kind = "voice.play"
	KindVoiceStart   Kind = "voice.start"
	KindVoiceStop    Kind = "voice.stop"
	KindCameraShow   Kind = "camera.show"
	KindCameraHide   Kind = "camera.hide"
	KindZoom         Kind = "zoom"
	KindZoomReset    Kind = "zoom.reset"
	KindUse          Kind = "use"
)

var knownKinds = map[Kind]struct{}{
	KindCursorShow: {}, KindCursorHide: {}, KindCursorMoveTo: {}, KindClick: {},
	KindWait: {}, KindRecord: {}, KindNavigate: {}, KindLabel: {}, KindLabelUpdate: {},
	KindLabelHide: {}, KindTyperType: {}, KindTyperClear: {}, KindTyperHide: {},
	KindInputType: {}, KindInputKeys: {}, KindAudioPlay: {}, KindAudioStop: {},
	KindAudioVolume: {}, KindVoicePlay: {}, KindVoiceStart: {}, KindVoiceStop: {},
	KindCameraShow: {}, KindCameraHide: {}, KindZoom: {}, KindZoomReset: {}, KindUse: {},
}

// Known reports whether k is one of the kinds the runner executes.
func (k Kind) Known() bool {
	_, ok := knownKinds[k]
	return ok
}

// Record directions.
const (
	RecordStart = "start"
	RecordStop  = "stop"
)

// Action is one step of a sequence. Kind selects which payload field is set;
// kinds without a payload leave them all nil.
type Action struct {
	Kind Kind

	CursorMove  *CursorMove
	Click       *Click
	Wait        string
	Record      string
	Navigate    *Navigate
	Label       *LabelShow
	LabelUpdate *LabelUpdate
	LabelHide   string
	TyperType   *TyperType
	InputType   *InputType
	InputKeys   *InputKeys
	AudioPlay   *AudioPlay
	AudioStop   *AudioStop
	AudioVolume *AudioVolume
	VoicePlay   *AudioPlay
	VoiceStart  *VoiceStart
	Camera      *CameraShow
	Zoom        *Zoom
	ZoomReset   *ZoomReset
	Use         string

	// Raw keeps the payload of kinds this build does not know.
	Raw any
}

// CursorMove moves the cursor to a point or a view target ("view.item").
type CursorMove struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Target   string  `yaml:"target"`
	Duration float64 `yaml:"duration"`
}

// Click is either a point or a named target.
type Click struct {
	X      *float64 `yaml:"x"`
	Y      *float64 `yaml:"y"`
	Target string   `yaml:"target"`
}

// HasPoint reports whether the click carries explicit coordinates.
func (c *Click) HasPoint() bool {
	return c.X != nil && c.Y != nil
}

// Navigate clicks through items of one view in turn.
type Navigate struct {
	Through string   `yaml:"through"`
	Items   []string `yaml:"items"`
	Wait    string   `yaml:"wait"`
}

// LabelShow shows a label. Name refers to the scene label registry.
type LabelShow struct {
	Name     string   `yaml:"name"`
	ID       string   `yaml:"id"`
	Text     string   `yaml:"text"`
	Position string   `yaml:"position"`
	X        *float64 `yaml:"x"`
	Y        *float64 `yaml:"y"`
}

// LabelUpdate replaces the text of a visible label.
type LabelUpdate struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// TyperType types text into the on-screen typer overlay.
// Delay is per character in milliseconds.
type TyperType struct {
	Text  string `yaml:"text"`
	Style string `yaml:"style"`
	Delay int    `yaml:"delay"`
}

// InputType synthesises real keystrokes. Delay is per character in milliseconds.
type InputType struct {
	Text  string `yaml:"text"`
	Delay int    `yaml:"delay"`
}

// InputKeys presses a key combination, optionally showing it on screen.
type InputKeys struct {
	Keys []string
	Show bool
}

// AudioPlay plays a clip on a channel. Times are in seconds.
type AudioPlay struct {
	File    string   `yaml:"file"`
	Channel int      `yaml:"channel"`
	Wait    *bool    `yaml:"wait"`
	FadeIn  float64  `yaml:"fadeIn"`
	FadeOut float64  `yaml:"fadeOut"`
	StartAt float64  `yaml:"startAt"`
	Loop    bool     `yaml:"loop"`
	Volume  *float64 `yaml:"volume"`
}

// AudioStop stops one channel, or all channels when Channel is 0.
type AudioStop struct {
	Channel int     `yaml:"channel"`
	FadeOut float64 `yaml:"fadeOut"`
}

// AudioVolume ramps a channel's volume over Duration seconds.
type AudioVolume struct {
	Channel  int     `yaml:"channel"`
	Volume   float64 `yaml:"volume"`
	Duration float64 `yaml:"duration"`
}

// VoiceStart enables the live microphone.
type VoiceStart struct {
	Device string `yaml:"device"`
}

// CameraShow shows the presenter camera overlay.
type CameraShow struct {
	Position string `yaml:"position"`
	Size     int    `yaml:"size"`
}

// Zoom zooms the capture around a point. X and Y may be omitted to zoom on centre.
type Zoom struct {
	Level    float64  `yaml:"level"`
	X        *float64 `yaml:"x"`
	Y        *float64 `yaml:"y"`
	Duration float64  `yaml:"duration"`
}

// ZoomReset returns to 1x over Duration seconds.
type ZoomReset struct {
	Duration float64 `yaml:"duration"`
}

// UnmarshalYAML decodes a bare kind ("- cursor.show") or a single-key
// mapping ("- click: {x: 1, y: 2}").
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		a.Kind = Kind(strings.TrimSpace(node.Value))
		if a.Kind == "" {
			return fmt.Errorf("%w: line %d: empty kind", ErrInvalidAction, node.Line)
		}
		return a.decodePayload(nil)

	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("%w: line %d: expected exactly one key, got %d", ErrInvalidAction, node.Line, len(node.Content)/2)
		}
		a.Kind = Kind(node.Content[0].Value)
		if err := a.decodePayload(node.Content[1]); err != nil {
			return fmt.Errorf("%w: line %d: %s: %w", ErrInvalidAction, node.Line, a.Kind, err)
		}
		return nil

	default:
		return fmt.Errorf("%w: line %d: unexpected node", ErrInvalidAction, node.Line)
	}
}

// decodePayload fills the variant field for a.Kind. A nil node is a bare kind.
func (a *Action) decodePayload(node *yaml.Node) error {
	isScalar := node != nil && node.Kind == yaml.ScalarNode
	scalar := ""
	if isScalar {
		scalar = strings.TrimSpace(node.Value)
	}

	decode := func(v any) error {
		if node == nil || (isScalar && scalar == "") {
			return nil
		}
		return node.Decode(v)
	}

	switch a.Kind {
	case KindCursorShow, KindCursorHide, KindTyperClear, KindTyperHide,
		KindVoiceStop, KindCameraHide:
		return nil

	case KindCursorMoveTo:
		a.CursorMove = &CursorMove{}
		if isScalar {
			a.CursorMove.Target = scalar
			return nil
		}
		return decode(a.CursorMove)

	case KindClick:
		a.Click = &Click{}
		if isScalar {
			a.Click.Target = scalar
			return nil
		}
		return decode(a.Click)

	case KindWait:
		if !isScalar {
			return fmt.Errorf("wait needs a duration")
		}
		if _, err := ParseDuration(scalar); err != nil {
			return err
		}
		a.Wait = scalar
		return nil

	case KindRecord:
		if scalar != RecordStart && scalar != RecordStop {
			return fmt.Errorf("record must be %q or %q", RecordStart, RecordStop)
		}
		a.Record = scalar
		return nil

	case KindNavigate:
		a.Navigate = &Navigate{}
		return decode(a.Navigate)

	case KindLabel:
		a.Label = &LabelShow{}
		if isScalar {
			a.Label.Name = scalar
			return nil
		}
		return decode(a.Label)

	case KindLabelUpdate:
		a.LabelUpdate = &LabelUpdate{}
		return decode(a.LabelUpdate)

	case KindLabelHide:
		if isScalar {
			a.LabelHide = scalar
			return nil
		}
		var v struct {
			ID string `yaml:"id"`
		}
		if err := decode(&v); err != nil {
			return err
		}
		a.LabelHide = v.ID
		return nil

	case KindTyperType:
		a.TyperType = &TyperType{}
		if isScalar {
			a.TyperType.Text = scalar
			return nil
		}
		return decode(a.TyperType)

	case KindInputType:
		a.InputType = &InputType{}
		if isScalar {
			a.InputType.Text = scalar
			return nil
		}
		return decode(a.InputType)

	case KindInputKeys:
		a.InputKeys = &InputKeys{Show: true}
		if isScalar {
			a.InputKeys.Keys = splitKeys(scalar)
			return nil
		}
		return a.InputKeys.decode(node)

	case KindAudioPlay, KindVoicePlay:
		p := &AudioPlay{}
		if isScalar {
			p.File = scalar
		} else if err := decode(p); err != nil {
			return err
		}
		if a.Kind == KindVoicePlay {
			a.VoicePlay = p
		} else {
			a.AudioPlay = p
		}
		return nil

	case KindAudioStop:
		a.AudioStop = &AudioStop{}
		return decode(a.AudioStop)

	case KindAudioVolume:
		a.AudioVolume = &AudioVolume{}
		return decode(a.AudioVolume)

	case KindVoiceStart:
		a.VoiceStart = &VoiceStart{}
		return decode(a.VoiceStart)

	case KindCameraShow:
		a.Camera = &CameraShow{}
		return decode(a.Camera)

	case KindZoom:
		a.Zoom = &Zoom{}
		return decode(a.Zoom)

	case KindZoomReset:
		a.ZoomReset = &ZoomReset{}
		return decode(a.ZoomReset)

	case KindUse:
		if scalar == "" {
			return fmt.Errorf("use needs a sequence name")
		}
		a.Use = scalar
		return nil

	default:
		if node != nil {
			var raw any
			if err := node.Decode(&raw); err != nil {
				return err
			}
			a.Raw = raw
		}
		return nil
	}
}

// decode accepts [cmd, s], {keys: [cmd, s], show: false} or {keys: "cmd+s"}.
func (k *InputKeys) decode(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		return node.Decode(&k.Keys)
	}
	var v struct {
		Keys yaml.Node `yaml:"keys"`
		Show *bool     `yaml:"show"`
	}
	if err := node.Decode(&v); err != nil {
		return err
	}
	if v.Show != nil {
		k.Show = *v.Show
	}
	switch v.Keys.Kind {
	case yaml.ScalarNode:
		k.Keys = splitKeys(v.Keys.Value)
	case yaml.SequenceNode:
		return v.Keys.Decode(&k.Keys)
	default:
		return fmt.Errorf("input.keys needs keys")
	}
	return nil
}

func splitKeys(s string) []string {
	var keys []string
	for _, part := range strings.Split(s, "+") {
		if p := strings.TrimSpace(part); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}
