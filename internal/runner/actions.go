package runner

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arach/vif-sub000/internal/agent"
	"github.com/arach/vif-sub000/internal/audio"
	"github.com/arach/vif-sub000/internal/recorder"
	"github.com/arach/vif-sub000/internal/scene"
	"github.com/arach/vif-sub000/internal/target"
)

// Default timings for remote animations that do not report completion.
const (
	defaultMoveDuration = 0.3 // seconds
	moveSettle          = 50 * time.Millisecond
	defaultNavigateWait = 500 * time.Millisecond
	defaultTyperDelay   = 50 // ms per character
	typerSettle         = 300 * time.Millisecond
	defaultInputDelay   = 30 // ms per character
	inputSettle         = 100 * time.Millisecond
	keysSettle          = 300 * time.Millisecond
	cameraSettle        = 300 * time.Millisecond
	defaultZoomLevel    = 2.0
	defaultZoomDuration = 0.5 // seconds
	defaultCameraSize   = 200
	defaultCameraCorner = "bottom-right"
	defaultLabelID      = "label"

	// maxUseDepth bounds "use" nesting so a sequence cannot include itself forever.
	maxUseDepth = 8
)

// Target naming conventions of the registry.
const (
	navPrefix     = "nav."
	sidebarPrefix = "sidebar."
)

// executeAction runs one action. Unknown kinds are logged and skipped.
func (r *Runner) executeAction(ctx context.Context, s *session, a *scene.Action, depth int) error { //nolint:gocyclo // one arm per action kind
	switch a.Kind {
	case scene.KindCursorShow:
		if _, err := r.agent.Send(ctx, "cursor.show", nil); err != nil {
			return err
		}
		s.state.Cursor = true
		return nil

	case scene.KindCursorHide:
		if _, err := r.agent.Send(ctx, "cursor.hide", nil); err != nil {
			return err
		}
		s.state.Cursor = false
		return nil

	case scene.KindCursorMoveTo:
		return r.cursorMoveTo(ctx, s, a.CursorMove)

	case scene.KindClick:
		return r.click(ctx, s, a.Click)

	case scene.KindWait:
		d, err := scene.ParseDuration(a.Wait)
		if err != nil {
			return err
		}
		return r.sleep(ctx, d)

	case scene.KindRecord:
		if a.Record == scene.RecordStop {
			return r.recordStop(ctx, s)
		}
		return r.recordStart(ctx, s)

	case scene.KindNavigate:
		return r.navigate(ctx, s, a.Navigate)

	case scene.KindLabel:
		return r.showLabel(ctx, s, a.Label)

	case scene.KindLabelUpdate:
		if a.LabelUpdate == nil {
			return nil
		}
		_, err := r.agent.Send(ctx, "label.update", agent.Params{"id": a.LabelUpdate.ID, "text": a.LabelUpdate.Text})
		return err

	case scene.KindLabelHide:
		id := a.LabelHide
		if id == "" {
			id = defaultLabelID
		}
		if _, err := r.agent.Send(ctx, "label.hide", agent.Params{"id": id}); err != nil {
			return err
		}
		delete(s.state.Labels, id)
		return nil

	case scene.KindTyperType:
		return r.typerType(ctx, s, a.TyperType)

	case scene.KindTyperClear:
		_, err := r.agent.Send(ctx, "typer.clear", nil)
		return err

	case scene.KindTyperHide:
		if _, err := r.agent.Send(ctx, "typer.hide", nil); err != nil {
			return err
		}
		s.state.Typer = false
		return nil

	case scene.KindInputType:
		return r.inputType(ctx, a.InputType)

	case scene.KindInputKeys:
		return r.inputKeys(ctx, s, a.InputKeys)

	case scene.KindAudioPlay:
		if a.AudioPlay == nil {
			return nil
		}
		return s.audio.Play(ctx, playOptions(a.AudioPlay, a.AudioPlay.Channel))

	case scene.KindVoicePlay:
		if a.VoicePlay == nil {
			return nil
		}
		return s.audio.Play(ctx, playOptions(a.VoicePlay, audio.NarrationChannel))

	case scene.KindAudioStop:
		opts := audio.StopOptions{}
		if a.AudioStop != nil {
			opts = audio.StopOptions{Channel: a.AudioStop.Channel, FadeOut: a.AudioStop.FadeOut}
		}
		return s.audio.Stop(ctx, opts)

	case scene.KindAudioVolume:
		if a.AudioVolume == nil {
			return nil
		}
		return s.audio.SetVolume(ctx, audio.VolumeOptions{
			Channel:  a.AudioVolume.Channel,
			Volume:   a.AudioVolume.Volume,
			Duration: a.AudioVolume.Duration,
		})

	case scene.KindVoiceStart:
		device := ""
		if a.VoiceStart != nil {
			device = a.VoiceStart.Device
		}
		return s.audio.Mic(ctx, true, device)

	case scene.KindVoiceStop:
		return s.audio.Mic(ctx, false, "")

	case scene.KindCameraShow:
		var position string
		var size int
		if a.Camera != nil {
			position, size = a.Camera.Position, a.Camera.Size
		}
		if _, err := r.agent.Send(ctx, "camera.show", cameraParams(position, size)); err != nil {
			return err
		}
		s.state.Camera = true
		return r.sleep(ctx, cameraSettle)

	case scene.KindCameraHide:
		if _, err := r.agent.Send(ctx, "camera.hide", nil); err != nil {
			return err
		}
		s.state.Camera = false
		return r.sleep(ctx, cameraSettle)

	case scene.KindZoom:
		return r.zoom(ctx, s, a.Zoom)

	case scene.KindZoomReset:
		duration := defaultZoomDuration
		if a.ZoomReset != nil && a.ZoomReset.Duration > 0 {
			duration = a.ZoomReset.Duration
		}
		if _, err := r.agent.Send(ctx, "zoom.reset", agent.Params{"duration": duration}); err != nil {
			return err
		}
		return r.sleep(ctx, scene.Seconds(duration))

	case scene.KindUse:
		return r.use(ctx, s, a.Use, depth)

	default:
		r.logger.Warn("skipping unknown action", "kind", string(a.Kind))
		return nil
	}
}

// moveTo animates the cursor to p and waits for the animation.
func (r *Runner) moveTo(ctx context.Context, p target.Point, duration float64) error {
	if duration <= 0 {
		duration = defaultMoveDuration
	}
	if _, err := r.agent.Send(ctx, "cursor.moveTo", agent.Params{
		"x":        p.X,
		"y":        p.Y,
		"duration": duration,
	}); err != nil {
		return err
	}
	return r.sleep(ctx, scene.Seconds(duration)+moveSettle)
}

func (r *Runner) moveAndClick(ctx context.Context, p target.Point) error {
	if err := r.moveTo(ctx, p, 0); err != nil {
		return err
	}
	_, err := r.agent.Send(ctx, "cursor.click", nil)
	return err
}

func (r *Runner) cursorMoveTo(ctx context.Context, s *session, m *scene.CursorMove) error {
	if m == nil {
		return nil
	}
	p := s.resolver.ResolveCoordinates(m.X, m.Y)
	if m.Target != "" {
		var err error
		if p, err = r.lookupPoint(s, m.Target); err != nil {
			return err
		}
	}
	return r.moveTo(ctx, p, m.Duration)
}

// lookupPoint resolves a named target from the registry or the views.
func (r *Runner) lookupPoint(s *session, name string) (target.Point, error) {
	if t, ok := s.targets[name]; ok && t.IsPoint() {
		return target.Point{X: *t.X, Y: *t.Y}, nil
	}
	return s.resolver.ResolveViewTarget(name)
}

func (r *Runner) click(ctx context.Context, s *session, c *scene.Click) error {
	if c == nil {
		return nil
	}
	if c.HasPoint() {
		return r.moveAndClick(ctx, s.resolver.ResolveCoordinates(*c.X, *c.Y))
	}
	if c.Target == "" {
		return fmt.Errorf("click needs a point or a target")
	}
	return r.clickTarget(ctx, s, c.Target)
}

// clickTarget resolves a named click target by priority: a literal point in
// the registry, a registry navigation entry, the sidebar navigation API,
// then the scene's named views.
func (r *Runner) clickTarget(ctx context.Context, s *session, name string) error {
	if t, ok := s.targets[name]; ok && t.IsPoint() {
		if err := r.moveAndClick(ctx, target.Point{X: *t.X, Y: *t.Y}); err != nil {
			return err
		}
		r.validator.Validate(ctx, "click", name)
		return nil
	}

	if section, ok := s.navigationSection(name); ok && r.telemetry != nil {
		err := r.telemetry.Navigate(ctx, section)
		if err == nil {
			r.validator.Validate(ctx, "navigate", section)
			return nil
		}
		r.logger.Warn("registry navigation failed, falling back to views", "target", name, "error", err)
	}

	section, isSidebar := strings.CutPrefix(name, sidebarPrefix)
	if isSidebar && r.telemetry != nil {
		err := r.telemetry.Navigate(ctx, section)
		if err == nil {
			r.validator.Validate(ctx, "navigate", section)
			return nil
		}
		r.logger.Debug("navigation API unavailable, clicking view", "target", name, "error", err)
	}

	p, err := s.resolver.ResolveViewTarget(name)
	if err != nil {
		return err
	}
	if err := r.moveAndClick(ctx, p); err != nil {
		return err
	}
	if isSidebar {
		r.validator.Validate(ctx, "navigate", section)
	}
	return nil
}

// navigationSection finds a registry navigation entry for name, either
// under name itself or under "nav.<name>".
func (s *session) navigationSection(name string) (string, bool) {
	for _, key := range []string{name, navPrefix + name} {
		if t, ok := s.targets[key]; ok && t.IsNavigate() {
			return t.Section, true
		}
	}
	return "", false
}

func (r *Runner) navigate(ctx context.Context, s *session, n *scene.Navigate) error {
	if n == nil {
		return nil
	}
	wait := defaultNavigateWait
	if n.Wait != "" {
		d, err := scene.ParseDuration(n.Wait)
		if err != nil {
			return err
		}
		wait = d
	}

	for _, item := range n.Items {
		p, err := s.resolver.ResolveViewTarget(n.Through + "." + item)
		if err != nil {
			return err
		}
		if err := r.moveAndClick(ctx, p); err != nil {
			return err
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) recordStart(ctx context.Context, s *session) error {
	if s.state.Recording {
		return fmt.Errorf("%w: already recording", ErrRecording)
	}

	output := r.outputPath(s.scene)

	if _, err := r.agent.Send(ctx, "record.indicator", agent.Params{"show": true}); err != nil {
		return err
	}
	s.state.RecordIndicator = true

	s.audio.Begin()

	opts := recorder.Options{Output: output, Audio: usesMic(s.scene)}
	if vp := s.viewport; vp != nil {
		opts.Region = &recorder.Region{
			X:      int(vp.X),
			Y:      int(vp.Y),
			Width:  int(vp.Width),
			Height: int(vp.Height),
		}
	}
	if err := r.recorder.Start(ctx, opts); err != nil {
		return fmt.Errorf("starting recording: %w", err)
	}
	s.state.Recording = true

	r.logger.Info("recording started", "output", output)
	return nil
}

func (r *Runner) recordStop(ctx context.Context, s *session) error {
	if !s.state.Recording {
		r.logger.Warn("record stop without a recording, ignoring")
		return nil
	}
	defer s.audio.Reset()

	raw, stopErr := r.recorder.Stop(ctx)
	s.state.Recording = false

	if _, err := r.agent.Send(ctx, "record.indicator", agent.Params{"show": false}); err != nil {
		r.logger.Warn("hiding record indicator failed", "error", err)
	} else {
		s.state.RecordIndicator = false
	}

	if stopErr != nil {
		return fmt.Errorf("stopping recording: %w", stopErr)
	}

	output := raw
	if s.audio.UsedMixableAudio() {
		mixed := finalPath(raw)
		ok, err := s.audio.RenderFinalMix(ctx, raw, mixed)
		switch {
		case err != nil:
			r.logger.Warn("final mix failed, keeping raw capture", "raw", raw, "error", err)
		case ok:
			output = mixed
		}
	}

	s.outputs = append(s.outputs, output)
	r.logger.Info("recording saved", "output", output)
	return nil
}

func (r *Runner) showLabel(ctx context.Context, s *session, l *scene.LabelShow) error {
	if l == nil {
		return nil
	}

	id, text, position, x, y := l.ID, l.Text, l.Position, l.X, l.Y
	if l.Name != "" {
		def, ok := s.scene.Labels[l.Name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownLabel, l.Name)
		}
		if id == "" {
			id = l.Name
		}
		if text == "" {
			text = def.Text
		}
		if position == "" {
			position = def.Position
		}
		if x == nil && y == nil {
			x, y = def.X, def.Y
		}
	}
	if id == "" {
		id = defaultLabelID
	}

	params := agent.Params{"id": id, "text": text}
	if position != "" {
		params["position"] = position
	}
	if x != nil && y != nil {
		p := s.resolver.ResolveCoordinates(*x, *y)
		params["x"], params["y"] = p.X, p.Y
	}

	if _, err := r.agent.Send(ctx, "label.show", params); err != nil {
		return err
	}
	s.state.Labels[id] = struct{}{}
	return nil
}

func (r *Runner) typerType(ctx context.Context, s *session, t *scene.TyperType) error {
	if t == nil {
		return nil
	}
	delay := t.Delay
	if delay <= 0 {
		delay = defaultTyperDelay
	}
	params := agent.Params{"text": t.Text, "delay": delay}
	if t.Style != "" {
		params["style"] = t.Style
	}
	if _, err := r.agent.Send(ctx, "typer.type", params); err != nil {
		return err
	}
	s.state.Typer = true
	return r.sleep(ctx, typingTime(t.Text, delay)+typerSettle)
}

func (r *Runner) inputType(ctx context.Context, t *scene.InputType) error {
	if t == nil {
		return nil
	}
	delay := t.Delay
	if delay <= 0 {
		delay = defaultInputDelay
	}
	if _, err := r.agent.Send(ctx, "input.type", agent.Params{"text": t.Text, "delay": delay}); err != nil {
		return err
	}
	return r.sleep(ctx, typingTime(t.Text, delay)+inputSettle)
}

func (r *Runner) inputKeys(ctx context.Context, s *session, k *scene.InputKeys) error {
	if k == nil || len(k.Keys) == 0 {
		return nil
	}
	if k.Show {
		if _, err := r.agent.Send(ctx, "keys.show", agent.Params{"keys": k.Keys}); err != nil {
			return err
		}
		s.state.Keys = true
	}
	if _, err := r.agent.Send(ctx, "input.keys", agent.Params{"keys": k.Keys}); err != nil {
		return err
	}
	return r.sleep(ctx, keysSettle)
}

func (r *Runner) zoom(ctx context.Context, s *session, z *scene.Zoom) error {
	level, duration := defaultZoomLevel, defaultZoomDuration
	params := agent.Params{}
	if z != nil {
		if z.Level > 0 {
			level = z.Level
		}
		if z.Duration > 0 {
			duration = z.Duration
		}
		if z.X != nil && z.Y != nil {
			p := s.resolver.ResolveCoordinates(*z.X, *z.Y)
			params["x"], params["y"] = p.X, p.Y
		}
	}
	params["level"] = level
	params["duration"] = duration

	if _, err := r.agent.Send(ctx, "zoom", params); err != nil {
		return err
	}
	return r.sleep(ctx, scene.Seconds(duration))
}

// use runs a named sequence inline.
func (r *Runner) use(ctx context.Context, s *session, name string, depth int) error {
	if depth+1 > maxUseDepth {
		return fmt.Errorf("%w: %q at depth %d", ErrUseDepth, name, depth+1)
	}
	seq, ok := s.scene.Sequences[name]
	if !ok {
		return fmt.Errorf("%w: %q", scene.ErrUnknownSequence, name)
	}
	r.logger.Debug("running sequence", "name", name, "depth", depth+1)
	return r.runSequence(ctx, s, seq, depth+1)
}

func playOptions(p *scene.AudioPlay, channel int) audio.PlayOptions {
	return audio.PlayOptions{
		File:    p.File,
		Channel: channel,
		Wait:    p.Wait,
		FadeIn:  p.FadeIn,
		FadeOut: p.FadeOut,
		StartAt: p.StartAt,
		Loop:    p.Loop,
		Volume:  p.Volume,
	}
}

func cameraParams(position string, size int) agent.Params {
	if position == "" {
		position = defaultCameraCorner
	}
	if size <= 0 {
		size = defaultCameraSize
	}
	return agent.Params{"position": position, "size": size}
}

// typingTime is how long the remote takes to type text at delay ms per rune.
func typingTime(text string, delayMS int) time.Duration {
	return time.Duration(utf8.RuneCountInString(text)*delayMS) * time.Millisecond
}

// usesMic reports whether any sequence turns on the live microphone, in
// which case the capture keeps its audio track.
func usesMic(sc *scene.Scene) bool {
	has := func(actions []scene.Action) bool {
		for _, a := range actions {
			if a.Kind == scene.KindVoiceStart {
				return true
			}
		}
		return false
	}
	if has(sc.Sequence) {
		return true
	}
	for _, seq := range sc.Sequences {
		if has(seq) {
			return true
		}
	}
	return false
}
