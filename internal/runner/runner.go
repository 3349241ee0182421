package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arach/vif-sub000/internal/agent"
	"github.com/arach/vif-sub000/internal/audio"
	"github.com/arach/vif-sub000/internal/history"
	"github.com/arach/vif-sub000/internal/infrastructure/influxdb"
	"github.com/arach/vif-sub000/internal/infrastructure/mqtt"
	"github.com/arach/vif-sub000/internal/recorder"
	"github.com/arach/vif-sub000/internal/scene"
	"github.com/arach/vif-sub000/internal/target"
	"github.com/arach/vif-sub000/internal/telemetry"
	"github.com/arach/vif-sub000/internal/validation"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultExtension   = ".mp4"
	DefaultOutputDir   = "recordings"
)

// Agent is the command channel to the automation agent.
type Agent interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, action string, params agent.Params) (agent.Reply, error)
	Notify(action string, params agent.Params)
}

// Telemetry is the target application's telemetry endpoint.
type Telemetry interface {
	Targets(ctx context.Context) (telemetry.Targets, error)
	Navigate(ctx context.Context, section string) error
	ResetEvents(ctx context.Context) error
}

// Validator checks actions against telemetry and keeps the results.
type Validator interface {
	Validate(ctx context.Context, action, target string) validation.Result
	Results() []validation.Result
	Summary() validation.Summary
	Reset()
}

// Publisher announces run lifecycle events.
type Publisher interface {
	PublishRunEvent(scene, phase string, payload any) error
}

// Metrics records action and run timings.
type Metrics interface {
	WriteAction(s influxdb.ActionSample)
	WriteRun(s influxdb.RunSample)
}

// Logger is the logging interface used by the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds run settings.
type Config struct {
	// Screen is the display size, used to estimate the window position.
	Screen scene.Size

	// SettleDelay is waited after centering the app window.
	SettleDelay time.Duration

	// OutputDir is the root for recordings; files go to <OutputDir>/<mode>/.
	OutputDir string

	// Extension is the recording container extension, with the dot.
	Extension string

	// ProbeConcurrency bounds concurrent clip probes before a run.
	ProbeConcurrency int
}

// Deps are the collaborators of a Runner. Agent and Recorder are required;
// the rest may be nil.
type Deps struct {
	Agent     Agent
	Recorder  recorder.Recorder
	Telemetry Telemetry
	Validator Validator
	Prober    audio.Prober
	Mixer     audio.Mixer
	History   history.Repository
	Publisher Publisher
	Metrics   Metrics
	Logger    Logger
}

// Report describes a finished run.
type Report struct {
	RunID       string
	Scene       string
	Mode        string
	Status      history.Status
	Outputs     []string
	Actions     int
	Duration    time.Duration
	Validations []validation.Result
	Summary     validation.Summary
}

// Runner executes scenes.
type Runner struct {
	cfg       Config
	agent     Agent
	recorder  recorder.Recorder
	telemetry Telemetry
	validator Validator
	prober    audio.Prober
	mixer     audio.Mixer
	history   history.Repository
	publisher Publisher
	metrics   Metrics
	logger    Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	running atomic.Bool
}

// New creates a Runner.
func New(cfg Config, deps Deps) *Runner {
	if cfg.Screen.Width <= 0 || cfg.Screen.Height <= 0 {
		cfg.Screen = scene.Size{Width: 1920, Height: 1080}
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}
	if !strings.HasPrefix(cfg.Extension, ".") {
		cfg.Extension = "." + cfg.Extension
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	rec := deps.Recorder
	if rec == nil {
		rec = &recorder.Nop{}
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.New(nil, validation.Config{})
	}

	return &Runner{
		cfg:       cfg,
		agent:     deps.Agent,
		recorder:  rec,
		telemetry: deps.Telemetry,
		validator: validator,
		prober:    deps.Prober,
		mixer:     deps.Mixer,
		history:   deps.History,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    logger,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// session is the mutable state of one run.
type session struct {
	scene    *scene.Scene
	state    *SetupState
	resolver *target.Resolver
	audio    *audio.Manager
	targets  telemetry.Targets

	// viewport is the recorded region once stage setup has shown it.
	viewport *target.Bounds

	outputs []string
	actions int
}

// Run executes sc and tears down afterwards. The returned Report is never
// nil; on failure it carries the partial results alongside the error.
func (r *Runner) Run(ctx context.Context, sc *scene.Scene) (*Report, error) {
	if sc == nil {
		return &Report{}, ErrNoScene
	}
	if !r.running.CompareAndSwap(false, true) {
		return &Report{Scene: sc.Name}, ErrBusy
	}
	defer r.running.Store(false)

	mode := sc.Mode
	if mode == "" {
		mode = scene.ModeDraft
	}

	s := r.newSession(sc)
	started := r.now()
	rec := &history.Run{ID: uuid.NewString(), Scene: sc.Name, Mode: mode, Status: history.StatusRunning, StartedAt: started.UTC()}
	r.createHistory(ctx, rec)

	r.logger.Info("scene started", "scene", sc.Name, "mode", mode, "actions", len(sc.Sequence), "run_id", rec.ID)
	r.publish(sc.Name, mqtt.PhaseStarted, map[string]any{
		"run_id":  rec.ID,
		"scene":   sc.Name,
		"mode":    mode,
		"actions": len(sc.Sequence),
	})

	runErr := r.execute(ctx, s)

	// Cleanup must finish even when the run was cancelled.
	r.teardown(context.WithoutCancel(ctx), s)

	elapsed := r.now().Sub(started)
	report := &Report{
		RunID:       rec.ID,
		Scene:       sc.Name,
		Mode:        mode,
		Outputs:     s.outputs,
		Actions:     s.actions,
		Duration:    elapsed,
		Validations: r.validator.Results(),
		Summary:     r.validator.Summary(),
	}

	switch {
	case runErr == nil:
		report.Status = history.StatusCompleted
	case ctx.Err() != nil:
		report.Status = history.StatusCancelled
	default:
		report.Status = history.StatusFailed
	}

	r.finishHistory(context.WithoutCancel(ctx), rec, report, runErr)
	r.recordRun(report)

	phase := mqtt.PhaseCompleted
	if runErr != nil {
		phase = mqtt.PhaseFailed
	}
	payload := map[string]any{
		"run_id":      rec.ID,
		"scene":       sc.Name,
		"status":      string(report.Status),
		"duration_ms": elapsed.Milliseconds(),
		"actions":     s.actions,
		"passed":      report.Summary.Passed,
		"failed":      report.Summary.Failed,
		"unverified":  report.Summary.Unverified,
		"outputs":     s.outputs,
	}
	if runErr != nil {
		payload["error"] = runErr.Error()
	}
	r.publish(sc.Name, phase, payload)

	if runErr != nil {
		r.logger.Error("scene failed", "scene", sc.Name, "error", runErr, "duration", elapsed)
		return report, runErr
	}
	r.logger.Info("scene completed", "scene", sc.Name, "duration", elapsed, "outputs", s.outputs)
	return report, nil
}

func (r *Runner) newSession(sc *scene.Scene) *session {
	var offset scene.Point
	if sc.App != nil {
		offset = sc.App.Offset
	}

	am := audio.NewManager(r.agent, r.prober, r.mixer)
	am.SetLogger(r.logger)
	if r.cfg.ProbeConcurrency > 0 {
		am.SetProbeConcurrency(r.cfg.ProbeConcurrency)
	}
	am.Configure(sc.Audio.Channels)

	return &session{
		scene:    sc,
		state:    newSetupState(),
		resolver: target.NewResolver(sc.Views, offset, r.cfg.Screen),
		audio:    am,
	}
}

// execute connects, prepares the stage and runs the sequence.
func (r *Runner) execute(ctx context.Context, s *session) error {
	if err := r.agent.Connect(ctx); err != nil {
		return err
	}

	r.validator.Reset()
	if r.telemetry != nil {
		if err := r.telemetry.ResetEvents(ctx); err != nil {
			r.logger.Debug("telemetry reset skipped", "error", err)
		}
	}

	if err := s.audio.Preload(ctx, s.scene.AudioFiles()); err != nil {
		r.logger.Warn("audio preload incomplete", "error", err)
	}

	if err := r.setupStage(ctx, s); err != nil {
		return fmt.Errorf("stage setup: %w", err)
	}
	return r.runSequence(ctx, s, s.scene.Sequence, 0)
}

// setupStage shows the backdrop, centres the app, shows the viewport,
// fetches the target registry and shows the camera, in that order.
func (r *Runner) setupStage(ctx context.Context, s *session) error {
	sc := s.scene

	if sc.Stage.Backdrop {
		if _, err := r.agent.Send(ctx, "stage.backdrop", agent.Params{"show": true}); err != nil {
			return err
		}
		s.state.Backdrop = true
	}

	if sc.App != nil {
		var body struct {
			Bounds *target.Bounds `json:"bounds"`
		}
		reply, err := r.agent.Send(ctx, "stage.center", agent.Params{
			"app":    sc.App.Name,
			"width":  sc.App.Window.Width,
			"height": sc.App.Window.Height,
		})
		if err != nil {
			r.logger.Warn("centering app failed, estimating bounds", "app", sc.App.Name, "error", err)
		} else if err := reply.Decode(&body); err != nil {
			r.logger.Debug("stage.center reply had no usable bounds", "error", err)
		}

		if err := r.sleep(ctx, r.cfg.SettleDelay); err != nil {
			return err
		}

		bounds := target.CenteredBounds(r.cfg.Screen, sc.App.Window)
		if body.Bounds != nil && body.Bounds.Width > 0 && body.Bounds.Height > 0 {
			bounds = *body.Bounds
		}
		s.resolver.SetBounds(bounds)
		r.logger.Debug("app bounds", "x", bounds.X, "y", bounds.Y, "width", bounds.Width, "height", bounds.Height)
	}

	if vp := sc.Stage.Viewport; vp != nil {
		bounds := s.resolver.Bounds()
		if bounds == nil {
			r.logger.Warn("viewport needs an app window, skipping")
		} else {
			rect := target.Viewport(*bounds, vp.Padding)
			if _, err := r.agent.Send(ctx, "viewport.set", agent.Params{
				"x":      rect.X,
				"y":      rect.Y,
				"width":  rect.Width,
				"height": rect.Height,
			}); err != nil {
				return err
			}
			if _, err := r.agent.Send(ctx, "viewport.show", nil); err != nil {
				return err
			}
			s.state.Viewport = true
			s.viewport = &rect
		}
	}

	if r.telemetry != nil {
		targets, err := r.telemetry.Targets(ctx)
		if err != nil {
			r.logger.Debug("target registry unavailable", "error", err)
		} else {
			s.targets = targets
			r.logger.Debug("target registry loaded", "targets", len(targets))
		}
	}

	if cam := sc.Camera; cam != nil {
		if _, err := r.agent.Send(ctx, "camera.show", cameraParams(cam.Position, cam.Size)); err != nil {
			return err
		}
		s.state.Camera = true
	}
	return nil
}

// runSequence executes actions in order, stopping at the first error.
func (r *Runner) runSequence(ctx context.Context, s *session, actions []scene.Action, depth int) error {
	for i := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		a := &actions[i]

		r.agent.Notify("timeline.step", agent.Params{"index": s.actions, "kind": string(a.Kind), "depth": depth})

		start := r.now()
		err := r.executeAction(ctx, s, a, depth)
		if a.Kind != scene.KindUse {
			r.recordAction(s, a, start, err)
			s.actions++
		}
		if err != nil {
			return fmt.Errorf("action %d (%s): %w", i+1, a.Kind, err)
		}
	}
	return nil
}

// outputPath is <OutputDir>/<mode>/<output or name><ext>.
func (r *Runner) outputPath(sc *scene.Scene) string {
	mode := sc.Mode
	if mode == "" {
		mode = scene.ModeDraft
	}
	name := sc.Output
	if name == "" {
		name = sc.Name
	}
	if name == "" {
		name = "scene"
	}
	if filepath.Ext(name) == "" {
		name += r.cfg.Extension
	}
	return filepath.Join(r.cfg.OutputDir, mode, name)
}

// finalPath is the sibling "-final" path of a raw capture.
func finalPath(raw string) string {
	ext := filepath.Ext(raw)
	return strings.TrimSuffix(raw, ext) + "-final" + ext
}

func (r *Runner) createHistory(ctx context.Context, rec *history.Run) {
	if r.history == nil {
		return
	}
	if err := r.history.Create(ctx, rec); err != nil {
		r.logger.Warn("recording run history failed", "error", err)
	}
}

func (r *Runner) finishHistory(ctx context.Context, rec *history.Run, report *Report, runErr error) {
	if r.history == nil {
		return
	}
	if len(report.Outputs) > 0 {
		rec.Output = report.Outputs[len(report.Outputs)-1]
	}
	rec.Validations = report.Validations
	rec.Finish(report.Status, runErr, r.now())
	if err := r.history.Update(ctx, rec); err != nil {
		r.logger.Warn("updating run history failed", "run_id", rec.ID, "error", err)
	}
}

func (r *Runner) publish(sceneName, phase string, payload any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishRunEvent(sceneName, phase, payload); err != nil {
		r.logger.Debug("run event not published", "phase", phase, "error", err)
	}
}

func (r *Runner) recordAction(s *session, a *scene.Action, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.WriteAction(influxdb.ActionSample{
		Scene:   s.scene.Name,
		Kind:    string(a.Kind),
		Index:   s.actions,
		Elapsed: r.now().Sub(start),
		Err:     err,
		At:      start,
	})
}

func (r *Runner) recordRun(report *Report) {
	if r.metrics == nil {
		return
	}
	r.metrics.WriteRun(influxdb.RunSample{
		Scene:      report.Scene,
		Mode:       report.Mode,
		Status:     string(report.Status),
		Elapsed:    report.Duration,
		Actions:    report.Actions,
		Validated:  report.Summary.Total() - report.Summary.Unverified,
		Unverified: report.Summary.Unverified,
		At:         r.now(),
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
