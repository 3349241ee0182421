package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arach/vif-sub000/internal/agent"
	"github.com/arach/vif-sub000/internal/history"
	"github.com/arach/vif-sub000/internal/infrastructure/influxdb"
	"github.com/arach/vif-sub000/internal/recorder"
	"github.com/arach/vif-sub000/internal/telemetry"
	"github.com/arach/vif-sub000/internal/validation"
)

type sentCommand struct {
	action string
	params agent.Params
}

// fakeAgent records every command and answers ok unless told to fail.
type fakeAgent struct {
	mu         sync.Mutex
	sent       []sentCommand
	notified   []string
	fail       map[string]error
	connectErr error
	connects   int
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{fail: make(map[string]error)}
}

func (f *fakeAgent) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeAgent) Send(_ context.Context, action string, params agent.Params) (agent.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCommand{action: action, params: params})
	if err := f.fail[action]; err != nil {
		return agent.Reply{}, err
	}
	return agent.Reply{OK: true}, nil
}

func (f *fakeAgent) Notify(action string, _ agent.Params) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, action)
}

func (f *fakeAgent) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, c := range f.sent {
		out[i] = c.action
	}
	return out
}

func (f *fakeAgent) commands() []sentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCommand(nil), f.sent...)
}

func (f *fakeAgent) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeRecorder tracks start/stop without a process.
type fakeRecorder struct {
	mu         sync.Mutex
	recording  bool
	started    []recorder.Options
	stops      int
	forceStops int
	stopErr    error
	stickOnErr bool
}

func (f *fakeRecorder) Start(_ context.Context, opts recorder.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, opts)
	f.recording = true
	return nil
}

func (f *fakeRecorder) Stop(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.stopErr != nil {
		if !f.stickOnErr {
			f.recording = false
		}
		return "", f.stopErr
	}
	f.recording = false
	if len(f.started) == 0 {
		return "", nil
	}
	return f.started[len(f.started)-1].Output, nil
}

func (f *fakeRecorder) ForceStop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceStops++
	f.recording = false
	return nil
}

func (f *fakeRecorder) IsRecording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

func (f *fakeRecorder) SetOnStarted(func(string)) {}
func (f *fakeRecorder) SetOnStopped(func(string)) {}
func (f *fakeRecorder) SetOnError(func(error))    {}

// fakeTelemetry serves a fixed registry and records navigations.
type fakeTelemetry struct {
	mu          sync.Mutex
	targets     telemetry.Targets
	targetsErr  error
	navigateErr map[string]error
	navigated   []string
	resets      int
}

func (f *fakeTelemetry) Targets(context.Context) (telemetry.Targets, error) {
	return f.targets, f.targetsErr
}

func (f *fakeTelemetry) Navigate(_ context.Context, section string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, section)
	return f.navigateErr[section]
}

func (f *fakeTelemetry) ResetEvents(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

// fakeValidator records validations and reports them as unverified.
type fakeValidator struct {
	mu      sync.Mutex
	results []validation.Result
}

func (f *fakeValidator) Validate(_ context.Context, action, target string) validation.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := validation.Result{Action: action, Target: target, Success: true}
	f.results = append(f.results, r)
	return r
}

func (f *fakeValidator) Results() []validation.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]validation.Result(nil), f.results...)
}

func (f *fakeValidator) Summary() validation.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return validation.Summary{Unverified: len(f.results)}
}

func (f *fakeValidator) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = nil
}

type publishedEvent struct {
	scene   string
	phase   string
	payload map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) PublishRunEvent(scene, phase string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, _ := payload.(map[string]any) //nolint:errcheck // Runner always publishes maps
	f.events = append(f.events, publishedEvent{scene: scene, phase: phase, payload: m})
	return nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	actions []influxdb.ActionSample
	runs    []influxdb.RunSample
}

func (f *fakeMetrics) WriteAction(s influxdb.ActionSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, s)
}

func (f *fakeMetrics) WriteRun(s influxdb.RunSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, s)
}

// memoryHistory is an in-memory history.Repository.
type memoryHistory struct {
	mu   sync.Mutex
	runs map[string]history.Run
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{runs: make(map[string]history.Run)}
}

func (m *memoryHistory) Create(_ context.Context, run *history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memoryHistory) Update(_ context.Context, run *history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return history.ErrRunNotFound
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *memoryHistory) Get(_ context.Context, id string) (*history.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, history.ErrRunNotFound
	}
	return &run, nil
}

func (m *memoryHistory) List(context.Context, int) ([]history.Run, error) {
	return nil, errors.New("not implemented")
}

// sleepRecorder replaces the runner's sleep and records requested waits.
type sleepRecorder struct {
	mu     sync.Mutex
	slept  []time.Duration
	onWait func(d time.Duration) error
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	hook := s.onWait
	s.mu.Unlock()
	if hook != nil {
		if err := hook(d); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *sleepRecorder) waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}
