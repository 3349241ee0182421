package audio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arach/vif-sub000/internal/agent"
	"github.com/arach/vif-sub000/internal/media"
	"github.com/arach/vif-sub000/internal/scene"
)

// NarrationChannel is the foreground channel; plays on it block by default.
const NarrationChannel = 1

const defaultProbeConcurrency = 4

// Commander sends Agent commands.
type Commander interface {
	Send(ctx context.Context, action string, params agent.Params) (agent.Reply, error)
}

// Prober reports clip durations in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Mixer renders the final mix.
type Mixer interface {
	HasAudio(ctx context.Context, path string) (bool, error)
	Mix(ctx context.Context, req media.MixRequest) error
}

// Logger is the logging interface used by the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// PlayOptions configures Play. Times are seconds.
type PlayOptions struct {
	File    string
	Channel int

	// Wait overrides the channel's blocking default when set.
	Wait *bool

	FadeIn  float64
	FadeOut float64
	StartAt float64
	Loop    bool
	Volume  *float64
}

// StopOptions configures Stop. Channel 0 stops every channel.
type StopOptions struct {
	Channel int
	FadeOut float64
}

// VolumeOptions configures SetVolume.
type VolumeOptions struct {
	Channel  int
	Volume   float64
	Duration float64
}

// Manager tracks audio channels and the recording timeline.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Manager struct {
	agent  Commander
	prober Prober
	mixer  Mixer
	logger Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	probeConcurrency int

	mu        sync.Mutex
	channels  map[int]scene.ChannelConfig
	active    map[int]bool
	micLive   bool
	durations map[string]float64
	recording bool
	started   time.Time
	timeline  []Event
}

// NewManager creates a Manager. prober and mixer may be nil, in which case
// clip lengths are only known from Agent replies and final mixes are skipped.
func NewManager(cmd Commander, prober Prober, mixer Mixer) *Manager {
	return &Manager{
		agent:            cmd,
		prober:           prober,
		mixer:            mixer,
		logger:           noopLogger{},
		sleep:            sleepContext,
		now:              time.Now,
		probeConcurrency: defaultProbeConcurrency,
		channels:         make(map[int]scene.ChannelConfig),
		active:           make(map[int]bool),
		durations:        make(map[string]float64),
	}
}

// SetLogger sets the logger.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetProbeConcurrency limits concurrent probes in Preload.
func (m *Manager) SetProbeConcurrency(n int) {
	if n > 0 {
		m.probeConcurrency = n
	}
}

// Configure applies per-channel defaults from the scene.
func (m *Manager) Configure(channels map[int]scene.ChannelConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch, cfg := range channels {
		m.channels[ch] = cfg
	}
}

// Preload probes every file concurrently and caches the durations used for
// blocking playback. Files that fail to probe are reported in the returned
// error but do not stop the others.
func (m *Manager) Preload(ctx context.Context, files []string) error {
	if m.prober == nil || len(files) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.probeConcurrency)

	var errMu sync.Mutex
	var failed []string

	for _, file := range files {
		g.Go(func() error {
			secs, err := m.prober.Duration(gctx, file)
			if err != nil {
				errMu.Lock()
				failed = append(failed, file)
				errMu.Unlock()
				m.logger.Warn("audio probe failed", "file", file, "error", err)
				return nil
			}
			m.mu.Lock()
			m.durations[file] = secs
			m.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("audio: could not probe %d file(s): %v", len(failed), failed)
	}
	return nil
}

// Play starts a clip on a channel and, when blocking, waits for it to end.
func (m *Manager) Play(ctx context.Context, opts PlayOptions) error {
	ch := opts.Channel
	if ch <= 0 {
		ch = NarrationChannel
	}
	volume := m.channelVolume(ch, opts.Volume)

	reply, err := m.agent.Send(ctx, "audio.play", agent.Params{
		"file":    opts.File,
		"channel": ch,
		"fadeIn":  opts.FadeIn,
		"fadeOut": opts.FadeOut,
		"startAt": opts.StartAt,
		"loop":    opts.Loop,
		"volume":  volume,
	})
	if err != nil {
		return fmt.Errorf("playing %s on channel %d: %w", opts.File, ch, err)
	}

	m.mu.Lock()
	m.active[ch] = true
	m.record(Event{
		Type:    EventPlay,
		Channel: ch,
		File:    opts.File,
		FadeIn:  opts.FadeIn,
		FadeOut: opts.FadeOut,
		StartAt: opts.StartAt,
		Volume:  volume,
		Loop:    opts.Loop,
	})
	m.mu.Unlock()

	wait := ch == NarrationChannel
	if opts.Wait != nil {
		wait = *opts.Wait
	}
	if !wait {
		return nil
	}
	if opts.Loop {
		m.logger.Warn("not waiting on looped clip", "file", opts.File, "channel", ch)
		return nil
	}

	length := m.clipLength(ctx, opts.File, reply)
	remaining := length - opts.StartAt
	if remaining <= 0 {
		m.logger.Debug("clip length unknown, not waiting", "file", opts.File)
		return nil
	}
	if err := m.sleep(ctx, time.Duration(remaining*float64(time.Second))); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.active, ch)
	m.mu.Unlock()
	return nil
}

// Stop stops one channel, or all channels when opts.Channel is 0.
func (m *Manager) Stop(ctx context.Context, opts StopOptions) error {
	params := agent.Params{}
	if opts.Channel > 0 {
		params["channel"] = opts.Channel
	}
	if opts.FadeOut > 0 {
		params["fadeOut"] = opts.FadeOut
	}
	if _, err := m.agent.Send(ctx, "audio.stop", params); err != nil {
		return fmt.Errorf("stopping audio: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if opts.Channel > 0 {
		delete(m.active, opts.Channel)
	} else {
		m.active = make(map[int]bool)
	}
	m.record(Event{Type: EventStop, Channel: opts.Channel, FadeOut: opts.FadeOut})
	return nil
}

// SetVolume ramps a channel to a new volume.
func (m *Manager) SetVolume(ctx context.Context, opts VolumeOptions) error {
	ch := opts.Channel
	if ch <= 0 {
		ch = NarrationChannel
	}
	if _, err := m.agent.Send(ctx, "audio.volume", agent.Params{
		"channel":  ch,
		"volume":   opts.Volume,
		"duration": opts.Duration,
	}); err != nil {
		return fmt.Errorf("setting volume on channel %d: %w", ch, err)
	}

	m.mu.Lock()
	m.record(Event{Type: EventVolume, Channel: ch, Volume: opts.Volume, Duration: opts.Duration})
	m.mu.Unlock()
	return nil
}

// Mic turns the live microphone on or off.
func (m *Manager) Mic(ctx context.Context, enabled bool, device string) error {
	params := agent.Params{"enabled": enabled}
	if device != "" {
		params["device"] = device
	}
	if _, err := m.agent.Send(ctx, "audio.mic", params); err != nil {
		return fmt.Errorf("switching microphone: %w", err)
	}

	m.mu.Lock()
	m.micLive = enabled
	m.record(Event{Type: EventMic, Live: true, Device: device, Enabled: enabled})
	m.mu.Unlock()
	return nil
}

// StopAll silences every active channel and the microphone. It sends
// nothing when nothing is playing.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	channels := len(m.active)
	mic := m.micLive
	m.mu.Unlock()

	var firstErr error
	if channels > 0 {
		firstErr = m.Stop(ctx, StopOptions{})
	}
	if mic {
		if err := m.Mic(ctx, false, ""); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ActiveChannels returns the channels currently playing, sorted.
func (m *Manager) ActiveChannels() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.active))
	for ch := range m.active {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}

// Begin starts a new timeline at the recording start.
func (m *Manager) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recording = true
	m.started = m.now()
	m.timeline = nil
}

// Timeline returns a copy of the recorded events.
func (m *Manager) Timeline() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.timeline...)
}

// UsedMixableAudio reports whether any non-live clip was played during the recording.
func (m *Manager) UsedMixableAudio() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.timeline {
		if ev.Type == EventPlay && !ev.Live {
			return true
		}
	}
	return false
}

// RenderFinalMix mixes the timeline onto raw, writing out. It reports
// whether a mix was produced.
func (m *Manager) RenderFinalMix(ctx context.Context, raw, out string) (bool, error) {
	tracks := BuildTracks(m.Timeline())
	if len(tracks) == 0 {
		return false, nil
	}
	if m.mixer == nil {
		m.logger.Warn("no mixer configured, keeping raw capture", "raw", raw)
		return false, nil
	}

	keep, err := m.mixer.HasAudio(ctx, raw)
	if err != nil {
		m.logger.Debug("could not probe capture audio", "raw", raw, "error", err)
		keep = false
	}

	if err := m.mixer.Mix(ctx, media.MixRequest{
		Video:          raw,
		Output:         out,
		Tracks:         tracks,
		KeepVideoAudio: keep,
	}); err != nil {
		return false, err
	}
	m.logger.Info("final mix rendered", "output", out, "tracks", len(tracks))
	return true, nil
}

// Reset clears the timeline after a recording.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recording = false
	m.timeline = nil
}

// record appends ev stamped with the offset into the recording.
// Must be called with m.mu held.
func (m *Manager) record(ev Event) {
	if !m.recording {
		return
	}
	ev.At = m.now().Sub(m.started).Seconds()
	m.timeline = append(m.timeline, ev)
}

func (m *Manager) channelVolume(ch int, override *float64) float64 {
	if override != nil {
		return *override
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.channels[ch]; ok && cfg.Volume != nil {
		return *cfg.Volume
	}
	return 1
}

// clipLength prefers the Agent's reported duration, then the preload cache,
// then a fresh probe. Zero means unknown.
func (m *Manager) clipLength(ctx context.Context, file string, reply agent.Reply) float64 {
	var body struct {
		Duration float64 `json:"duration"`
	}
	if err := reply.Decode(&body); err == nil && body.Duration > 0 {
		return body.Duration
	}

	m.mu.Lock()
	secs, ok := m.durations[file]
	m.mu.Unlock()
	if ok {
		return secs
	}

	if m.prober == nil {
		return 0
	}
	secs, err := m.prober.Duration(ctx, file)
	if err != nil {
		m.logger.Warn("audio probe failed", "file", file, "error", err)
		return 0
	}
	m.mu.Lock()
	m.durations[file] = secs
	m.mu.Unlock()
	return secs
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
