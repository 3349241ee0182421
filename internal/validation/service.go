package validation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arach/vif-sub000/internal/telemetry"
)

// Defaults for polling the event buffer.
const (
	DefaultGracePeriod  = 150 * time.Millisecond
	DefaultPollAttempts = 5
	DefaultPollInterval = 100 * time.Millisecond
)

// EventSource returns the application's recent events.
type EventSource interface {
	Events(ctx context.Context) ([]telemetry.Event, error)
}

// Logger is the logging interface used by the service.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Config tunes the poll loop.
type Config struct {
	GracePeriod  time.Duration
	PollAttempts int
	PollInterval time.Duration
}

// Result is the outcome of validating one action.
type Result struct {
	Action    string `json:"action"`
	Target    string `json:"target"`
	Success   bool   `json:"success"`
	Validated bool   `json:"validated"`
	Error     string `json:"error,omitempty"`
}

// Summary aggregates the results of a run. The three counts are disjoint.
type Summary struct {
	Passed     int
	Failed     int
	Unverified int
	Failures   []Result
}

// Total returns the number of validated and unverified results.
func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Unverified
}

// Service matches actions against telemetry events.
//
// Thread Safety:
//   - Validate may be called from one goroutine at a time per run; Results,
//     Summary and Reset are safe for concurrent use.
type Service struct {
	source EventSource
	cfg    Config
	logger Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	seen    map[telemetry.EventID]struct{}
	results []Result
}

// New creates a Service. A nil source makes every result unverified.
func New(source EventSource, cfg Config) *Service {
	if cfg.GracePeriod < 0 {
		cfg.GracePeriod = 0
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = DefaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Service{
		source: source,
		cfg:    cfg,
		logger: noopLogger{},
		sleep:  sleepContext,
		seen:   make(map[telemetry.EventID]struct{}),
	}
}

// SetLogger sets the logger.
func (s *Service) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Validate waits for the event confirming action on target and records the
// result. It never returns an error: cancellation or an unreachable
// endpoint produce an unverified result.
func (s *Service) Validate(ctx context.Context, action, target string) Result {
	result := s.poll(ctx, action, target)

	s.mu.Lock()
	s.results = append(s.results, result)
	s.mu.Unlock()

	s.logger.Debug("action validated",
		"action", action,
		"target", target,
		"success", result.Success,
		"validated", result.Validated,
	)
	return result
}

func (s *Service) poll(ctx context.Context, action, target string) Result {
	unverified := Result{Action: action, Target: target, Success: true}
	if s.source == nil {
		return unverified
	}

	if err := s.sleep(ctx, s.cfg.GracePeriod); err != nil {
		return unverified
	}

	for attempt := 0; attempt < s.cfg.PollAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
				return unverified
			}
		}

		events, err := s.source.Events(ctx)
		if err != nil {
			s.logger.Debug("telemetry events unavailable", "error", err)
			continue
		}

		if ev, ok := s.match(events, action, target); ok {
			r := Result{Action: action, Target: target, Success: ev.Success, Validated: true}
			if !ev.Success {
				r.Error = ev.Detail
				if r.Error == "" {
					r.Error = "action reported failure"
				}
			}
			return r
		}
	}
	return unverified
}

// match finds the newest unseen event for action and target and marks it seen.
func (s *Service) match(events []telemetry.Event, action, target string) (telemetry.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if _, ok := s.seen[ev.ID]; ok && ev.ID != "" {
			continue
		}
		if ev.Action != action || !strings.EqualFold(ev.Target, target) {
			continue
		}
		if ev.ID != "" {
			s.seen[ev.ID] = struct{}{}
		}
		return ev, true
	}
	return telemetry.Event{}, false
}

// Results returns a copy of the recorded results in order.
func (s *Service) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

// Summary counts the recorded results.
func (s *Service) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum Summary
	for _, r := range s.results {
		switch {
		case !r.Validated:
			sum.Unverified++
		case !r.Success:
			sum.Failed++
			sum.Failures = append(sum.Failures, r)
		default:
			sum.Passed++
		}
	}
	return sum
}

// Reset clears results and seen events.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
	s.seen = make(map[telemetry.EventID]struct{})
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
