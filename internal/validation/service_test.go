package validation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arach/vif-sub000/internal/telemetry"
)

// mockSource returns successive event snapshots, repeating the last one.
type mockSource struct {
	mu        sync.Mutex
	snapshots [][]telemetry.Event
	err       error
	calls     int
}

func (m *mockSource) Events(_ context.Context) ([]telemetry.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.snapshots) == 0 {
		return nil, nil
	}
	i := m.calls - 1
	if i >= len(m.snapshots) {
		i = len(m.snapshots) - 1
	}
	return m.snapshots[i], nil
}

func newTestService(src EventSource) (*Service, *[]time.Duration) {
	s := New(src, Config{GracePeriod: DefaultGracePeriod})
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return s, &slept
}

func TestValidate_Match(t *testing.T) {
	src := &mockSource{snapshots: [][]telemetry.Event{{
		{ID: "e1", Action: "click", Target: "Home", Success: true},
	}}}
	s, slept := newTestService(src)

	got := s.Validate(context.Background(), "click", "home")
	want := Result{Action: "click", Target: "home", Success: true, Validated: true}
	if got != want {
		t.Errorf("Validate() = %+v, want %+v", got, want)
	}
	if len(*slept) != 1 || (*slept)[0] != DefaultGracePeriod {
		t.Errorf("slept = %v, want one grace period", *slept)
	}
}

func TestValidate_FailedEvent(t *testing.T) {
	src := &mockSource{snapshots: [][]telemetry.Event{{
		{ID: "e1", Action: "navigate", Target: "settings", Success: false, Detail: "locked"},
	}}}
	s, _ := newTestService(src)

	got := s.Validate(context.Background(), "navigate", "settings")
	if got.Success || !got.Validated || got.Error != "locked" {
		t.Errorf("Validate() = %+v, want failed validated result with detail", got)
	}
}

func TestValidate_UnverifiedAfterPolls(t *testing.T) {
	src := &mockSource{snapshots: [][]telemetry.Event{{
		{ID: "e1", Action: "click", Target: "Other", Success: true},
	}}}
	s, slept := newTestService(src)

	got := s.Validate(context.Background(), "click", "Home")
	want := Result{Action: "click", Target: "Home", Success: true, Validated: false}
	if got != want {
		t.Errorf("Validate() = %+v, want %+v", got, want)
	}
	if src.calls != DefaultPollAttempts {
		t.Errorf("polls = %d, want %d", src.calls, DefaultPollAttempts)
	}
	// grace + (attempts-1) intervals
	if len(*slept) != DefaultPollAttempts {
		t.Errorf("sleeps = %d, want %d", len(*slept), DefaultPollAttempts)
	}
}

func TestValidate_EventArrivesLate(t *testing.T) {
	src := &mockSource{snapshots: [][]telemetry.Event{
		{},
		{},
		{{ID: "e7", Action: "click", Target: "Save", Success: true}},
	}}
	s, _ := newTestService(src)

	got := s.Validate(context.Background(), "click", "Save")
	if !got.Validated {
		t.Errorf("Validate() = %+v, want validated", got)
	}
	if src.calls != 3 {
		t.Errorf("polls = %d, want 3", src.calls)
	}
}

func TestValidate_SeenEventsNotReused(t *testing.T) {
	src := &mockSource{snapshots: [][]telemetry.Event{{
		{ID: "e1", Action: "click", Target: "Home", Success: false},
		{ID: "e2", Action: "click", Target: "Home", Success: true},
	}}}
	s, _ := newTestService(src)

	first := s.Validate(context.Background(), "click", "Home")
	second := s.Validate(context.Background(), "click", "Home")
	third := s.Validate(context.Background(), "click", "Home")

	if !first.Success || !first.Validated {
		t.Errorf("first = %+v, want newest (e2) success", first)
	}
	if second.Success || !second.Validated {
		t.Errorf("second = %+v, want e1 failure", second)
	}
	if third.Validated {
		t.Errorf("third = %+v, want unverified", third)
	}
}

func TestValidate_SourceErrorIsUnverified(t *testing.T) {
	src := &mockSource{err: telemetry.ErrUnavailable}
	s, _ := newTestService(src)

	got := s.Validate(context.Background(), "click", "Home")
	if !got.Success || got.Validated {
		t.Errorf("Validate() = %+v, want unverified success", got)
	}
}

func TestValidate_Cancelled(t *testing.T) {
	src := &mockSource{}
	s, _ := newTestService(src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := s.Validate(ctx, "click", "Home")
	if got.Validated || !got.Success {
		t.Errorf("Validate() = %+v, want unverified", got)
	}
	if src.calls != 0 {
		t.Errorf("polls = %d, want 0 after cancellation", src.calls)
	}
}

func TestValidate_NilSource(t *testing.T) {
	s := New(nil, Config{})
	got := s.Validate(context.Background(), "click", "Home")
	if got.Validated || !got.Success {
		t.Errorf("Validate() = %+v, want unverified", got)
	}
}

func TestSummary(t *testing.T) {
	src := &mockSource{snapshots: [][]telemetry.Event{{
		{ID: "1", Action: "click", Target: "a", Success: true},
		{ID: "2", Action: "click", Target: "b", Success: false, Detail: "disabled"},
	}}}
	s, _ := newTestService(src)
	ctx := context.Background()

	s.Validate(ctx, "click", "a")
	s.Validate(ctx, "click", "b")
	s.Validate(ctx, "click", "c")

	sum := s.Summary()
	if sum.Passed != 1 || sum.Failed != 1 || sum.Unverified != 1 {
		t.Errorf("Summary() = %+v, want passed=1 failed=1 unverified=1", sum)
	}
	if sum.Total() != 3 {
		t.Errorf("Total() = %d, want 3", sum.Total())
	}
	if len(sum.Failures) != 1 || sum.Failures[0].Target != "b" || sum.Failures[0].Error != "disabled" {
		t.Errorf("Failures = %+v", sum.Failures)
	}
	if len(s.Results()) != 3 {
		t.Errorf("Results() len = %d, want 3", len(s.Results()))
	}

	s.Reset()
	if len(s.Results()) != 0 {
		t.Error("Reset() did not clear results")
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() error = %v, want context.Canceled", err)
	}
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Errorf("sleepContext(0) error = %v", err)
	}
}

func TestSummary_UnverifiedNotPassed(t *testing.T) {
	s, _ := newTestService(nil)
	ctx := context.Background()

	s.Validate(ctx, "click", "a")
	s.Validate(ctx, "click", "b")

	sum := s.Summary()
	if sum.Passed != 0 || sum.Failed != 0 || sum.Unverified != 2 {
		t.Errorf("Summary() = %+v, want passed=0 failed=0 unverified=2", sum)
	}
	if sum.Total() != 2 {
		t.Errorf("Total() = %d, want 2", sum.Total())
	}
}
