package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/arach/vif-sub000/internal/infrastructure/config"
)

// fakeInflux answers /ping and captures line protocol posted to /api/v2/write.
type fakeInflux struct {
	mu     sync.Mutex
	bodies []string
}

func (f *fakeInflux) handler(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/ping"):
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(r.URL.Path, "/api/v2/write"):
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.bodies, "\n")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "vif",
		Bucket:        "scenes",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(context.Background(), testConfig(url))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteAction_ReachesServer(t *testing.T) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer srv.Close()

	client, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteAction(ActionSample{Scene: "notes", Kind: "click", Index: 2, Elapsed: 150 * time.Millisecond})
	client.WriteRun(RunSample{Scene: "notes", Mode: "draft", Status: "completed", Elapsed: 3 * time.Second, Actions: 4})
	client.Close() //nolint:errcheck // flushes

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !strings.Contains(fake.written(), MeasurementRun) {
		time.Sleep(20 * time.Millisecond)
	}

	got := fake.written()
	if !strings.Contains(got, "scene_action,kind=click,scene=notes") {
		t.Errorf("action point missing from %q", got)
	}
	if !strings.Contains(got, "scene_run,mode=draft,scene=notes,status=completed") {
		t.Errorf("run point missing from %q", got)
	}
}

func TestWriteAfterClose_NoPanic(t *testing.T) {
	c := &Client{}
	c.WriteAction(ActionSample{Scene: "x", Kind: "wait"})
	c.WriteRun(RunSample{Scene: "x"})
	c.Flush()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestActionPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := actionPoint(ActionSample{
		Scene:   "notes",
		Kind:    "typer.type",
		Index:   5,
		Elapsed: 1500 * time.Millisecond,
		Err:     errors.New("agent: timeout"),
		At:      at,
	})

	line := write.PointToLineProtocol(p, time.Millisecond)
	for _, want := range []string{
		"scene_action,",
		"kind=typer.type",
		"duration_ms=1500",
		"index=5i",
		"ok=false",
		`error="agent: timeout"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestRunPoint(t *testing.T) {
	p := runPoint(RunSample{Scene: "notes", Mode: "final", Status: "failed", Elapsed: 2 * time.Second, Actions: 7, Validated: 2, Unverified: 1})
	line := write.PointToLineProtocol(p, time.Millisecond)

	for _, want := range []string{"scene_run,", "mode=final", "status=failed", "duration_ms=2000i", "actions=7i", "validated=2i", "unverified=1i"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}
