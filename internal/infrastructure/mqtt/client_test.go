package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/arach/vif-sub000/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration pointing at a local broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "vif-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "vif",
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopics_Run(t *testing.T) {
	tests := []struct {
		prefix string
		scene  string
		phase  string
		want   string
	}{
		{"vif", "Notes Demo", PhaseStarted, "vif/run/notes-demo/started"},
		{"", "notes", PhaseCompleted, "vif/run/notes/completed"},
		{"studio/", "a/b+c#d", PhaseFailed, "studio/run/a-b-c-d/failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := Topics{Prefix: tt.prefix}.Run(tt.scene, tt.phase)
			if got != tt.want {
				t.Errorf("Run(%q, %q) = %q, want %q", tt.scene, tt.phase, got, tt.want)
			}
		})
	}
}

func TestTopics_StatusAndWildcard(t *testing.T) {
	topics := Topics{Prefix: "vif"}
	if got := topics.Status(); got != "vif/runner/status" {
		t.Errorf("Status() = %q", got)
	}
	if got := topics.AllRuns(); got != "vif/run/+/+" {
		t.Errorf("AllRuns() = %q", got)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Notes Demo":   "notes-demo",
		"  --weird__ ": "weird",
		"":             "unnamed",
		"日本":           "unnamed",
		"v2 Launch!":   "v2-launch",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

// =============================================================================
// Option and Payload Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "runner"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "vif-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "runner" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set with TLS enabled")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Topics{Prefix: "vif"}, "vif-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "vif/runner/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}
	if !strings.Contains(string(opts.WillPayload), "unexpected_disconnect") {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var payload map[string]string
	if err := json.Unmarshal([]byte(buildStatusPayload("vif-test", "offline", "graceful_shutdown")), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["reason"] != "graceful_shutdown" || payload["client_id"] != "vif-test" {
		t.Errorf("payload = %v", payload)
	}
	if payload["timestamp"] == "" {
		t.Error("timestamp missing")
	}

	if err := json.Unmarshal([]byte(buildStatusPayload("vif-test", "online", "")), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: testConfig(), topics: Topics{Prefix: "vif"}}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"bad qos", "vif/x", []byte("x"), 3, ErrInvalidQoS},
		{"oversized", "vif/x", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"not connected", "vif/x", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishRunEvent_NotConnected(t *testing.T) {
	c := &Client{cfg: testConfig(), topics: Topics{Prefix: "vif"}}
	err := c.PublishRunEvent("demo", PhaseStarted, map[string]string{"id": "r1"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishRunEvent() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishRunEvent_BadPayload(t *testing.T) {
	c := &Client{cfg: testConfig(), topics: Topics{Prefix: "vif"}}
	err := c.PublishRunEvent("demo", PhaseStarted, make(chan int))
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishRunEvent() error = %v, want ErrPublishFailed", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() cancelled error = %v, want context.Canceled", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestConnect_InvalidBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed local port")
	}
	cfg := testConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
