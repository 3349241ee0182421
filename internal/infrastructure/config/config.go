package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the vif scene runner.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Stage     StageConfig     `yaml:"stage"`
	Recording RecordingConfig `yaml:"recording"`
	Audio     AudioConfig     `yaml:"audio"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AgentConfig contains the connection settings for the rendering/automation Agent.
type AgentConfig struct {
	// URL is the websocket endpoint of the Agent (ws:// or wss://).
	URL string `yaml:"url"`

	// CommandTimeout bounds the wait for a correlated reply to one command.
	// Default: 30s
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// HandshakeTimeout bounds the websocket opening handshake.
	// Default: 5s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// DryRun resolves every command locally without opening a connection.
	DryRun bool `yaml:"dry_run"`
}

// TelemetryConfig contains settings for the target application's telemetry endpoint.
type TelemetryConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	GracePeriod  time.Duration `yaml:"grace_period"`
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// StageConfig contains screen geometry and choreography timing.
type StageConfig struct {
	ScreenWidth  int           `yaml:"screen_width"`
	ScreenHeight int           `yaml:"screen_height"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

// RecordingConfig contains screen-capture settings.
type RecordingConfig struct {
	OutputDir string `yaml:"output_dir"`

	// Binary is the capture executable (ffmpeg by default).
	Binary string `yaml:"binary"`

	// InputArgs are the capture input arguments placed before filters and the output path.
	// Example (macOS): ["-f", "avfoundation", "-capture_cursor", "0", "-i", "1:0"]
	InputArgs []string `yaml:"input_args"`

	Extension       string        `yaml:"extension"`
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`
}

// AudioConfig contains media tool settings for probing and mixing.
type AudioConfig struct {
	FFmpeg           string `yaml:"ffmpeg"`
	FFprobe          string `yaml:"ffprobe"`
	ProbeConcurrency int    `yaml:"probe_concurrency"`
}

// DatabaseConfig contains SQLite database settings for run history.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for run events.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for action timings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VIF_SECTION_KEY
// For example: VIF_AGENT_URL, VIF_TELEMETRY_URL
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// Used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			URL:              "ws://127.0.0.1:7850",
			CommandTimeout:   30 * time.Second,
			HandshakeTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			URL:          "http://127.0.0.1:7852",
			Timeout:      2 * time.Second,
			GracePeriod:  150 * time.Millisecond,
			PollAttempts: 5,
			PollInterval: 100 * time.Millisecond,
		},
		Stage: StageConfig{
			ScreenWidth:  1920,
			ScreenHeight: 1080,
			SettleDelay:  500 * time.Millisecond,
		},
		Recording: RecordingConfig{
			OutputDir:       "./recordings",
			Binary:          "ffmpeg",
			Extension:       ".mp4",
			GracefulTimeout: 10 * time.Second,
		},
		Audio: AudioConfig{
			FFmpeg:           "ffmpeg",
			FFprobe:          "ffprobe",
			ProbeConcurrency: 4,
		},
		Database: DatabaseConfig{
			Path:        "./data/vif.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vif-runner",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "vif",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VIF_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Agent
	if v := os.Getenv("VIF_AGENT_URL"); v != "" {
		cfg.Agent.URL = v
	}
	if v := os.Getenv("VIF_AGENT_DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Agent.DryRun = b
		}
	}

	// Telemetry
	if v := os.Getenv("VIF_TELEMETRY_URL"); v != "" {
		cfg.Telemetry.URL = v
	}

	// Recording
	if v := os.Getenv("VIF_RECORDING_OUTPUT_DIR"); v != "" {
		cfg.Recording.OutputDir = v
	}

	// Database
	if v := os.Getenv("VIF_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VIF_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VIF_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VIF_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("VIF_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("VIF_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Agent
	if c.Agent.URL == "" {
		errs = append(errs, "agent.url is required")
	} else if u, err := url.Parse(c.Agent.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, "agent.url must be a ws:// or wss:// URL")
	}
	if c.Agent.CommandTimeout <= 0 {
		errs = append(errs, "agent.command_timeout must be positive")
	}

	// Telemetry
	if c.Telemetry.URL == "" {
		errs = append(errs, "telemetry.url is required")
	}
	if c.Telemetry.PollAttempts < 1 {
		errs = append(errs, "telemetry.poll_attempts must be at least 1")
	}
	if c.Telemetry.Timeout <= 0 {
		errs = append(errs, "telemetry.timeout must be positive")
	}

	// Stage
	if c.Stage.ScreenWidth <= 0 || c.Stage.ScreenHeight <= 0 {
		errs = append(errs, "stage.screen_width and stage.screen_height must be positive")
	}

	// Recording
	if c.Recording.OutputDir == "" {
		errs = append(errs, "recording.output_dir is required")
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
