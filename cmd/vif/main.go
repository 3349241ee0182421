// vif runs demo-recording scenes.
//
// A scene is a YAML file describing the stage (app window, backdrop,
// viewport), overlays and a timed sequence of actions. vif drives the
// rendering Agent over its websocket protocol, records the screen with
// ffmpeg, validates clicks against the target app's telemetry and mixes
// the scene's audio into the final video.
//
// Usage:
//
//	vif [-config path] [-dry-run] [-verbose] <scene.yaml>
//	vif history [-config path] [-limit n]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"

	_ "github.com/arach/vif-sub000/migrations"

	"github.com/arach/vif-sub000/internal/agent"
	"github.com/arach/vif-sub000/internal/history"
	"github.com/arach/vif-sub000/internal/infrastructure/config"
	"github.com/arach/vif-sub000/internal/infrastructure/database"
	"github.com/arach/vif-sub000/internal/infrastructure/influxdb"
	"github.com/arach/vif-sub000/internal/infrastructure/logging"
	"github.com/arach/vif-sub000/internal/infrastructure/mqtt"
	"github.com/arach/vif-sub000/internal/media"
	"github.com/arach/vif-sub000/internal/recorder"
	"github.com/arach/vif-sub000/internal/runner"
	"github.com/arach/vif-sub000/internal/scene"
	"github.com/arach/vif-sub000/internal/telemetry"
	"github.com/arach/vif-sub000/internal/validation"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/vif.yaml"

// errSceneFailed marks a run whose failure was already reported on stdout.
var errSceneFailed = errors.New("scene failed")

// Options are the command-line settings, read from the environment first
// and then from flags.
type Options struct {
	ConfigPath string `env:"VIF_CONFIG" envDefault:"configs/vif.yaml"`
	DryRun     bool   `env:"VIF_DRY_RUN"`
	Verbose    bool   `env:"VIF_VERBOSE"`
	Limit      int    `env:"VIF_HISTORY_LIMIT" envDefault:"20"`
}

// ParseOptions parses environment variables and then args into Options.
func ParseOptions(fs *flag.FlagSet, args []string) (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return Options{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "path to the configuration file")
	fs.BoolVar(&opts.DryRun, "dry-run", opts.DryRun, "answer Agent commands locally and skip screen capture")
	fs.BoolVar(&opts.Verbose, "verbose", opts.Verbose, "enable debug logging")
	fs.IntVar(&opts.Limit, "limit", opts.Limit, "number of runs listed by the history command")
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errSceneFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run dispatches to the history command or runs a scene.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "history" {
		return runHistory(ctx, args[1:], stdout, stderr)
	}
	return runScene(ctx, args, stdout, stderr)
}

func runScene(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("vif", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts, err := ParseOptions(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: vif [-config path] [-dry-run] [-verbose] <scene.yaml>")
	}
	scenePath := fs.Arg(0)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	log.Debug("starting vif", "version", version, "commit", commit, "build_date", date)

	sc, err := scene.Load(scenePath)
	if err != nil {
		return fmt.Errorf("loading scene: %w", err)
	}
	log.Info("scene loaded", "path", scenePath, "name", sc.Name, "actions", len(sc.Sequence))

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	deps := runner.Deps{
		History: history.NewSQLiteRepository(db.DB),
		Logger:  log.With("component", "runner"),
	}

	// Run events (optional, best-effort)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			log.Warn("MQTT unavailable, run events disabled", "error", mqttErr)
		} else {
			mqttClient.SetLogger(log)
			defer func() {
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			deps.Publisher = mqttClient
			log.Debug("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))
		}
	}

	// Action timings (optional, best-effort)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			log.Warn("InfluxDB unavailable, metrics disabled", "error", influxErr)
		} else {
			influxClient.SetOnError(func(err error) {
				log.Warn("InfluxDB write error", "error", err)
			})
			defer func() {
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			deps.Metrics = influxClient
		}
	}

	agentClient := agent.New(agent.Config{
		URL:              cfg.Agent.URL,
		CommandTimeout:   cfg.Agent.CommandTimeout,
		HandshakeTimeout: cfg.Agent.HandshakeTimeout,
		DryRun:           cfg.Agent.DryRun,
	})
	agentClient.SetLogger(log.With("component", "agent"))
	defer agentClient.Close() //nolint:errcheck // Close after the run only releases the socket
	deps.Agent = agentClient

	telemetryClient := telemetry.New(cfg.Telemetry.URL, cfg.Telemetry.Timeout)
	deps.Telemetry = telemetryClient

	validator := validation.New(telemetryClient, validation.Config{
		GracePeriod:  cfg.Telemetry.GracePeriod,
		PollAttempts: cfg.Telemetry.PollAttempts,
		PollInterval: cfg.Telemetry.PollInterval,
	})
	validator.SetLogger(log.With("component", "validation"))
	deps.Validator = validator

	ff := media.New(cfg.Audio.FFmpeg, cfg.Audio.FFprobe)
	deps.Prober = ff
	deps.Mixer = ff

	deps.Recorder = newRecorder(cfg, log)

	r := runner.New(runner.Config{
		Screen:           scene.Size{Width: cfg.Stage.ScreenWidth, Height: cfg.Stage.ScreenHeight},
		SettleDelay:      cfg.Stage.SettleDelay,
		OutputDir:        cfg.Recording.OutputDir,
		Extension:        cfg.Recording.Extension,
		ProbeConcurrency: cfg.Audio.ProbeConcurrency,
	}, deps)

	report, runErr := r.Run(ctx, sc)
	printReport(stdout, report, runErr)
	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return errSceneFailed
	}
	return nil
}

// newRecorder returns the ffmpeg capture, or a recorder that captures
// nothing in dry-run mode.
func newRecorder(cfg *config.Config, log *logging.Logger) recorder.Recorder {
	if cfg.Agent.DryRun {
		return &recorder.Nop{}
	}
	capture := recorder.NewCapture(recorder.Config{
		Binary:          cfg.Recording.Binary,
		InputArgs:       cfg.Recording.InputArgs,
		GracefulTimeout: cfg.Recording.GracefulTimeout,
	})
	capture.SetLogger(log.With("component", "recorder"))
	capture.SetOnError(func(err error) {
		log.Error("screen capture failed", "error", err)
	})
	return capture
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("vif history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts, err := ParseOptions(fs, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-only listing

	runs, err := history.NewSQLiteRepository(db.DB).List(ctx, opts.Limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	return printHistory(stdout, runs)
}

// loadConfig reads the configuration file. A missing file at the default
// path falls back to built-in defaults; an explicit path must exist.
func loadConfig(opts Options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if _, statErr := os.Stat(opts.ConfigPath); statErr != nil && opts.ConfigPath == defaultConfigPath && errors.Is(statErr, os.ErrNotExist) {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(opts.ConfigPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.DryRun {
		cfg.Agent.DryRun = true
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// openDatabase opens the run history database and applies migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
