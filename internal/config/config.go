// Package config loads handswitch settings from defaults, .env, the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/ayusman/handswitch/internal/gesture"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "HANDSWITCH_"

// Config is the runtime configuration.
type Config struct {
	Cooldown        time.Duration `env:"COOLDOWN"`         // minimum time between two events
	OpenThreshold   int           `env:"OPEN_THRESHOLD"`   // fingers needed for an open hand
	ClosedThreshold int           `env:"CLOSED_THRESHOLD"` // fingers allowed in a fist
	TotalFingers    int           `env:"TOTAL_FINGERS"`

	CameraID        int     `env:"CAMERA_ID"`
	FPS             int     `env:"FPS"`
	MotionThreshold float64 `env:"MOTION_THRESHOLD"` // percent of changed pixels; 0 runs detection on every frame

	DataDir       string        `env:"DATA_DIR"` // database, scripts and plugins live here
	PluginDir     string        `env:"PLUGIN_DIR"`
	PluginTimeout time.Duration `env:"PLUGIN_TIMEOUT"`

	Addr               string `env:"ADDR"`
	WebDir             string `env:"WEB_DIR"` // settings page assets; empty searches the usual places
	Tray               bool   `env:"TRAY"`
	Debug              bool   `env:"DEBUG"`
	StopOnHandlerError bool   `env:"STOP_ON_HANDLER_ERROR"`

	Replay string `env:"REPLAY"` // JSON Lines recording played instead of the camera
	Record string `env:"RECORD"` // file every processed frame is appended to
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	dataDir := ".handswitch"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".handswitch")
	}

	return &Config{
		Cooldown:        gesture.DefaultCooldown,
		OpenThreshold:   gesture.DefaultOpenThreshold,
		ClosedThreshold: gesture.DefaultClosedThreshold,
		TotalFingers:    gesture.DefaultTotalFingers,
		CameraID:        0,
		FPS:             15,
		MotionThreshold: 1.0,
		DataDir:         dataDir,
		PluginTimeout:   5 * time.Second,
		Addr:            "127.0.0.1:8080",
	}
}

// Load builds the configuration: defaults, then .env, then the environment,
// then command-line flags parsed from args.
func Load(args []string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	fs := flag.NewFlagSet("handswitch", flag.ContinueOnError)
	fs.DurationVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "minimum time between two device events")
	fs.IntVar(&cfg.OpenThreshold, "open-threshold", cfg.OpenThreshold, "extended fingers needed for an open hand")
	fs.IntVar(&cfg.ClosedThreshold, "closed-threshold", cfg.ClosedThreshold, "extended fingers allowed in a fist")
	fs.IntVar(&cfg.CameraID, "camera", cfg.CameraID, "camera device index")
	fs.IntVar(&cfg.FPS, "fps", cfg.FPS, "frames processed per second")
	fs.Float64Var(&cfg.MotionThreshold, "motion-threshold", cfg.MotionThreshold, "percent of pixels that must change before detection reruns; 0 disables")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the database, scripts and plugins")
	fs.StringVar(&cfg.PluginDir, "plugin-dir", cfg.PluginDir, "plugin directory (default <data-dir>/plugins)")
	fs.DurationVar(&cfg.PluginTimeout, "plugin-timeout", cfg.PluginTimeout, "maximum run time of one plugin call")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address; empty disables the server")
	fs.StringVar(&cfg.WebDir, "web-dir", cfg.WebDir, "directory with the settings page")
	fs.BoolVar(&cfg.Tray, "tray", cfg.Tray, "show a system tray icon")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "development logging")
	fs.BoolVar(&cfg.StopOnHandlerError, "stop-on-handler-error", cfg.StopOnHandlerError, "stop the frame loop when a handler fails")
	fs.StringVar(&cfg.Replay, "replay", cfg.Replay, "replay a landmark recording instead of reading the camera")
	fs.StringVar(&cfg.Record, "record", cfg.Record, "record landmark frames to this file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(cfg.DataDir, "plugins")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Gesture().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.MotionThreshold < 0 || c.MotionThreshold > 100 {
		errs = append(errs, fmt.Errorf("motion threshold must be within [0, 100], got %v", c.MotionThreshold))
	}
	if c.CameraID < 0 {
		errs = append(errs, fmt.Errorf("camera id must not be negative, got %d", c.CameraID))
	}
	if c.PluginTimeout <= 0 {
		errs = append(errs, fmt.Errorf("plugin timeout must be positive, got %s", c.PluginTimeout))
	}
	if c.Replay != "" && c.Replay == c.Record {
		errs = append(errs, errors.New("replay and record must be different files"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data dir is required"))
	}
	return errors.Join(errs...)
}

// Gesture returns the tracker configuration.
func (c *Config) Gesture() gesture.Config {
	return gesture.Config{
		Cooldown: c.Cooldown,
		Thresholds: gesture.Thresholds{
			Open:         c.OpenThreshold,
			Closed:       c.ClosedThreshold,
			TotalFingers: c.TotalFingers,
		},
	}
}

// DBPath is the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "handswitch.db")
}
