// Package config loads the YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/airpointer/internal/capture"
	"github.com/ayusman/airpointer/internal/detector"
	"github.com/ayusman/airpointer/internal/filter"
	"github.com/ayusman/airpointer/internal/interaction"
	"github.com/ayusman/airpointer/internal/landmark"
	"github.com/ayusman/airpointer/internal/overlay"
	"github.com/ayusman/airpointer/internal/pointer"
	"github.com/ayusman/airpointer/internal/scroll"
)

type Config struct {
	// Enabled starts the frame loop at launch.
	Enabled    bool             `yaml:"enabled"`
	Camera     CameraConfig     `yaml:"camera"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Engine     EngineConfig     `yaml:"engine"`
	Overlay    OverlayConfig    `yaml:"overlay"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Hooks      HooksConfig      `yaml:"hooks"`
	Log        LogConfig        `yaml:"log"`
}

type CameraConfig struct {
	Device          int           `yaml:"device"`
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	ActiveFPS       int           `yaml:"active_fps"`
	IdleFPS         int           `yaml:"idle_fps"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	MotionThreshold float64       `yaml:"motion_threshold"`
}

type ClassifierConfig struct {
	Script                 string        `yaml:"script"`
	Python                 string        `yaml:"python"`
	MaxHands               int           `yaml:"max_hands"`
	MinDetectionConfidence float64       `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64       `yaml:"min_tracking_confidence"`
	IdleTimeout            time.Duration `yaml:"idle_timeout"`
	LoadTimeout            time.Duration `yaml:"load_timeout"`
}

type EngineConfig struct {
	Smoothing               float64 `yaml:"smoothing"`
	DwellThreshold          float64 `yaml:"dwell_threshold"`
	DwellTimeMs             int64   `yaml:"dwell_time_ms"`
	RefractoryMs            int64   `yaml:"refractory_ms"`
	ScrollVelocityThreshold float64 `yaml:"scroll_velocity_threshold"`
	ScrollResetThreshold    float64 `yaml:"scroll_reset_threshold"`
	ScrollMultiplier        float64 `yaml:"scroll_multiplier"`
	MaxHands                int     `yaml:"max_hands"`
	TrackMatchDistance      float64 `yaml:"track_match_distance"`
	TrackTimeoutMs          int64   `yaml:"track_timeout_ms"`
	PointerGesture          string  `yaml:"pointer_gesture"`
	ScrollGesture           string  `yaml:"scroll_gesture"`
}

type OverlayConfig struct {
	DwellRing    bool `yaml:"dwell_ring"`
	ScrollCursor bool `yaml:"scroll_cursor"`
	Mirror       bool `yaml:"mirror"`
	Labels       bool `yaml:"labels"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	StreamFPS int    `yaml:"stream_fps"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

type HooksConfig struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Enabled: true,
		Camera: CameraConfig{
			Width:           capture.DefaultWidth,
			Height:          capture.DefaultHeight,
			ActiveFPS:       15,
			IdleFPS:         5,
			IdleTimeout:     2 * time.Second,
			MotionThreshold: capture.DefaultMotionThreshold,
		},
		Classifier: ClassifierConfig{
			MaxHands:               2,
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
			IdleTimeout:            30 * time.Second,
			LoadTimeout:            30 * time.Second,
		},
		Engine: EngineConfig{
			Smoothing:               filter.DefaultAlpha,
			DwellThreshold:          pointer.DefaultDwellThreshold,
			DwellTimeMs:             pointer.DefaultDwellTimeMs,
			RefractoryMs:            pointer.DefaultRefractoryMs,
			ScrollVelocityThreshold: scroll.DefaultVelocityThreshold,
			ScrollResetThreshold:    scroll.DefaultResetThreshold,
			ScrollMultiplier:        scroll.DefaultMultiplier,
			MaxHands:                filter.DefaultMaxTracks,
			TrackMatchDistance:      filter.DefaultMatchDistance,
			TrackTimeoutMs:          filter.DefaultTrackTimeout,
			PointerGesture:          landmark.GesturePointingUp,
			ScrollGesture:           landmark.GestureClosedFist,
		},
		Overlay: OverlayConfig{
			DwellRing:    true,
			ScrollCursor: true,
			Mirror:       true,
			Labels:       true,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8765",
			StreamFPS: 15,
		},
		Store: StoreConfig{
			Path: filepath.Join(home, ".airpointer", "airpointer.db"),
		},
		Discovery: DiscoveryConfig{
			Enabled:  false,
			Instance: "airpointer",
		},
		Hooks: HooksConfig{
			Enabled: false,
			Dir:     filepath.Join(home, ".airpointer", "hooks"),
			Timeout: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults, expanding ${VAR} references first.
// A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the application cannot run with.
func (c *Config) Validate() error {
	if err := c.Interaction().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.Camera.ActiveFPS <= 0 || c.Camera.IdleFPS <= 0 {
		return errors.New("camera: fps must be positive")
	}
	if c.Camera.IdleFPS > c.Camera.ActiveFPS {
		return fmt.Errorf("camera: idle_fps %d above active_fps %d", c.Camera.IdleFPS, c.Camera.ActiveFPS)
	}
	if c.Server.Addr == "" {
		return errors.New("server: addr is required")
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}

// Interaction returns the engine configuration.
func (c *Config) Interaction() interaction.Config {
	e := c.Engine
	return interaction.Config{
		Alpha: e.Smoothing,
		Pointer: pointer.Config{
			DwellThreshold: e.DwellThreshold,
			DwellTimeMs:    e.DwellTimeMs,
			RefractoryMs:   e.RefractoryMs,
		},
		Scroll: scroll.Config{
			VelocityThreshold: e.ScrollVelocityThreshold,
			ResetThreshold:    e.ScrollResetThreshold,
			Multiplier:        e.ScrollMultiplier,
		},
		Tracker: filter.TrackerConfig{
			MaxTracks:     e.MaxHands,
			MatchDistance: e.TrackMatchDistance,
			TimeoutMs:     e.TrackTimeoutMs,
		},
		PointerGesture: e.PointerGesture,
		ScrollGesture:  e.ScrollGesture,
	}
}

// OverlayOptions returns the renderer configuration.
func (c *Config) OverlayOptions() overlay.Config {
	return overlay.Config{
		ShowDwellRing:    c.Overlay.DwellRing,
		ShowScrollCursor: c.Overlay.ScrollCursor,
		Mirror:           c.Overlay.Mirror,
		ShowLabels:       c.Overlay.Labels,
	}
}

// CaptureOptions returns the camera configuration.
func (c *Config) CaptureOptions() capture.Config {
	return capture.Config{
		DeviceID: c.Camera.Device,
		Width:    c.Camera.Width,
		Height:   c.Camera.Height,
		FPS:      c.Camera.ActiveFPS,
	}
}

// DetectorOptions returns the classifier configuration.
func (c *Config) DetectorOptions() detector.Config {
	return detector.Config{
		MaxHands:        c.Classifier.MaxHands,
		MinConfidence:   c.Classifier.MinDetectionConfidence,
		MinTrackingConf: c.Classifier.MinTrackingConfidence,
		ScriptPath:      c.Classifier.Script,
		PythonPath:      c.Classifier.Python,
		IdleTimeoutSec:  int(c.Classifier.IdleTimeout / time.Second),
	}
}
