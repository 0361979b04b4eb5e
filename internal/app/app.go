// Package app runs the camera-to-engine frame loop and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/airpointer/internal/capture"
	"github.com/ayusman/airpointer/internal/detector"
	"github.com/ayusman/airpointer/internal/interaction"
	"github.com/ayusman/airpointer/internal/overlay"
)

// Frame loop defaults.
const (
	// DefaultIdleFPS is the tick rate while nothing moves and no hand is seen.
	DefaultIdleFPS = 5
	// DefaultActiveFPS is the tick rate during interaction.
	DefaultActiveFPS = 15
	// DefaultIdleTimeout is how long without motion or hands before idling.
	DefaultIdleTimeout = 2 * time.Second
	// DefaultLoadTimeout bounds classifier startup.
	DefaultLoadTimeout = 30 * time.Second
	// DefaultStopTimeout bounds teardown.
	DefaultStopTimeout = 2 * time.Second
)

// Config holds configuration options for the application.
type Config struct {
	// Camera and Detector default to the gocv camera and the MediaPipe
	// service built from CameraConfig and DetectorConfig.
	Camera         capture.Camera
	Detector       detector.Detector
	CameraConfig   capture.Config
	DetectorConfig detector.Config

	Engine  interaction.Config
	Overlay overlay.Config

	IdleFPS         int
	ActiveFPS       int
	IdleTimeout     time.Duration
	MotionThreshold float64
	LoadTimeout     time.Duration
	StopTimeout     time.Duration
}

func (c *Config) applyDefaults() {
	if c.IdleFPS <= 0 {
		c.IdleFPS = DefaultIdleFPS
	}
	if c.ActiveFPS <= 0 {
		c.ActiveFPS = DefaultActiveFPS
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.Engine == (interaction.Config{}) {
		c.Engine = interaction.DefaultConfig()
	}
}

// FrameSink receives each rendered overlay frame. The Mat is only valid for
// the duration of the call.
type FrameSink interface {
	PublishFrame(frame *gocv.Mat)
}

// App is the main application: it owns the camera, the classifier and, while
// enabled, the interaction engine and the frame loop.
type App struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	motion   *capture.MotionDetector
	renderer *overlay.Renderer

	mu      sync.RWMutex
	engine  *interaction.Engine
	cancel  context.CancelFunc
	done    chan struct{}
	enabled bool
	sink    FrameSink
	subs    []Subscriber

	// tick is the timestamp of the result being processed, for events.
	tick atomic.Int64
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	config.applyDefaults()

	a := &App{
		config:   config,
		camera:   config.Camera,
		detector: config.Detector,
		motion:   capture.NewMotionDetector(config.MotionThreshold),
		renderer: overlay.NewRenderer(config.Overlay),
	}
	if a.camera == nil {
		a.camera = capture.NewCamera(config.CameraConfig)
	}
	if a.detector == nil {
		a.detector = detector.NewMediaPipeDetector(config.DetectorConfig)
	}
	return a
}

// SetFrameSink sets where rendered overlay frames go. Nil disables rendering.
func (a *App) SetFrameSink(sink FrameSink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = sink
}

func (a *App) frameSink() FrameSink {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sink
}

// SetEnabled starts or stops the frame loop.
func (a *App) SetEnabled(enabled bool) error {
	if enabled {
		return a.Start()
	}
	a.Stop()
	return nil
}

// IsEnabled returns whether the frame loop is running.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera, loads the classifier, builds a fresh engine and
// starts the frame loop. On failure nothing is left open.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.enabled {
		return nil
	}

	if err := a.config.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), a.config.LoadTimeout)
	err := a.detector.Load(loadCtx)
	cancelLoad()
	if err != nil {
		if cerr := a.camera.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("closing camera after failed start")
		}
		return fmt.Errorf("load classifier: %w", err)
	}

	a.camera.SetFPS(a.config.ActiveFPS)
	a.motion.Reset()

	engine := interaction.New(a.config.Engine, a.callbacks())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.engine = engine
	a.cancel = cancel
	a.done = done
	a.enabled = true

	go a.run(ctx, engine, done)

	log.Info().Int("fps", a.config.ActiveFPS).Msg("frame loop started")
	return nil
}

// Stop halts the frame loop and releases the camera and classifier. The
// engine is closed first, so no callback fires once Stop returns.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.enabled {
		a.mu.Unlock()
		return
	}
	engine, cancel, done := a.engine, a.cancel, a.done
	a.engine = nil
	a.cancel = nil
	a.done = nil
	a.enabled = false
	a.mu.Unlock()

	cancel()
	engine.Close()

	select {
	case <-done:
	case <-time.After(a.config.StopTimeout):
		log.Warn().Dur("timeout", a.config.StopTimeout).Msg("frame loop did not stop in time")
	}

	if err := a.camera.Close(); err != nil {
		log.Warn().Err(err).Msg("closing camera")
	}
	if err := a.detector.Close(); err != nil {
		log.Warn().Err(err).Msg("closing classifier")
	}
	a.motion.Reset()

	log.Info().Msg("frame loop stopped")
}

// Close stops the loop and frees the motion detector.
func (a *App) Close() {
	a.Stop()
	a.motion.Close()
}

// Snapshot returns the engine state after the latest tick, or an empty
// snapshot while disabled.
func (a *App) Snapshot() interaction.Snapshot {
	a.mu.RLock()
	engine := a.engine
	a.mu.RUnlock()

	if engine == nil {
		return interaction.Snapshot{}
	}
	return engine.Snapshot()
}

// SetOverlay replaces the overlay options. It applies from the next frame.
func (a *App) SetOverlay(cfg overlay.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config.Overlay = cfg
	a.renderer = overlay.NewRenderer(cfg)
}

func (a *App) overlayRenderer() *overlay.Renderer {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.renderer
}

// EngineConfig returns the engine configuration used for the next enable.
func (a *App) EngineConfig() interaction.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.Engine
}

// Reconfigure replaces the engine configuration. A running loop is
// restarted so the new values take effect with fresh per-hand state. If the
// restart fails the previous configuration is restored and restarted, and
// the error is returned; the loop stays stopped only when that fails too.
func (a *App) Reconfigure(cfg interaction.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	prev := a.config.Engine
	a.config.Engine = cfg
	running := a.enabled
	a.mu.Unlock()

	if !running {
		return nil
	}
	a.Stop()
	err := a.Start()
	if err == nil {
		return nil
	}

	a.mu.Lock()
	a.config.Engine = prev
	a.mu.Unlock()

	if rerr := a.Start(); rerr != nil {
		log.Error().Err(rerr).Msg("restarting with previous engine config")
		return fmt.Errorf("restart engine: %w (previous config also failed: %v)", err, rerr)
	}
	log.Warn().Err(err).Msg("engine config rejected, previous config restored")
	return fmt.Errorf("restart engine: %w", err)
}
