package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/airpointer/internal/app"
	"github.com/ayusman/airpointer/internal/config"
	"github.com/ayusman/airpointer/internal/discovery"
	"github.com/ayusman/airpointer/internal/hook"
	"github.com/ayusman/airpointer/internal/interaction"
	"github.com/ayusman/airpointer/internal/overlay"
	"github.com/ayusman/airpointer/internal/server"
	"github.com/ayusman/airpointer/internal/store"
	"github.com/ayusman/airpointer/internal/tray"
)

var noTray bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the camera loop, the control server and the tray icon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().BoolVar(&noTray, "no-tray", false, "run without the system tray icon")
	rootCmd.Flags().BoolVar(&noTray, "no-tray", false, "run without the system tray icon")
	rootCmd.AddCommand(runCmd)
	rootCmd.RunE = runCmd.RunE
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}

	st, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	overrides, err := st.Settings().All()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	effective, err := cfg.WithOverrides(overrides)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring stored settings")
		effective = cfg
	}

	a := app.New(appConfig(effective))
	defer a.Close()

	hub := server.NewHub()
	a.Subscribe(hub.Publish)

	frames := server.NewFrameBuffer(cfg.Server.StreamFPS)
	a.SetFrameSink(frames)

	if cfg.Hooks.Enabled {
		dispatcher, err := startHooks(cfg.Hooks)
		if err != nil {
			return err
		}
		defer dispatcher.Close()
		a.Subscribe(dispatcher.Observe)
	}

	var t *tray.Tray
	if !noTray {
		t = tray.New(false)
		a.Subscribe(t.Observe)
	}
	engine := &engineControl{App: a, tray: t}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.Info().Str("dir", staticDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Engine:    engine,
		Apply:     applier(cfg, engine),
		Frames:    frames,
		Hub:       hub,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var advertiser *discovery.Advertiser
	var advertiserMu sync.Mutex
	defer func() {
		advertiserMu.Lock()
		defer advertiserMu.Unlock()
		if advertiser != nil {
			advertiser.Stop()
		}
	}()

	var url string
	ready := make(chan struct{})
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(ctx, cfg.Server.Addr, func(addr net.Addr) {
			port := addr.(*net.TCPAddr).Port
			url = fmt.Sprintf("http://%s", addr)
			log.Info().Str("url", url).Msg("control server listening")
			close(ready)

			if cfg.Discovery.Enabled {
				adv := discovery.New(cfg.Discovery.Instance, port, Version)
				if err := adv.Start(); err != nil {
					log.Warn().Err(err).Msg("mDNS advertisement failed")
					return
				}
				advertiserMu.Lock()
				advertiser = adv
				advertiserMu.Unlock()
			}
		})
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-ready:
	}

	if effective.Enabled {
		if err := engine.SetEnabled(true); err != nil {
			// The server stays up so the page can report the problem and retry.
			log.Error().Err(err).Msg("engine failed to start")
		}
	}

	if t != nil {
		t.OnToggle(engine.SetEnabled)
		t.OnSettings(func() { openBrowser(url) })
		t.OnQuit(cancel)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine on macOS.
		t.Run()
	} else {
		<-ctx.Done()
	}

	cancel()
	log.Info().Msg("shutting down")
	if err := <-serveErr; err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func startHooks(cfg config.HooksConfig) (*hook.Dispatcher, error) {
	manager := hook.NewManager(cfg.Dir)
	if err := manager.Discover(); err != nil {
		return nil, fmt.Errorf("discover hooks: %w", err)
	}
	for _, h := range manager.List() {
		log.Info().Str("hook", h.Manifest.Name).Strs("events", h.Manifest.Events).Msg("hook loaded")
	}
	return hook.NewDispatcher(manager, hook.NewExecutor(cfg.Timeout)), nil
}

func appConfig(cfg *config.Config) app.Config {
	return app.Config{
		CameraConfig:    cfg.CaptureOptions(),
		DetectorConfig:  cfg.DetectorOptions(),
		Engine:          cfg.Interaction(),
		Overlay:         cfg.OverlayOptions(),
		IdleFPS:         cfg.Camera.IdleFPS,
		ActiveFPS:       cfg.Camera.ActiveFPS,
		IdleTimeout:     cfg.Camera.IdleTimeout,
		MotionThreshold: cfg.Camera.MotionThreshold,
		LoadTimeout:     cfg.Classifier.LoadTimeout,
	}
}

// reconfigurer is the part of the App the settings API changes.
type reconfigurer interface {
	EngineConfig() interaction.Config
	Reconfigure(cfg interaction.Config) error
	SetOverlay(cfg overlay.Config)
}

// applier returns the settings API hook: overrides are always applied on
// top of base, so removing a key restores the file value.
func applier(base *config.Config, target reconfigurer) server.ApplyFunc {
	return func(overrides map[string]string) error {
		next, err := base.WithOverrides(overrides)
		if err != nil {
			return err
		}
		if engineCfg := next.Interaction(); engineCfg != target.EngineConfig() {
			if err := target.Reconfigure(engineCfg); err != nil {
				return err
			}
		}
		target.SetOverlay(next.OverlayOptions())
		log.Info().Int("overrides", len(overrides)).Msg("settings applied")
		return nil
	}
}

// engineControl keeps the tray toggle in step with changes from the page.
type engineControl struct {
	*app.App
	tray *tray.Tray
}

func (e *engineControl) SetEnabled(enabled bool) error {
	if err := e.App.SetEnabled(enabled); err != nil {
		return err
	}
	if e.tray != nil {
		e.tray.SetEnabled(enabled)
	}
	return nil
}

// Reconfigure can leave the loop stopped when the camera goes away mid
// restart; the tray follows whatever state results.
func (e *engineControl) Reconfigure(cfg interaction.Config) error {
	err := e.App.Reconfigure(cfg)
	if e.tray != nil {
		e.tray.SetEnabled(e.App.IsEnabled())
	}
	return err
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// findWebDir searches for the web directory in common locations.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWeb := filepath.Join(home, ".airpointer", "web")
	if info, err := os.Stat(homeWeb); err == nil && info.IsDir() {
		return homeWeb
	}
	return ""
}

func openBrowser(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("opening browser")
		return
	}
	go cmd.Wait()
}
