package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/ayusman/handswitch/internal/app"
	"github.com/ayusman/handswitch/internal/capture"
	"github.com/ayusman/handswitch/internal/config"
	"github.com/ayusman/handswitch/internal/detector"
	"github.com/ayusman/handswitch/internal/gesture"
	"github.com/ayusman/handswitch/internal/logging"
	"github.com/ayusman/handswitch/internal/plugin"
	"github.com/ayusman/handswitch/internal/server"
	"github.com/ayusman/handswitch/internal/store"
	"github.com/ayusman/handswitch/internal/tray"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "handswitch: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "handswitch: create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Errorw("handswitch stopped", "error", err)
		logging.Sync(logger)
		os.Exit(1)
	}
	logging.Sync(logger)
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	settings, err := st.Settings().All()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	gestureCfg, err := app.ApplySettings(cfg.Gesture(), settings)
	if err != nil {
		return fmt.Errorf("apply stored settings: %w", err)
	}

	plugins := plugin.NewManager(cfg.PluginDir, logger.Named("plugins"))
	if err := plugins.Discover(); err != nil {
		logger.Warnw("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}
	dispatcher := plugin.NewDispatcher(st.Bindings(), plugins, plugin.NewExecutor(cfg.PluginTimeout), logger.Named("dispatch"))

	hub := server.NewEventHub(logger.Named("events"))

	var tr *tray.Tray
	handlers := gesture.Handlers{hub}
	if cfg.Tray {
		tr = tray.New(true)
		handlers = append(handlers, tr)
	}
	// plugins last: a failing action must not hold back the UI
	handlers = append(handlers, dispatcher)

	source, err := openSource(cfg, logger)
	if err != nil {
		return err
	}

	a, err := app.New(app.Config{
		Gesture:            gestureCfg,
		FPS:                cfg.FPS,
		StopOnHandlerError: cfg.StopOnHandlerError,
	}, source, handlers, logger.Named("app"))
	if err != nil {
		source.Close()
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Start(ctx)
	defer a.Stop()

	var serverErr error
	serverFailed := make(chan struct{})
	if cfg.Addr != "" {
		webDir := cfg.WebDir
		if webDir == "" {
			webDir = findWebDir(cfg.DataDir)
		}
		srv := server.New(server.Config{
			StaticDir:        webDir,
			Store:            st,
			Plugins:          plugins,
			Controller:       a,
			Events:           hub,
			ValidateSettings: validateSettings(cfg.Gesture()),
			Logger:           logger.Named("http"),
		})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Addr); err != nil {
				serverErr = err
				close(serverFailed)
			}
		}()
	}

	stopped := stopWhen(ctx, a.Done(), serverFailed)

	if tr != nil {
		tr.OnToggle(a.SetEnabled)
		tr.OnQuit(stop)
		tr.OnSettings(func() {
			if cfg.Addr == "" {
				return
			}
			if err := openBrowser("http://" + cfg.Addr); err != nil {
				logger.Warnw("open browser", "error", err)
			}
		})
		go func() {
			<-stopped
			tr.Quit()
		}()
		tr.Run()
	}

	<-stopped
	a.Stop()

	select {
	case <-serverFailed:
		return fmt.Errorf("http server: %w", serverErr)
	default:
	}
	return a.Err()
}

// stopWhen returns a channel closed on the first of: ctx ends, the frame loop
// exits, or the HTTP server fails.
func stopWhen(ctx context.Context, loopDone, serverFailed <-chan struct{}) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
		case <-loopDone:
		case <-serverFailed:
		}
	}()
	return stopped
}

// openSource returns the frame source: a replayed recording when configured,
// the camera and hand landmarker otherwise. Frames are teed to cfg.Record.
func openSource(cfg *config.Config, logger *zap.SugaredLogger) (detector.Source, error) {
	var src detector.Source

	if cfg.Replay != "" {
		f, err := os.Open(cfg.Replay)
		if err != nil {
			return nil, fmt.Errorf("open recording: %w", err)
		}
		frames, err := detector.ReadRecording(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		logger.Infow("replaying recording", "file", cfg.Replay, "frames", len(frames))
		src = detector.NewReplaySource(frames...)
	} else {
		det, err := detector.NewMediaPipeDetector(detector.DefaultConfig(), cfg.DataDir, logger.Named("landmarker"))
		if err != nil {
			return nil, fmt.Errorf("create hand detector: %w", err)
		}
		camSrc := capture.NewSource(capture.NewCamera(cfg.CameraID, cfg.FPS), det, cfg.MotionThreshold, logger.Named("capture"))
		if err := camSrc.Open(); err != nil {
			det.Close()
			return nil, fmt.Errorf("open camera %d: %w", cfg.CameraID, err)
		}
		src = camSrc
	}

	if cfg.Record == "" {
		return src, nil
	}
	out, err := os.OpenFile(cfg.Record, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("open record file: %w", err)
	}
	logger.Infow("recording frames", "file", cfg.Record)
	return &recordingSource{Recorder: detector.NewRecorder(src, out), out: out}, nil
}

// recordingSource closes the record file along with the source.
type recordingSource struct {
	*detector.Recorder
	out *os.File
}

func (s *recordingSource) Close() error {
	return errors.Join(s.Recorder.Close(), s.out.Close())
}

// validateSettings checks a settings map against the configured defaults.
func validateSettings(base gesture.Config) func(map[string]string) error {
	return func(settings map[string]string) error {
		_, err := app.ApplySettings(base, settings)
		return err
	}
}

// findWebDir searches for the web directory next to the working directory,
// the executable and the data directory.
func findWebDir(dataDir string) string {
	candidates := []string{"web", filepath.Join("..", "web")}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "web"))
	}
	candidates = append(candidates, filepath.Join(dataDir, "web"))

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
