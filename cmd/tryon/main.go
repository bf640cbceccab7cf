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
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/app"
	"github.com/ayusman/tryon/internal/broker"
	"github.com/ayusman/tryon/internal/capture"
	"github.com/ayusman/tryon/internal/config"
	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/discovery"
	"github.com/ayusman/tryon/internal/logging"
	"github.com/ayusman/tryon/internal/server"
	"github.com/ayusman/tryon/internal/store"
	"github.com/ayusman/tryon/internal/tracking"
	"github.com/ayusman/tryon/internal/tray"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tryon: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "tryon: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("tryon stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	state, err := initialState(cfg, st.Settings(), log)
	if err != nil {
		return err
	}

	det, err := newDetector(cfg, log)
	if err != nil {
		return err
	}
	camera := capture.NewCamera(capture.Config{
		DeviceID: cfg.CameraID,
		Width:    cfg.CameraWidth,
		Height:   cfg.CameraHeight,
	}, log)

	opts := tracking.DefaultOptions()
	opts.HistorySize = cfg.HistorySize
	opts.BaseWeight = cfg.BaseWeight
	opts.LostAfter = cfg.LostAfter
	opts.FrameWidth = cfg.CameraWidth
	opts.FrameHeight = cfg.CameraHeight

	hub := server.NewHub(log)
	a, err := app.New(app.Config{
		State:                state,
		Options:              opts,
		Interval:             cfg.DetectionInterval,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
	}, camera, det, hub, log)
	if err != nil {
		return err
	}

	recorder, err := store.NewRecorder(st, state, log)
	if err != nil {
		return err
	}
	defer recorder.Close()
	a.AddSink(recorder)

	if b, err := broker.New(broker.Config{Addr: cfg.RedisAddr, Channel: cfg.RedisChannel}, log); err == nil {
		defer b.Close()
		a.AddSink(b)
	} else if !errors.Is(err, broker.ErrDisabled) {
		return err
	}

	if cfg.MDNS {
		disc, err := discovery.New(cfg.HTTPAddr, log)
		if err != nil {
			return err
		}
		if err := disc.Start(string(state.Jewelry)); err != nil {
			log.WithError(err).Warn("mdns unavailable")
		} else {
			defer disc.Stop()
			a.AddSink(disc)
		}
	}

	var menu *tray.Tray
	if cfg.Tray {
		menu = tray.New(a.Publisher(), log)
		a.AddSink(menu)
	}

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg.DataDir),
		Tracker:   a.Publisher(),
		Store:     st,
		Hub:       hub,
		Frames:    a,
		Log:       log,
	})

	go hub.Run(ctx)

	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Stop()

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe(ctx, cfg.HTTPAddr)
		stop()
	}()

	// The tracking loop ends early only on a fatal error.
	go func() {
		<-a.Done()
		stop()
	}()

	if menu != nil {
		menu.OnToggle(a.SetEnabled)
		menu.OnSettings(func() { openBrowser("http://"+cfg.HTTPAddr, log) })
		menu.OnQuit(stop)
		go func() {
			<-ctx.Done()
			menu.Quit()
		}()
		menu.Run()
	}
	<-ctx.Done()

	a.Stop()
	if err := a.Err(); err != nil {
		return err
	}
	return <-srvErr
}

// initialState starts from the configured selection and applies the
// choices saved by a previous run.
func initialState(cfg *config.Config, settings *store.SettingsRepository, log logrus.FieldLogger) (tracking.State, error) {
	state := tracking.DefaultState().
		WithJewelry(tracking.Jewelry(cfg.Jewelry)).
		WithFinger(tracking.Finger(cfg.Finger))

	saved, err := settings.All()
	if err != nil {
		return state, fmt.Errorf("failed to load settings: %w", err)
	}
	if v, ok := saved[store.SettingJewelry]; ok {
		if j, err := tracking.ParseJewelry(v); err == nil {
			state = state.WithJewelry(j)
		}
	}
	if v, ok := saved[store.SettingFinger]; ok {
		if f, err := tracking.ParseFinger(v); err == nil {
			state = state.WithFinger(f)
		}
	}
	if v, ok := saved[store.SettingStabilize]; ok {
		if on, err := strconv.ParseBool(v); err == nil {
			state = state.WithStabilize(on)
		}
	}

	log.WithFields(logrus.Fields{"jewelry": state.Jewelry, "finger": state.Finger}).Info("initial selection")
	return state, nil
}

func newDetector(cfg *config.Config, log logrus.FieldLogger) (detector.Detector, error) {
	if cfg.Detector == "mock" {
		log.Warn("using mock detector, no hands will be tracked")
		return detector.NewMockDetector(), nil
	}
	return detector.NewMediaPipeDetector(detector.DefaultConfig(), log)
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <data dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string, log logrus.FieldLogger) {
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
		log.WithError(err).Warn("failed to open browser")
	}
}
