// Package app runs the tracking loop: it owns the camera and the landmark
// model, feeds detections to the publisher and delivers events to sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/tryon/internal/capture"
	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/tracking"
)

// Loop defaults.
const (
	// DefaultInterval is the minimum time between two detections.
	DefaultInterval = 50 * time.Millisecond
	// DefaultMaxConsecutiveErrors is the number of failed frames in a row
	// after which the loop gives up.
	DefaultMaxConsecutiveErrors = 30
)

// ErrTooManyErrors is reported by Err when the loop stopped after
// MaxConsecutiveErrors failed frames.
var ErrTooManyErrors = errors.New("too many consecutive frame errors")

// Config holds configuration options for the application.
type Config struct {
	State                tracking.State
	Options              tracking.Options
	Interval             time.Duration
	MaxConsecutiveErrors int
}

// App is the main application that orchestrates frame capture, landmark
// detection and placement publishing.
type App struct {
	config    Config
	log       logrus.FieldLogger
	camera    capture.Camera
	detector  detector.Detector
	sink      tracking.Sink
	publisher *tracking.Publisher

	mu      sync.RWMutex
	enabled bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error

	frameMu  sync.Mutex
	frame    gocv.Mat
	hand     *detector.HandLandmarks
	hasFrame bool
}

// New creates a new App. sink may be nil. Detection starts enabled.
func New(config Config, camera capture.Camera, det detector.Detector, sink tracking.Sink, log logrus.FieldLogger) (*App, error) {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MaxConsecutiveErrors <= 0 {
		config.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if sink == nil {
		sink = tracking.Fanout{}
	}

	log = log.WithField("component", "app")
	pub, err := tracking.NewPublisher(config.State, config.Options, log)
	if err != nil {
		return nil, err
	}

	return &App{
		config:    config,
		log:       log,
		camera:    camera,
		detector:  det,
		sink:      sink,
		publisher: pub,
		enabled:   true,
	}, nil
}

// AddSink adds a sink receiving every event. It must be called before
// Start.
func (a *App) AddSink(s tracking.Sink) {
	if f, ok := a.sink.(tracking.Fanout); ok {
		a.sink = append(f, s)
		return
	}
	a.sink = tracking.Fanout{a.sink, s}
}

// Publisher returns the placement publisher. It is safe to use from any
// goroutine.
func (a *App) Publisher() *tracking.Publisher {
	return a.publisher
}

// SetEnabled pauses or resumes detection. While paused no ticks are
// processed and the held position is kept. Resuming clears the smoothing
// history so the hand is not blended with where it was before the pause.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled == enabled {
		return
	}
	a.log.WithField("enabled", enabled).Info("detection toggled")
	if enabled {
		a.publisher.ResetHistory()
	}
	a.enabled = enabled
}

// IsEnabled returns whether detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera, loads the landmark model and starts the loop.
// Failing to acquire either resource is fatal and returned; a running App
// is left untouched.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := a.detector.Load(); err != nil {
		a.camera.Close()
		return fmt.Errorf("start: %w", err)
	}

	width, height := a.camera.Size()
	a.publisher.SetFrameSize(width, height)

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.err = nil

	go a.run(runCtx, a.done)

	a.log.WithFields(logrus.Fields{
		"width":    width,
		"height":   height,
		"interval": a.config.Interval,
	}).Info("tracking started")
	return nil
}

// Stop cancels the loop, waits for it to exit and releases the camera and
// the model. It is safe to call more than once.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the loop exits, after resources are released. It is
// nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Err returns the fatal error that stopped the loop, if any.
func (a *App) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Snapshot returns a copy of the last processed frame and the hand
// detected in it. The caller closes the Mat, which is empty when ok is
// false.
func (a *App) Snapshot() (gocv.Mat, *detector.HandLandmarks, bool) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()

	if !a.hasFrame {
		return gocv.NewMat(), nil, false
	}
	return a.frame.Clone(), a.hand, true
}

func (a *App) keepFrame(frame *gocv.Mat, hand *detector.HandLandmarks) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()

	if a.hasFrame {
		a.frame.Close()
	}
	a.frame = frame.Clone()
	a.hand = hand
	a.hasFrame = true
}

// release closes everything Start acquired and marks the App stopped.
func (a *App) release(err error) {
	if cerr := a.camera.Close(); cerr != nil {
		a.log.WithError(cerr).Warn("failed to close camera")
	}
	if derr := a.detector.Close(); derr != nil {
		a.log.WithError(derr).Warn("failed to close detector")
	}

	a.frameMu.Lock()
	if a.hasFrame {
		a.frame.Close()
		a.hasFrame = false
		a.hand = nil
	}
	a.frameMu.Unlock()

	a.mu.Lock()
	a.err = err
	a.cancel = nil
	a.mu.Unlock()

	if err != nil {
		a.log.WithError(err).Error("tracking stopped")
	} else {
		a.log.Info("tracking stopped")
	}
}
