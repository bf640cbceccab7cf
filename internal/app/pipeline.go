package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/tracking"
)

// run is the tracking loop. Frames are pulled only after the previous
// detection finished, so at most one inference is in flight and no
// backlog can form:
//
//  1. wait for the rate limiter (one token per Interval)
//  2. deliver events raised by selection changes, even while paused
//  3. read a frame
//  4. detect landmarks
//  5. tick the publisher and deliver its events, unless cancelled meanwhile
func (a *App) run(ctx context.Context, done chan struct{}) {
	var fatal error
	defer func() {
		a.release(fatal)
		close(done)
	}()

	limiter := rate.NewLimiter(rate.Every(a.config.Interval), 1)
	failures := 0

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		a.deliver(ctx, a.publisher.Drain())
		if !a.IsEnabled() {
			continue
		}

		if err := a.step(ctx); err != nil {
			failures++
			a.log.WithError(err).WithField("failures", failures).Debug("frame failed")
			if failures >= a.config.MaxConsecutiveErrors {
				fatal = fmt.Errorf("%w: %v", ErrTooManyErrors, err)
				return
			}
			continue
		}
		failures = 0
	}
}

// step processes one frame. Errors are frame read or detection failures;
// sink errors are logged and do not count.
func (a *App) step(ctx context.Context) error {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	hands, err := a.detector.Detect(frame)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	hand := detector.Primary(hands)
	a.keepFrame(frame, hand)

	// A result that completes after cancellation is discarded.
	if ctx.Err() != nil {
		return nil
	}

	a.deliver(ctx, a.publisher.Tick(hand))
	return nil
}

func (a *App) deliver(ctx context.Context, events []tracking.Event) {
	for _, e := range events {
		if err := a.sink.Publish(ctx, e); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"event": e.Type(),
				"tick":  e.Header().Tick,
			}).Warn("failed to deliver event")
		}
	}
}
