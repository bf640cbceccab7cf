package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/tracking"
)

// Recorder journals position and lost events. It implements tracking.Sink.
// Each session covers one jewelry selection: a position for another
// selection ends the session and starts a new one, unless nothing was
// recorded yet. Calibration is never stored.
type Recorder struct {
	store *Store
	log   logrus.FieldLogger

	mu      sync.Mutex
	session *Session
	rows    int
	closed  bool
}

// NewRecorder starts a session for state.
func NewRecorder(s *Store, state tracking.State, log logrus.FieldLogger) (*Recorder, error) {
	r := &Recorder{store: s, log: log}
	if err := r.start(string(state.Jewelry), string(state.Finger)); err != nil {
		return nil, err
	}
	return r, nil
}

// SessionID returns the id of the session being recorded.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.ID
}

// start must be called with mu held, or before the Recorder is shared.
func (r *Recorder) start(jewelry, finger string) error {
	sess := &Session{
		ID:        uuid.New().String(),
		Jewelry:   jewelry,
		Finger:    finger,
		StartedAt: time.Now(),
	}
	if err := r.store.Sessions().Create(sess); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.session = sess
	r.rows = 0
	r.log.WithFields(logrus.Fields{"session": sess.ID, "jewelry": jewelry, "finger": finger}).Info("session started")
	return nil
}

// end must be called with mu held.
func (r *Recorder) end() error {
	if err := r.store.Sessions().End(r.session.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	r.log.WithField("session", r.session.ID).Info("session ended")
	return nil
}

// follow keeps the session in line with the selection a position was
// published for. It must be called with mu held.
func (r *Recorder) follow(ev tracking.PositionEvent) error {
	if ev.Jewelry == "" {
		return nil
	}
	jewelry, finger := string(ev.Jewelry), r.session.Finger
	if pos, ok := ev.Position.(tracking.FingerPosition); ok {
		finger = string(pos.Finger)
	}
	if jewelry == r.session.Jewelry && finger == r.session.Finger {
		return nil
	}

	if r.rows == 0 {
		if err := r.store.Sessions().UpdateSelection(r.session.ID, jewelry, finger); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		r.session.Jewelry, r.session.Finger = jewelry, finger
		return nil
	}

	if err := r.end(); err != nil {
		return err
	}
	return r.start(jewelry, finger)
}

// Publish implements tracking.Sink.
func (r *Recorder) Publish(_ context.Context, e tracking.Event) error {
	var p *Placement

	switch ev := e.(type) {
	case tracking.PositionEvent:
		p = placementFromPosition(ev)
	case tracking.LostEvent:
		p = &Placement{Kind: string(ev.Kind), Lost: true}
	default:
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	if ev, ok := e.(tracking.PositionEvent); ok {
		if err := r.follow(ev); err != nil {
			return err
		}
	}

	meta := e.Header()
	p.SessionID = r.session.ID
	p.Tick = meta.Tick
	p.RecordedAt = meta.At

	if err := r.store.Placements().Insert(p); err != nil {
		return fmt.Errorf("record %s event: %w", e.Type(), err)
	}
	r.rows++
	return nil
}

// Close ends the session. Later events are ignored.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.end()
}

func placementFromPosition(ev tracking.PositionEvent) *Placement {
	p := &Placement{Kind: string(ev.Kind)}

	switch pos := ev.Position.(type) {
	case tracking.FingerPosition:
		p.X, p.Y, p.Z = pos.X, pos.Y, pos.Z
		p.Width, p.Length, p.Angle = pos.Width, pos.Length, pos.Angle
		p.Finger = string(pos.Finger)
	case tracking.WristPosition:
		p.X, p.Y, p.Z = pos.X, pos.Y, pos.Z
		p.Width, p.Angle = pos.Width, pos.Angle
	case tracking.NeckPosition:
		p.X, p.Y, p.Z = pos.X, pos.Y, pos.Z
		p.Width = pos.Width
	}
	return p
}
