package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/server/api"
)

const streamInterval = 66 * time.Millisecond // ~15 FPS

// FrameSource exposes the last frame processed by the tracking loop. The
// camera has a single owner, so the preview never reads it directly.
type FrameSource interface {
	// Snapshot returns a copy of the last frame and the hand detected in
	// it, if any. The caller always closes the Mat. ok is false before
	// the first frame.
	Snapshot() (frame gocv.Mat, hand *detector.HandLandmarks, ok bool)
}

// StreamHandler serves the annotated preview as MJPEG.
type StreamHandler struct {
	frames  FrameSource
	tracker api.Tracker
}

// NewStreamHandler creates a StreamHandler. tracker may be nil, in which
// case only landmarks are drawn.
func NewStreamHandler(frames FrameSource, tracker api.Tracker) *StreamHandler {
	return &StreamHandler{frames: frames, tracker: tracker}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		if err := h.writeFrame(w); err != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// writeFrame writes one multipart frame. A missing frame is skipped.
func (h *StreamHandler) writeFrame(w http.ResponseWriter) error {
	frame, hand, ok := h.frames.Snapshot()
	defer frame.Close()
	if !ok {
		return nil
	}

	overlay := Overlay{Hand: hand}
	if h.tracker != nil {
		overlay.Position = h.tracker.Latest()
		overlay.State = h.tracker.State()
	}
	overlay.Draw(&frame)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil
	}
	defer buf.Close()

	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", buf.Len()); err != nil {
		return err
	}
	if _, err := w.Write(buf.GetBytes()); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
