package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/app"
	"github.com/ayusman/tryon/internal/capture"
	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/server"
	"github.com/ayusman/tryon/internal/store"
	"github.com/ayusman/tryon/internal/tracking"
)

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	state := tracking.DefaultState()
	opts := tracking.DefaultOptions()
	opts.LostAfter = 3

	camera := capture.NewBlankCamera(640, 480)
	det := detector.NewMockDetector()
	hub := server.NewHub(log)
	go hub.Run(ctx)

	application, err := app.New(app.Config{
		State:    state,
		Options:  opts,
		Interval: 5 * time.Millisecond,
	}, camera, det, hub, log)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	recorder, err := store.NewRecorder(s, state, log)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	application.AddSink(recorder)

	ts := httptest.NewServer(server.New(server.Config{
		Tracker: application.Publisher(),
		Store:   s,
		Hub:     hub,
		Frames:  application,
		Log:     log,
	}))
	defer ts.Close()
	client := ts.Client()

	t.Run("SelectBracelet", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/state", strings.NewReader(`{"jewelry":"bracelet"}`))
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("PUT /api/state error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})

	conn, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events?types=position,lost", nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	palm := []detector.HandLandmarks{detector.OpenPalmLandmarks()}
	det.Queue(palm, palm, palm, palm)

	if err := application.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Run("StreamsPositionsThenLost", func(t *testing.T) {
		var positions int
		for {
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("ReadMessage() error = %v", err)
			}
			_, e, err := tracking.UnmarshalEvent(data)
			if err != nil {
				t.Fatalf("UnmarshalEvent() error = %v", err)
			}

			switch ev := e.(type) {
			case tracking.PositionEvent:
				if ev.Kind != tracking.KindWrist {
					t.Errorf("position kind = %s, want wrist", ev.Kind)
				}
				positions++
			case tracking.LostEvent:
				if positions != 4 {
					t.Errorf("positions before lost = %d, want 4", positions)
				}
				if ev.Header().Tick != 7 {
					t.Errorf("lost tick = %d, want 7", ev.Header().Tick)
				}
				return
			}
		}
	})

	t.Run("PlacementClearedAfterLost", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/placement")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want 204", resp.StatusCode)
		}
	})

	application.Stop()
	if err := recorder.Close(); err != nil {
		t.Fatalf("recorder.Close() error = %v", err)
	}

	t.Run("SessionJournal", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/sessions/" + recorder.SessionID() + "/placements")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var body struct {
			Placements []store.Placement `json:"placements"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Placements) != 5 {
			t.Fatalf("placements = %d, want 4 positions and 1 lost", len(body.Placements))
		}
		if !body.Placements[4].Lost {
			t.Error("last row should be the lost marker")
		}

		sess, err := s.Sessions().GetByID(recorder.SessionID())
		if err != nil {
			t.Fatal(err)
		}
		if sess.EndedAt == nil || sess.Placements != 4 || sess.LostEvents != 1 {
			t.Errorf("session = %+v", sess)
		}
	})
}
