package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/store"
	"github.com/ayusman/tryon/internal/tracking"
)

// SettingsWriter persists the user's selection. *store.SettingsRepository
// implements it.
type SettingsWriter interface {
	Set(key, value string) error
}

// StateHandler serves /api/state and /api/calibration.
type StateHandler struct {
	tracker  Tracker
	settings SettingsWriter
	log      logrus.FieldLogger
}

// NewStateHandler creates a StateHandler. settings may be nil.
func NewStateHandler(t Tracker, settings SettingsWriter, log logrus.FieldLogger) *StateHandler {
	return &StateHandler{tracker: t, settings: settings, log: log}
}

type stateRequest struct {
	Jewelry   *string `json:"jewelry" validate:"omitempty,oneof=ring bracelet necklace"`
	Finger    *string `json:"finger" validate:"omitempty,oneof=thumb index middle ring pinky"`
	Stabilize *bool   `json:"stabilize"`
}

type calibrationResponse struct {
	Mode        bool                     `json:"mode"`
	Calibration tracking.CalibrationData `json:"calibration"`
}

// ServeHTTP routes state and calibration requests.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/state":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, h.tracker.State())
		case http.MethodPut:
			h.update(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case strings.HasPrefix(r.URL.Path, "/api/calibration"):
		h.calibration(w, r, strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/calibration"), "/"))

	default:
		http.NotFound(w, r)
	}
}

// update handles PUT /api/state. Omitted fields keep their value.
func (h *StateHandler) update(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid state: "+err.Error())
		return
	}

	next := h.tracker.State()
	if req.Jewelry != nil {
		next = next.WithJewelry(tracking.Jewelry(*req.Jewelry))
	}
	if req.Finger != nil {
		next = next.WithFinger(tracking.Finger(*req.Finger))
	}
	if req.Stabilize != nil {
		next = next.WithStabilize(*req.Stabilize)
	}

	if err := h.tracker.SetState(next); err != nil {
		if errors.Is(err, tracking.ErrInvalidState) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update state")
		return
	}

	h.persist(next)
	writeJSON(w, http.StatusOK, h.tracker.State())
}

func (h *StateHandler) persist(s tracking.State) {
	if h.settings == nil {
		return
	}
	values := map[string]string{
		store.SettingJewelry:   string(s.Jewelry),
		store.SettingFinger:    string(s.Finger),
		store.SettingStabilize: strconv.FormatBool(s.Stabilize),
	}
	for k, v := range values {
		if err := h.settings.Set(k, v); err != nil {
			h.log.WithError(err).WithField("key", k).Warn("failed to save setting")
		}
	}
}

// calibration handles GET /api/calibration and POST
// /api/calibration/{enter,exit,reset}.
func (h *StateHandler) calibration(w http.ResponseWriter, r *http.Request, action string) {
	if action == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.writeCalibration(w)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "enter":
		h.tracker.EnterCalibrationMode()
	case "exit":
		h.tracker.ExitCalibrationMode()
	case "reset":
		h.tracker.ResetCalibration()
	default:
		writeError(w, http.StatusNotFound, "Unknown calibration action")
		return
	}
	h.writeCalibration(w)
}

func (h *StateHandler) writeCalibration(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, calibrationResponse{
		Mode:        h.tracker.State().CalibrationMode,
		Calibration: h.tracker.Calibration(),
	})
}
