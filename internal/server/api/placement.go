package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/tryon/internal/sizing"
	"github.com/ayusman/tryon/internal/tracking"
)

// PlacementHandler serves the latest anchor at /api/placement.
type PlacementHandler struct {
	tracker Tracker
}

// NewPlacementHandler creates a PlacementHandler.
func NewPlacementHandler(t Tracker) *PlacementHandler {
	return &PlacementHandler{tracker: t}
}

type placementResponse struct {
	Kind     tracking.TargetKind     `json:"kind"`
	Jewelry  tracking.Jewelry        `json:"jewelry"`
	Position tracking.TargetPosition `json:"position"`
}

// ServeHTTP writes the held position, or 204 when none is held.
func (h *PlacementHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pos := h.tracker.Latest()
	if pos == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, placementResponse{
		Kind:     pos.Kind(),
		Jewelry:  h.tracker.State().Jewelry,
		Position: pos,
	})
}

// RingSizeHandler estimates a ring size at /api/ring-size.
//
// The scale comes from one of:
//   - reference=<name>&reference_width=<units>
//   - reference_mm=<mm>&reference_width=<units>
//   - ring_size=<us size>&ring_width=<units>
type RingSizeHandler struct {
	tracker Tracker
}

// NewRingSizeHandler creates a RingSizeHandler.
func NewRingSizeHandler(t Tracker) *RingSizeHandler {
	return &RingSizeHandler{tracker: t}
}

// ServeHTTP handles GET /api/ring-size.
func (h *RingSizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	finger := h.tracker.State().Finger
	if v := r.URL.Query().Get("finger"); v != "" {
		f, err := tracking.ParseFinger(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		finger = f
	}

	scale, err := scaleFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sizing.EstimateFinger(h.tracker.Calibration(), finger, scale))
}

var errNoScale = errors.New("a reference or known ring size is required")

func scaleFromQuery(r *http.Request) (sizing.Scale, error) {
	q := r.URL.Query()

	size, ok, err := queryFloat(r, "ring_size")
	if err != nil {
		return sizing.Scale{}, err
	}
	if ok {
		width, _, err := queryFloat(r, "ring_width")
		if err != nil {
			return sizing.Scale{}, err
		}
		return sizing.FromKnownRing(size, width)
	}

	width, ok, err := queryFloat(r, "reference_width")
	if err != nil {
		return sizing.Scale{}, err
	}
	if !ok {
		return sizing.Scale{}, errNoScale
	}

	ref := sizing.CreditCard
	if name := q.Get("reference"); name != "" {
		found, ok := sizing.LookupReference(name)
		if !ok {
			return sizing.Scale{}, errors.New("unknown reference " + name)
		}
		ref = found
	}
	if mm, ok, err := queryFloat(r, "reference_mm"); err != nil {
		return sizing.Scale{}, err
	} else if ok {
		ref = sizing.Reference{Name: "custom", WidthMM: mm}
	}

	return sizing.FromReference(ref, width)
}
