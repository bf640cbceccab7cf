// Package api provides the HTTP handlers for selecting jewelry, driving
// calibration and reading placements and session history.
package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/tryon/internal/tracking"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

// Tracker is the live tracking state the handlers read and drive.
// *tracking.Publisher implements it.
type Tracker interface {
	State() tracking.State
	SetState(next tracking.State) error
	Calibration() tracking.CalibrationData
	EnterCalibrationMode()
	ExitCalibrationMode()
	ResetCalibration() tracking.CalibrationData
	Latest() tracking.TargetPosition
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code. A value
// that cannot be encoded becomes a 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		body, _ = json.Marshal(errorResponse{Error: "failed to encode response"})
	} else {
		w.WriteHeader(status)
	}
	w.Write(append(body, '\n'))
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// queryFloat parses an optional float query parameter. NaN and infinities
// are rejected.
func queryFloat(r *http.Request, key string) (float64, bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, true, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, fmt.Errorf("%s must be a finite number", key)
	}
	return f, true, nil
}
