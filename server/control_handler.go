package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gen1nya/WinMediaSessionProvider/core/capture"
	"github.com/gen1nya/WinMediaSessionProvider/logger"
	"github.com/gen1nya/WinMediaSessionProvider/model"
	"github.com/gen1nya/WinMediaSessionProvider/settings"
)

// The control API is the surface the tray UI consumes: device listing and
// selection, analyzer enablement and a status snapshot.

// DevicesResponse lists capture-capable endpoints.
type DevicesResponse struct {
	Devices []model.DeviceInfo `json:"devices"`
}

// DeviceRequest selects a capture device.
type DeviceRequest struct {
	ID string `json:"id"`
}

// EnableRequest toggles the spectrum analyzer.
type EnableRequest struct {
	Enabled bool `json:"enabled"`
}

// StatusResponse is the introspection snapshot.
type StatusResponse struct {
	Enabled   bool   `json:"enabled"`
	DeviceID  string `json:"deviceId"`
	Consumers int    `json:"consumers"`
}

// GetDevicesHandler enumerates active render and capture endpoints.
func (s *Server) GetDevicesHandler(w http.ResponseWriter, r *http.Request) {
	devices, err := capture.ListDevices()
	if err != nil {
		logger.Error("device enumeration failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "device enumeration failed")
		return
	}
	writeJSON(w, http.StatusOK, &DevicesResponse{Devices: devices})
}

// GetDeviceHandler returns the currently selected device.
func (s *Server) GetDeviceHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &DeviceRequest{ID: s.analyzer.Device()})
}

// SetDeviceHandler selects a capture device, persists the choice and
// restarts the analyzer if it is running.
func (s *Server) SetDeviceHandler(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := s.persist(func(st *settings.Settings) { st.DeviceID = req.ID }); err != nil {
		logger.Warn("failed to persist device choice", logger.ErrorField(err))
	}

	if err := s.analyzer.SetDevice(req.ID); err != nil {
		if errors.Is(err, capture.ErrNoDevice) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		logger.Error("device switch failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &DeviceRequest{ID: req.ID})
}

// EnableHandler toggles the analyzer. Enabling with no device present is
// a no-op reported as a conflict, never a failure.
func (s *Server) EnableHandler(w http.ResponseWriter, r *http.Request) {
	var req EnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := s.persist(func(st *settings.Settings) { st.Enabled = req.Enabled }); err != nil {
		logger.Warn("failed to persist enabled flag", logger.ErrorField(err))
	}

	if err := s.analyzer.Enable(req.Enabled); err != nil {
		if errors.Is(err, capture.ErrNoDevice) {
			writeError(w, http.StatusConflict, "no capture device available")
			return
		}
		logger.Error("analyzer toggle failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &EnableRequest{Enabled: s.analyzer.Running()})
}

// StatusHandler reports the state the tray UI shows.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &StatusResponse{
		Enabled:   s.analyzer.Running(),
		DeviceID:  s.analyzer.Device(),
		Consumers: s.hub.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("response encode failed", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
