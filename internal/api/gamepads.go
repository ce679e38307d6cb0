package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gamepad-coop/internal/gamepad"
)

// gamepadResponse is a record with its hardware, when known.
type gamepadResponse struct {
	gamepad.Record
	Hardware *gamepad.HardwareIdentifier `json:"hardware,omitempty"`
}

// remapRequest is the body of PUT /gamepads/{device}/user.
type remapRequest struct {
	UserID *gamepad.UserID `json:"user_id"`
}

func (s *Server) toResponse(rec gamepad.Record) gamepadResponse {
	resp := gamepadResponse{Record: rec}
	if hw, ok := s.registry.HardwareIdentifier(rec.DeviceID); ok {
		resp.Hardware = &hw
	}
	return resp
}

func (s *Server) toResponses(records []gamepad.Record) []gamepadResponse {
	out := make([]gamepadResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, s.toResponse(rec))
	}
	return out
}

// handleListGamepads returns every connected gamepad, optionally filtered
// by ?user_id=.
func (s *Server) handleListGamepads(w http.ResponseWriter, r *http.Request) {
	var records []gamepad.Record
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, err := gamepad.ParseUserID(raw)
		if err != nil {
			writeBadRequest(w, "user_id must be a non-negative integer")
			return
		}
		records = s.registry.GetAllGamepadsForUser(userID)
	} else {
		records = s.registry.GetAllGamepads()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gamepads": s.toResponses(records),
		"count":    len(records),
	})
}

// handleGamepadStats returns registry statistics.
func (s *Server) handleGamepadStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Stats())
}

// handleGetGamepad returns one connected gamepad.
func (s *Server) handleGetGamepad(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	rec, found := s.registry.GetGamepad(deviceID)
	if !found {
		writeNotFound(w, "gamepad not connected")
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(rec))
}

// handleGetHardware returns the hardware identifier of a connected gamepad.
func (s *Server) handleGetHardware(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	if _, found := s.registry.GetGamepad(deviceID); !found {
		writeNotFound(w, "gamepad not connected")
		return
	}
	hw, found := s.registry.HardwareIdentifier(deviceID)
	if !found {
		writeNotFound(w, "hardware identifier not known")
		return
	}
	writeJSON(w, http.StatusOK, hw)
}

// handleRemapGamepad binds a connected gamepad to another user.
// The platform must accept the change before it is applied.
func (s *Server) handleRemapGamepad(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	var req remapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == nil || !req.UserID.IsValid() {
		writeBadRequest(w, "user_id must be a non-negative integer")
		return
	}

	if _, found := s.registry.GetGamepad(deviceID); !found {
		writeNotFound(w, "gamepad not connected")
		return
	}

	subject := ""
	if claims := claimsFromContext(r.Context()); claims != nil {
		subject = claims.Subject
	}
	s.logger.Info("gamepad remap requested",
		"device_id", deviceID,
		"user_id", *req.UserID,
		"subject", subject,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	if !s.registry.RemapDeviceToUser(r.Context(), deviceID, *req.UserID) {
		if _, found := s.registry.GetGamepad(deviceID); !found {
			writeNotFound(w, "gamepad disconnected")
			return
		}
		writeConflict(w, "platform did not apply the mapping")
		return
	}

	rec, found := s.registry.GetGamepad(deviceID)
	if !found {
		writeNotFound(w, "gamepad disconnected")
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(rec))
}

// handleGamepadHistory returns journal entries for one device, newest first.
// The device does not have to be connected.
func (s *Server) handleGamepadHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "history is not available")
		return
	}
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	events, err := s.journal.History(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("failed to query gamepad history", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to query history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"events":    events,
		"count":     len(events),
	})
}

// handleRecentHistory returns the latest journal entries across devices.
func (s *Server) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "history is not available")
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}

	events, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to query recent gamepad history", "error", err)
		writeInternalError(w, "failed to query history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleUserGamepads returns every gamepad bound to a user.
func (s *Server) handleUserGamepads(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}

	records := s.registry.GetAllGamepadsForUser(userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"gamepads": s.toResponses(records),
		"count":    len(records),
	})
}

// handleUserPrimary returns the user's primary gamepad, 404 when the user
// has none.
func (s *Server) handleUserPrimary(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}

	deviceID := s.registry.GetPrimaryGamepadForUser(userID)
	if !deviceID.IsValid() {
		writeNotFound(w, "user has no gamepad")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":   userID,
		"device_id": deviceID,
	})
}

func deviceParam(w http.ResponseWriter, r *http.Request) (gamepad.DeviceID, bool) {
	deviceID, err := gamepad.ParseDeviceID(chi.URLParam(r, "device"))
	if err != nil {
		writeBadRequest(w, "device must be a non-negative integer")
		return gamepad.InvalidDeviceID, false
	}
	return deviceID, true
}

func userParam(w http.ResponseWriter, r *http.Request) (gamepad.UserID, bool) {
	userID, err := gamepad.ParseUserID(chi.URLParam(r, "user"))
	if err != nil {
		writeBadRequest(w, "user must be a non-negative integer")
		return gamepad.InvalidUserID, false
	}
	return userID, true
}

// limitParam parses ?limit=. Zero or absent means the journal default.
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeBadRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
