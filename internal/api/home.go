package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/homelink/homelink-core/internal/home"
)

// householdLinkingID resolves the caller's linking id or writes the
// failure response. Household data is unreachable while the caller's
// profile lookup is degraded.
func (s *Server) householdLinkingID(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, ok := callerFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "not signed in")
		return "", false
	}
	if c.LinkingID() == "" {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable,
			"Your household could not be resolved right now. Please try again.")
		return "", false
	}
	return c.LinkingID(), true
}

// writeHomeError maps household data errors to HTTP responses.
func writeHomeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, home.ErrHomeNotFound):
		writeNotFound(w, "no home exists for this household yet")
	case errors.Is(err, home.ErrRoomNotFound):
		writeNotFound(w, "room not found in this home")
	case errors.Is(err, home.ErrDeviceNotFound):
		writeNotFound(w, "device not found in this home")
	default:
		writeInternalError(w, "household data unavailable")
	}
}

// handleOverview returns the home, rooms, devices, and members in one view.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}

	overview, err := s.home.Overview(r.Context(), linkingID)
	if err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// createRoomRequest is the request body for POST /home/rooms.
type createRoomRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "room name is required")
		return
	}

	room, err := s.home.CreateRoom(r.Context(), linkingID, req.Name)
	if err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}

	rooms, err := s.home.Rooms(r.Context(), linkingID)
	if err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// createDeviceRequest is the request body for POST /home/devices.
type createDeviceRequest struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Status string `json:"status"`
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}

	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "device name and type are required")
		return
	}

	device, err := s.home.CreateDevice(r.Context(), linkingID, &home.Device{
		Name:   req.Name,
		Type:   req.Type,
		RoomID: req.RoomID,
		Status: req.Status,
	})
	if err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}

	devices, err := s.home.Devices(r.Context(), linkingID, r.URL.Query().Get("room"))
	if err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// updateStatusRequest is the request body for PUT /home/devices/{id}/status.
type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateDeviceStatus(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}
	c, _ := callerFrom(r.Context())

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "status is required")
		return
	}

	device, err := s.home.UpdateDeviceStatus(r.Context(), linkingID,
		chi.URLParam(r, "id"), req.Status, c.Identity.AccountID)
	if err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}

	filter := home.LogFilter{Type: r.URL.Query().Get("type")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	logs, err := s.home.ActivityLogs(r.Context(), linkingID, filter)
	if err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// addActivityRequest is the request body for POST /home/activity.
type addActivityRequest struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	DeviceID string `json:"device_id"`
}

func (s *Server) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}
	c, _ := callerFrom(r.Context())

	var req addActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Type == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "type and message are required")
		return
	}
	severity := req.Severity
	if severity == "" {
		severity = home.SeverityLow
	}

	entry := &home.ActivityLog{
		Type:     req.Type,
		Message:  req.Message,
		Severity: severity,
		DeviceID: req.DeviceID,
		UserID:   c.Identity.AccountID,
	}
	if err := s.home.AddActivityLog(r.Context(), linkingID, entry); err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}

	members, err := s.home.Members(r.Context(), linkingID)
	if err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// memberAccessRequest is the request body for PUT /home/members/{id}/access.
type memberAccessRequest struct {
	Accessible bool `json:"accessible"`
}

func (s *Server) handleSetMemberAccess(w http.ResponseWriter, r *http.Request) {
	linkingID, ok := s.householdLinkingID(w, r)
	if !ok {
		return
	}

	var req memberAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	accountID := chi.URLParam(r, "id")
	if err := s.home.SetMemberAccess(r.Context(), linkingID, accountID, req.Accessible); err != nil {
		writeHomeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"accessible": req.Accessible,
	})
}
