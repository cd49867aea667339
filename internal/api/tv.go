package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-aquos/internal/bridges/aquos"
)

// CommandRequest is the body of POST /api/v1/tv/commands.
type CommandRequest struct {
	// ID is optional; one is generated when empty.
	ID         string         `json:"id,omitempty"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// statePayload is the JSON view of the TV state used by REST and WebSocket.
func statePayload(deviceID string, state aquos.State) map[string]any {
	payload := map[string]any{
		"device_id": deviceID,
		"state":     aquos.StateMap(state),
	}
	if !state.UpdatedAt.IsZero() {
		payload["updated_at"] = state.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

// handleGetState returns the last published TV state. No exchange with the TV.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statePayload(s.controller.DeviceID(), s.controller.State()))
}

// handleGetInfo queries the TV identification strings.
func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	info, outcome := s.controller.Info(r.Context())
	if !outcome.OK() {
		writeError(w, http.StatusGatewayTimeout, ErrCodeUnreachable, "TV did not respond: "+outcome.String())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.controller.DeviceID(),
		"info":      info,
		"features":  s.controller.Features().Names(),
	})
}

// handleListSources returns the selectable inputs of the configured region.
func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	sources := s.controller.Sources()
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": sources,
		"count":   len(sources),
	})
}

// handleListRemoteButtons returns the named remote keys.
func (s *Server) handleListRemoteButtons(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"buttons": s.controller.RemoteButtons(),
	})
}

// handleCommand runs a command against the TV and returns its acknowledgment.
//
// The response body is always the acknowledgment; the HTTP status mirrors
// its error code.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command field is required")
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	ack := s.controller.Execute(r.Context(), aquos.CommandMessage{
		ID:         id,
		Timestamp:  time.Now().UTC(),
		DeviceID:   s.controller.DeviceID(),
		Command:    req.Command,
		Parameters: req.Parameters,
		Source:     "api",
	})

	s.logger.Info("api command executed",
		"command_id", id,
		"command", req.Command,
		"status", ack.Status,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	writeJSON(w, ackHTTPStatus(ack), ack)
}

// ackHTTPStatus maps an acknowledgment onto an HTTP status code.
func ackHTTPStatus(ack aquos.AckMessage) int {
	if ack.Error == nil {
		return http.StatusOK
	}
	switch ack.Error.Code {
	case aquos.ErrCodeInvalidCommand, aquos.ErrCodeInvalidParameters:
		return http.StatusBadRequest
	case aquos.ErrCodeNotConfigured:
		return http.StatusNotFound
	case aquos.ErrCodeDeviceRejected, aquos.ErrCodeStateUnknown:
		return http.StatusConflict
	case aquos.ErrCodeDeviceUnreachable, aquos.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
