package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/game"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/session"
	"github.com/google/uuid"
)

// interactRequest is the wire shape of one player turn.
type interactRequest struct {
	APIKey  string                `json:"apiKey"`
	APIType string                `json:"apiType"`
	UserID  string                `json:"userId"`
	World   *session.WorldContext `json:"worldContext"`
	Message string                `json:"message"`
}

// missingFields returns the names of required parameters absent from
// the request, in wire order.
func (r *interactRequest) missingFields() []string {
	var missing []string
	if r.APIKey == "" {
		missing = append(missing, "apiKey")
	}
	if r.APIType == "" {
		missing = append(missing, "apiType")
	}
	if r.UserID == "" {
		missing = append(missing, "userId")
	}
	if r.World == nil {
		missing = append(missing, "worldContext")
	}
	if r.Message == "" {
		missing = append(missing, "message")
	}
	return missing
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", uuid.NewString())

	var req interactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("bad request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body", logger)
		return
	}

	if missing := req.missingFields(); len(missing) > 0 {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("missing required parameters: %s", strings.Join(missing, ", ")), logger)
		return
	}

	if req.APIType != "gpt" && req.APIType != "gemini" {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported apiType %q (valid: gpt, gemini)", req.APIType), logger)
		return
	}

	logger = logger.With("user_id", req.UserID, "api_type", req.APIType)
	logger.Debug("turn received", "message_len", len(req.Message))

	reply, err := s.game.HandleTurn(r.Context(), game.TurnRequest{
		APIKey:  req.APIKey,
		APIType: req.APIType,
		UserID:  req.UserID,
		Message: req.Message,
		World:   *req.World,
	})
	if err != nil {
		// Controller errors are client errors (bad backend selection);
		// upstream failures were already converted to fallback replies.
		logger.Warn("turn rejected", "error", err)
		writeError(w, http.StatusBadRequest, "could not start a model turn", logger)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, reply, logger)
}
