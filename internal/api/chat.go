package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type chatRequest struct {
	Question string `json:"question"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Conversation == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "conversation dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, "chat"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	// Failures are recorded on the turn itself, so a failed answer is still
	// a successful HTTP exchange.
	turn := deps.Conversation.HandleTurn(r.Context(), strings.TrimSpace(request.Question))
	writeJSON(w, http.StatusOK, turn)
}
