package api

import (
	"net/http"

	"github.com/sqlscout/sqlscout/internal/chat"
)

type historyResponse struct {
	Turns []chat.Turn `json:"turns"`
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Conversation == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "conversation dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, "chat"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	turns := deps.Conversation.History()
	if turns == nil {
		turns = []chat.Turn{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Turns: turns})
}

func handleClearHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Conversation == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "conversation dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, "chat"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	removed := deps.Conversation.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
