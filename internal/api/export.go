package api

import (
	"encoding/json"
	"net/http"

	"github.com/sqlscout/sqlscout/internal/export"
)

type exportRequest struct {
	Turn   int    `json:"turn"`
	Format string `json:"format"`
}

func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Conversation == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "conversation dependencies are not configured", false, nil)
		return
	}
	if deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_DISABLED", "result export is not enabled", false, nil)
		return
	}
	if err := requireRole(r, "chat"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request exportRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}

	format, err := export.ParseFormat(request.Format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, nil)
		return
	}

	turn, err := deps.Conversation.Turn(request.Turn)
	if err != nil {
		writeError(r.Context(), w, http.StatusNotFound, "TURN_NOT_FOUND", err.Error(), false, nil)
		return
	}
	if turn.Result == nil {
		writeError(r.Context(), w, http.StatusConflict, "NO_RESULT", "turn has no query result to export", false, map[string]any{"turn": request.Turn})
		return
	}

	info, err := deps.Exporter.Export(r.Context(), turn.ID, *turn.Result, format)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to export result", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}
