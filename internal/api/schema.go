package api

import (
	"net/http"

	"github.com/sqlscout/sqlscout/internal/database"
)

type schemaResponse struct {
	Tables []database.Table `json:"tables"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, "chat"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	schema, err := deps.Schema.Snapshot(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_ERROR", "failed to introspect database schema", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{Tables: schema.Tables})
}
