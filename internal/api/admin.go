package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/store"
)

// AdminHandler handles retention and audit endpoints. Admin only.
type AdminHandler struct {
	DB *sql.DB
}

type purgeRequest struct {
	RetentionDays int `json:"retention_days"`
}

// PurgeHistory handles POST /api/history/purge.
func (h *AdminHandler) PurgeHistory(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	removed, err := store.PurgeHistory(r.Context(), h.DB, req.RetentionDays)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"removed": removed})
}

// AuditLog handles GET /api/audit.
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := store.ListAuditLog(r.Context(), h.DB, limit)
	if err != nil {
		storeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.AuditLogEntry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

type pruneSessionsRequest struct {
	IdleHours int `json:"idle_hours"`
}

// PruneSessions handles POST /api/sessions/prune.
func (h *AdminHandler) PruneSessions(w http.ResponseWriter, r *http.Request) {
	var req pruneSessionsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IdleHours < 1 {
		jsonError(w, http.StatusBadRequest, "idle_hours must be positive")
		return
	}
	cutoff := time.Now().UTC().Add(-time.Duration(req.IdleHours) * time.Hour)
	removed, err := store.PruneSessions(r.Context(), h.DB, cutoff)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"removed": removed})
}
