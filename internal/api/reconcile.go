package api

import (
	"net/http"

	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/reconcile"
	"github.com/hintze-labs/toolshed/internal/store"
)

// ReconcileHandler exposes integrity scans and repairs. Admin only.
type ReconcileHandler struct {
	Scanner *reconcile.Scanner
	Extract extract.Extractor
}

// Ghosts handles GET /api/reconcile/ghosts.
func (h *ReconcileHandler) Ghosts(w http.ResponseWriter, r *http.Request) {
	ghosts, err := h.Scanner.GhostTools(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	if ghosts == nil {
		ghosts = []model.Tool{}
	}
	jsonResponse(w, http.StatusOK, ghosts)
}

type reassignRequest struct {
	ToolIDs   []string `json:"tool_ids"`
	NewOwner  string   `json:"new_owner"`
	Household string   `json:"household"`
}

// Reassign handles POST /api/reconcile/reassign.
func (h *ReconcileHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	var req reassignRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	person := Actor(r.Context())
	results := h.Scanner.Reassign(r.Context(), req.ToolIDs, req.NewOwner, req.Household, person.Name)
	jsonResponse(w, http.StatusOK, batchPayload(results))
}

type deleteRequest struct {
	ToolIDs []string `json:"tool_ids"`
	Query   string   `json:"query"`
}

// Delete handles POST /api/reconcile/delete. Accepts explicit ids, or a
// natural-language query the extractor resolves to ids first. Every
// removal archives the row and is irreversible.
func (h *ReconcileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids := req.ToolIDs
	if len(ids) == 0 && req.Query != "" {
		tools, err := store.ListTools(r.Context(), h.Scanner.DB, store.ToolFilter{})
		if err != nil {
			storeError(w, err)
			return
		}
		ids, err = h.Extract.FindDeletions(r.Context(), req.Query, toolContexts(tools))
		if err != nil {
			storeError(w, err)
			return
		}
	}
	if len(ids) == 0 {
		jsonError(w, http.StatusBadRequest, "nothing to delete")
		return
	}

	person := Actor(r.Context())
	results := h.Scanner.Delete(r.Context(), ids, person.Name)
	jsonResponse(w, http.StatusOK, batchPayload(results))
}
