package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/cache"
	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/policy"
	"github.com/hintze-labs/toolshed/internal/store"
)

// ToolsHandler handles tool CRUD and lifecycle endpoints.
type ToolsHandler struct {
	DB    *sql.DB
	Sink  store.AlertSink
	Cache *cache.Signal
	Log   *zap.Logger
}

// List handles GET /api/tools.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ToolFilter{
		Status:    q.Get("status"),
		Owner:     q.Get("owner"),
		Household: q.Get("household"),
		Borrower:  q.Get("borrower"),
	}
	tools, err := store.ListTools(r.Context(), h.DB, filter)
	if err != nil {
		storeError(w, err)
		return
	}
	if tools == nil {
		tools = []model.Tool{}
	}
	w.Header().Set("X-Inventory-Version", strconv.FormatUint(h.Cache.Version(), 10))
	jsonResponse(w, http.StatusOK, tools)
}

// Create handles POST /api/tools.
func (h *ToolsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Tool
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	person := Actor(r.Context())
	if req.Owner == "" {
		req.Owner = person.Name
	}
	if req.Household == "" {
		req.Household = person.Household
	}

	tool, err := store.CreateTool(r.Context(), h.DB, &req)
	if err != nil {
		storeError(w, err)
		return
	}
	h.Cache.Bump()
	jsonResponse(w, http.StatusCreated, tool)
}

// Get handles GET /api/tools/{id}.
func (h *ToolsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tool, err := store.GetTool(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, tool)
}

type borrowRequest struct {
	Borrower string `json:"borrower"`
	Days     int    `json:"days"`
}

// Borrow handles POST /api/tools/{id}/borrow.
func (h *ToolsHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	person := Actor(r.Context())
	if req.Borrower == "" {
		req.Borrower = person.Name
	}

	tool, err := store.GetTool(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	role, err := h.borrowerRole(r, person, req.Borrower)
	if err != nil {
		storeError(w, err)
		return
	}
	if !policy.CheckSafety(role, tool.SafetyRating) {
		storeError(w, fmt.Errorf("%w: %s", store.ErrDenied, policy.Denial(tool.Name, role, tool.SafetyRating)))
		return
	}

	tool, err = store.BorrowTool(r.Context(), h.DB, tool.ID, req.Borrower, req.Days, person.Name)
	if err != nil {
		storeError(w, err)
		return
	}
	h.Cache.Bump()
	h.logEvent(r, model.EventToolBorrow, fmt.Sprintf("%s -> %s for %d days", tool.Name, req.Borrower, req.Days))
	jsonResponse(w, http.StatusOK, tool)
}

// borrowerRole resolves the role whose safety rating applies to a
// borrow. A borrower outside the roster resolves to no role, which the
// policy treats as fail-closed.
func (h *ToolsHandler) borrowerRole(r *http.Request, actor *model.Person, borrower string) (string, error) {
	if borrower == actor.Name {
		return actor.Role, nil
	}
	p, err := store.GetPersonByName(r.Context(), h.DB, borrower)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return p.Role, nil
}

// Return handles POST /api/tools/{id}/return.
func (h *ToolsHandler) Return(w http.ResponseWriter, r *http.Request) {
	person := Actor(r.Context())
	tool, err := store.ReturnTool(r.Context(), h.DB, r.PathValue("id"), person.Name)
	if err != nil {
		storeError(w, err)
		return
	}
	h.Cache.Bump()
	h.logEvent(r, model.EventToolReturn, tool.Name+" returned")
	jsonResponse(w, http.StatusOK, tool)
}

type extendRequest struct {
	Days int `json:"days"`
}

// Extend handles POST /api/tools/{id}/extend.
func (h *ToolsHandler) Extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	person := Actor(r.Context())
	tool, err := store.ExtendLoan(r.Context(), h.DB, r.PathValue("id"), req.Days, person.Name)
	if err != nil {
		storeError(w, err)
		return
	}
	h.Cache.Bump()
	jsonResponse(w, http.StatusOK, tool)
}

type retireRequest struct {
	Reason string `json:"reason"`
}

// Retire handles POST /api/tools/{id}/retire.
func (h *ToolsHandler) Retire(w http.ResponseWriter, r *http.Request) {
	var req retireRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	person := Actor(r.Context())
	tool, err := store.RetireTool(r.Context(), h.DB, r.PathValue("id"), req.Reason, person.Name)
	if err != nil {
		storeError(w, err)
		return
	}
	h.Cache.Bump()
	h.logEvent(r, model.EventToolRetire, fmt.Sprintf("%s retired: %s", tool.Name, req.Reason))
	jsonResponse(w, http.StatusOK, tool)
}

type relocateRequest struct {
	Bin       string `json:"bin"`
	Household string `json:"household"`
}

// Relocate handles POST /api/tools/{id}/relocate.
func (h *ToolsHandler) Relocate(w http.ResponseWriter, r *http.Request) {
	var req relocateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	person := Actor(r.Context())
	tool, err := store.RelocateTool(r.Context(), h.DB, r.PathValue("id"), req.Bin, req.Household, person.Name)
	if err != nil {
		storeError(w, err)
		return
	}
	h.Cache.Bump()
	jsonResponse(w, http.StatusOK, tool)
}

// BatchEdit handles PUT /api/tools. Partial success: per-row results.
func (h *ToolsHandler) BatchEdit(w http.ResponseWriter, r *http.Request) {
	var edits []store.ToolEdit
	if err := decodeJSON(r, &edits); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	person := Actor(r.Context())
	admin := person.Role == model.RoleAdmin

	results := store.BatchEditTools(r.Context(), h.DB, edits, person.Name, admin)
	succeeded := false
	for _, res := range results {
		if res.Err == nil {
			succeeded = true
		}
	}
	if succeeded {
		h.Cache.Bump()
		if admin {
			h.logEvent(r, model.EventAdminUpdate, fmt.Sprintf("batch edit of %d tools", len(edits)))
		}
	}
	jsonResponse(w, http.StatusOK, batchPayload(results))
}

// Delete handles DELETE /api/tools/{id}. Admin only; irrecoverable.
func (h *ToolsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	person := Actor(r.Context())
	id := r.PathValue("id")
	if err := store.DeleteTool(r.Context(), h.DB, id, person.Name); err != nil {
		storeError(w, err)
		return
	}
	h.Cache.Bump()
	h.logEvent(r, model.EventToolDelete, "deleted "+id)
	jsonResponse(w, http.StatusNoContent, nil)
}

// History handles GET /api/tools/{id}/history.
func (h *ToolsHandler) History(w http.ResponseWriter, r *http.Request) {
	snaps, err := store.ToolHistory(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	if snaps == nil {
		snaps = []model.HistorySnapshot{}
	}
	jsonResponse(w, http.StatusOK, snaps)
}

func (h *ToolsHandler) logEvent(r *http.Request, eventType, details string) {
	person := Actor(r.Context())
	actor := ""
	if person != nil {
		actor = person.Name
	}
	if err := store.LogEvent(r.Context(), h.DB, h.Sink, eventType, actor, details); err != nil {
		h.Log.Warn("audit log write failed", zap.Error(err))
	}
}
