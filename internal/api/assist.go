package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/cache"
	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/planner"
	"github.com/hintze-labs/toolshed/internal/reconcile"
	"github.com/hintze-labs/toolshed/internal/store"
)

// AssistHandler exposes the extractor-backed conveniences: search,
// new-tool parsing, location updates, project planning, and advice.
type AssistHandler struct {
	DB      *sql.DB
	Extract extract.Extractor
	Planner *planner.Planner
	Scanner *reconcile.Scanner
	Cache   *cache.Signal
	Log     *zap.Logger
}

type queryRequest struct {
	Query string `json:"query"`
}

func toolContexts(tools []model.Tool) []extract.ToolContext {
	out := make([]extract.ToolContext, 0, len(tools))
	for _, t := range tools {
		out = append(out, extract.ToolContext{
			ID:           t.ID,
			Name:         t.Name,
			Brand:        t.Brand,
			ModelNo:      t.ModelNo,
			Owner:        t.Owner,
			Household:    t.Household,
			Status:       t.Status,
			Capabilities: t.Capabilities,
		})
	}
	return out
}

// Search handles POST /api/assist/search: natural-language inventory
// filtering. Returns the matching tools, not just ids.
func (h *AssistHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tools, err := store.ListTools(r.Context(), h.DB, store.ToolFilter{})
	if err != nil {
		storeError(w, err)
		return
	}

	ids, err := h.Extract.FilterInventory(r.Context(), req.Query, toolContexts(tools))
	if err != nil {
		storeError(w, err)
		return
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	matched := []model.Tool{}
	for _, t := range tools {
		if wanted[t.ID] {
			matched = append(matched, t)
		}
	}
	jsonResponse(w, http.StatusOK, matched)
}

type parseToolRequest struct {
	Text string `json:"text"`
}

type parseToolResponse struct {
	Tool    *extract.ToolParse        `json:"tool"`
	Verdict *extract.DuplicateVerdict `json:"duplicate_check"`
}

// ParseTool handles POST /api/assist/tools/parse: structured extraction
// for the add-tool flow plus an advisory duplicate check. The verdict
// never blocks creation.
func (h *AssistHandler) ParseTool(w http.ResponseWriter, r *http.Request) {
	var req parseToolRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	parsed, err := h.Extract.ParseNewTool(r.Context(), req.Text)
	if err != nil {
		storeError(w, err)
		return
	}

	person := Actor(r.Context())
	verdict, err := h.Scanner.DuplicateCheck(r.Context(), parsed, person.Household)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, parseToolResponse{Tool: parsed, Verdict: verdict})
}

// Location handles POST /api/assist/location: parses a move/retire
// request over the actor's own tools and applies each action as an
// independent commit.
func (h *AssistHandler) Location(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	person := Actor(r.Context())
	tools, err := store.ListTools(r.Context(), h.DB, store.ToolFilter{Owner: person.Name})
	if err != nil {
		storeError(w, err)
		return
	}

	update, err := h.Extract.ParseLocationUpdate(r.Context(), req.Query, toolContexts(tools))
	if err != nil {
		storeError(w, err)
		return
	}

	owned := make(map[string]bool, len(tools))
	for _, t := range tools {
		owned[t.ID] = true
	}

	results := make([]store.BatchResult, 0, len(update.Updates))
	applied := false
	for _, action := range update.Updates {
		res := store.BatchResult{ID: action.ToolID}
		switch {
		case !owned[action.ToolID]:
			res.Err = store.ErrNotFound
		case action.Action == extract.ActionRetire:
			_, res.Err = store.RetireTool(r.Context(), h.DB, action.ToolID, action.Reason, person.Name)
		default:
			_, res.Err = store.RelocateTool(r.Context(), h.DB, action.ToolID, action.NewBin, action.NewHousehold, person.Name)
		}
		if res.Err == nil {
			applied = true
		}
		results = append(results, res)
	}
	if applied {
		h.Cache.Bump()
	}
	jsonResponse(w, http.StatusOK, batchPayload(results))
}

// Plan handles POST /api/plan.
func (h *AssistHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	plan, err := h.Planner.Plan(r.Context(), Actor(r.Context()), req.Query)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, plan)
}

// Advise handles POST /api/assist/advice: free-text tool advice over
// the family inventory.
func (h *AssistHandler) Advise(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tools, err := store.ListTools(r.Context(), h.DB, store.ToolFilter{})
	if err != nil {
		storeError(w, err)
		return
	}
	advice, err := h.Extract.Advise(r.Context(), req.Query, toolContexts(tools))
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"advice": advice})
}
