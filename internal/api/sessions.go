package api

import (
	"net/http"

	"github.com/hintze-labs/toolshed/internal/session"
)

// SessionsHandler exposes the disambiguation flow. Extractor failures
// never 502 here: the session degrades to manual entry and the response
// says so, because the user can always finish the flow by hand.
type SessionsHandler struct {
	Manager *session.Manager
}

type startSessionRequest struct {
	Flow string `json:"flow"`
	Text string `json:"text"`
}

type sessionResponse struct {
	Session  *session.Session `json:"session"`
	Degraded bool             `json:"degraded,omitempty"`
}

// Start handles POST /api/sessions.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.Manager.Start(r.Context(), Actor(r.Context()), req.Flow, req.Text)
	if err != nil {
		if s != nil {
			// Extraction failed; the session fell back to manual.
			jsonResponse(w, http.StatusOK, sessionResponse{Session: s, Degraded: true})
			return
		}
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, sessionResponse{Session: s})
}

func (h *SessionsHandler) load(w http.ResponseWriter, r *http.Request) *session.Session {
	s, err := session.Load(r.Context(), h.Manager.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return nil
	}
	if s.Actor != Actor(r.Context()).Name {
		jsonError(w, http.StatusForbidden, "not your session")
		return nil
	}
	return s
}

type refineRequest struct {
	ToolIDs []string `json:"tool_ids"`
}

// Refine handles POST /api/sessions/{id}/refine.
func (h *SessionsHandler) Refine(w http.ResponseWriter, r *http.Request) {
	s := h.load(w, r)
	if s == nil {
		return
	}
	var req refineRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Manager.Refine(r.Context(), s, req.ToolIDs); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, sessionResponse{Session: s})
}

// Verify handles GET /api/sessions/{id}/verify.
func (h *SessionsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	s := h.load(w, r)
	if s == nil {
		return
	}
	view, err := h.Manager.Verify(r.Context(), s)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, view)
}

// Commit handles POST /api/sessions/{id}/commit.
func (h *SessionsHandler) Commit(w http.ResponseWriter, r *http.Request) {
	s := h.load(w, r)
	if s == nil {
		return
	}
	var form session.CommitForm
	if err := decodeJSON(r, &form); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.Manager.Commit(r.Context(), s, form)
	if err != nil {
		storeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		row := map[string]any{"tool_id": res.ToolID, "status": "ok"}
		if res.Err != nil {
			row["status"] = "error"
			row["error"] = res.Err.Error()
		} else {
			row["tool"] = res.Tool
		}
		out = append(out, row)
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"state":   s.State,
		"results": out,
	})
}

// Manual handles POST /api/sessions/{id}/manual.
func (h *SessionsHandler) Manual(w http.ResponseWriter, r *http.Request) {
	s := h.load(w, r)
	if s == nil {
		return
	}
	if err := h.Manager.SwitchToManual(r.Context(), s); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, sessionResponse{Session: s})
}

// Cancel handles DELETE /api/sessions/{id}.
func (h *SessionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s := h.load(w, r)
	if s == nil {
		return
	}
	if err := h.Manager.Cancel(r.Context(), s); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}
