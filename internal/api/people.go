package api

import (
	"database/sql"
	"net/http"

	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/store"
)

// PeopleHandler handles family roster endpoints.
type PeopleHandler struct {
	DB *sql.DB
}

// List handles GET /api/people.
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	people, err := store.ListPeople(r.Context(), h.DB)
	if err != nil {
		storeError(w, err)
		return
	}
	if people == nil {
		people = []model.Person{}
	}
	jsonResponse(w, http.StatusOK, people)
}

// Create handles POST /api/people. Admin only.
func (h *PeopleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Person
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := store.CreatePerson(r.Context(), h.DB, &req); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, req)
}

// Delete handles DELETE /api/people/{email}. Admin only. Tools owned by
// the removed person become ghosts; the reconcile endpoints adopt or
// purge them.
func (h *PeopleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeletePerson(r.Context(), h.DB, r.PathValue("email")); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}
