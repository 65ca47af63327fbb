package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// storeError maps the error taxonomy onto HTTP statuses and writes the
// response. Extractor failures surface as 502: the request may succeed
// later, nothing about it was invalid.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrDenied):
		jsonError(w, http.StatusForbidden, err.Error())
	case extract.IsUnavailable(err):
		jsonError(w, http.StatusBadGateway, "assistant unavailable, try manual entry")
	default:
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// batchPayload renders per-tool results of a multi-tool request.
func batchPayload(results []store.BatchResult) []map[string]string {
	out := make([]map[string]string, 0, len(results))
	for _, res := range results {
		row := map[string]string{"id": res.ID, "status": "ok"}
		if res.Err != nil {
			row["status"] = "error"
			row["error"] = res.Err.Error()
		}
		out = append(out, row)
	}
	return out
}
