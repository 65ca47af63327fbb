package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/cache"
	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/planner"
	"github.com/hintze-labs/toolshed/internal/reconcile"
	"github.com/hintze-labs/toolshed/internal/session"
	"github.com/hintze-labs/toolshed/internal/store"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	DB      *sql.DB
	Extract extract.Extractor
	Sink    store.AlertSink
	Cache   *cache.Signal
	Log     *zap.Logger
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	tools := &ToolsHandler{DB: d.DB, Sink: d.Sink, Cache: d.Cache, Log: d.Log}
	people := &PeopleHandler{DB: d.DB}
	sessions := &SessionsHandler{Manager: &session.Manager{
		DB: d.DB, Extract: d.Extract, Sink: d.Sink, Cache: d.Cache, Log: d.Log,
	}}
	scanner := &reconcile.Scanner{
		DB: d.DB, Extract: d.Extract, Sink: d.Sink, Cache: d.Cache, Log: d.Log,
	}
	assist := &AssistHandler{
		DB:      d.DB,
		Extract: d.Extract,
		Planner: &planner.Planner{DB: d.DB, Extract: d.Extract, Log: d.Log},
		Scanner: scanner,
		Cache:   d.Cache,
		Log:     d.Log,
	}
	recon := &ReconcileHandler{Scanner: scanner, Extract: d.Extract}
	admin := &AdminHandler{DB: d.DB}

	actorMW := ActorMiddleware(d.DB, d.Sink, d.Log)

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, actorMW(h))
	}
	handleAdmin := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, actorMW(RequireAdmin(h)))
	}

	// Tools and lifecycle.
	handle("GET /api/tools", tools.List)
	handle("POST /api/tools", tools.Create)
	handle("PUT /api/tools", tools.BatchEdit)
	handle("GET /api/tools/{id}", tools.Get)
	handle("POST /api/tools/{id}/borrow", tools.Borrow)
	handle("POST /api/tools/{id}/return", tools.Return)
	handle("POST /api/tools/{id}/extend", tools.Extend)
	handle("POST /api/tools/{id}/retire", tools.Retire)
	handle("POST /api/tools/{id}/relocate", tools.Relocate)
	handle("GET /api/tools/{id}/history", tools.History)
	handleAdmin("DELETE /api/tools/{id}", tools.Delete)

	// Family roster.
	handle("GET /api/people", people.List)
	handleAdmin("POST /api/people", people.Create)
	handleAdmin("DELETE /api/people/{email}", people.Delete)

	// Disambiguation sessions.
	handle("POST /api/sessions", sessions.Start)
	handle("POST /api/sessions/{id}/refine", sessions.Refine)
	handle("GET /api/sessions/{id}/verify", sessions.Verify)
	handle("POST /api/sessions/{id}/commit", sessions.Commit)
	handle("POST /api/sessions/{id}/manual", sessions.Manual)
	handle("DELETE /api/sessions/{id}", sessions.Cancel)

	// Assistant conveniences.
	handle("POST /api/assist/search", assist.Search)
	handle("POST /api/assist/tools/parse", assist.ParseTool)
	handle("POST /api/assist/location", assist.Location)
	handle("POST /api/assist/advice", assist.Advise)
	handle("POST /api/plan", assist.Plan)

	// Integrity and retention. Admin only.
	handleAdmin("GET /api/reconcile/ghosts", recon.Ghosts)
	handleAdmin("POST /api/reconcile/reassign", recon.Reassign)
	handleAdmin("POST /api/reconcile/delete", recon.Delete)
	handleAdmin("POST /api/history/purge", admin.PurgeHistory)
	handleAdmin("GET /api/audit", admin.AuditLog)
	handleAdmin("POST /api/sessions/prune", admin.PruneSessions)

	return Logging(d.Log)(mux)
}
