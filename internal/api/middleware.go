package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/store"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorMiddleware resolves the X-Actor-Email header against the family
// roster and stores the person in the request context. Authentication
// itself happens upstream; this layer only maps an asserted identity to
// a roster entry. An unknown identity is logged as a failed auth event.
func ActorMiddleware(db *sql.DB, sink store.AlertSink, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := r.Header.Get("X-Actor-Email")
			if email == "" {
				jsonError(w, http.StatusUnauthorized, "missing actor identity")
				return
			}

			person, err := store.GetPersonByEmail(r.Context(), db, email)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					if lerr := store.LogEvent(r.Context(), db, sink, model.EventFailedAuth, email, "unknown actor"); lerr != nil {
						log.Warn("audit log write failed", zap.Error(lerr))
					}
					jsonError(w, http.StatusUnauthorized, "unknown actor")
					return
				}
				storeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, person)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Actor retrieves the resolved person from the context.
func Actor(ctx context.Context) *model.Person {
	person, _ := ctx.Value(actorKey).(*model.Person)
	return person
}

// RequireAdmin rejects non-admin actors.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		person := Actor(r.Context())
		if person == nil || person.Role != model.RoleAdmin {
			jsonError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request.
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
