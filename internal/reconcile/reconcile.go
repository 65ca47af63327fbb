// Package reconcile detects and repairs referential-integrity drift in
// the tool pool: ghost tools whose owner left the roster, and likely
// duplicate entries within a household.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/cache"
	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/store"
)

// Scanner runs integrity scans and their remediations.
type Scanner struct {
	DB      *sql.DB
	Extract extract.Extractor
	Sink    store.AlertSink
	Cache   *cache.Signal
	Log     *zap.Logger
}

// GhostTools returns tools whose non-empty owner is missing from the
// family roster.
func (s *Scanner) GhostTools(ctx context.Context) ([]model.Tool, error) {
	return store.GhostTools(ctx, s.DB)
}

// Reassign transfers the given tools to a new owner, archiving each
// first. Used to adopt ghost tools back into the roster.
func (s *Scanner) Reassign(ctx context.Context, toolIDs []string, newOwner, newHousehold, actor string) []store.BatchResult {
	results := store.ReassignTools(ctx, s.DB, toolIDs, newOwner, newHousehold, actor)
	if anySucceeded(results) {
		s.Cache.Bump()
		details := fmt.Sprintf("reassigned %d tools to %s", len(toolIDs), newOwner)
		if err := store.LogEvent(ctx, s.DB, s.Sink, model.EventAdminUpdate, actor, details); err != nil {
			s.Log.Warn("audit log write failed", zap.Error(err))
		}
	}
	return results
}

// Delete permanently removes the given tools, archiving each first.
// Irreversible; each removal is audited as a deletion event.
func (s *Scanner) Delete(ctx context.Context, toolIDs []string, actor string) []store.BatchResult {
	results := make([]store.BatchResult, 0, len(toolIDs))
	deleted := 0
	for _, id := range toolIDs {
		err := store.DeleteTool(ctx, s.DB, id, actor)
		if err == nil {
			deleted++
			if lerr := store.LogEvent(ctx, s.DB, s.Sink, model.EventToolDelete, actor, "deleted "+id); lerr != nil {
				s.Log.Warn("audit log write failed", zap.String("tool", id), zap.Error(lerr))
			}
		}
		results = append(results, store.BatchResult{ID: id, Err: err})
	}
	if deleted > 0 {
		s.Cache.Bump()
	}
	return results
}

// DuplicateCheck asks the extractor whether a candidate tool duplicates
// anything already in the household. The verdict is advisory: creation
// is never blocked, since duplicate tools may legitimately coexist. An
// extractor failure degrades to "no verdict" rather than an error.
func (s *Scanner) DuplicateCheck(ctx context.Context, candidate *extract.ToolParse, household string) (*extract.DuplicateVerdict, error) {
	tools, err := store.ListTools(ctx, s.DB, store.ToolFilter{Household: household})
	if err != nil {
		return nil, err
	}
	existing := make([]extract.ToolContext, 0, len(tools))
	for _, t := range tools {
		existing = append(existing, extract.ToolContext{
			ID:      t.ID,
			Name:    t.Name,
			Brand:   t.Brand,
			ModelNo: t.ModelNo,
			Owner:   t.Owner,
		})
	}

	verdict, err := s.Extract.CheckDuplicate(ctx, candidate, existing)
	if err != nil {
		s.Log.Warn("duplicate check unavailable", zap.Error(err))
		return &extract.DuplicateVerdict{}, nil
	}
	return verdict, nil
}

func anySucceeded(results []store.BatchResult) bool {
	for _, r := range results {
		if r.Err == nil {
			return true
		}
	}
	return false
}
