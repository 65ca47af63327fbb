package reconcile

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/cache"
	"github.com/hintze-labs/toolshed/internal/db"
	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/store"
)

// dupExtractor answers duplicate checks only.
type dupExtractor struct {
	verdict *extract.DuplicateVerdict
	err     error
}

func (d *dupExtractor) CheckDuplicate(context.Context, *extract.ToolParse, []extract.ToolContext) (*extract.DuplicateVerdict, error) {
	return d.verdict, d.err
}

func (d *dupExtractor) ParseLending(context.Context, string, []extract.ToolContext, []string) (*extract.LendingParse, error) {
	return nil, extract.ErrUnavailable
}

func (d *dupExtractor) ParseNewTool(context.Context, string) (*extract.ToolParse, error) {
	return nil, extract.ErrUnavailable
}

func (d *dupExtractor) FilterInventory(context.Context, string, []extract.ToolContext) ([]string, error) {
	return nil, extract.ErrUnavailable
}

func (d *dupExtractor) FindDeletions(context.Context, string, []extract.ToolContext) ([]string, error) {
	return nil, extract.ErrUnavailable
}

func (d *dupExtractor) ParseLocationUpdate(context.Context, string, []extract.ToolContext) (*extract.LocationUpdate, error) {
	return nil, extract.ErrUnavailable
}

func (d *dupExtractor) PlanProject(context.Context, string, []extract.PlanContext) (*extract.ProjectPlan, error) {
	return nil, extract.ErrUnavailable
}

func (d *dupExtractor) Advise(context.Context, string, []extract.ToolContext) (string, error) {
	return "", extract.ErrUnavailable
}

func newScanner(t *testing.T) (*Scanner, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	return &Scanner{
		DB:      database,
		Extract: &dupExtractor{},
		Cache:   &cache.Signal{},
		Log:     zap.NewNop(),
	}, database
}

func seedPerson(t *testing.T, database *sql.DB, name string) {
	t.Helper()
	require.NoError(t, store.CreatePerson(context.Background(), database, &model.Person{
		Name: name, Role: model.RoleAdult, Household: "Main", Email: name + "@example.com",
	}))
}

func seedTool(t *testing.T, database *sql.DB, name, owner string) *model.Tool {
	t.Helper()
	created, err := store.CreateTool(context.Background(), database, &model.Tool{
		Name: name, Owner: owner, Household: "Main",
	})
	require.NoError(t, err)
	return created
}

func TestGhostDetectionAndReassign(t *testing.T) {
	ctx := context.Background()
	s, database := newScanner(t)
	seedPerson(t, database, "Steve")
	kept := seedTool(t, database, "Claw Hammer", "Steve")
	orphan := seedTool(t, database, "Power Drill", "Departed")

	ghosts, err := s.GhostTools(ctx)
	require.NoError(t, err)
	require.Len(t, ghosts, 1)
	assert.Equal(t, orphan.ID, ghosts[0].ID)

	before := s.Cache.Version()
	results := s.Reassign(ctx, []string{orphan.ID}, "Steve", "Main", "admin")
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.True(t, s.Cache.Changed(before))

	// The drift is gone and the adopted tool carries a snapshot of its
	// pre-reassignment state.
	ghosts, err = s.GhostTools(ctx)
	require.NoError(t, err)
	assert.Empty(t, ghosts)

	hist, err := store.ToolHistory(ctx, database, orphan.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	got, err := store.GetTool(ctx, database, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, "Steve", got.Owner)
}

func TestDeleteArchivesThenRemoves(t *testing.T) {
	ctx := context.Background()
	s, database := newScanner(t)
	seedPerson(t, database, "Steve")
	doomed := seedTool(t, database, "Bent Pry Bar", "Nobody")

	results := s.Delete(ctx, []string{doomed.ID, "TOOL_MISSING"}, "admin")
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, store.ErrNotFound)

	_, err := store.GetTool(ctx, database, doomed.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The snapshot written before deletion survives the row.
	hist, err := store.ToolHistory(ctx, database, doomed.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestDuplicateCheckIsAdvisory(t *testing.T) {
	ctx := context.Background()
	s, database := newScanner(t)
	seedPerson(t, database, "Steve")
	seedTool(t, database, "DeWalt Drill", "Steve")

	s.Extract = &dupExtractor{verdict: &extract.DuplicateVerdict{
		IsDuplicate: true, MatchName: "DeWalt Drill", MatchOwner: "Steve",
	}}
	verdict, err := s.DuplicateCheck(ctx, &extract.ToolParse{Name: "Drill", Brand: "DeWalt"}, "Main")
	require.NoError(t, err)
	assert.True(t, verdict.IsDuplicate)
	assert.Equal(t, "Steve", verdict.MatchOwner)

	// Extractor failure degrades to no verdict, never an error.
	s.Extract = &dupExtractor{err: extract.ErrRateLimited}
	verdict, err = s.DuplicateCheck(ctx, &extract.ToolParse{Name: "Drill"}, "Main")
	require.NoError(t, err)
	assert.False(t, verdict.IsDuplicate)
}
