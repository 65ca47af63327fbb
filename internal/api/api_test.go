package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/cache"
	"github.com/hintze-labs/toolshed/internal/db"
	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/store"
)

// stubExtractor serves canned answers per task.
type stubExtractor struct {
	lending  *extract.LendingParse
	matchIDs []string
	err      error
}

func (s *stubExtractor) ParseLending(context.Context, string, []extract.ToolContext, []string) (*extract.LendingParse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.lending, nil
}

func (s *stubExtractor) ParseNewTool(context.Context, string) (*extract.ToolParse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &extract.ToolParse{Name: "Impact Driver", Brand: "Makita", Safety: model.SafetySupervised}, nil
}

func (s *stubExtractor) CheckDuplicate(context.Context, *extract.ToolParse, []extract.ToolContext) (*extract.DuplicateVerdict, error) {
	return &extract.DuplicateVerdict{}, nil
}

func (s *stubExtractor) FilterInventory(context.Context, string, []extract.ToolContext) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.matchIDs, nil
}

func (s *stubExtractor) FindDeletions(context.Context, string, []extract.ToolContext) ([]string, error) {
	return s.matchIDs, s.err
}

func (s *stubExtractor) ParseLocationUpdate(context.Context, string, []extract.ToolContext) (*extract.LocationUpdate, error) {
	return nil, extract.ErrUnavailable
}

func (s *stubExtractor) PlanProject(context.Context, string, []extract.PlanContext) (*extract.ProjectPlan, error) {
	return &extract.ProjectPlan{}, nil
}

func (s *stubExtractor) Advise(context.Context, string, []extract.ToolContext) (string, error) {
	return "use a hammer", s.err
}

func setupTestServer(t *testing.T, x extract.Extractor) (*httptest.Server, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(Deps{
		DB:      database,
		Extract: x,
		Cache:   &cache.Signal{},
		Log:     zap.NewNop(),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	store.CreatePerson(ctx, database, &model.Person{
		Name: "Admin", Role: model.RoleAdmin, Household: "Main", Email: "admin@example.com",
	})
	store.CreatePerson(ctx, database, &model.Person{
		Name: "Steve", Role: model.RoleAdult, Household: "Main", Email: "steve@example.com",
	})

	return server, database
}

func doRequest(t *testing.T, method, url, actor string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if actor != "" {
		req.Header.Set("X-Actor-Email", actor)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestActorRequired(t *testing.T) {
	server, database := setupTestServer(t, &stubExtractor{})

	resp := doRequest(t, "GET", server.URL+"/api/tools", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without actor, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "GET", server.URL+"/api/tools", "stranger@example.com", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown actor, got %d", resp.StatusCode)
	}

	// The unknown identity lands in the audit log.
	entries, _ := store.ListAuditLog(context.Background(), database, 10)
	if len(entries) != 1 || entries[0].EventType != model.EventFailedAuth {
		t.Errorf("expected a FAILED_AUTH entry, got %v", entries)
	}
}

func TestToolLifecycleOverHTTP(t *testing.T) {
	server, _ := setupTestServer(t, &stubExtractor{})

	resp := doRequest(t, "POST", server.URL+"/api/tools", "steve@example.com", map[string]any{
		"name": "Claw Hammer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var tool model.Tool
	decodeBody(t, resp, &tool)
	if tool.Owner != "Steve" {
		t.Errorf("expected owner defaulted to actor, got %q", tool.Owner)
	}

	resp = doRequest(t, "POST", server.URL+"/api/tools/"+tool.ID+"/borrow", "steve@example.com", map[string]any{
		"borrower": "Admin", "days": 7,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 borrowing, got %d", resp.StatusCode)
	}

	// Double borrow conflicts.
	resp = doRequest(t, "POST", server.URL+"/api/tools/"+tool.ID+"/borrow", "steve@example.com", map[string]any{
		"borrower": "Admin", "days": 3,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "POST", server.URL+"/api/tools/"+tool.ID+"/return", "steve@example.com", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 returning, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "GET", server.URL+"/api/tools/"+tool.ID+"/history", "steve@example.com", nil)
	var hist []model.HistorySnapshot
	decodeBody(t, resp, &hist)
	if len(hist) != 2 {
		t.Errorf("expected 2 snapshots (borrow, return), got %d", len(hist))
	}
}

func TestBorrowEnforcesSafetyPolicy(t *testing.T) {
	server, database := setupTestServer(t, &stubExtractor{})
	ctx := context.Background()
	store.CreatePerson(ctx, database, &model.Person{
		Name: "Kid", Role: model.RoleChild, Household: "Main", Email: "kid@example.com",
	})
	tool, err := store.CreateTool(ctx, database, &model.Tool{
		Name: "Chainsaw", Owner: "Steve", Household: "Main", SafetyRating: model.SafetyAdultOnly,
	})
	if err != nil {
		t.Fatalf("creating tool: %v", err)
	}

	// A child may not borrow an Adult Only tool for themselves.
	resp := doRequest(t, "POST", server.URL+"/api/tools/"+tool.ID+"/borrow", "kid@example.com", map[string]any{
		"days": 2,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for child borrowing Adult Only tool, got %d", resp.StatusCode)
	}
	got, err := store.GetTool(ctx, database, tool.ID)
	if err != nil {
		t.Fatalf("reloading tool: %v", err)
	}
	if got.Status != model.StatusAvailable {
		t.Errorf("expected tool untouched after denial, got status %q", got.Status)
	}

	// Lending it to the child on their behalf is refused the same way.
	resp = doRequest(t, "POST", server.URL+"/api/tools/"+tool.ID+"/borrow", "steve@example.com", map[string]any{
		"borrower": "Kid", "days": 2,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 lending Adult Only tool to child, got %d", resp.StatusCode)
	}

	// A borrower outside the roster has no role and is refused outright.
	resp = doRequest(t, "POST", server.URL+"/api/tools/"+tool.ID+"/borrow", "steve@example.com", map[string]any{
		"borrower": "Stranger", "days": 2,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for borrower outside the roster, got %d", resp.StatusCode)
	}

	// An adult passes the same gate.
	resp = doRequest(t, "POST", server.URL+"/api/tools/"+tool.ID+"/borrow", "steve@example.com", map[string]any{
		"days": 2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for adult borrow, got %d", resp.StatusCode)
	}
}

func TestErrorStatuses(t *testing.T) {
	server, _ := setupTestServer(t, &stubExtractor{})

	resp := doRequest(t, "GET", server.URL+"/api/tools/TOOL_MISSING", "steve@example.com", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "POST", server.URL+"/api/tools", "steve@example.com", map[string]any{
		"name": "Grinder", "safety_rating": "Lethal",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAdminOnlyEndpoints(t *testing.T) {
	server, database := setupTestServer(t, &stubExtractor{})
	tool, _ := store.CreateTool(context.Background(), database, &model.Tool{
		Name: "Old Saw", Owner: "Steve", Household: "Main",
	})

	resp := doRequest(t, "DELETE", server.URL+"/api/tools/"+tool.ID, "steve@example.com", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin delete, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "DELETE", server.URL+"/api/tools/"+tool.ID, "admin@example.com", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 for admin delete, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "GET", server.URL+"/api/reconcile/ghosts", "steve@example.com", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin ghosts, got %d", resp.StatusCode)
	}
}

func TestSessionFlowOverHTTP(t *testing.T) {
	stub := &stubExtractor{}
	server, database := setupTestServer(t, stub)
	ctx := context.Background()

	hammer, _ := store.CreateTool(ctx, database, &model.Tool{
		Name: "Claw Hammer", Owner: "Steve", Household: "Main",
	})
	stub.lending = &extract.LendingParse{
		Candidates: []extract.Candidate{
			{ID: hammer.ID, Name: hammer.Name, Confidence: extract.ConfidenceHigh},
		},
		CounterpartName: "Admin",
	}

	resp := doRequest(t, "POST", server.URL+"/api/sessions", "steve@example.com", map[string]string{
		"flow": "lend", "text": "lending my hammer to Admin",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 starting session, got %d", resp.StatusCode)
	}
	var started sessionResponse
	decodeBody(t, resp, &started)
	if started.Session.State != "REFINE" {
		t.Fatalf("expected REFINE, got %s", started.Session.State)
	}
	id := started.Session.ID

	resp = doRequest(t, "POST", server.URL+"/api/sessions/"+id+"/refine", "steve@example.com", map[string]any{
		"tool_ids": []string{hammer.ID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 refining, got %d", resp.StatusCode)
	}

	// Another actor cannot touch the session.
	resp = doRequest(t, "GET", server.URL+"/api/sessions/"+id+"/verify", "admin@example.com", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for foreign session, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "GET", server.URL+"/api/sessions/"+id+"/verify", "steve@example.com", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 verifying, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "POST", server.URL+"/api/sessions/"+id+"/commit", "steve@example.com", map[string]any{
		"tool_ids": []string{hammer.ID}, "counterpart": "Admin", "duration_days": 7,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 committing, got %d", resp.StatusCode)
	}

	got, _ := store.GetTool(ctx, database, hammer.ID)
	if got.Status != model.StatusBorrowed {
		t.Errorf("expected Borrowed after commit, got %s", got.Status)
	}
}

func TestSessionDegradesOnExtractorFailure(t *testing.T) {
	server, _ := setupTestServer(t, &stubExtractor{err: extract.ErrRateLimited})

	resp := doRequest(t, "POST", server.URL+"/api/sessions", "steve@example.com", map[string]string{
		"flow": "lend", "text": "lend my saw to Bob",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 degraded response, got %d", resp.StatusCode)
	}
	var got sessionResponse
	decodeBody(t, resp, &got)
	if !got.Degraded {
		t.Error("expected degraded flag")
	}
	if got.Session.State != "MANUAL" {
		t.Errorf("expected MANUAL, got %s", got.Session.State)
	}
}

func TestAssistSearch(t *testing.T) {
	stub := &stubExtractor{}
	server, database := setupTestServer(t, stub)
	ctx := context.Background()

	hammer, _ := store.CreateTool(ctx, database, &model.Tool{
		Name: "Claw Hammer", Owner: "Steve", Household: "Main",
	})
	store.CreateTool(ctx, database, &model.Tool{
		Name: "Power Drill", Owner: "Steve", Household: "Main",
	})
	stub.matchIDs = []string{hammer.ID}

	resp := doRequest(t, "POST", server.URL+"/api/assist/search", "steve@example.com", map[string]string{
		"query": "something to drive nails",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var matched []model.Tool
	decodeBody(t, resp, &matched)
	if len(matched) != 1 || matched[0].ID != hammer.ID {
		t.Errorf("expected only the hammer, got %v", matched)
	}
}

func TestAssistSearchUnavailable(t *testing.T) {
	server, _ := setupTestServer(t, &stubExtractor{err: extract.ErrUnavailable})

	resp := doRequest(t, "POST", server.URL+"/api/assist/search", "steve@example.com", map[string]string{
		"query": "anything",
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", resp.StatusCode)
	}
}

func TestHistoryPurgeEndpoint(t *testing.T) {
	server, database := setupTestServer(t, &stubExtractor{})
	ctx := context.Background()

	tool, _ := store.CreateTool(ctx, database, &model.Tool{
		Name: "Hammer", Owner: "Steve", Household: "Main",
	})
	store.BorrowTool(ctx, database, tool.ID, "Alice", 7, "Steve")

	resp := doRequest(t, "POST", server.URL+"/api/history/purge", "admin@example.com", map[string]int{
		"retention_days": 30,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got map[string]int64
	decodeBody(t, resp, &got)
	if got["removed"] != 0 {
		t.Errorf("expected nothing purged for fresh history, got %d", got["removed"])
	}
}
