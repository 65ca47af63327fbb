package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/cache"
	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/policy"
	"github.com/hintze-labs/toolshed/internal/store"
)

// Manager drives sessions through the state machine. It owns no state
// of its own; every session lives in the database between calls.
type Manager struct {
	DB      *sql.DB
	Extract extract.Extractor
	Sink    store.AlertSink
	Cache   *cache.Signal
	Log     *zap.Logger
}

// Start creates a session for the actor and runs extraction over text.
// With candidates it lands in Refine with the high-confidence ones
// pre-confirmed; with none it lands in Verify carrying partial fields
// as form defaults. On extractor failure the session degrades to
// Manual with the raw text preserved, and the error is returned so the
// caller can report the degradation. The session is persisted in every
// outcome.
func (m *Manager) Start(ctx context.Context, actor *model.Person, flow, text string) (*Session, error) {
	if flow != FlowLend && flow != FlowBorrow {
		return nil, fmt.Errorf("%w: unknown flow %q", store.ErrValidation, flow)
	}
	s := &Session{
		ID:             NewSessionID(),
		Flow:           flow,
		Actor:          actor.Name,
		ActorRole:      actor.Role,
		ActorHousehold: actor.Household,
		State:          StateManual,
		RawText:        text,
		CreatedAt:      time.Now().UTC(),
	}

	tools, people, err := m.extractionContext(ctx, s)
	if err != nil {
		return nil, err
	}

	parse, xerr := m.Extract.ParseLending(ctx, text, tools, people)
	if xerr != nil {
		m.Log.Warn("extraction degraded to manual",
			zap.String("session", s.ID), zap.Error(xerr))
		if err := save(ctx, m.DB, s); err != nil {
			return nil, err
		}
		return s, xerr
	}

	s.State = StateExtracted
	s.Candidates = parse.Candidates
	s.CounterpartName = parse.CounterpartName
	s.DurationDays = parse.DurationDays.Int()
	s.ForceOverride = parse.ForceOverride

	if len(s.Candidates) == 0 {
		s.State = StateVerify
	} else {
		s.State = StateRefine
		for _, c := range s.Candidates {
			if c.Confidence == extract.ConfidenceHigh {
				s.ConfirmedIDs = append(s.ConfirmedIDs, c.ID)
			}
		}
	}

	if err := save(ctx, m.DB, s); err != nil {
		return nil, err
	}
	return s, nil
}

// extractionContext builds the tool pool and roster the extractor may
// draw candidates from. Lending draws from the actor's own tools,
// borrowing from other households' available ones.
func (m *Manager) extractionContext(ctx context.Context, s *Session) ([]extract.ToolContext, []string, error) {
	filter := store.ToolFilter{}
	if s.Flow == FlowLend {
		filter.Owner = s.Actor
	} else {
		filter.Status = model.StatusAvailable
	}
	tools, err := store.ListTools(ctx, m.DB, filter)
	if err != nil {
		return nil, nil, err
	}

	var tcs []extract.ToolContext
	for _, t := range tools {
		if s.Flow == FlowBorrow {
			// A borrow never targets the actor's own pool, and
			// stationary tools stay where they are installed.
			if t.OwnedBy(s.Actor, s.ActorHousehold) || t.IsStationary {
				continue
			}
		}
		tcs = append(tcs, extract.ToolContext{
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

	people, err := store.ListPeople(ctx, m.DB)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(people))
	for _, p := range people {
		names = append(names, p.Name)
	}
	return tcs, names, nil
}

// Refine narrows the confirmed set to ids the user left checked. Ids
// that were never candidates are dropped rather than trusted.
func (m *Manager) Refine(ctx context.Context, s *Session, ids []string) error {
	if s.State != StateRefine {
		return fmt.Errorf("%w: cannot refine from state %s", store.ErrConflict, s.State)
	}
	valid := make(map[string]bool, len(s.Candidates))
	for _, c := range s.Candidates {
		valid[c.ID] = true
	}
	s.ConfirmedIDs = nil
	for _, id := range ids {
		if valid[id] {
			s.ConfirmedIDs = append(s.ConfirmedIDs, id)
		}
	}
	s.State = StateVerify
	return save(ctx, m.DB, s)
}

// VerifyView is the confirmation form shown before commit. Tools and
// warnings reflect the store's current state, never data captured at
// extraction time.
type VerifyView struct {
	Tools         []model.Tool `json:"tools"`
	Counterpart   string       `json:"counterpart"`
	DurationDays  int          `json:"duration_days"`
	Warnings      []string     `json:"warnings"`
	AckPrechecked bool         `json:"ack_prechecked"`
}

// Verify re-reads the confirmed tools and computes safety warnings
// against the current roster. A force-override flag pre-checks the
// acknowledgement control but never suppresses a warning.
func (m *Manager) Verify(ctx context.Context, s *Session) (*VerifyView, error) {
	if s.State != StateVerify {
		return nil, fmt.Errorf("%w: cannot verify from state %s", store.ErrConflict, s.State)
	}

	view := &VerifyView{
		Counterpart:   s.CounterpartName,
		DurationDays:  s.DurationDays,
		AckPrechecked: s.ForceOverride,
	}
	role, err := m.subjectRole(ctx, s, s.CounterpartName)
	if err != nil {
		return nil, err
	}

	for _, id := range s.ConfirmedIDs {
		t, err := store.GetTool(ctx, m.DB, id)
		if err != nil {
			view.Warnings = append(view.Warnings, fmt.Sprintf("Tool %s is no longer in the inventory.", id))
			continue
		}
		view.Tools = append(view.Tools, *t)
		if t.Status != model.StatusAvailable {
			view.Warnings = append(view.Warnings, fmt.Sprintf("'%s' is currently %s.", t.Name, t.Status))
		}
		if !policy.CheckSafety(role, t.SafetyRating) {
			view.Warnings = append(view.Warnings, policy.Denial(t.Name, role, t.SafetyRating))
		}
	}
	return view, nil
}

// subjectRole resolves whose safety rating applies: the counterpart for
// a lend, the actor for a borrow. An unknown counterpart resolves to no
// role, which the policy treats as fail-closed.
func (m *Manager) subjectRole(ctx context.Context, s *Session, counterpart string) (string, error) {
	if s.Flow == FlowBorrow {
		return s.ActorRole, nil
	}
	if counterpart == "" {
		return "", nil
	}
	p, err := store.GetPersonByName(ctx, m.DB, counterpart)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return p.Role, nil
}

// CommitForm is the user's final confirmation.
type CommitForm struct {
	ToolIDs      []string `json:"tool_ids"`
	Counterpart  string   `json:"counterpart"`
	DurationDays int      `json:"duration_days"`
	Acknowledged bool     `json:"acknowledged"`
}

// CommitResult reports one tool's independent commit outcome.
type CommitResult struct {
	ToolID string      `json:"tool_id"`
	Tool   *model.Tool `json:"tool,omitempty"`
	Err    error       `json:"-"`
}

// Commit runs one independent borrow transaction per selected tool.
// Safety is re-checked against the current roster for every tool: a
// lend denial can be overridden by the acknowledgement checkbox, a
// self-borrow denial cannot. Availability is re-validated inside each
// store transaction, so a candidate that went Borrowed since Refine
// fails with a Conflict instead of double-borrowing. Earlier successes
// in the same commit stay committed.
func (m *Manager) Commit(ctx context.Context, s *Session, form CommitForm) ([]CommitResult, error) {
	if s.State != StateVerify {
		return nil, fmt.Errorf("%w: cannot commit from state %s", store.ErrConflict, s.State)
	}

	borrower := form.Counterpart
	if s.Flow == FlowBorrow {
		borrower = s.Actor
	}
	if borrower == "" {
		return nil, fmt.Errorf("%w: borrower is required", store.ErrValidation)
	}
	role, err := m.subjectRole(ctx, s, form.Counterpart)
	if err != nil {
		return nil, err
	}

	results := make([]CommitResult, 0, len(form.ToolIDs))
	committed := 0
	for _, id := range form.ToolIDs {
		res := CommitResult{ToolID: id}
		res.Tool, res.Err = m.commitOne(ctx, s, id, borrower, role, form)
		if res.Err == nil {
			committed++
		}
		results = append(results, res)
	}

	if committed == 0 && len(results) > 0 {
		// Nothing changed; stay in Verify so the user can correct the
		// form and retry.
		return results, save(ctx, m.DB, s)
	}

	if committed > 0 {
		m.Cache.Bump()
	}
	s.State = StateCommitted
	s.UpdatedAt = time.Now().UTC()
	if err := store.DeleteSession(ctx, m.DB, s.ID); err != nil {
		m.Log.Warn("deleting committed session", zap.String("session", s.ID), zap.Error(err))
	}
	return results, nil
}

func (m *Manager) commitOne(ctx context.Context, s *Session, toolID, borrower, role string, form CommitForm) (*model.Tool, error) {
	t, err := store.GetTool(ctx, m.DB, toolID)
	if err != nil {
		return nil, err
	}
	if !policy.CheckSafety(role, t.SafetyRating) {
		overridable := s.Flow == FlowLend && form.Acknowledged
		if !overridable {
			return nil, fmt.Errorf("%w: %s", store.ErrDenied, policy.Denial(t.Name, role, t.SafetyRating))
		}
	}
	updated, err := store.BorrowTool(ctx, m.DB, toolID, borrower, form.DurationDays, s.Actor)
	if err != nil {
		return nil, err
	}
	details := fmt.Sprintf("%s -> %s for %d days", t.Name, borrower, form.DurationDays)
	if err := store.LogEvent(ctx, m.DB, m.Sink, model.EventToolBorrow, s.Actor, details); err != nil {
		m.Log.Warn("audit log write failed", zap.String("tool", toolID), zap.Error(err))
	}
	return updated, nil
}

// SwitchToManual discards all provisional extraction data and returns
// the session to manual entry, keeping the raw text.
func (m *Manager) SwitchToManual(ctx context.Context, s *Session) error {
	if s.Terminal() {
		return fmt.Errorf("%w: session %s is %s", store.ErrConflict, s.ID, s.State)
	}
	s.clearProvisional()
	s.State = StateManual
	return save(ctx, m.DB, s)
}

// Cancel ends the session from any non-terminal state. Nothing from a
// cancelled session can reach the store.
func (m *Manager) Cancel(ctx context.Context, s *Session) error {
	if s.Terminal() {
		return fmt.Errorf("%w: session %s is %s", store.ErrConflict, s.ID, s.State)
	}
	s.clearProvisional()
	s.State = StateCancelled
	return store.DeleteSession(ctx, m.DB, s.ID)
}
