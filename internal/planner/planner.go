// Package planner turns a project description into a categorized tool
// plan. The extractor proposes the categorization; ownership rules are
// then enforced deterministically here, because the requester's own
// tools must never be suggested for borrowing regardless of what the
// model returns.
package planner

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/model"
	"github.com/hintze-labs/toolshed/internal/store"
)

// Planner builds project plans over the live inventory.
type Planner struct {
	DB      *sql.DB
	Extract extract.Extractor
	Log     *zap.Logger
}

// Plan runs the full pipeline for one request: context rows with a
// locally computed is_mine flag, the extractor's categorization, then
// the ownership-first correction pass.
func (p *Planner) Plan(ctx context.Context, requester *model.Person, query string) (*extract.ProjectPlan, error) {
	tools, err := store.ListTools(ctx, p.DB, store.ToolFilter{})
	if err != nil {
		return nil, err
	}

	rows := make([]extract.PlanContext, 0, len(tools))
	for _, t := range tools {
		if t.Status == model.StatusRetired {
			continue
		}
		rows = append(rows, extract.PlanContext{
			ID:           t.ID,
			Name:         t.Name,
			Brand:        t.Brand,
			IsMine:       t.OwnedBy(requester.Name, requester.Household),
			Location:     t.BinLocation,
			Status:       planStatus(&t),
			IsStationary: t.IsStationary,
		})
	}

	plan, err := p.Extract.PlanProject(ctx, query, rows)
	if err != nil {
		return nil, err
	}
	p.enforceOwnership(plan, tools, requester)
	return plan, nil
}

func planStatus(t *model.Tool) string {
	if t.Status == model.StatusBorrowed && t.Borrower != nil {
		return "Borrowed by " + *t.Borrower
	}
	return t.Status
}

// enforceOwnership moves any borrow-list entry that resolves to one of
// the requester's own tools into the locate list, or into the
// track-down list when it is currently out on loan. Model output is
// advisory; this pass is what guarantees the ownership rule.
func (p *Planner) enforceOwnership(plan *extract.ProjectPlan, tools []model.Tool, requester *model.Person) {
	byID := make(map[string]*model.Tool, len(tools))
	byName := make(map[string]*model.Tool, len(tools))
	for i := range tools {
		byID[tools[i].ID] = &tools[i]
		byName[strings.ToLower(tools[i].Name)] = &tools[i]
	}

	kept := plan.Borrow[:0]
	for _, b := range plan.Borrow {
		t := byID[b.ToolID]
		if t == nil {
			t = byName[strings.ToLower(b.Name)]
		}
		if t == nil || !t.OwnedBy(requester.Name, requester.Household) {
			kept = append(kept, b)
			continue
		}
		p.Log.Debug("reclassifying owned tool out of borrow list",
			zap.String("tool", t.ID), zap.String("requester", requester.Name))
		if t.Status == model.StatusBorrowed {
			held := ""
			if t.Borrower != nil {
				held = *t.Borrower
			}
			plan.TrackDown = append(plan.TrackDown, extract.TrackDownItem{
				ToolName: t.Name,
				HeldBy:   held,
			})
			continue
		}
		plan.Locate = append(plan.Locate, extract.LocateItem{
			ToolName: t.Name,
			Location: t.BinLocation,
		})
	}
	plan.Borrow = kept
}
