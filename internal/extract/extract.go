// Package extract defines the contract with the natural-language intent
// extractor and its Gemini implementation. Extractor output is advisory
// only: nothing here is trusted as ground truth, and every suggestion is
// re-validated against current inventory state before any mutation.
package extract

import (
	"context"
	"errors"
)

// Extractor failure modes. All three mean "no result": a degraded
// response is never surfaced as a partial success, and in particular a
// malformed reply (ErrUnparsable) is service unavailability, not "zero
// candidates found".
var (
	ErrRateLimited = errors.New("extractor rate limited")
	ErrUnavailable = errors.New("extractor unavailable")
	ErrUnparsable  = errors.New("extractor returned unparsable output")
)

// IsUnavailable reports whether err is any extractor failure mode.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUnparsable)
}

// Extractor converts free text plus contextual candidate data into one
// task-shaped result per method.
type Extractor interface {
	// ParseLending interprets a lending or borrowing request against the
	// caller's visible tool pool and the family roster.
	ParseLending(ctx context.Context, query string, tools []ToolContext, people []string) (*LendingParse, error)

	// ParseNewTool extracts structured tool attributes from a raw
	// description pasted into the add-tool flow.
	ParseNewTool(ctx context.Context, raw string) (*ToolParse, error)

	// CheckDuplicate judges similarity of a candidate tool against the
	// target household's existing rows. Advisory only.
	CheckDuplicate(ctx context.Context, candidate *ToolParse, existing []ToolContext) (*DuplicateVerdict, error)

	// FilterInventory returns the ids matching a natural-language search.
	FilterInventory(ctx context.Context, query string, tools []ToolContext) ([]string, error)

	// FindDeletions returns the ids matching an admin deletion query.
	FindDeletions(ctx context.Context, query string, tools []ToolContext) ([]string, error)

	// ParseLocationUpdate interprets a move/retire request over the
	// caller's own tools.
	ParseLocationUpdate(ctx context.Context, query string, tools []ToolContext) (*LocationUpdate, error)

	// PlanProject categorizes inventory against a project description.
	PlanProject(ctx context.Context, query string, inventory []PlanContext) (*ProjectPlan, error)

	// Advise returns free-text tool advice for a project question.
	Advise(ctx context.Context, query string, tools []ToolContext) (string, error)
}
