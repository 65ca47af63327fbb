package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Candidate confidence levels. Anything else coerces to medium.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
)

// ToolContext is the tool data handed to the extractor as grounding
// context. It is a projection, never the full row.
type ToolContext struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Brand        string `json:"brand,omitempty"`
	ModelNo      string `json:"model_no,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Household    string `json:"household,omitempty"`
	Status       string `json:"status,omitempty"`
	Capabilities string `json:"capabilities,omitempty"`
}

// Candidate is one extractor-suggested tool match awaiting human
// confirmation.
type Candidate struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Household  string `json:"household,omitempty"`
	Confidence string `json:"confidence"`
}

// LendingParse is the structured result for a lend/borrow request.
type LendingParse struct {
	Candidates      []Candidate `json:"candidates"`
	CounterpartName string      `json:"counterpart_name,omitempty"`
	DurationDays    flexInt     `json:"duration_days,omitempty"`
	ForceOverride   bool        `json:"force_override,omitempty"`
}

// ToolParse is the structured result for a new-tool description.
type ToolParse struct {
	Name         string `json:"name"`
	Brand        string `json:"brand,omitempty"`
	ModelNo      string `json:"model_no,omitempty"`
	PowerSource  string `json:"power_source,omitempty"`
	Safety       string `json:"safety,omitempty"`
	Capabilities string `json:"capabilities,omitempty"`
	IsStationary bool   `json:"is_stationary,omitempty"`
}

// DuplicateVerdict is the advisory similarity judgment for a new tool.
type DuplicateVerdict struct {
	IsDuplicate bool   `json:"is_duplicate"`
	MatchName   string `json:"match_name,omitempty"`
	MatchOwner  string `json:"match_owner,omitempty"`
}

// Location update actions.
const (
	ActionMove   = "MOVE"
	ActionRetire = "RETIRE"
)

// LocationAction is one proposed move or retirement.
type LocationAction struct {
	ToolID       string `json:"tool_id"`
	Action       string `json:"action"`
	NewBin       string `json:"new_bin,omitempty"`
	NewHousehold string `json:"new_household,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// LocationUpdate is the structured result for a move/retire request.
type LocationUpdate struct {
	Updates []LocationAction `json:"updates"`
}

// PlanContext is the per-tool context for project planning. IsMine is
// computed locally from ownership, never inferred by the model.
type PlanContext struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Brand        string `json:"brand,omitempty"`
	IsMine       bool   `json:"is_mine"`
	Location     string `json:"location,omitempty"`
	Status       string `json:"status"`
	IsStationary bool   `json:"is_stationary"`
}

// ProjectPlan categorizes tools for a described project.
type ProjectPlan struct {
	Locate    []LocateItem    `json:"locate_list"`
	TrackDown []TrackDownItem `json:"track_down_list"`
	Borrow    []BorrowItem    `json:"borrow_list"`
	Missing   []MissingItem   `json:"missing_list"`
}

// LocateItem is a tool the requester already owns or houses.
type LocateItem struct {
	ToolName string `json:"tool_name"`
	Location string `json:"location,omitempty"`
}

// TrackDownItem is an owned tool currently out on loan.
type TrackDownItem struct {
	ToolName string `json:"tool_name"`
	HeldBy   string `json:"held_by,omitempty"`
}

// BorrowItem is a tool to borrow from another household.
type BorrowItem struct {
	Name      string `json:"name"`
	Household string `json:"household,omitempty"`
	ToolID    string `json:"tool_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// MissingItem is a tool nobody in the family owns.
type MissingItem struct {
	ToolName   string `json:"tool_name"`
	Importance string `json:"importance,omitempty"`
	Advice     string `json:"advice,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// flexInt tolerates the model emitting durations as either a JSON number
// or a quoted string. Unparsable values decode to zero rather than
// failing the whole result.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Tolerate floats like 7.0.
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			*f = 0
			return nil
		}
		n = int(fl)
	}
	*f = flexInt(n)
	return nil
}

func (f flexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(f))
}

// Int returns the plain value.
func (f flexInt) Int() int { return int(f) }
