package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt builders. Context data is rendered as compact line-per-tool
// tables; user input is delimited so instructions in it stay inert.

func toolLines(tools []ToolContext) string {
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "ID: %s | Name: %s | Brand: %s | Model: %s | Owner: %s | House: %s | Status: %s | Cap: %s\n",
			t.ID, t.Name, t.Brand, t.ModelNo, t.Owner, t.Household, t.Status, t.Capabilities)
	}
	return b.String()
}

func lendingPrompt(query string, tools []ToolContext, people []string) string {
	names, _ := json.Marshal(people)
	return fmt.Sprintf(`Lending Assistant. QUERY: <user_input>%s</user_input>
TOOLS:
%s
FAMILY: %s

OUTPUT JSON:
{
  "candidates": [ {"id": "ID", "name": "Name", "household": "House", "confidence": "high/medium"} ],
  "counterpart_name": "Name",
  "duration_days": 7,
  "force_override": true/false
}
Only include candidates actually present in TOOLS. Use confidence "high"
only for unambiguous matches.`, query, toolLines(tools), names)
}

func newToolPrompt(raw string) string {
	return fmt.Sprintf(`Analyze tool description. INPUT: <user_input>%s</user_input>
REQUIREMENTS: Name (Title Case), Brand, Model, Power, Safety, Capabilities, Stationary.
Power is one of: Manual, Corded, Battery, Gas, Pneumatic, Hydraulic.
Safety is one of: Open, Supervised, Adult Only.
OUTPUT JSON: { "name": "...", "brand": "...", "model_no": "...", "power_source": "...", "safety": "...", "capabilities": "...", "is_stationary": true/false }`, raw)
}

func duplicatePrompt(candidate *ToolParse, existing []ToolContext) string {
	var lines []string
	for _, t := range existing {
		lines = append(lines, fmt.Sprintf("Name: %s | Brand: %s | Model: %s | Owner: %s", t.Name, t.Brand, t.ModelNo, t.Owner))
	}
	existingJSON, _ := json.Marshal(lines)
	return fmt.Sprintf(`Check for duplicates.
NEW: %s %s %s
EXISTING: %s
OUTPUT JSON: { "is_duplicate": true/false, "match_name": "...", "match_owner": "..." }`,
		candidate.Name, candidate.Brand, candidate.ModelNo, existingJSON)
}

func filterPrompt(query string, tools []ToolContext) string {
	return fmt.Sprintf(`Search Engine. Query: <user_input>%s</user_input>
Inventory:
%s
Return JSON list of matching IDs: { "match_ids": ["ID1", "ID2"] }`, query, toolLines(tools))
}

func deletionPrompt(query string, tools []ToolContext) string {
	return fmt.Sprintf(`Admin Deletion Helper.
QUERY: <user_input>%s</user_input>
INVENTORY:
%s
TASK: Return a JSON list of IDs that match the deletion criteria.
OUTPUT JSON: { "delete_ids": ["ID1", "ID2"] }`, query, toolLines(tools))
}

func locationPrompt(query string, tools []ToolContext) string {
	return fmt.Sprintf(`Inventory Manager. REQUEST: <user_input>%s</user_input>
TOOLS:
%s
TASK: Identify action (MOVE or RETIRE).
OUTPUT JSON: { "updates": [ { "tool_id": "...", "action": "MOVE/RETIRE", "new_bin": "...", "new_household": "...", "reason": "..." } ] }`, query, toolLines(tools))
}

func planPrompt(query string, inventory []PlanContext) string {
	inv, _ := json.Marshal(inventory)
	return fmt.Sprintf(`You are the family Tool Manager.
PROJECT: <user_input>%s</user_input>
INVENTORY: %s

TASK: Categorize tools into lists.

CRITICAL LOGIC RULES:
1. CHECK 'is_mine' FIRST: if the user owns a tool ('is_mine': true), ALWAYS put it in "locate_list", even when it is only a functional equivalent.
2. NO REDUNDANT BORROWING: do not suggest borrowing a tool when a functional equivalent is already in "locate_list".
3. STATUS CHECK: if 'is_mine' is true but the status says borrowed, put it in "track_down_list".
4. MISSING: only tools the family owns nothing similar to.

OUTPUT JSON structure:
{
  "locate_list": [{"tool_name": "Exact Name from Inventory", "location": "Location field"}],
  "track_down_list": [{"tool_name": "Exact Name", "held_by": "Borrower Name"}],
  "borrow_list": [{"name": "Tool Name", "household": "Owner House", "tool_id": "ID", "reason": "Why needed"}],
  "missing_list": [{"tool_name": "Tool Name", "importance": "High/Med/Low", "advice": "Buy/Rent", "reason": "Why needed"}]
}`, query, inv)
}

func advicePrompt(query string, tools []ToolContext) string {
	var b strings.Builder
	for _, t := range tools {
		details := strings.TrimSpace(t.Brand + " " + t.ModelNo)
		fmt.Fprintf(&b, "- %s [%s] (Caps: %s)\n", t.Name, details, t.Capabilities)
	}
	return fmt.Sprintf(`You are the family Tool Manager.
Analyze the user's project and recommend tools from the INVENTORY.
INVENTORY:
%s
USER QUESTION: <user_input>%s</user_input>`, b.String(), query)
}
