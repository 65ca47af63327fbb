package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls the outermost JSON object out of a model reply,
// tolerating markdown fences and surrounding prose.
func extractJSON(text string) (string, error) {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: no JSON object in reply", ErrUnparsable)
	}
	return clean[start : end+1], nil
}

// decodeReply parses a model reply into target. Any failure maps to
// ErrUnparsable so callers treat it as service unavailability, never as
// an empty successful result.
func decodeReply(text string, target any) error {
	raw, err := extractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return nil
}

// decodeLendingParse parses and normalizes a lending reply. Candidates
// without an id are dropped; unknown confidence values coerce to medium.
// An empty candidate list on a well-formed reply is a valid result,
// distinct from any decode failure.
func decodeLendingParse(text string) (*LendingParse, error) {
	var p LendingParse
	if err := decodeReply(text, &p); err != nil {
		return nil, err
	}

	kept := p.Candidates[:0]
	for _, c := range p.Candidates {
		if c.ID == "" {
			continue
		}
		if c.Confidence != ConfidenceHigh && c.Confidence != ConfidenceMedium {
			c.Confidence = ConfidenceMedium
		}
		kept = append(kept, c)
	}
	p.Candidates = kept
	return &p, nil
}

// decodeIDList parses replies of the shape {"<key>": ["ID1", ...]}.
func decodeIDList(text, key string) ([]string, error) {
	var m map[string]json.RawMessage
	if err := decodeReply(text, &m); err != nil {
		return nil, err
	}
	raw, ok := m[key]
	if !ok {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: %s is not a string list", ErrUnparsable, key)
	}
	return ids, nil
}

func decodeLocationUpdate(text string) (*LocationUpdate, error) {
	var u LocationUpdate
	if err := decodeReply(text, &u); err != nil {
		return nil, err
	}
	kept := u.Updates[:0]
	for _, a := range u.Updates {
		if a.ToolID == "" {
			continue
		}
		if a.Action != ActionRetire {
			a.Action = ActionMove
		}
		kept = append(kept, a)
	}
	u.Updates = kept
	return &u, nil
}

func decodeProjectPlan(text string) (*ProjectPlan, error) {
	var p ProjectPlan
	if err := decodeReply(text, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
