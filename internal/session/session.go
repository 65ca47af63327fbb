// Package session implements the conversational disambiguation protocol
// that turns free-text lending requests into confirmed inventory
// mutations. A session is an explicit serializable value persisted per
// caller; no stage of the flow lives in process globals, and no
// inventory mutation happens before commit.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hintze-labs/toolshed/internal/extract"
	"github.com/hintze-labs/toolshed/internal/store"
)

// Session states.
const (
	StateManual    = "MANUAL"
	StateExtracted = "EXTRACTED"
	StateRefine    = "REFINE"
	StateVerify    = "VERIFY"
	StateCommitted = "COMMITTED"
	StateCancelled = "CANCELLED"
)

// Session flows. Lend hands one of the actor's own tools to a
// counterpart; borrow takes another household's tool for the actor.
const (
	FlowLend   = "lend"
	FlowBorrow = "borrow"
)

// Session is the full serializable state of one disambiguation flow.
// Everything below RawText is provisional extractor output and is
// discarded on cancel or on a switch to manual entry.
type Session struct {
	ID             string `json:"id"`
	Flow           string `json:"flow"`
	Actor          string `json:"actor"`
	ActorRole      string `json:"actor_role"`
	ActorHousehold string `json:"actor_household"`
	State          string `json:"state"`
	RawText        string `json:"raw_text"`

	Candidates      []extract.Candidate `json:"candidates,omitempty"`
	ConfirmedIDs    []string            `json:"confirmed_ids,omitempty"`
	CounterpartName string              `json:"counterpart_name,omitempty"`
	DurationDays    int                 `json:"duration_days,omitempty"`
	ForceOverride   bool                `json:"force_override,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether no further transition is possible.
func (s *Session) Terminal() bool {
	return s.State == StateCommitted || s.State == StateCancelled
}

func (s *Session) clearProvisional() {
	s.Candidates = nil
	s.ConfirmedIDs = nil
	s.CounterpartName = ""
	s.DurationDays = 0
	s.ForceOverride = false
}

// NewSessionID mints a session identifier.
func NewSessionID() string {
	return "SES_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func save(ctx context.Context, db *sql.DB, s *Session) error {
	s.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return store.SaveSession(ctx, db, &store.SessionRecord{
		ID:      s.ID,
		Actor:   s.Actor,
		Flow:    s.Flow,
		State:   s.State,
		Payload: payload,
	})
}

// Load restores a persisted session by id.
func Load(ctx context.Context, db *sql.DB, id string) (*Session, error) {
	rec, err := store.GetSession(ctx, db, id)
	if err != nil {
		return nil, err
	}
	s := &Session{}
	if err := json.Unmarshal(rec.Payload, s); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return s, nil
}
