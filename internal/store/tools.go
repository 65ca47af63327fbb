package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hintze-labs/toolshed/internal/model"
)

const toolColumns = `id, name, brand, model_no, power_source, owner, household,
	bin_location, is_stationary, status, borrower, return_date, capabilities, safety_rating`

// NewToolID mints a registry id in the TOOL_XXXXXX format.
func NewToolID() string {
	return "TOOL_" + strings.ToUpper(uuid.New().String()[:6])
}

// CreateTool inserts a new tool. New tools always start Available with no
// borrower; the id is minted here and never changes afterwards.
func CreateTool(ctx context.Context, db *sql.DB, t *model.Tool) (*model.Tool, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("%w: tool name required", ErrValidation)
	}
	if t.Owner == "" || t.Household == "" {
		return nil, fmt.Errorf("%w: owner and household required", ErrValidation)
	}
	if t.SafetyRating == "" {
		t.SafetyRating = model.SafetyOpen
	}
	if !model.ValidSafetyRating(t.SafetyRating) {
		return nil, fmt.Errorf("%w: unknown safety rating %q", ErrValidation, t.SafetyRating)
	}
	if t.PowerSource == "" {
		t.PowerSource = model.PowerManual
	}
	if !model.ValidPowerSource(t.PowerSource) {
		return nil, fmt.Errorf("%w: unknown power source %q", ErrValidation, t.PowerSource)
	}

	id := t.ID
	if id == "" {
		id = NewToolID()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO tools (id, name, brand, model_no, power_source, owner, household,
		     bin_location, is_stationary, status, borrower, return_date, capabilities, safety_rating)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)`,
		id, t.Name, t.Brand, t.ModelNo, t.PowerSource, t.Owner, t.Household,
		t.BinLocation, t.IsStationary, model.StatusAvailable, t.Capabilities, t.SafetyRating,
	)
	if err != nil {
		return nil, fmt.Errorf("creating tool: %w", err)
	}

	return GetTool(ctx, db, id)
}

// GetTool returns a tool by ID, or ErrNotFound.
func GetTool(ctx context.Context, db *sql.DB, id string) (*model.Tool, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE id = ?`, id)
	t, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: tool %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting tool: %w", err)
	}
	return t, nil
}

// ToolFilter narrows ListTools. Zero values mean "any".
type ToolFilter struct {
	Status    string
	Owner     string
	Household string
	Borrower  string
}

// ListTools returns tools matching the filter, ordered by name.
func ListTools(ctx context.Context, db *sql.DB, f ToolFilter) ([]model.Tool, error) {
	query := `SELECT ` + toolColumns + ` FROM tools WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Owner != "" {
		query += ` AND owner = ?`
		args = append(args, f.Owner)
	}
	if f.Household != "" {
		query += ` AND household = ?`
		args = append(args, f.Household)
	}
	if f.Borrower != "" {
		query += ` AND borrower = ?`
		args = append(args, f.Borrower)
	}

	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	defer rows.Close()

	return scanTools(rows)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTool(r rowScanner) (*model.Tool, error) {
	t := &model.Tool{}
	var brand, modelNo, bin, caps, borrower sql.NullString
	var returnDate sql.NullTime
	err := r.Scan(&t.ID, &t.Name, &brand, &modelNo, &t.PowerSource, &t.Owner, &t.Household,
		&bin, &t.IsStationary, &t.Status, &borrower, &returnDate, &caps, &t.SafetyRating)
	if err != nil {
		return nil, err
	}
	t.Brand = brand.String
	t.ModelNo = modelNo.String
	t.BinLocation = bin.String
	t.Capabilities = caps.String
	if borrower.Valid {
		t.Borrower = &borrower.String
	}
	if returnDate.Valid {
		d := returnDate.Time
		t.ReturnDate = &d
	}
	return t, nil
}

func scanTools(rows *sql.Rows) ([]model.Tool, error) {
	var tools []model.Tool
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tool: %w", err)
		}
		tools = append(tools, *t)
	}
	return tools, rows.Err()
}
