package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hintze-labs/toolshed/internal/model"
)

// GhostTools returns tools whose owner is set but no longer present in
// the family roster. These surface referential-integrity drift after a
// person is removed; remediation is ReassignTools or DeleteTool.
func GhostTools(ctx context.Context, db *sql.DB) ([]model.Tool, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+toolColumns+` FROM tools
		 WHERE owner IS NOT NULL AND owner != ''
		   AND owner NOT IN (SELECT name FROM family)
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning for ghost tools: %w", err)
	}
	defer rows.Close()

	return scanTools(rows)
}
