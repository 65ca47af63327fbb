package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hintze-labs/toolshed/internal/model"
)

// CreatePerson adds a family member to the roster. Email is the unique key.
func CreatePerson(ctx context.Context, db *sql.DB, p *model.Person) error {
	if p.Name == "" || p.Email == "" {
		return fmt.Errorf("%w: name and email required", ErrValidation)
	}
	if !model.ValidRole(p.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, p.Role)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO family (name, role, household, email) VALUES (?, ?, ?, ?)`,
		p.Name, p.Role, p.Household, p.Email,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: email %s already registered", ErrConflict, p.Email)
		}
		return fmt.Errorf("creating person: %w", err)
	}
	return nil
}

// GetPersonByEmail returns the roster entry for an email, or ErrNotFound.
func GetPersonByEmail(ctx context.Context, db *sql.DB, email string) (*model.Person, error) {
	p := &model.Person{}
	err := db.QueryRowContext(ctx,
		`SELECT name, role, household, email FROM family WHERE email = ?`, email,
	).Scan(&p.Name, &p.Role, &p.Household, &p.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: person %s", ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("getting person: %w", err)
	}
	return p, nil
}

// GetPersonByName returns the first roster entry with the given name, or
// ErrNotFound. Names are how tools reference owners and borrowers.
func GetPersonByName(ctx context.Context, db *sql.DB, name string) (*model.Person, error) {
	p := &model.Person{}
	err := db.QueryRowContext(ctx,
		`SELECT name, role, household, email FROM family WHERE name = ? ORDER BY email LIMIT 1`, name,
	).Scan(&p.Name, &p.Role, &p.Household, &p.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: person %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("getting person: %w", err)
	}
	return p, nil
}

// ListPeople returns the full roster ordered by name.
func ListPeople(ctx context.Context, db *sql.DB) ([]model.Person, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, role, household, email FROM family ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	defer rows.Close()

	var people []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.Name, &p.Role, &p.Household, &p.Email); err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// DeletePerson removes a roster entry. Tools owned by the removed person
// become ghosts until the reconciliation scanner reassigns or deletes them.
func DeletePerson(ctx context.Context, db *sql.DB, email string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM family WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: person %s", ErrNotFound, email)
	}
	return nil
}
