package store

import "errors"

// Error taxonomy for inventory operations. Handlers map these onto HTTP
// statuses with errors.Is; store functions wrap them with the failing
// precondition so rejections always state why.
var (
	// ErrNotFound means the referenced tool or person does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a precondition failed, e.g. borrowing a tool
	// that is not Available.
	ErrConflict = errors.New("conflict")

	// ErrValidation means malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrDenied means the caller lacks the required role.
	ErrDenied = errors.New("authorization denied")
)
