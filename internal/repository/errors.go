package repository

import "errors"

// Duplicate-key and constraint errors surfaced to handlers so they
// can answer 409 instead of a bare 500.
var (
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
	ErrRoleNameExists = errors.New("role name already exists")
	ErrRoleInUse      = errors.New("role is referenced by users")
)
