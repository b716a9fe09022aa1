package auth

import "errors"

// Sentinel errors returned by the authority and the permission
// helpers. Handlers map these onto HTTP statuses; everything that
// means "this credential does not authenticate" collapses into
// ErrInvalidToken so callers cannot probe which check failed.
var (
	// ErrInvalidToken covers malformed, badly signed, expired,
	// revoked and unknown tokens alike.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrInactiveUser is returned when credentials resolve to a
	// deactivated account.
	ErrInactiveUser = errors.New("auth: user inactive")

	// ErrNotFound is the storage contracts' not-found result, so
	// implementations do not leak their driver's sentinel.
	ErrNotFound = errors.New("auth: not found")

	// ErrLastAdmin rejects deleting or deactivating the only
	// remaining active admin user.
	ErrLastAdmin = errors.New("auth: operation would remove the last admin")

	// ErrSystemRole rejects deleting a system role or changing its
	// admin flag.
	ErrSystemRole = errors.New("auth: system role is protected")
)
