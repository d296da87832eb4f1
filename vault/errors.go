package vault

import "errors"

var (
	// ErrNotFound covers true absence and scope mismatch alike, so callers
	// cannot probe for resources in other tenants.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("already exists")
	// ErrDenied means the caller is a member but lacks the required role.
	ErrDenied = errors.New("insufficient permissions")
	// ErrNotMember means the caller has no membership in the project.
	ErrNotMember = errors.New("not a member of this project")
	// ErrCannotRemoveOwner protects the project owner from removal.
	ErrCannotRemoveOwner = errors.New("cannot remove the project owner")
	// ErrProjectLimit is returned when a plan's project quota is reached.
	ErrProjectLimit = errors.New("project limit reached")
)
