package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrOwnerContinuity indicates a mutation would leave a project with no
	// member whose effective approve & merge capability is true.
	ErrOwnerContinuity = errors.New("owner continuity violation")
	// ErrUnknownCapability indicates a reference to a key outside the catalog.
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrIncompletePreset indicates a preset missing a catalog key at registration.
	ErrIncompletePreset = errors.New("incomplete preset")
	// ErrForbidden indicates the actor lacks the capability for the operation.
	ErrForbidden = errors.New("forbidden")
)
