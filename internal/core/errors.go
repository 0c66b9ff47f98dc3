package core

import "errors"

// Error taxonomy shared across services. Handlers branch on these with
// errors.Is to pick the right HTTP status; services wrap them with
// context via fmt.Errorf("...: %w", Err...).
var (
	// ErrNotFound: the referenced session, message, or catalog entry
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation: the request is malformed (bad rating, empty body,
	// unknown slug in an import payload).
	ErrValidation = errors.New("invalid request")

	// ErrPermission: the entity exists but the operation is not allowed
	// in its current state (terminal session, premature feedback).
	ErrPermission = errors.New("not permitted")

	// ErrExternal: a collaborator call failed, timed out, or returned
	// unparsable output. Pipelines recover from this with a fallback
	// decision; it must never surface as a crash.
	ErrExternal = errors.New("external service failure")
)
