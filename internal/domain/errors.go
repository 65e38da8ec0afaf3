package domain

import "errors"

var (
	ErrUserIDEmpty        = errors.New("user id empty")
	ErrUserIDTooLong      = errors.New("user id too long")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

// Error kinds shared by the engine and its collaborators.
var (
	// ErrNotFound: the space or user is absent. Callers navigate away.
	ErrNotFound = errors.New("not found")
	// ErrTransport wraps any failed collaborator call.
	ErrTransport = errors.New("transport error")
	// ErrPermissionDenied is returned before any collaborator call when the
	// local identity lacks the role an action needs.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrForeignState marks a media bridge snapshot missing expected fields.
	ErrForeignState = errors.New("media bridge state anomaly")
	// ErrNoIdentity: the identity store has no current user.
	ErrNoIdentity = errors.New("no local identity")
)

var (
	ErrNoRoom      = errors.New("no active room session")
	ErrSpaceFull   = errors.New("space is full")
	ErrRateLimited = errors.New("too many requests")
)
