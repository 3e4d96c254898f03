package review

import "errors"

var (
	// ErrNotFound is returned when the id resolves to no application.
	ErrNotFound = errors.New("application not found")
	// ErrTestIdentity is returned when acceptance is refused for a synthetic applicant.
	ErrTestIdentity = errors.New("cannot process test identity")
	// ErrConflict is returned when the application already holds the opposite terminal status.
	ErrConflict = errors.New("application already has a different terminal status")
	// ErrStore is returned when the status change could not be written.
	ErrStore = errors.New("status update not committed")
	// ErrStale is returned by Store.CompareAndSet when the row no longer has the expected status.
	ErrStale = errors.New("application status changed concurrently")
)

// Outcome codes rendered to the admin UI.
const (
	CodeNotFound     = "not_found"
	CodeTestIdentity = "test_identity"
	CodeConflict     = "conflict"
	CodeStoreFailure = "store_failure"
	CodeLockTimeout  = "busy"
)
