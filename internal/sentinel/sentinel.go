package sentinel

import "errors"

// Sentinel dependency errors. Dependencies should return these (optionally
// wrapped) so ledgers can translate them into domain errors exactly once.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
