package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and upstream clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store / upstream system
// - ErrConflict: unique constraint or concurrent-write conflict
// - ErrStaleStatus: row status no longer matches the expected precondition
// - ErrInvalidState: entity in wrong state for requested transition
// - ErrUnavailable: upstream feed or service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStaleStatus  = errors.New("status changed since read")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
