package store

import "errors"

var (
	// ErrNoFields is returned by partial-update methods when the field map is
	// empty. An empty partial is rejected rather than silently applied so the
	// caller cannot mistake a dropped update for a persisted one.
	ErrNoFields = errors.New("no fields to update")

	// ErrUnknownField is returned when a partial update names a column that
	// is not updatable on the record kind.
	ErrUnknownField = errors.New("unknown field")

	// ErrBadTransition is returned when a message status change is not
	// permitted from the row's current state (e.g. retrying a sent message).
	ErrBadTransition = errors.New("invalid message status transition")

	// ErrNotFound is returned by update methods that matched no row.
	ErrNotFound = errors.New("record not found")
)
