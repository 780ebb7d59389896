package remote

import "errors"

var (
	// ErrNotFound indicates the addressed document does not exist. Callers
	// use it to take the create path instead of the update path.
	ErrNotFound = errors.New("remote: not found")

	// ErrAlreadyExists indicates a create collided with the store's pairKey
	// uniqueness constraint. The caller should re-query and converge on the
	// existing document.
	ErrAlreadyExists = errors.New("remote: already exists")

	// ErrUnavailable indicates the remote store could not be reached or the
	// connection dropped mid-operation. Retryable.
	ErrUnavailable = errors.New("remote: unavailable")

	// ErrTimeout indicates an operation exceeded its deadline. Reported
	// distinctly from ErrUnavailable so hung calls are diagnosable.
	ErrTimeout = errors.New("remote: operation timed out")
)
