package optimizer

import "errors"

var (
	// ErrInvalidInput is returned before any attempt when the limit or the
	// initial plan is unusable.
	ErrInvalidInput = errors.New("invalid optimization input")

	// ErrCollaboratorUnavailable wraps a failure of the cost oracle or of a
	// tier. The partial result is returned alongside it.
	ErrCollaboratorUnavailable = errors.New("optimization collaborator unavailable")

	// ErrNoApplicableTier is returned when no registered tier accepts the
	// current cost.
	ErrNoApplicableTier = errors.New("no strategy tier applies")
)
