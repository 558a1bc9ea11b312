package lifecycle

import "errors"

// Error taxonomy for transition attempts. Callers distinguish these with
// errors.Is: an invalid transition is a blocked action and never retried,
// while a concurrent modification is recoverable by re-fetching the task.
var (
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrMissingRequiredField   = errors.New("missing required field")
	ErrTaskNotFound           = errors.New("task not found")
)
