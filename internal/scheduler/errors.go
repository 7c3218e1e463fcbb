package scheduler

import "errors"

// Validation-time errors. They are raised synchronously before any queue
// item is created; delivery failures are never surfaced this way.
var (
	ErrMissingUser         = errors.New("user id is required")
	ErrPreferencesDisabled = errors.New("notifications disabled for user")
	ErrCategoryDisabled    = errors.New("notification category disabled for user")
)
