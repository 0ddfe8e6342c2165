package message

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no message with the given id exists.
	ErrNotFound = errors.New("message not found")

	// ErrStoreUnavailable means the backing store could not be reached, so
	// it is unknown whether the message exists. Callers may retry;
	// ErrNotFound callers should not.
	ErrStoreUnavailable = errors.New("message store unavailable")
)

// ValidationError reports a missing or malformed input field. It is the
// caller's fault and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
