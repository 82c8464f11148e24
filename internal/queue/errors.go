package queue

import "errors"

var (
	// ErrStaleClaim is returned by Complete and Fail when the caller's claim
	// is no longer the item's current claim. The item is left untouched.
	ErrStaleClaim = errors.New("claim is no longer current")
	// ErrNotFound indicates the referenced item does not exist.
	ErrNotFound = errors.New("work item not found")
	// ErrInvalidItem indicates an enqueue request is missing required fields.
	ErrInvalidItem = errors.New("invalid work item")
	// ErrUnsupportedPayload indicates a payload written by a newer schema.
	ErrUnsupportedPayload = errors.New("unsupported payload schema")
)

// ErrorClassifier allows errors to declare their classification.
// Stores wrap connection and disk failures with kind "unavailable" so
// callers can decide to back off and retry the store call.
type ErrorClassifier interface {
	ErrorKind() string
}

// UnavailableError marks a store operation that failed because the backing
// storage could not be reached.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return e.Op + ": store unavailable: " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ErrorKind implements ErrorClassifier.
func (e *UnavailableError) ErrorKind() string { return "unavailable" }

// IsUnavailable reports whether err means the store could not be reached.
// Callers apply their own backoff before retrying; the queue never retries.
func IsUnavailable(err error) bool {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind() == "unavailable"
	}
	return false
}
