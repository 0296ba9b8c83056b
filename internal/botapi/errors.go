package botapi

import "fmt"

// ValidationError reports a local precondition failure. It is raised before
// any network call and never mutates cached state.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// FetchError reports a failed or malformed backend response for a read
// operation. Callers keep whatever cached state they already had.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// InstallError carries the backend's own message for a failed install or
// update. It is shown sticky in the loading dialog rather than auto-closed.
type InstallError struct {
	Message string
}

func (e *InstallError) Error() string { return e.Message }
