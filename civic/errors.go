package civic

import "fmt"

// ValidationError reports a client-side input problem. It is returned before
// any network call is attempted, so a request that fails validation has no
// observable effect on store or server state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
