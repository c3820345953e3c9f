package generation

import "fmt"

// InvalidInputError rejects a request before any upstream work.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UpstreamUnavailableError wraps a failure of the image generator or the data
// store. The underlying message is kept verbatim; callers decide on retries.
type UpstreamUnavailableError struct {
	Op  string
	Err error
}

func (e *UpstreamUnavailableError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }
