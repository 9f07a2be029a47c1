package chat

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by Chat when the request was aborted, either
// through the caller's context or through CancelSession/CancelAll.
var ErrCancelled = errors.New("chat request cancelled")

// APIError is a non-2xx response from a provider endpoint. Body holds a
// truncated copy of the response body for diagnostics.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}
