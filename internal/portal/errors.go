package portal

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/iliyamo/classsync/internal/model"
)

// APIError is a request the backend answered with a non-2xx status.
// Message holds the backend's "error" (or "message") field when present.
// Conflicts is filled for 409 answers of the slot endpoint.
type APIError struct {
	Status    int
	Message   string
	Conflicts []model.TimetableSlot
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("portal: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("portal: %d %s", e.Status, http.StatusText(e.Status))
}

// IsConflict reports whether the backend answered 409.
func (e *APIError) IsConflict() bool { return e.Status == http.StatusConflict }

// TransportError is a request that never produced a backend answer
// (DNS, connection refused, timeout, unreadable body).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// AsAPIError returns the APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsTransport reports whether err is a network failure rather than a
// backend answer.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Message returns the text a user should see for err: the backend's own
// message when it sent one, otherwise fallback.  Transport details are
// never returned.
func Message(err error, fallback string) string {
	if apiErr, ok := AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
