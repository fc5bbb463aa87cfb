package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoConnection is returned when a request is attempted before any
// connection details were set.
var ErrNoConnection = errors.New("no connection details configured")

// APIError is the error shape of a failed service request: an HTTP status
// code plus the {title, detail} problem body the service emits.
type APIError struct {
	Status int    `json:"-"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Title, e.Status, e.Detail)
}

// IsEndpointMissing reports whether err is the specific 404 shape the
// service emits when an optional endpoint is not implemented for the
// current dataset type. Callers treat this condition as a soft warning,
// not a hard failure.
func IsEndpointMissing(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		apiErr.Status == http.StatusNotFound &&
		apiErr.Title == "Not Found" &&
		apiErr.Detail == "Not Found"
}

// AsAPIError extracts the APIError from err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
