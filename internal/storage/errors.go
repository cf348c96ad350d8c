package storage

import (
	"errors"
	"fmt"
)

// ErrNoExportLink indicates the backend offers no export link for the requested type.
var ErrNoExportLink = errors.New("no export link for requested type")

// BackendError is returned when the backend answers outside the 200/204 success range.
type BackendError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error during %s (status %d): %s", e.Op, e.StatusCode, e.Body)
}

// IsBackendError reports whether err is, or wraps, a BackendError.
func IsBackendError(err error) bool {
	var target *BackendError
	return errors.As(err, &target)
}

// IsSuccess reports whether status is one the backend uses for success.
func IsSuccess(status int) bool {
	return status == 200 || status == 204
}
