// Package adterr defines the error taxonomy shared by the domain services
// and the HTTP layer. Domain code wraps these sentinels with context via
// fmt.Errorf and %w; the HTTP layer maps them to status codes with errors.Is.
package adterr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks missing or malformed input. Maps to 400.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced entity that does not exist. Maps to 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an invariant violation, e.g. admitting into an
	// occupied bed or discharging an already-discharged admission. Maps to 409.
	ErrConflict = errors.New("conflict")
)

// Validationf returns a validation error with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// NotFoundf returns a not-found error with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// Conflictf returns a conflict error with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConflict}, args...)...)
}

// Status returns the HTTP status code for err. Unknown errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-safe message for err. Internal errors never leak
// their detail to the client; the detail belongs in the server log.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
