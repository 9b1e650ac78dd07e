// Package apperr defines the error taxonomy shared by services and handlers
// and maps each class to an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned when a protected write has no identity.
	ErrUnauthenticated = errors.New("unauthorized")
	// ErrInsufficientSeats is returned under the strict seat policy.
	ErrInsufficientSeats = errors.New("not enough seats available")
)

// NotFound wraps ErrNotFound with the entity name, e.g. "ride not found".
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// ValidationError reports missing or malformed input fields.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// Missing builds the ValidationError used for absent required fields.
func Missing(fields ...string) *ValidationError {
	return &ValidationError{Message: "missing required fields", Fields: fields}
}

// Invalid builds a ValidationError for a single malformed value.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Message: message, Fields: []string{field}}
}

// TransitionError is returned for a booking status change the workflow
// does not allow.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition booking from %q to %q", e.From, e.To)
}

// Status maps err onto an HTTP status code.
func Status(err error) int {
	var verr *ValidationError
	var terr *TransitionError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &terr), errors.Is(err, ErrInsufficientSeats):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Details returns the optional structured payload for an error body.
func Details(err error) any {
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		return map[string][]string{"fields": verr.Fields}
	}
	var terr *TransitionError
	if errors.As(err, &terr) {
		return map[string]string{"from": terr.From, "to": terr.To}
	}
	return nil
}
