package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden access")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict") // e.g., email already registered
	ErrInternalServer     = errors.New("internal server error")
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("service unavailable") // e.g. code executor or AI endpoint down
	ErrRunInProgress      = errors.New("another run is already in progress")
	ErrMalformedDocument  = errors.New("malformed document")
	ErrMutationFailed     = errors.New("mutation failed")
)

// MutationFailedError is returned by every façade write that the store rejected.
// errors.Is matches both ErrMutationFailed and the underlying cause.
type MutationFailedError struct {
	Op    string
	Cause error
}

func (e *MutationFailedError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Cause)
}

func (e *MutationFailedError) Unwrap() error { return e.Cause }

func (e *MutationFailedError) Is(target error) bool { return target == ErrMutationFailed }

func MutationFailed(op string, cause error) error {
	return &MutationFailedError{Op: op, Cause: cause}
}

// SubscriptionError reports a change subscription that broke after it was attached.
type SubscriptionError struct {
	Collection string
	Cause      error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription on %s: %v", e.Collection, e.Cause)
}

func (e *SubscriptionError) Unwrap() error { return e.Cause }

// MalformedDocumentError names the document and field that failed decoding.
type MalformedDocumentError struct {
	Collection string
	ID         string
	Field      string
	Reason     string
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("document %s/%s: field %q %s", e.Collection, e.ID, e.Field, e.Reason)
}

func (e *MalformedDocumentError) Is(target error) bool { return target == ErrMalformedDocument }

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrRunInProgress) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return http.StatusServiceUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // Unique violation
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
