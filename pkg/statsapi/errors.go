package statsapi

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ErrorKind classifies query errors so callers can decide what to surface.
type ErrorKind string

const (
	// ErrorKindValidation marks a query rejected before any network call.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindNetwork marks transport failures and timeouts.
	ErrorKindNetwork ErrorKind = "network"

	// ErrorKindServer marks non-2xx responses from the statistics service.
	ErrorKindServer ErrorKind = "server"

	// ErrorKindCancelled marks requests superseded or cancelled by the
	// caller. Never shown to the user as a failure.
	ErrorKindCancelled ErrorKind = "cancelled"

	// ErrorKindDataShape marks responses missing required fields.
	ErrorKindDataShape ErrorKind = "data_shape"
)

// QueryError is a statistics-query error with its classification.
type QueryError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.StatusCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("stats %s error (status %d): %s: %v",
				e.Kind, e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("stats %s error (status %d): %s",
			e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("stats %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("stats %s error: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or the empty kind for errors
// that are not QueryErrors.
func KindOf(err error) ErrorKind {
	var qerr *QueryError
	if errors.As(err, &qerr) {
		return qerr.Kind
	}
	return ""
}

// IsCancellation reports whether err represents a superseded or cancelled
// request, which must never be surfaced to the user as a failure.
func IsCancellation(err error) bool {
	return KindOf(err) == ErrorKindCancelled
}

// shouldRetry determines whether an error is worth retrying.
func shouldRetry(err *QueryError) bool {
	switch err.Kind {
	case ErrorKindNetwork:
		// Transport failures and timeouts are transient.
		return true
	case ErrorKindServer:
		// 5xx may recover; 4xx means the request itself is wrong.
		return err.StatusCode >= 500
	default:
		// Validation, data-shape and cancellation errors never recover
		// by retrying the same request.
		return false
	}
}
