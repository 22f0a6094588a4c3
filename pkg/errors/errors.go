// Package errors defines the pipeline's error taxonomy: sentinel conditions
// shared by every stage, an AppError carrying an HTTP status, and the mapping
// from either to a response code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput marks malformed client input (blank query, bad id).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing source file or metadata record.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks an expired wait such as the download poll.
	ErrTimeout = errors.New("operation timed out")
	// ErrUpstream marks a transport failure or non-success status from a
	// collaborator service.
	ErrUpstream = errors.New("upstream failure")
	// ErrInconsistent marks a matched book with no metadata record.
	ErrInconsistent = errors.New("inconsistent index state")
	ErrInternal     = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// InvalidInput is shorthand for a 400 AppError.
func InvalidInput(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// NotFound is shorthand for a 404 AppError.
func NotFound(format string, args ...any) *AppError {
	return Newf(ErrNotFound, http.StatusNotFound, format, args...)
}

// Upstream is shorthand for a 502 AppError.
func Upstream(format string, args ...any) *AppError {
	return Newf(ErrUpstream, http.StatusBadGateway, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
