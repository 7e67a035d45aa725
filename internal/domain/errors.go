package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrConnectivity marks failures to reach the gateway (transport errors,
	// 5xx responses, degraded health).
	ErrConnectivity = errors.New("gateway unreachable")

	// ErrData marks responses that arrived but are malformed or miss
	// required fields.
	ErrData = errors.New("malformed gateway response")
)

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

// ConnectivityError reports that the gateway could not be reached or
// reported itself unhealthy. Op names the gateway operation ("health",
// "history", "send", "delete").
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + ErrConnectivity.Error()
	}
	return e.Op + ": " + ErrConnectivity.Error() + ": " + e.Err.Error()
}

func (e *ConnectivityError) Unwrap() error        { return e.Err }
func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }

// DataError reports a response that is missing expected fields or cannot be
// decoded.
type DataError struct {
	Op    string
	Field string
	Err   error
}

func (e *DataError) Error() string {
	msg := e.Op + ": " + ErrData.Error()
	if e.Field != "" {
		msg += ": missing " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataError) Unwrap() error        { return e.Err }
func (e *DataError) Is(target error) bool { return target == ErrData }

// Reason returns a short machine-readable classification of err for
// structured logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnectivity):
		return "connectivity"
	case errors.Is(err, ErrData):
		return "data"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "unknown"
	}
}
