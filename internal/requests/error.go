// Package requests holds the error type used to annotate failed HTTP requests.
package requests

import (
	"errors"
	"net/http"
)

// Error types understood by the API layer.
const (
	TypeInvalidJSON  = "invalid_json"
	TypeInvalidParam = "invalid_param"
	TypeNotFound     = "not_found"
	TypeValidation   = "validation"
	TypeUnconfigured = "unconfigured"
	TypeInternal     = "internal"
)

// Error is an HTTP request failure carrying a string type code and
// optional data for the client.
type Error struct {
	message string
	typ     string
	data    any
}

// New creates an Error. data may be nil.
func New(message, typ string, data any) *Error {
	return &Error{message: message, typ: typ, data: data}
}

func (e *Error) Error() string { return e.message }

// Type is a string code for the failure, like a status code but stable across
// transports.
func (e *Error) Type() string { return e.typ }

// Data returns the payload attached to the error, if any.
func (e *Error) Data() any { return e.data }

// StatusCode maps the error type to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.typ {
	case TypeInvalidJSON, TypeInvalidParam:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeValidation, TypeUnconfigured:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// As returns the *Error in err's chain, or wraps err as an internal error.
func As(err error) *Error {
	var reqErr *Error
	if errors.As(err, &reqErr) {
		return reqErr
	}
	return New(err.Error(), TypeInternal, nil)
}
