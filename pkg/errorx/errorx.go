// Package errorx carries coded errors across the HTTP boundary.
//
// A Coder pairs an internal error code with the HTTP status and the
// external message shown to clients; WrapC attaches a Coder and context
// to an underlying error without losing the chain.
package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Coder describes an error code known to the API surface.
type Coder struct {
	// Code is the stable business error code.
	Code int

	// HTTPStatus is the status the handler layer should respond with.
	HTTPStatus int

	// Message is the external, user-safe description.
	Message string
}

var (
	mu     sync.RWMutex
	coders = map[int]Coder{}
)

// Register records a Coder. Registering the same code twice panics:
// codes are compile-time constants and a collision is a programming error.
func Register(code int, httpStatus int, message string) Coder {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := coders[code]; ok {
		panic(fmt.Sprintf("errorx: code %d already registered", code))
	}
	c := Coder{Code: code, HTTPStatus: httpStatus, Message: message}
	coders[code] = c
	return c
}

// codedError is an error annotated with a Coder.
type codedError struct {
	coder Coder
	msg   string
	cause error
}

func (e *codedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *codedError) Unwrap() error { return e.cause }

// WrapC wraps err with a Coder and a formatted context message.
func WrapC(err error, coder Coder, format string, args ...interface{}) error {
	return &codedError{
		coder: coder,
		msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// NewC creates a fresh coded error with no underlying cause.
func NewC(coder Coder, format string, args ...interface{}) error {
	return &codedError{
		coder: coder,
		msg:   fmt.Sprintf(format, args...),
	}
}

// ParseCoder extracts the Coder from err, walking the wrap chain.
// Unknown errors map to a 500 with a generic message.
func ParseCoder(err error) Coder {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.coder
	}
	return Coder{
		Code:       1,
		HTTPStatus: http.StatusInternalServerError,
		Message:    "internal server error",
	}
}
