package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDimensionMismatch is returned by vector backends when an embedding
	// does not fit the dimensionality of the existing collection.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrModelNotFound is returned by generators and embedders when the
	// configured model is not installed on the collaborator.
	ErrModelNotFound = errors.New("model not found")
)

// Kind classifies a failure for the HTTP surface.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnavailable
)

// String names the kind for logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind onto a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified service failure carrying a human-actionable detail.
type Error struct {
	Kind   Kind
	Op     string // operation that failed (e.g. "query")
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error.
func NewError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

// KindOf reports the kind of err, or KindInternal if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
