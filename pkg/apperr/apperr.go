// Package apperr defines the application error taxonomy shared by
// repositories, services and controllers.
//
// Every failure crossing a layer boundary carries a Kind. Repositories wrap
// driver errors, services add context with %w, and controllers map the Kind
// to an HTTP status with Status():
//
//	if err := service.DeleteCart(ctx, id); err != nil {
//	    c.Error(apperr.Status(err), err.Error())
//	    return
//	}
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	// Internal is the default for unexpected persistence or IO failures.
	Internal Kind = iota
	// NotFound: the identifier was well-formed but no record matched.
	NotFound
	// InvalidID: the identifier itself is malformed (bad ObjectID hex).
	InvalidID
	// BadRequest: the input is structurally wrong.
	BadRequest
	// Unauthorized: no authenticated identity.
	Unauthorized
	// Forbidden: authenticated but lacking the capability.
	Forbidden
	// Conflict: the resource already exists.
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NOT_FOUND"
	case InvalidID:
		return "INVALID_PARAM"
	case BadRequest:
		return "BAD_REQUEST"
	case Unauthorized:
		return "UNAUTHORIZED"
	case Forbidden:
		return "FORBIDDEN"
	case Conflict:
		return "CONFLICT"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// Error is a tagged application error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, apperr.E(kind)) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// E builds a tagged error. msg is optional; a wrapped cause can be attached
// with Wrap instead.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Ef builds a tagged error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and message.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err; unknown errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps an error to the HTTP status the boundary layer should write.
func Status(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case InvalidID, BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
