// Package apperr holds the error kinds shared by the order, order-mode and
// push packages, and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure so the HTTP boundary can pick a status code
// without knowing which package produced it.
type Kind string

const (
	NotFound        Kind = "not_found"
	InvalidArgument Kind = "invalid_argument"
	Conflict        Kind = "conflict"
	InvalidState    Kind = "invalid_state"
	FeatureDisabled Kind = "feature_disabled"
	Upstream        Kind = "upstream_failure"
)

// Kind sentinels. errors.Is(err, ErrNotFound) is true for every *Error of
// kind NotFound regardless of its message.
var (
	ErrNotFound        = &Error{Kind: NotFound}
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrConflict        = &Error{Kind: Conflict}
	ErrInvalidState    = &Error{Kind: InvalidState}
	ErrFeatureDisabled = &Error{Kind: FeatureDisabled}
	ErrUpstream        = &Error{Kind: Upstream}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying error. A nil err yields nil.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind, plus message when the target carries one. That lets
// package sentinels (ErrOrderNotFound) and kind sentinels (ErrNotFound) both
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// the error is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing message for err. Upstream and
// unclassified errors are reduced to a generic text so driver details do
// not leak into responses.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == Upstream {
		return "internal server error"
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error()
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case InvalidArgument, InvalidState, FeatureDisabled:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error payload returned by every handler.
type Body struct {
	Message string `json:"message"`
	Code    Kind   `json:"code,omitempty"`
}

func BodyOf(err error) Body {
	return Body{Message: Message(err), Code: KindOf(err)}
}
