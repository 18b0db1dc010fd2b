package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	KindUnexpected Kind = iota
	KindUnauthorized
	KindValidation
	KindState
	KindNotFound
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unexpected"
	}
}

// Error is a classified application error. Code is a stable reason code for logs,
// Message is what the caller sees.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind and code so that wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

func Unauthorized(code, msg string) *Error { return &Error{Kind: KindUnauthorized, Code: code, Message: msg} }
func Validation(code, msg string) *Error   { return &Error{Kind: KindValidation, Code: code, Message: msg} }
func State(code, msg string) *Error        { return &Error{Kind: KindState, Code: code, Message: msg} }
func NotFound(code, msg string) *Error     { return &Error{Kind: KindNotFound, Code: code, Message: msg} }

// Upstream marks a failure of an external collaborator (sheet, webhook).
func Upstream(code, msg string, cause error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: msg, Err: cause}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// CodeOf reports the reason code of err, "internal" when unclassified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// Message returns the caller-facing message. Unclassified errors surface their raw text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindUpstream && e.Err != nil {
			return e.Error()
		}
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation, KindState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
