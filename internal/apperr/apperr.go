// Package apperr defines the error taxonomy every authoritative
// operation returns. Each error carries a Kind the HTTP layer maps to a
// status code; errors.Is matches against the kind sentinels below.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
)

// Kind sentinels for errors.Is.
var (
	ErrValidation    = &Error{kind: KindValidation}
	ErrAuthorization = &Error{kind: KindAuthorization}
	ErrState         = &Error{kind: KindState}
	ErrConflict      = &Error{kind: KindConflict}
	ErrNotFound      = &Error{kind: KindNotFound}
)

type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string {
	if e.msg == "" {
		return string(e.kind)
	}
	return e.msg
}

func (e *Error) Kind() Kind { return e.kind }

// Is matches any *Error of the same kind, so
// errors.Is(err, apperr.ErrState) works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.kind == t.kind
}

func Validation(format string, args ...any) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

func Authorization(format string, args ...any) error {
	return &Error{kind: KindAuthorization, msg: fmt.Sprintf(format, args...)}
}

func State(format string, args ...any) error {
	return &Error{kind: KindState, msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{kind: KindConflict, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err, or "" if err is not an apperr.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return ""
}
