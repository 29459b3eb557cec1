// Package concept holds the error taxonomy shared by every concept. Each
// concept raises one of a closed set of tagged kinds; the HTTP boundary maps
// kinds to statuses and resolves any carried user ids to usernames before
// rendering.
package concept

import "fmt"

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindNotAllowed
	KindUnauthenticated
	KindAlreadySessioned
	KindValidation
	KindTransient
)

// Error is a business-rule failure. Msg is the fallback rendering with raw
// identifiers; UserIDs carries any embedded user ids in template order so a
// registered formatter can re-render the message with usernames.
type Error struct {
	Kind    Kind
	Code    string
	Msg     string
	UserIDs []string
}

func (e *Error) Error() string {
	return e.Msg
}

// WithUsers attaches the user ids embedded in the message.
func (e *Error) WithUsers(ids ...string) *Error {
	e.UserIDs = ids
	return e
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(code, format string, args ...any) *Error {
	return newError(KindNotFound, code, format, args...)
}

func NotAllowed(code, format string, args ...any) *Error {
	return newError(KindNotAllowed, code, format, args...)
}

func Unauthenticated(format string, args ...any) *Error {
	return newError(KindUnauthenticated, "unauthenticated", format, args...)
}

func AlreadySessioned() *Error {
	return newError(KindAlreadySessioned, "already_sessioned", "already logged in")
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, "validation", format, args...)
}

func Transient(format string, args ...any) *Error {
	return newError(KindTransient, "transient", format, args...)
}
