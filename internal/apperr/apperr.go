// Package apperr classifies the errors surfaced to chat clients.
package apperr

import "errors"

// Kind is the category of a client-facing error.
type Kind int

const (
	// Validation covers malformed or missing input, rejected before any state change.
	Validation Kind = iota + 1
	// Authorization covers insufficient role for group, ban or delete operations.
	Authorization
	// StateConflict covers already-friends, already-online, already-pending and similar.
	StateConflict
	// NotFound covers missing users, rooms, groups and messages.
	NotFound
	// Capacity covers oversized payloads.
	Capacity
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authorization:
		return "authorization"
	case StateConflict:
		return "state_conflict"
	case NotFound:
		return "not_found"
	case Capacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// Error is a client-facing error carrying a human-readable reason.
type Error struct {
	Kind Kind
	Msg  string
	// Silent errors are dropped instead of being reported to the client.
	Silent bool
}

func (e *Error) Error() string { return e.Msg }

// New returns a reportable error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Ignored returns an error that the transport drops without telling the client.
func Ignored(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Silent: true}
}

// KindOf reports the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsSilent reports whether err should be swallowed by the transport.
func IsSilent(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Silent
}

// Reason returns the message to show a client. Errors that are not *Error
// are internal and get a generic reason.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
