// Package errkind classifies the error taxonomy shared across crabclaw's
// components: config, I/O, network, auth, API, rate-limit and
// serialization failures.
package errkind

import "fmt"

// Kind identifies the category of a Error.
type Kind string

const (
	Config        Kind = "config"
	IO            Kind = "io"
	Network       Kind = "network"
	Auth          Kind = "auth"
	API           Kind = "api"
	RateLimit     Kind = "rate_limit"
	Serialization Kind = "serialization"
)

// Error wraps an underlying cause with a Kind for classification by
// callers that need to branch on error category.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Kind == kind
}
