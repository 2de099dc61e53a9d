// Package dacerr implements the closed error taxonomy shared by the Token
// Manager, API Client and Reconciler. No layer throws across the
// reconciliation boundary except the fatal datasets-fetch path; every other
// failure is surfaced as a *Error with a Kind from this taxonomy so callers
// can branch on disposition instead of inspecting strings.
package dacerr

import "fmt"

// Kind is one member of the closed error taxonomy.
type Kind string

const (
	KindTokenExpired        Kind = "TokenExpired"
	KindInvalidTokenResponse Kind = "InvalidTokenResponse"
	KindBadRequest           Kind = "BadRequest"
	KindNotFound             Kind = "NotFound"
	KindTooManyRequests      Kind = "TooManyRequests"
	KindGatewayTimeout       Kind = "GatewayTimeout"
	KindConnReset            Kind = "ConnReset"
	KindServerError          Kind = "ServerError"
	KindSchemaFailure        Kind = "SchemaFailure"
	KindFatalBootstrap       Kind = "FatalBootstrap"
)

// Error is the tagged result type used in place of exception-for-control-flow.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var de *Error
	if e, ok := err.(*Error); ok {
		de = e
	} else {
		return false
	}
	return de.Kind == kind
}

// Retryable reports whether the disposition for this kind is a single
// transport-level retry (§4.2: 429, 504, connection reset).
func (k Kind) Retryable() bool {
	switch k {
	case KindTooManyRequests, KindGatewayTimeout, KindConnReset:
		return true
	default:
		return false
	}
}
