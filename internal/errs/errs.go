// Package errs defines the shared error-kind taxonomy of spec.md §7, so
// that every layer (validator, auth, rate limiter, triple store, browser,
// LLM provider, agent) reports failures the HTTP and MCP surfaces can map
// to a consistent status/observation without string-sniffing messages.
package errs

import "fmt"

// Kind classifies an Error for routing to an HTTP status or agent
// observation, per spec.md §7's policy table.
type Kind string

const (
	// Validator
	KindInputTooLarge       Kind = "InputTooLarge"
	KindSuspiciousContent   Kind = "SuspiciousContent"
	KindQueryTooLong        Kind = "QueryTooLong"
	KindDisallowedOperation Kind = "DisallowedOperation"
	KindDangerousOperation  Kind = "DangerousOperation"
	KindInvalidURL          Kind = "InvalidURL"

	// Auth
	KindUnauthorized Kind = "Unauthorized"
	KindForbidden    Kind = "Forbidden"

	// Rate limiter
	KindRateLimited Kind = "RateLimited"

	// Browser / handler
	KindNotFound           Kind = "NotFound"
	KindElementNotFound    Kind = "ElementNotFound"
	KindElementNotUsable   Kind = "ElementNotInteractable"
	KindNavigationTimeout  Kind = "NavigationTimeout"
	KindPoolExhausted      Kind = "PoolExhausted"

	// Triple store
	KindInvalidQuery Kind = "InvalidQuery"
	KindStorageFull  Kind = "StorageFull"
	KindCorrupted    Kind = "Corrupted"

	// LLM provider
	KindNetwork         Kind = "Network"
	KindInvalidResponse Kind = "InvalidResponse"
	KindAPI             Kind = "Api"
	KindTimeout         Kind = "Timeout"

	// Agent
	KindMaxIterations Kind = "MaxIterations"
	KindAgentTimeout  Kind = "AgentTimeout"

	// Catch-all
	KindInternal Kind = "Internal"
)

// Error is the typed error every component returns. Msg is safe to show a
// client; Cause (if any) is logged but never serialized.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error carrying cause for logging, without leaking it
// into Msg.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is allows errors.Is(err, errs.KindX) style checks via a sentinel kind
// comparison helper.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// HTTPStatus maps a Kind to the HTTP status spec.md §6/§7 require.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInputTooLarge, KindSuspiciousContent, KindQueryTooLong,
		KindDisallowedOperation, KindDangerousOperation, KindInvalidURL,
		KindInvalidQuery:
		return 400
	case KindUnauthorized:
		return 401
	case KindForbidden:
		return 403
	case KindNotFound, KindElementNotFound:
		return 404
	case KindRateLimited:
		return 429
	case KindNavigationTimeout, KindPoolExhausted, KindStorageFull:
		return 503
	default:
		return 500
	}
}
