// Package errs defines the first-class error kinds loadforge reports for a
// request outcome. These are carried as struct fields on results, not
// propagated as bare Go errors up the call stack past the point where the
// kind is known.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why a request attempt did not produce a scored response.
type Kind string

const (
	KindConfig      Kind = "config"       // invalid flag/config combination
	KindPool        Kind = "pool"         // connection pool exhausted/rejected
	KindTransport   Kind = "transport"    // dial/TLS/read failure, retries exhausted
	KindProtocol    Kind = "protocol"     // malformed response, bad SSE framing
	KindTimeout     Kind = "timeout"      // context deadline exceeded
	KindCancelled   Kind = "cancellation" // context cancelled by caller/shutdown
	KindRateLimited Kind = "rate_limit"   // limiter refused to admit the request
	KindData        Kind = "data"         // dataset/prompt malformed or exhausted
)

// Error wraps an underlying cause with a Kind so callers can branch on
// outcome without string-matching error messages.
type Error struct {
	Kind  Kind
	Cause error

	// StatusCode is the originating HTTP status for a KindProtocol error
	// raised from a bad-status response; zero for every other Kind.
	StatusCode int
}

func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// NewStatus builds a KindProtocol error carrying the HTTP status that
// triggered it, so retry policy (§7: 5xx and 429 are retryable, other 4xx
// are not) can branch on it without parsing the error string.
func NewStatus(statusCode int, cause error) *Error {
	return &Error{Kind: KindProtocol, Cause: cause, StatusCode: statusCode}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
