// Package errs defines the error taxonomy shared across SortAI's
// components so that callers can branch on error kind instead of
// parsing messages or matching on adapter-specific sentinel values.
package errs

import (
	"errors"
	"fmt"
)

// Kind names one of the error categories from the error handling design.
type Kind int

const (
	// KindTransientIO is a temporary FS failure or lock contention; the
	// caller may retry with backoff.
	KindTransientIO Kind = iota
	// KindPermanentIO is a permission or space failure; retrying will
	// not help.
	KindPermanentIO
	// KindProvider is an LLM provider timeout, 5xx, or malformed
	// structured output; drives provider backoff and cascade.
	KindProvider
	// KindGuardrail is an attempt to mutate a user-edited node or a
	// strict depth violation.
	KindGuardrail
	// KindCollision is a destination-name collision the configured
	// resolution policy could not resolve.
	KindCollision
	// KindCorruption is a store schema or data corruption requiring
	// recovery mode.
	KindCorruption
	// KindCancelled marks cooperative cancellation; not a failure.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTransientIO:
		return "transient_io"
	case KindPermanentIO:
		return "permanent_io"
	case KindProvider:
		return "provider"
	case KindGuardrail:
		return "guardrail"
	case KindCollision:
		return "collision"
	case KindCorruption:
		return "corruption"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can use
// errors.As to recover it and branch on retryability.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, errs.New(errs.KindX, "", nil)) style checks:
// any *Error target matches when its Kind equals e's, regardless of
// identity, Op or cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a typed Error.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Retryable reports whether the error kind is worth retrying with
// backoff (transient I/O and provider failures), as opposed to
// permanent failures and guardrail violations that retrying cannot fix.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTransientIO, KindProvider:
		return true
	default:
		return false
	}
}

// KindOf extracts the Kind from err, returning ok=false if err is not
// (or does not wrap) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Sentinel errors for simple equality checks where a full Kind wrapper
// is unnecessary noise at the call site.
var (
	ErrNotFound          = errors.New("sortai: not found")
	ErrAlreadyExists      = errors.New("sortai: already exists")
	ErrUserEdited        = errors.New("sortai: node is user-edited")
	ErrAllProvidersFailed = errors.New("sortai: all_providers_failed")
)
