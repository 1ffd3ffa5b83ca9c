// Package errclass classifies fetch and write failures into a small closed
// set of classes. A failure is classified once, where it is first observed,
// and every later decision (retry, reporting) reads the class instead of the
// raw message.
package errclass

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"regexp"
	"strings"
)

// Class is the classification of a failure.
type Class string

const (
	// RateLimit is a rate-limit response from the transcript host.
	RateLimit Class = "rate_limit"

	// NotFound means the requested resource does not exist.
	NotFound Class = "not_found"

	// Disabled means the resource exists but the feature is turned off for it.
	Disabled Class = "disabled"

	// Network represents transport failures (timeouts, resets, DNS).
	Network Class = "network"

	// IO represents local file system failures.
	IO Class = "io"

	// Invalid represents malformed input or responses.
	Invalid Class = "invalid"

	// Cancelled means the context was cancelled or timed out while waiting.
	Cancelled Class = "cancelled"

	// Unknown is everything else.
	Unknown Class = "unknown"
)

// Error is a classified failure.
type Error struct {
	Class   Class
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return fmt.Sprintf("%s: %v", e.Class, e.Err)
		}
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error without an underlying cause.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Wrap attaches a class to err. A nil err yields nil.
func Wrap(class Class, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: class, Message: message, Err: err}
}

var (
	rateLimitPattern = regexp.MustCompile(`(?i)\b429\b|too many requests|rate[ -]?limit`)
	notFoundPattern  = regexp.MustCompile(`(?i)\b404\b|not found|no transcript`)
	disabledPattern  = regexp.MustCompile(`(?i)disabled`)
)

// Classify returns the class of err. An error that already carries a class
// keeps it; anything else is classified from its type and, as a last resort,
// its message.
func Classify(err error) Class {
	if err == nil {
		return ""
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Class
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}

	// A rate-limit message wins over the error's concrete type.
	msg := err.Error()
	switch {
	case rateLimitPattern.MatchString(msg):
		return RateLimit
	case disabledPattern.MatchString(msg):
		return Disabled
	case notFoundPattern.MatchString(msg):
		return NotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Network
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return IO
	}

	lower := strings.ToLower(msg)
	if strings.Contains(lower, "connection reset") || strings.Contains(lower, "connection refused") {
		return Network
	}

	return Unknown
}

// WrapIO wraps an output failure as IO, keeping Cancelled when err is a
// cancellation.
func WrapIO(msg string, err error) error {
	if err == nil {
		return nil
	}
	if Classify(err) == Cancelled {
		return Wrap(Cancelled, msg, err)
	}
	return Wrap(IO, msg, err)
}

// Retryable reports whether a failure of the given class should be retried.
func Retryable(class Class) bool {
	switch class {
	case RateLimit:
		return true
	default:
		return false
	}
}

// Of classifies err and returns it as a *Error, reusing err when it already
// is one.
func Of(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return &Error{Class: Classify(err), Err: err}
}
