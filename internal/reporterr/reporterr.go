// Package reporterr provides the typed errors recorded on report jobs.
// A Kind classifies the failure so callers can decide whether it is a
// warning, a step failure or fatal to the job, without inspecting
// driver-specific error strings.
package reporterr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindConnection: database, remote host or monitoring backend unreachable or auth failure.
	KindConnection Kind = "connection"
	// KindItemNotFound: metric item or its metadata missing.
	KindItemNotFound Kind = "item_not_found"
	// KindEmptyData: valid item with zero samples in the window.
	KindEmptyData Kind = "empty_data"
	// KindCommand: a remote command or database query produced an error.
	KindCommand Kind = "command"
	// KindNoData: a chart had no contributing series and was skipped.
	KindNoData Kind = "no_data"
	// KindRender: chart or document rendering failed.
	KindRender Kind = "render"
	// KindSplice: template or content document missing or corrupt.
	KindSplice Kind = "splice"
	// KindCleanup: a scratch artifact expected to exist was absent.
	KindCleanup Kind = "cleanup"
	// KindTimeout: an external call exceeded its deadline.
	KindTimeout Kind = "timeout"
)

// Error is a classified pipeline error.
type Error struct {
	Kind    Kind
	Step    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Step != "" {
		prefix = e.Step + ": " + prefix
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a classified error. A context deadline in err turns the
// kind into KindTimeout.
func New(kind Kind, step, message string, err error) *Error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Step: step, Message: message, Err: err}
}

// Connection is shorthand for New(KindConnection, ...).
func Connection(step, message string, err error) *Error {
	return New(KindConnection, step, message, err)
}

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsWarning reports whether err is informational: the job keeps all
// other data and the document is still produced.
func IsWarning(err error) bool {
	switch KindOf(err) {
	case KindEmptyData, KindNoData, KindCleanup, KindItemNotFound:
		return true
	}
	return false
}

// Reason returns a human-readable explanation without driver internals.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case KindConnection:
		return fmt.Sprintf("could not connect to %s: %s", stepOr(e.Step, "source"), e.Message)
	case KindSplice:
		return "report document could not be assembled: " + e.Message
	case KindTimeout:
		return fmt.Sprintf("%s timed out: %s", stepOr(e.Step, "call"), e.Message)
	case KindItemNotFound:
		return "metric not found: " + e.Message
	case KindEmptyData:
		return "no data in period: " + e.Message
	case KindNoData:
		return "chart skipped, no data: " + e.Message
	}
	return e.Message
}

func stepOr(step, fallback string) string {
	if step == "" {
		return fallback
	}
	return step
}
