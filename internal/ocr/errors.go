package ocr

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by errors.Is against an *Error.
var (
	ErrTransient = errors.New("transient OCR failure")
	ErrPermanent = errors.New("permanent OCR failure")
)

// Kind classifies an OCR failure.
type Kind int

// Failure kinds.
const (
	Transient Kind = iota
	Permanent
)

func (k Kind) String() string {
	if k == Transient {
		return "transient"
	}
	return "permanent"
}

// Error is a failed OCR request.
type Error struct {
	Err        error // Underlying cause, if any
	Detail     string
	Kind       Kind
	StatusCode int
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("ocr %s error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	sentinel := ErrPermanent
	if e.Kind == Transient {
		sentinel = ErrTransient
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

func transientError(status int, detail string, cause error) *Error {
	return &Error{Kind: Transient, StatusCode: status, Detail: detail, Err: cause}
}

func permanentError(status int, detail string, cause error) *Error {
	return &Error{Kind: Permanent, StatusCode: status, Detail: detail, Err: cause}
}
