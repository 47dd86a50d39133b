// Package apierr implements the error taxonomy from spec §7: every failure
// the core produces carries a Code the HTTP surface maps to a status code.
package apierr

import (
	"errors"
	"fmt"
)

// Code classifies a core failure for the HTTP surface.
type Code int

const (
	// Internal covers unexpected failures; maps to 500.
	Internal Code = iota
	// ParamValidation covers malformed input; maps to 400.
	ParamValidation
	// AssertionFailure means the pipeline produced nothing; maps to 404.
	AssertionFailure
	// DownstreamFailure means an upstream call failed after retries; maps
	// to 500 unless a stale cache fallback absorbs it.
	DownstreamFailure
)

func (c Code) String() string {
	switch c {
	case ParamValidation:
		return "ParamValidation"
	case AssertionFailure:
		return "AssertionFailure"
	case DownstreamFailure:
		return "DownstreamFailure"
	default:
		return "Internal"
	}
}

// Error is a taxonomy-tagged error that wraps its cause.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error with no cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Wrap tags err with code, preserving it as the cause.
func Wrap(code Code, msg string, err error) error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf extracts the Code from err, defaulting to Internal when err does
// not carry one.
func CodeOf(err error) Code {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Code
	}
	return Internal
}
