// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pyeval implements the Evaluator and Requirement matcher: the
// per-Link format/yank/requires-python/name/version/tag/hash checks, and
// the version-specifier plus pre-release admission rule that intersects
// an evaluated Package against a Requirement.
package pyeval

import "fmt"

// ErrorKind is the cross-cutting error taxonomy shared by every stage of
// the collection and evaluation pipeline.
type ErrorKind string

const (
	KindUrlError          ErrorKind = "UrlError"
	KindUnpackError       ErrorKind = "UnpackError"
	KindHashError         ErrorKind = "HashError"
	KindIOError           ErrorKind = "IOError"
	KindCollectError      ErrorKind = "CollectError"
	KindValueError        ErrorKind = "ValueError"
	KindLinkMismatchError ErrorKind = "LinkMismatchError"
)

// Error is the structured (kind, message) pair presented to callers.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErrorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapErrorf(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// linkMismatch builds a LinkMismatchError: the "next candidate please"
// rejection signal every per-Link check in this package returns.
func linkMismatch(format string, args ...interface{}) *Error {
	return newErrorf(KindLinkMismatchError, format, args...)
}

// IsLinkMismatch reports whether err is (or wraps) a LinkMismatchError,
// the filter-rejection signal callers iterating many Links should treat
// as "skip this candidate" rather than a terminal failure.
func IsLinkMismatch(err error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok { //nolint:errorlint // narrow unwrap loop
			return e.Kind == KindLinkMismatchError
		}
		u, ok := err.(interface{ Unwrap() error }) //nolint:errorlint // see above
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
