package verror

import (
	"fmt"
	"strings"
)

// Kind discriminates view subsystem failures so that callers can match on
// the failure class regardless of how many times the error was wrapped.
type Kind int

const (
	KindUnknown Kind = iota
	KindAlreadyExists
	KindNotFound
	KindNoSuchTable
	KindTypeMismatch
	KindDefinitionNotAllowed
	KindColumnCountMismatch
	KindDuplicateFieldName
	KindColumnAccessDenied
	KindNonUpdatableCheckOption
	KindViewWithoutUsableKey
	KindViewCorrupt
	KindDigestMismatch
	KindPrivilegeDenied
	KindTemporaryTableNotAllowed
	KindLockWaitFailed
)

var kindNames = map[Kind]string{
	KindAlreadyExists:            "already exists",
	KindNotFound:                 "not found",
	KindNoSuchTable:              "no such table",
	KindTypeMismatch:             "object kind mismatch",
	KindDefinitionNotAllowed:     "construct not allowed in view definition",
	KindColumnCountMismatch:      "column list and select list differ in size",
	KindDuplicateFieldName:       "duplicate column name",
	KindColumnAccessDenied:       "column access denied",
	KindNonUpdatableCheckOption:  "CHECK OPTION on non-updatable view",
	KindViewWithoutUsableKey:     "view lacks a usable key for limited update",
	KindViewCorrupt:              "view definition is corrupt",
	KindDigestMismatch:           "view checksum mismatch",
	KindPrivilegeDenied:          "access denied",
	KindTemporaryTableNotAllowed: "view can not be based on a temporary table",
	KindLockWaitFailed:           "lock wait failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown error"
}

// Error is a view subsystem error bound to a catalog object.
type Error struct {
	Kind   Kind
	Schema string
	Name   string
	Detail string
	cause  error
}

func (e *Error) Error() string {
	builder := strings.Builder{}
	builder.WriteString(e.Kind.String())
	if object := e.Object(); object != "" {
		builder.WriteString(": " + object)
	}
	if e.Detail != "" {
		builder.WriteString(": " + e.Detail)
	}
	if e.cause != nil {
		builder.WriteString(": " + e.cause.Error())
	}
	return builder.String()
}

// Object returns the qualified object name the error relates to, if any.
func (e *Error) Object() string {
	switch {
	case e.Schema != "" && e.Name != "":
		return e.Schema + "." + e.Name
	case e.Name != "":
		return e.Name
	}
	return e.Schema
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an error of the supplied kind for schema qualified object.
func New(kind Kind, schema, name string) *Error {
	return &Error{Kind: kind, Schema: schema, Name: name}
}

// Newf creates an error of the supplied kind with a formatted detail.
func Newf(kind Kind, schema, name, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Schema: schema, Name: name, Detail: fmt.Sprintf(format, args...)}
}

// Wrap annotates cause with a kind and object identity; a nil cause yields nil.
func Wrap(cause error, kind Kind, schema, name string) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Schema: schema, Name: name, cause: cause}
}

// Is reports whether any error in the chain carries the supplied kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if actual, ok := err.(*Error); ok && actual.Kind == kind {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// KindOf returns the kind of the first subsystem error in the chain.
func KindOf(err error) Kind {
	for err != nil {
		if actual, ok := err.(*Error); ok {
			return actual.Kind
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindUnknown
		}
		err = unwrapper.Unwrap()
	}
	return KindUnknown
}
