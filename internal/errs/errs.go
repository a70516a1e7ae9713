// Package errs defines the typed failure taxonomy shared by the store, the
// operator tree and the parallel coordinator.
//
// Every failure is an *Error carrying a Code. Sentinels of the same Code match
// through errors.Is, so callers can test for a category without caring about
// the message or the element kind that triggered it:
//
//	if errors.Is(err, errs.ErrDataTypeMismatch) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code uint8

const (
	CodeUnknown Code = iota
	CodeDataTypeMismatch
	CodeFeatureNotSupported
	CodeOutOfMemory
	CodeNullNotAllowed
	CodeStringTooLong
	CodeSyntaxError
	CodeInvalidParameter
	CodeStoreNotInitialized
	CodeDictionaryFull
	CodeDictionaryCodeNotFound
	CodeColumnNotFound
)

var codeNames = [...]string{
	CodeUnknown:                "unknown",
	CodeDataTypeMismatch:       "data type mismatch",
	CodeFeatureNotSupported:    "feature not supported",
	CodeOutOfMemory:            "out of memory",
	CodeNullNotAllowed:         "null not allowed",
	CodeStringTooLong:          "string too long",
	CodeSyntaxError:            "syntax error",
	CodeInvalidParameter:       "invalid parameter",
	CodeStoreNotInitialized:    "store not initialized",
	CodeDictionaryFull:         "dictionary full",
	CodeDictionaryCodeNotFound: "dictionary code not found",
	CodeColumnNotFound:         "column not found",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", uint8(c))
}

// Resource names what ran out for CodeOutOfMemory.
type Resource string

const (
	ResourceArena      Resource = "arena"
	ResourceDictionary Resource = "dictionary"
)

// Error is the concrete failure type.
//
// Subject is the element kind (for FeatureNotSupported) or the exhausted
// resource (for OutOfMemory); empty otherwise.
type Error struct {
	Code    Code
	Subject string
	Msg     string
	cause   error
}

func (e *Error) Error() string {
	head := e.Code.String()
	if e.Subject != "" {
		head = fmt.Sprintf("%s (%s)", head, e.Subject)
	}
	if e.Msg == "" {
		return head
	}
	return head + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Subject == "" || t.Subject == e.Subject)
}

var (
	ErrDataTypeMismatch       = &Error{Code: CodeDataTypeMismatch}
	ErrFeatureNotSupported    = &Error{Code: CodeFeatureNotSupported}
	ErrOutOfMemory            = &Error{Code: CodeOutOfMemory}
	ErrNullNotAllowed         = &Error{Code: CodeNullNotAllowed}
	ErrStringTooLong          = &Error{Code: CodeStringTooLong}
	ErrSyntaxError            = &Error{Code: CodeSyntaxError}
	ErrInvalidParameter       = &Error{Code: CodeInvalidParameter}
	ErrStoreNotInitialized    = &Error{Code: CodeStoreNotInitialized}
	ErrDictionaryFull         = &Error{Code: CodeDictionaryFull}
	ErrDictionaryCodeNotFound = &Error{Code: CodeDictionaryCodeNotFound}
	ErrColumnNotFound         = &Error{Code: CodeColumnNotFound}
)

// New creates an error of the given code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new error of the given code.
func Wrap(cause error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// Mismatch reports a data type mismatch.
func Mismatch(format string, args ...any) *Error {
	return New(CodeDataTypeMismatch, format, args...)
}

// Unsupported reports an operator that is not defined for the element kind.
func Unsupported(kind fmt.Stringer, op string) *Error {
	return &Error{Code: CodeFeatureNotSupported, Subject: kind.String(), Msg: op}
}

// Invalid reports an out-of-range or malformed parameter.
func Invalid(format string, args ...any) *Error {
	return New(CodeInvalidParameter, format, args...)
}

// OutOfMemory reports exhaustion of res.
func OutOfMemory(res Resource, cause error) *Error {
	return &Error{Code: CodeOutOfMemory, Subject: string(res), Msg: "limit exceeded", cause: cause}
}

// CodeOf returns the Code of err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
