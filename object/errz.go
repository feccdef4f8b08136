// Re-exports of errz types, so object consumers rarely need both imports.
package object

import (
	"github.com/perch-lang/perch/errz"
)

type (
	SourceLocation  = errz.SourceLocation
	StackFrame      = errz.StackFrame
	StructuredError = errz.StructuredError
	ErrorKind       = errz.ErrorKind
)

const (
	ErrSyntax  = errz.ErrSyntax
	ErrType    = errz.ErrType
	ErrName    = errz.ErrName
	ErrValue   = errz.ErrValue
	ErrRuntime = errz.ErrRuntime
)

var (
	FormatStackTrace    = errz.FormatStackTrace
	NewStructuredError  = errz.NewStructuredError
	NewStructuredErrorf = errz.NewStructuredErrorf
)

// TypeErrorf returns an error object describing a type mismatch.
func TypeErrorf(format string, args ...interface{}) *Error {
	return NewError(errz.NewStructuredErrorf(errz.ErrType, errz.SourceLocation{}, nil, format, args...))
}

// ValueErrorf returns an error object describing an invalid value.
func ValueErrorf(format string, args ...interface{}) *Error {
	return NewError(errz.NewStructuredErrorf(errz.ErrValue, errz.SourceLocation{}, nil, format, args...))
}

// IndexErrorf returns an error object describing an out-of-range index.
func IndexErrorf(format string, args ...interface{}) *Error {
	return NewError(errz.NewStructuredErrorf(errz.ErrValue, errz.SourceLocation{}, nil, format, args...))
}

// ArgsErrorf returns an error object describing a bad argument list.
func ArgsErrorf(format string, args ...interface{}) *Error {
	return NewError(errz.NewStructuredErrorf(errz.ErrRuntime, errz.SourceLocation{}, nil, format, args...))
}

// RuntimeErrorf returns an error object describing a general runtime failure.
func RuntimeErrorf(format string, args ...interface{}) *Error {
	return NewError(errz.NewStructuredErrorf(errz.ErrRuntime, errz.SourceLocation{}, nil, format, args...))
}
